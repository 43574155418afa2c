package testutil

import (
	"archive/zip"
	"bytes"
	"testing"
)

// BuildEPUB assembles an in-memory EPUB archive from ordered name/content
// pairs. Entry order in the archive matches the slice order.
func BuildEPUB(t *testing.T, files [][2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f[0])
		if err != nil {
			t.Fatalf("Failed to create zip entry %s: %v", f[0], err)
		}
		if _, err := w.Write([]byte(f[1])); err != nil {
			t.Fatalf("Failed to write zip entry %s: %v", f[0], err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to finalize zip: %v", err)
	}
	return buf.Bytes()
}

// MinimalOPF returns a package document with the given title, author and
// language (any of which may be empty).
func MinimalOPF(title, author, language string) string {
	opf := `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <metadata>`
	if title != "" {
		opf += "\n    <dc:title>" + title + "</dc:title>"
	}
	if author != "" {
		opf += "\n    <dc:creator>" + author + "</dc:creator>"
	}
	if language != "" {
		opf += "\n    <dc:language>" + language + "</dc:language>"
	}
	opf += "\n  </metadata>\n</package>"
	return opf
}

// ContainerXML is the standard META-INF/container.xml pointing at
// content.opf.
const ContainerXML = `<?xml version="1.0"?>
<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container" version="1.0">
  <rootfiles><rootfile full-path="content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`
