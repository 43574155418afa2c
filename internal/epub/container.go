// This file implements the container codec: an EPUB is a ZIP archive, and
// the pipeline needs an addressable, order-preserving set of named entries
// it can read, rewrite and re-serialize deterministically.

package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// maxEntrySize caps the decompressed size of a single entry to guard
// against zip bombs.
const maxEntrySize int64 = 256 * 1024 * 1024

// Kind classifies an entry by its file extension.
type Kind int

const (
	KindOther Kind = iota
	KindImage
	KindMarkup
)

// Classify maps an entry name to its Kind.
func Classify(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg":
		return KindImage
	case ".xhtml", ".html", ".htm":
		return KindMarkup
	default:
		return KindOther
	}
}

type entry struct {
	name    string
	data    []byte
	dirty   bool
	removed bool
}

// Container is an opened archive held fully in memory. All mutations are
// confined to the handle until Serialize is called.
type Container struct {
	entries []*entry
	index   map[string]*entry
	damaged []string
}

// Open reads the full archive into an ordered entry set. Malformed archive
// bytes fail with ErrCorruptArchive; individual entries that cannot be
// decompressed are recorded as damaged and skipped rather than failing the
// whole container.
func Open(data []byte) (*Container, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	c := &Container{index: make(map[string]*entry)}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		content, err := readZipEntry(f)
		if err != nil {
			c.damaged = append(c.damaged, f.Name)
			continue
		}
		e := &entry{name: f.Name, data: content}
		c.entries = append(c.entries, e)
		c.index[f.Name] = e
	}
	return c, nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > uint64(maxEntrySize) {
		return nil, fmt.Errorf("epub: entry %s too large", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxEntrySize {
		return nil, fmt.Errorf("epub: entry %s exceeds size limit", f.Name)
	}
	return data, nil
}

// Entries returns the names of all live entries in archive order.
func (c *Container) Entries() []string {
	names := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		if !e.removed {
			names = append(names, e.name)
		}
	}
	return names
}

// Damaged returns the names of entries that failed to decompress at open
// time. They are excluded from Entries.
func (c *Container) Damaged() []string { return c.damaged }

// Has reports whether a live entry with the given name exists.
func (c *Container) Has(name string) bool {
	e, ok := c.index[name]
	return ok && !e.removed
}

// ReadBinary returns the raw content of an entry.
func (c *Container) ReadBinary(name string) ([]byte, error) {
	e, ok := c.index[name]
	if !ok || e.removed {
		return nil, fmt.Errorf("%w: %s", ErrEntryMissing, name)
	}
	return e.data, nil
}

// ReadText returns the content of an entry as a string.
func (c *Container) ReadText(name string) (string, error) {
	data, err := c.ReadBinary(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write replaces the content of an existing entry in place, or appends a
// new entry at the end of the archive order. Other entries are untouched.
func (c *Container) Write(name string, content []byte) {
	if e, ok := c.index[name]; ok {
		e.data = content
		e.dirty = true
		e.removed = false
		return
	}
	e := &entry{name: name, data: content, dirty: true}
	c.entries = append(c.entries, e)
	c.index[name] = e
}

// Remove drops an entry from the container. Removing a missing entry is a
// no-op.
func (c *Container) Remove(name string) {
	if e, ok := c.index[name]; ok {
		e.removed = true
	}
}

// Serialize writes the container back to archive bytes. Entry order is the
// order observed at open time (appends at the end, removals applied). The
// mimetype entry, when present, is written first and stored uncompressed
// as the EPUB container rules require. Output is deterministic for a given
// entry set.
func (c *Container) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(e *entry) error {
		method := zip.Deflate
		if e.name == "mimetype" {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		if err != nil {
			return fmt.Errorf("epub: create entry %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return fmt.Errorf("epub: write entry %s: %w", e.name, err)
		}
		return nil
	}

	// mimetype must be the first entry in the archive.
	if e, ok := c.index["mimetype"]; ok && !e.removed {
		if err := write(e); err != nil {
			return nil, err
		}
	}
	for _, e := range c.entries {
		if e.removed || e.name == "mimetype" {
			continue
		}
		if err := write(e); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("epub: finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
