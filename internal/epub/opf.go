// OPF package-document handling: locating the .opf inside the container,
// reading the Dublin Core fields the pipeline cares about, and rewriting
// title/author in place for metadata overrides.

package epub

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

const containerXMLPath = "META-INF/container.xml"

// Metadata holds the package fields used by the pipeline.
type Metadata struct {
	Title    string
	Author   string
	Language string
}

type containerXML struct {
	RootFiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfMetadata struct {
	Titles    []string `xml:"metadata>title"`
	Creators  []string `xml:"metadata>creator"`
	Languages []string `xml:"metadata>language"`
}

// PackagePath locates the OPF document. container.xml is consulted first;
// if it is missing or unusable the archive is scanned for the first .opf
// entry, matching how permissive readers behave.
func (c *Container) PackagePath() (string, error) {
	if data, err := c.ReadBinary(containerXMLPath); err == nil {
		var cx containerXML
		if err := xml.Unmarshal(stripBOM(data), &cx); err == nil {
			for _, rf := range cx.RootFiles {
				if p := strings.TrimSpace(rf.FullPath); p != "" {
					return p, nil
				}
			}
		}
	}
	for _, name := range c.Entries() {
		if strings.HasSuffix(strings.ToLower(name), ".opf") {
			return name, nil
		}
	}
	return "", ErrNoPackage
}

// ReadMetadata parses the OPF and returns title, author and language.
// Missing fields come back empty.
func (c *Container) ReadMetadata() (Metadata, error) {
	path, err := c.PackagePath()
	if err != nil {
		return Metadata{}, err
	}
	data, err := c.ReadBinary(path)
	if err != nil {
		return Metadata{}, err
	}

	var om opfMetadata
	if err := xml.Unmarshal(stripBOM(data), &om); err != nil {
		return Metadata{}, fmt.Errorf("epub: parse package document: %w", err)
	}

	var md Metadata
	if len(om.Titles) > 0 {
		md.Title = strings.TrimSpace(om.Titles[0])
	}
	if len(om.Creators) > 0 {
		md.Author = strings.TrimSpace(om.Creators[0])
	}
	if len(om.Languages) > 0 {
		md.Language = strings.TrimSpace(om.Languages[0])
	}
	return md, nil
}

var (
	titleTagPattern   = regexp.MustCompile(`(?s)(<dc:title[^>]*>)(.*?)(</dc:title>)`)
	creatorTagPattern = regexp.MustCompile(`(?s)(<dc:creator[^>]*>)(.*?)(</dc:creator>)`)
)

// RewriteMetadata replaces the first dc:title and dc:creator values in the
// OPF. Empty arguments leave the corresponding field untouched, so callers
// resolve missing override fields from ReadMetadata before calling.
func (c *Container) RewriteMetadata(title, author string) error {
	path, err := c.PackagePath()
	if err != nil {
		return err
	}
	text, err := c.ReadText(path)
	if err != nil {
		return err
	}

	changed := false
	if title != "" {
		text = replaceFirstTag(text, titleTagPattern, title, &changed)
	}
	if author != "" {
		text = replaceFirstTag(text, creatorTagPattern, author, &changed)
	}
	if changed {
		c.Write(path, []byte(text))
	}
	return nil
}

func replaceFirstTag(text string, pattern *regexp.Regexp, value string, changed *bool) string {
	replaced := false
	out := pattern.ReplaceAllStringFunc(text, func(m string) string {
		if replaced {
			return m
		}
		replaced = true
		*changed = true
		parts := pattern.FindStringSubmatch(m)
		return parts[1] + escapeXML(value) + parts[3]
	})
	return out
}

func escapeXML(s string) string {
	var sb strings.Builder
	if err := xml.EscapeText(&sb, []byte(s)); err != nil {
		return s
	}
	return sb.String()
}

// stripBOM removes a leading UTF-8 byte order mark, if present.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
