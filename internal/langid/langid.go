// Package langid decides whether a book needs translation. The decision is
// two-stage: a fast metadata lookup on the package language, then
// statistical identification over sampled chapter text.
package langid

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"

	"github.com/vkarpal/libro-go/internal/epub"
)

const (
	maxSampleEntries = 5
	maxSampleChars   = 5000
)

// Decision is the per-job translation verdict. Code is the detected
// ISO-639-3 code, empty when nothing could be sampled.
type Decision struct {
	ShouldTranslate bool
	Code            string
}

// Decide never fails: when no text can be sampled it defaults to
// translating, which is the caller's requested fallback.
func Decide(c *epub.Container) Decision {
	if md, err := c.ReadMetadata(); err == nil {
		if isSpanishTag(md.Language) {
			return Decision{ShouldTranslate: false, Code: "spa"}
		}
	}

	sample := SampleText(c)
	if strings.TrimSpace(sample) == "" {
		return Decision{ShouldTranslate: true}
	}

	info := whatlanggo.Detect(sample)
	return Decision{
		ShouldTranslate: info.Lang != whatlanggo.Spa,
		Code:            whatlanggo.LangToString(info.Lang),
	}
}

// isSpanishTag reports whether a declared package language denotes Spanish
// (BCP 47 "es"/"es-*" or ISO-639 "spa").
func isSpanishTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return tag == "es" || tag == "spa" || strings.HasPrefix(tag, "es-")
}

// SampleText collects stripped text from up to maxSampleEntries markup
// entries, stopping once maxSampleChars characters are gathered. Entries
// that fail to parse are skipped.
func SampleText(c *epub.Container) string {
	var sb strings.Builder
	sampled := 0
	for _, name := range c.Entries() {
		if epub.Classify(name) != epub.KindMarkup {
			continue
		}
		text, err := c.ReadText(name)
		if err != nil {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
		if err != nil {
			continue
		}
		sb.WriteString(doc.Text())
		sb.WriteString("\n")

		sampled++
		if sampled >= maxSampleEntries || sb.Len() >= maxSampleChars {
			break
		}
	}
	s := sb.String()
	if len(s) > maxSampleChars {
		s = s[:maxSampleChars]
	}
	return s
}
