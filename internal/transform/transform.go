// This file implements the structural transforms that run over one parsed
// chapter document. Each transform is independent, mutates the tree in
// place and reports whether it changed anything. The pipeline runs them in
// a fixed order: images, styles, empty paragraphs, hyperlinks, footnotes,
// then the text rewriter. Pruning must see the tree already stripped of
// images so an emptied paragraph counts as empty.

package transform

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// StripImages removes every raster and vector image element.
func StripImages(doc *goquery.Document) bool {
	sel := doc.Find("img, image")
	if sel.Length() == 0 {
		return false
	}
	sel.Remove()
	return true
}

// StripInlineStyles drops the style attribute from every element carrying
// one.
func StripInlineStyles(doc *goquery.Document) bool {
	sel := doc.Find("[style]")
	if sel.Length() == 0 {
		return false
	}
	sel.RemoveAttr("style")
	return true
}

// PruneEmptyParagraphs removes paragraphs whose trimmed text is empty and
// which have no child elements. A paragraph that still contains a non-text
// child (say, an anchor) is kept even if it has no visible text.
func PruneEmptyParagraphs(doc *goquery.Document) bool {
	changed := false
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() == 0 && strings.TrimSpace(s.Text()) == "" {
			s.Remove()
			changed = true
		}
	})
	return changed
}

// UnwrapHyperlinks replaces every link with a plain text node holding the
// link's text content. Destinations are discarded; the surrounding
// structure is untouched.
func UnwrapHyperlinks(doc *goquery.Document) bool {
	changed := false
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		text := &html.Node{Type: html.TextNode, Data: s.Text()}
		s.ReplaceWithNodes(text)
		changed = true
	})
	return changed
}

// footnoteTypes are the epub:type tokens that mark footnote cross-reference
// markers and footnote/endnote content.
var footnoteTypes = map[string]bool{
	"noteref":  true,
	"footnote": true,
	"endnote":  true,
	"rearnote": true,
}

// StripFootnotes removes every element whose epub:type marks it as a note
// reference or note content, unconditionally.
func StripFootnotes(doc *goquery.Document) bool {
	changed := false
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		val, ok := s.Attr("epub:type")
		if !ok {
			return
		}
		for _, tok := range strings.Fields(val) {
			if footnoteTypes[strings.ToLower(tok)] {
				s.Remove()
				changed = true
				return
			}
		}
	})
	return changed
}
