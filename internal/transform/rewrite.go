package transform

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/vkarpal/libro-go/internal/models"
)

// quoteChars is the set of double-quote characters the punctuation fix
// rewrites: straight, curly pair, guillemets. Single quotes are left alone
// so contractions survive.
var quoteChars = []string{`"`, "“", "”", "«", "»"}

var spaceRunPattern = regexp.MustCompile(` +`)

// Rewriter rewrites every text-bearing leaf node under the document root.
// Per node it applies, in order: watermark removal, the punctuation fix,
// space collapsing, then the ordered replacement rules (one-shot rules
// first, then active dictionary rules). Rules are literal substrings,
// case-sensitive, all occurrences, and allowed to compound.
type Rewriter struct {
	Watermarks     []string
	FixPunctuation bool
	FixSpacing     bool
	Rules          []models.Rule
}

// Apply walks the tree depth-first and rewrites text nodes, writing a node
// back only when its value actually changed. Reports whether at least one
// node was rewritten. A document without a root is skipped.
func (r *Rewriter) Apply(doc *goquery.Document) bool {
	if doc == nil || len(doc.Nodes) == 0 {
		return false
	}
	changed := false
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if out := r.rewrite(n.Data); out != n.Data {
				n.Data = out
				changed = true
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return changed
}

func (r *Rewriter) rewrite(text string) string {
	for _, wm := range r.Watermarks {
		if wm != "" {
			text = strings.ReplaceAll(text, wm, "")
		}
	}

	if r.FixPunctuation {
		for _, q := range quoteChars {
			text = strings.ReplaceAll(text, "."+q, " —")
		}
		for _, q := range quoteChars {
			text = strings.ReplaceAll(text, q, "—")
		}
	}

	if r.FixSpacing && strings.Contains(text, "  ") {
		text = spaceRunPattern.ReplaceAllString(text, " ")
	}

	for _, rule := range r.Rules {
		if rule.Original != "" {
			text = strings.ReplaceAll(text, rule.Original, rule.Replacement)
		}
	}
	return text
}
