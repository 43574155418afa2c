package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vkarpal/libro-go/internal/transform"

	"github.com/vkarpal/libro-go/internal/models"
)

func bodyText(t *testing.T, src string, r *transform.Rewriter) (string, bool) {
	t.Helper()
	doc := parse(t, src)
	changed := r.Apply(doc)
	return doc.Find("body").Text(), changed
}

func TestRewriterWatermarkRemoval(t *testing.T) {
	r := &transform.Rewriter{Watermarks: []string{"Machine Translated by Google"}}
	text, changed := bodyText(t, `<html><body><p>Machine Translated by Google</p><p>Chapter one text.</p></body></html>`, r)
	assert.True(t, changed)
	assert.NotContains(t, text, "Machine Translated")
	assert.Contains(t, text, "Chapter one text.")
}

func TestRewriterPunctuationFix(t *testing.T) {
	r := &transform.Rewriter{FixPunctuation: true}
	text, changed := bodyText(t, `<html><body><p>He said "hi."</p></body></html>`, r)
	assert.True(t, changed)
	// `."` becomes " —" and the remaining opening quote becomes an em dash.
	assert.Equal(t, "He said —hi —", text)
}

func TestRewriterCurlyQuotes(t *testing.T) {
	r := &transform.Rewriter{FixPunctuation: true}
	text, _ := bodyText(t, `<html><body><p>Dijo “hola.”</p></body></html>`, r)
	assert.Equal(t, "Dijo —hola —", text)
}

func TestRewriterSpacingFix(t *testing.T) {
	r := &transform.Rewriter{FixSpacing: true}
	text, changed := bodyText(t, `<html><body><p>a&#32;&#32;&#32;b c</p></body></html>`, r)
	assert.True(t, changed)
	assert.Equal(t, "a b c", text)
}

func TestRewriterSpacingFixSkipsSingleSpaces(t *testing.T) {
	r := &transform.Rewriter{FixSpacing: true}
	_, changed := bodyText(t, `<html><body><p>a b c</p></body></html>`, r)
	assert.False(t, changed)
}

func TestRewriterRulesInOrder(t *testing.T) {
	r := &transform.Rewriter{Rules: []models.Rule{
		{Original: "Capitulo", Replacement: "Capítulo"},
		{Original: "Capítulo 1", Replacement: "Capítulo Uno"},
	}}
	text, changed := bodyText(t, `<html><body><p>Capitulo 1</p></body></html>`, r)
	assert.True(t, changed)
	// Rules apply in declared order and may compound.
	assert.Equal(t, "Capítulo Uno", text)
}

func TestRewriterRulesAreLiteral(t *testing.T) {
	r := &transform.Rewriter{Rules: []models.Rule{{Original: "a.c", Replacement: "X"}}}
	text, changed := bodyText(t, `<html><body><p>abc a.c</p></body></html>`, r)
	assert.True(t, changed)
	assert.Equal(t, "abc X", text)
}

func TestRewriterNoChangeReportsFalse(t *testing.T) {
	r := &transform.Rewriter{
		Watermarks:     []string{"absent phrase"},
		FixPunctuation: true,
		FixSpacing:     true,
		Rules:          []models.Rule{{Original: "zzz", Replacement: "yyy"}},
	}
	_, changed := bodyText(t, `<html><body><p>plain text with no quotes</p></body></html>`, r)
	assert.False(t, changed)
}
