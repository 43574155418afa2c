// Package pipeline drives one job end to end: unpack, per-entry transform
// fan-out, optional translation, metadata rewrite, summary and output
// conversion, then repack. Per-entry parse failures are isolated into
// warnings; collaborator failures abort the job.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/vkarpal/libro-go/internal/epub"
	"github.com/vkarpal/libro-go/internal/langid"
	"github.com/vkarpal/libro-go/internal/models"
	"github.com/vkarpal/libro-go/internal/transform"
)

// Translator is the per-entry translation collaborator.
type Translator interface {
	Translate(ctx context.Context, text, target, engine, apiKey string) (string, error)
}

// Summarizer is the AI summary collaborator.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Converter is the external conversion engine, used for whole-book
// translation and output-format conversion.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string, extraArgs []string) (string, error)
	TranslateBook(ctx context.Context, inputPath, outputPath, engineID, apiKey, targetLang string) error
}

// Pipeline holds the collaborators shared by every job. Recompress must
// never fail; it degrades to returning its input.
type Pipeline struct {
	Translator Translator
	Summarizer Summarizer
	Converter  Converter
	Recompress func([]byte) []byte

	TargetLang string
	APIKey     string
	Workers    int
}

// Result is what a finished job returns to the queue drainer.
type Result struct {
	Data          []byte
	Translated    bool
	Summary       string
	Warnings      []string
	ImagesRemoved int
}

// customStylePath is where a one-shot style block is written into the book.
const customStylePath = "styles/custom.css"

// relativeStylePath resolves the stylesheet entry relative to a chapter's
// directory so the injected link works at any nesting depth.
func relativeStylePath(entryName string) string {
	return strings.Repeat("../", strings.Count(entryName, "/")) + customStylePath
}

func (pl *Pipeline) workers() int {
	if pl.Workers > 0 {
		return pl.Workers
	}
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	return n
}

func (pl *Pipeline) target() string {
	if pl.TargetLang != "" {
		return pl.TargetLang
	}
	return "es"
}

// Run executes every stage for one job. progress is invoked with the stage
// name before each stage begins; it may be nil.
func (pl *Pipeline) Run(ctx context.Context, src []byte, snap models.Snapshot, progress func(stage string)) (*Result, error) {
	report := func(stage string) {
		if progress != nil {
			progress(stage)
		}
	}

	report("open")
	c, err := epub.Open(src)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, name := range c.Damaged() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("entry %s could not be read", name))
	}

	report("classify")
	translatePending := false
	if snap.Options.Translate {
		translatePending = langid.Decide(c).ShouldTranslate
	}

	if snap.Metadata != nil {
		report("metadata")
		if err := pl.rewriteMetadata(c, snap.Metadata); err != nil {
			return nil, err
		}
	}

	if snap.CustomCSS != "" {
		report("styles")
		c.Write(customStylePath, []byte(snap.CustomCSS))
	}

	report("transform")
	perNode := translatePending && snap.Options.Engine != models.EngineExternal
	if err := pl.transformEntries(ctx, c, snap, perNode, res); err != nil {
		return nil, err
	}

	report("repack")
	data, err := c.Serialize()
	if err != nil {
		return nil, err
	}

	if translatePending && snap.Options.Engine == models.EngineExternal {
		report("translate")
		data, err = pl.translateWholeBook(ctx, data)
		if err != nil {
			return nil, err
		}
	}
	res.Translated = translatePending

	if snap.Options.Summarize && pl.Summarizer != nil {
		report("summary")
		summary, err := pl.summarize(ctx, data)
		if err != nil {
			return nil, err
		}
		res.Summary = summary
	}

	if snap.Options.Format != models.FormatEPUB && snap.Options.Format != "" {
		report("convert")
		data, err = pl.convertFormat(ctx, data, snap.Options.Format)
		if err != nil {
			return nil, err
		}
	}

	res.Data = data
	return res, nil
}

// rewriteMetadata resolves missing override fields from the existing
// package metadata before rewriting.
func (pl *Pipeline) rewriteMetadata(c *epub.Container, override *models.MetadataOverride) error {
	existing, err := c.ReadMetadata()
	if err != nil {
		return fmt.Errorf("pipeline: resolve metadata: %w", err)
	}
	title := override.Title
	if title == "" {
		title = existing.Title
	}
	author := override.Author
	if author == "" {
		author = existing.Author
	}
	return c.RewriteMetadata(title, author)
}

// transformEntries fans out over the container's entries with a bounded
// worker set and joins before returning. Entries are independent: each
// goroutine reads and writes only its own entry, so the container handle
// is safe to share. Image deletions are collected and applied after the
// join.
func (pl *Pipeline) transformEntries(ctx context.Context, c *epub.Container, snap models.Snapshot, perNode bool, res *Result) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		toDelete []string
		abortErr error
	)
	sem := make(chan struct{}, pl.workers())

	rules := append(append([]models.Rule{}, snap.SingleUseRules...), snap.DictRules...)

	for _, name := range c.Entries() {
		kind := epub.Classify(name)
		if kind == epub.KindOther {
			continue
		}
		if kind == epub.KindImage {
			if snap.Options.StripImages {
				mu.Lock()
				toDelete = append(toDelete, name)
				mu.Unlock()
			} else if snap.Options.OptimizeImages && pl.Recompress != nil {
				if data, err := c.ReadBinary(name); err == nil {
					if out := pl.Recompress(data); len(out) < len(data) {
						c.Write(name, out)
					}
				}
			}
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()

			warning, err := pl.transformMarkupEntry(ctx, c, name, snap, rules, perNode)
			mu.Lock()
			defer mu.Unlock()
			if err != nil && abortErr == nil {
				abortErr = err
			}
			if warning != "" {
				res.Warnings = append(res.Warnings, warning)
			}
		}(name)
	}

	// Full barrier: repackaging must not start before every entry is done.
	wg.Wait()
	if abortErr != nil {
		return abortErr
	}

	for _, name := range toDelete {
		c.Remove(name)
	}
	res.ImagesRemoved = len(toDelete)
	return nil
}

// transformMarkupEntry runs the full transform set over one chapter. A
// parse failure is reported as a warning (the entry is left untouched); a
// translation failure is returned as an error and aborts the job.
func (pl *Pipeline) transformMarkupEntry(ctx context.Context, c *epub.Container, name string, snap models.Snapshot, rules []models.Rule, perNode bool) (warning string, err error) {
	text, err := c.ReadText(name)
	if err != nil {
		return fmt.Sprintf("entry %s could not be read", name), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		log.Printf("Entry %s failed to parse: %v", name, err)
		return fmt.Sprintf("entry %s failed to parse", name), nil
	}

	o := snap.Options
	changed := false
	if o.StripImages {
		changed = transform.StripImages(doc) || changed
	}
	if o.StripStyles {
		changed = transform.StripInlineStyles(doc) || changed
	}
	if o.PruneEmpty {
		changed = transform.PruneEmptyParagraphs(doc) || changed
	}
	if o.UnwrapLinks {
		changed = transform.UnwrapHyperlinks(doc) || changed
	}
	if o.StripNotes {
		changed = transform.StripFootnotes(doc) || changed
	}

	rw := &transform.Rewriter{
		FixPunctuation: o.FixPunctuation,
		FixSpacing:     o.FixSpacing,
		Rules:          rules,
	}
	if o.RemoveWatermarks {
		rw.Watermarks = snap.Watermarks
	}
	changed = rw.Apply(doc) || changed

	if snap.CustomCSS != "" {
		href := relativeStylePath(name)
		if doc.Find(`link[href="`+href+`"]`).Length() == 0 {
			if head := doc.Find("head"); head.Length() > 0 {
				head.AppendHtml(fmt.Sprintf(`<link rel="stylesheet" type="text/css" href=%q/>`, href))
				changed = true
			}
		}
	}

	if perNode && pl.Translator != nil {
		translated, err := pl.translateTextNodes(ctx, doc, string(snap.Options.Engine))
		if err != nil {
			return "", err
		}
		changed = changed || translated
	}

	if changed {
		out, err := doc.Html()
		if err != nil {
			return fmt.Sprintf("entry %s failed to serialize", name), nil
		}
		c.Write(name, []byte(out))
	}
	return "", nil
}

// translateTextNodes sends each non-blank text node to the translation
// collaborator and writes the result back in place.
func (pl *Pipeline) translateTextNodes(ctx context.Context, doc *goquery.Document, engine string) (bool, error) {
	changed := false
	var nodes []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if strings.TrimSpace(n.Data) != "" {
				nodes = append(nodes, n)
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}

	for _, n := range nodes {
		out, err := pl.Translator.Translate(ctx, n.Data, pl.target(), engine, pl.APIKey)
		if err != nil {
			return changed, err
		}
		if out != "" && out != n.Data {
			n.Data = out
			changed = true
		}
	}
	return changed, nil
}

// translateWholeBook hands the packed container to the conversion engine
// at the archive level.
func (pl *Pipeline) translateWholeBook(ctx context.Context, data []byte) ([]byte, error) {
	if pl.Converter == nil {
		return nil, fmt.Errorf("pipeline: no conversion engine configured for whole-book translation")
	}
	return pl.withTempFiles(ctx, data, ".epub", func(in, out string) error {
		return pl.Converter.TranslateBook(ctx, in, out, string(models.EngineExternal), pl.APIKey, pl.target())
	})
}

// convertFormat converts the finished EPUB to the requested output format.
func (pl *Pipeline) convertFormat(ctx context.Context, data []byte, format models.OutputFormat) ([]byte, error) {
	if pl.Converter == nil {
		return nil, fmt.Errorf("pipeline: no conversion engine configured for %s output", format)
	}
	return pl.withTempFiles(ctx, data, "."+string(format), func(in, out string) error {
		_, err := pl.Converter.Convert(ctx, in, out, nil)
		return err
	})
}

// summarize feeds sampled book text to the summary collaborator.
func (pl *Pipeline) summarize(ctx context.Context, data []byte) (string, error) {
	c, err := epub.Open(data)
	if err != nil {
		return "", fmt.Errorf("pipeline: reopen for summary: %w", err)
	}
	sample := langid.SampleText(c)
	return pl.Summarizer.Summarize(ctx, sample)
}

// withTempFiles materializes data on disk for a subprocess collaborator
// and reads the collaborator's output back. The temp directory is removed
// on every path.
func (pl *Pipeline) withTempFiles(ctx context.Context, data []byte, outExt string, fn func(in, out string) error) ([]byte, error) {
	dir, err := os.MkdirTemp("", "libro-job-")
	if err != nil {
		return nil, fmt.Errorf("pipeline: create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input.epub")
	out := filepath.Join(dir, "output"+outExt)
	if err := os.WriteFile(in, data, 0o644); err != nil {
		return nil, fmt.Errorf("pipeline: write temp input: %w", err)
	}
	if err := fn(in, out); err != nil {
		return nil, err
	}
	result, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read collaborator output: %w", err)
	}
	return result, nil
}
