// Package ingest normalizes inbound submissions: extension validation,
// conversion of non-canonical formats to EPUB, and recipe-driven story
// downloads backed by the content cache.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/vkarpal/libro-go/internal/converter"
	"github.com/vkarpal/libro-go/internal/store"
)

// ErrUnsupportedInput rejects a submission before any job is created.
var ErrUnsupportedInput = errors.New("ingest: unsupported input type")

// convertibleExts are the non-canonical formats the conversion engine can
// turn into EPUB on ingest.
var convertibleExts = map[string]bool{
	".mobi": true, ".azw": true, ".azw3": true, ".fb2": true,
	".docx": true, ".rtf": true, ".txt": true, ".html": true, ".htm": true,
}

// Service performs submission normalization and URL fetching.
type Service struct {
	store  *store.Store
	engine *converter.Engine
}

func New(st *store.Store, engine *converter.Engine) *Service {
	return &Service{store: st, engine: engine}
}

// Supported reports whether a declared file name is accepted at all.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".epub" || convertibleExts[ext]
}

// NormalizeFile validates the extension and converts non-EPUB submissions
// into the canonical container. Unknown extensions are rejected with
// ErrUnsupportedInput and never reach a queue.
func (s *Service) NormalizeFile(ctx context.Context, name string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".epub" {
		return data, nil
	}
	if !convertibleExts[ext] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedInput, ext)
	}

	dir, err := os.MkdirTemp("", "libro-ingest-")
	if err != nil {
		return nil, fmt.Errorf("ingest: create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input"+ext)
	out := filepath.Join(dir, "output.epub")
	if err := os.WriteFile(in, data, 0o644); err != nil {
		return nil, fmt.Errorf("ingest: write temp input: %w", err)
	}
	if _, err := s.engine.Convert(ctx, in, out, nil); err != nil {
		return nil, err
	}
	converted, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("ingest: read converted output: %w", err)
	}
	return converted, nil
}

// Fetch resolves a story URL into canonical bytes, consulting the content
// cache first. Implements the queue's Fetcher contract.
func (s *Service) Fetch(ctx context.Context, url string) ([]byte, error) {
	key := cacheKey(url)
	if data, ok, err := s.store.CacheGet(key); err == nil && ok {
		return data, nil
	}

	dir, err := os.MkdirTemp("", "libro-fetch-")
	if err != nil {
		return nil, fmt.Errorf("ingest: create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "story.epub")
	if err := s.engine.FetchURL(ctx, url, out); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("ingest: read fetched story: %w", err)
	}

	if err := s.store.CachePut(key, data); err != nil {
		// A cache write failure only costs a future refetch.
		log.Printf("Cache put for %s failed: %v", url, err)
	}
	return data, nil
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
