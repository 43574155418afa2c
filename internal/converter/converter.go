// Package converter drives the external format-conversion engine as an
// opaque command-line collaborator. It covers four duties: ingest
// conversion to EPUB, egress conversion to the requested output format,
// recipe-driven story-site downloads, and whole-book translation via a
// generated translation-config descriptor.
package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrTimeout marks a conversion that exceeded its deadline.
var ErrTimeout = errors.New("converter: operation timed out")

// Engine wraps one conversion binary. Timeout bounds every invocation.
type Engine struct {
	BinPath string
	Timeout time.Duration
}

func New(binPath string, timeout time.Duration) *Engine {
	return &Engine{BinPath: binPath, Timeout: timeout}
}

// Convert runs the engine as `bin <input> <output> [extraArgs...]` and
// returns its stdout. A non-zero exit fails with the collaborator's stderr
// attached; hitting the deadline fails with ErrTimeout.
func (e *Engine) Convert(ctx context.Context, inputPath, outputPath string, extraArgs []string) (string, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := append([]string{inputPath, outputPath}, extraArgs...)
	cmd := exec.CommandContext(ctx, e.BinPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%w after %s", ErrTimeout, e.Timeout)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("converter: %s failed: %s", filepath.Base(e.BinPath), msg)
	}
	return stdout.String(), nil
}

// FetchURL downloads and converts a story URL into outputPath by feeding
// the engine a generated per-URL recipe descriptor.
func (e *Engine) FetchURL(ctx context.Context, url, outputPath string) error {
	recipe, err := os.CreateTemp("", "story-*.recipe")
	if err != nil {
		return fmt.Errorf("converter: create recipe file: %w", err)
	}
	defer os.Remove(recipe.Name())

	descriptor := fmt.Sprintf("[story]\nurl = %s\n", url)
	if _, err := recipe.WriteString(descriptor); err != nil {
		recipe.Close()
		return fmt.Errorf("converter: write recipe file: %w", err)
	}
	recipe.Close()

	_, err = e.Convert(ctx, recipe.Name(), outputPath, nil)
	return err
}

// translationConfig is the descriptor handed to the engine for whole-book
// translation.
type translationConfig struct {
	Engine   string `json:"engine"`
	APIKey   string `json:"api_key,omitempty"`
	Target   string `json:"target"`
	FromLang string `json:"from,omitempty"`
}

// TranslateBook delegates the entire book to the engine, driven by a
// generated translation-config descriptor naming the translation engine
// and optional API key.
func (e *Engine) TranslateBook(ctx context.Context, inputPath, outputPath, engineID, apiKey, targetLang string) error {
	cfg, err := os.CreateTemp("", "translate-*.json")
	if err != nil {
		return fmt.Errorf("converter: create translation config: %w", err)
	}
	defer os.Remove(cfg.Name())

	payload, err := json.Marshal(translationConfig{Engine: engineID, APIKey: apiKey, Target: targetLang})
	if err != nil {
		return fmt.Errorf("converter: encode translation config: %w", err)
	}
	if _, err := cfg.Write(payload); err != nil {
		cfg.Close()
		return fmt.Errorf("converter: write translation config: %w", err)
	}
	cfg.Close()

	_, err = e.Convert(ctx, inputPath, outputPath, []string{"--translate-config", cfg.Name()})
	return err
}
