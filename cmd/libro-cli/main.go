// libro-cli processes a single book from the command line, running it
// through the same queue and pipeline as chat submissions. The finished
// book lands in the configured output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vkarpal/libro-go/internal/core"
	"github.com/vkarpal/libro-go/internal/ingest"
	"github.com/vkarpal/libro-go/internal/models"
)

func main() {
	userID := flag.Int64("user", 0, "profile to process the book under")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: libro-cli [-user ID] <file-or-url>")
		os.Exit(1)
	}
	input := flag.Arg(0)

	// Initialize the core application components
	app, err := core.New()
	if err != nil {
		log.Fatalf("Fatal error during application setup: %v", err)
	}
	defer app.Close()

	profile, err := app.Store().GetProfile(*userID)
	if err != nil {
		log.Fatalf("Could not load profile %d: %v", *userID, err)
	}

	var source models.JobSource
	displayName := input
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		source = models.JobSource{URL: input}
	} else {
		if !ingest.Supported(input) {
			log.Fatalf("Unsupported input type: %s", input)
		}
		data, err := os.ReadFile(input)
		if err != nil {
			log.Fatalf("Could not read %s: %v", input, err)
		}
		name := filepath.Base(input)
		normalized, err := app.Ingest().NormalizeFile(context.Background(), name, data)
		if err != nil {
			log.Fatalf("Could not ingest %s: %v", name, err)
		}
		source = models.JobSource{Data: normalized, FileName: name}
		displayName = name
	}

	job := models.Job{
		Source:      source,
		DisplayName: displayName,
		Snapshot:    profile.Freeze(app.Config().Pipeline.Watermarks),
		EnqueuedAt:  time.Now().UTC(),
	}

	pos, err := app.Dispatcher().Enqueue(*userID, job)
	if err != nil {
		log.Fatalf("Could not enqueue job: %v", err)
	}
	log.Printf("Queued %s at position %d, processing...", displayName, pos)

	// Block until the per-user drain loop goes idle.
	app.Dispatcher().Wait()

	fmt.Printf("Done. Output written to %s\n", app.Config().Output.Path)
}
