package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/vkarpal/libro-go/internal/models"
	"github.com/vkarpal/libro-go/internal/pipeline"
	"github.com/vkarpal/libro-go/internal/websocket"
)

// Notifier delivers finished books to the output directory and mirrors
// job progress onto the websocket hub. The chat transport plugs in at
// this seam.
type Notifier struct {
	hub       *websocket.Hub
	outputDir string
}

func NewNotifier(hub *websocket.Hub, outputDir string) *Notifier {
	return &Notifier{hub: hub, outputDir: outputDir}
}

// Deliver writes the finished book into the output directory and
// broadcasts the outcome.
func (n *Notifier) Deliver(userID int64, job models.Job, res *pipeline.Result) {
	name := outputName(userID, job)
	path := filepath.Join(n.outputDir, name)
	if err := os.MkdirAll(n.outputDir, 0o755); err != nil {
		log.Printf("Failed to create output directory: %v", err)
		return
	}
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		log.Printf("Failed to deliver %s: %v", name, err)
		return
	}
	for _, w := range res.Warnings {
		log.Printf("Job %q warning: %s", job.DisplayName, w)
	}
	log.Printf("Delivered %s for user %d (translated=%v, %d images removed, %d warnings)",
		name, userID, res.Translated, res.ImagesRemoved, len(res.Warnings))

	n.hub.BroadcastJSON(models.ProgressUpdate{
		UserID: userID, Job: job.DisplayName, Stage: "delivered", Done: true,
		Message: res.Summary,
	})
}

// NotifyError broadcasts a failed job.
func (n *Notifier) NotifyError(userID int64, job models.Job, err error) {
	log.Printf("Job %q for user %d failed: %v", job.DisplayName, userID, err)
	n.hub.BroadcastJSON(models.ProgressUpdate{
		UserID: userID, Job: job.DisplayName, Stage: "failed", Done: true,
		Error: err.Error(),
	})
}

// Progress mirrors a stage transition onto the hub.
func (n *Notifier) Progress(update models.ProgressUpdate) {
	n.hub.BroadcastJSON(update)
}

// outputName derives the delivered file name from the job and its frozen
// output format.
func outputName(userID int64, job models.Job) string {
	base := strings.TrimSuffix(job.DisplayName, filepath.Ext(job.DisplayName))
	if base == "" {
		base = "book"
	}
	format := job.Snapshot.Options.Format
	if format == "" {
		format = models.FormatEPUB
	}
	return fmt.Sprintf("%d_%s.%s", userID, base, format)
}
