// This file implements a file system watcher for drop-folder ingestion.
// Files appearing in the configured directory are normalized and enqueued
// for the configured owner profile, as if they had been submitted in chat.

package ingest

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vkarpal/libro-go/internal/models"
	"github.com/vkarpal/libro-go/internal/store"
)

// Enqueuer accepts normalized jobs. Implemented by *queue.Dispatcher.
type Enqueuer interface {
	Enqueue(userID int64, job models.Job) (int, error)
}

// WatcherService watches the drop directory and submits every stable new
// file as a job for the owner profile.
type WatcherService struct {
	dir        string
	ownerID    int64
	watermarks []string

	svc      *Service
	store    *store.Store
	enqueuer Enqueuer

	watcher       *fsnotify.Watcher
	mu            sync.Mutex
	changedPaths  map[string]bool
	debounceTimer *time.Timer
	debounceDelay time.Duration
	stopChan      chan struct{}
}

// NewWatcherService creates a watcher over dir submitting on behalf of
// ownerID.
func NewWatcherService(dir string, ownerID int64, watermarks []string, svc *Service, st *store.Store, enq Enqueuer) *WatcherService {
	return &WatcherService{
		dir:           dir,
		ownerID:       ownerID,
		watermarks:    watermarks,
		svc:           svc,
		store:         st,
		enqueuer:      enq,
		changedPaths:  make(map[string]bool),
		debounceDelay: 2 * time.Second, // Wait for writes to settle before ingesting
		stopChan:      make(chan struct{}),
	}
}

// SetDebounceDelay overrides the settle delay. Test hook.
func (w *WatcherService) SetDebounceDelay(d time.Duration) { w.debounceDelay = d }

// Start begins watching the drop directory.
func (w *WatcherService) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}

	go w.loop()
	log.Printf("Watching drop folder %s for user %d", w.dir, w.ownerID)
	return nil
}

// Stop shuts the watcher down.
func (w *WatcherService) Stop() {
	close(w.stopChan)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *WatcherService) loop() {
	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !Supported(event.Name) {
				continue
			}
			w.mu.Lock()
			w.changedPaths[event.Name] = true
			if w.debounceTimer != nil {
				w.debounceTimer.Stop()
			}
			w.debounceTimer = time.AfterFunc(w.debounceDelay, w.ingestChanged)
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Drop folder watcher error: %v", err)
		}
	}
}

// ingestChanged submits every settled file and removes it from the drop
// folder on success.
func (w *WatcherService) ingestChanged() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.changedPaths))
	for p := range w.changedPaths {
		paths = append(paths, p)
	}
	w.changedPaths = make(map[string]bool)
	w.mu.Unlock()

	ctx := context.Background()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Drop folder: cannot read %s: %v", path, err)
			continue
		}
		name := filepath.Base(path)
		normalized, err := w.svc.NormalizeFile(ctx, name, data)
		if err != nil {
			log.Printf("Drop folder: cannot ingest %s: %v", name, err)
			continue
		}

		profile, err := w.store.GetProfile(w.ownerID)
		if err != nil {
			log.Printf("Drop folder: cannot load profile %d: %v", w.ownerID, err)
			continue
		}
		job := models.Job{
			Source:      models.JobSource{Data: normalized, FileName: name},
			DisplayName: name,
			Snapshot:    profile.Freeze(w.watermarks),
			EnqueuedAt:  time.Now().UTC(),
		}
		pos, err := w.enqueuer.Enqueue(w.ownerID, job)
		if err != nil {
			log.Printf("Drop folder: cannot enqueue %s: %v", name, err)
			continue
		}
		log.Printf("Drop folder: queued %s at position %d", name, pos)
		if err := os.Remove(path); err != nil {
			log.Printf("Drop folder: cannot remove %s: %v", path, err)
		}
	}
}
