// Package queue owns the per-user job queues. Each user has one FIFO
// queue persisted inside their profile; at most one job executes per user
// at a time, users drain independently, and one-shot state is consumed by
// job completion rather than submission, because the queued job already
// carries its own frozen snapshot.
package queue

import (
	"context"
	"log"
	"sync"

	"github.com/vkarpal/libro-go/internal/models"
	"github.com/vkarpal/libro-go/internal/pipeline"
	"github.com/vkarpal/libro-go/internal/store"
)

// Runner executes one job's pipeline. Implemented by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, src []byte, snap models.Snapshot, progress func(string)) (*pipeline.Result, error)
}

// Fetcher resolves a URL submission into canonical container bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Notifier delivers job outcomes and progress to the outside world (chat
// transport, websocket hub, logs).
type Notifier interface {
	Deliver(userID int64, job models.Job, res *pipeline.Result)
	NotifyError(userID int64, job models.Job, err error)
	Progress(update models.ProgressUpdate)
}

// Dispatcher drives the Idle/Draining state machine per user identity.
type Dispatcher struct {
	store    *store.Store
	runner   Runner
	fetcher  Fetcher
	notifier Notifier

	mu       sync.Mutex
	draining map[int64]bool
	wg       sync.WaitGroup
}

func New(st *store.Store, runner Runner, fetcher Fetcher, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		store:    st,
		runner:   runner,
		fetcher:  fetcher,
		notifier: notifier,
		draining: make(map[int64]bool),
	}
}

// Enqueue appends a job to the user's queue, persists it, triggers
// draining if the user is idle, and returns the new queue length for
// position feedback.
func (d *Dispatcher) Enqueue(userID int64, job models.Job) (int, error) {
	var length int
	_, err := d.store.UpdateProfile(userID, func(p *models.UserProfile) error {
		p.Queue = append(p.Queue, job)
		length = len(p.Queue)
		return nil
	})
	if err != nil {
		return 0, err
	}
	d.trigger(userID)
	return length, nil
}

// Resume restarts draining for every profile whose persisted queue is
// non-empty. Called once at startup so a process restart does not strand
// queued submissions.
func (d *Dispatcher) Resume() error {
	ids, err := d.store.ProfilesWithQueuedJobs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		log.Printf("Resuming queued jobs for user %d", id)
		d.trigger(id)
	}
	return nil
}

// Wait blocks until every active drain loop has gone idle. Test hook.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) trigger(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draining[userID] {
		return
	}
	d.draining[userID] = true
	d.wg.Add(1)
	go d.drain(userID)
}

// drain pops and executes jobs until the user's queue is empty. The pop
// and the Draining→Idle transition are atomic under the dispatcher lock,
// so an enqueue racing the last pop either sees Draining still set or
// finds it cleared and starts a fresh drain; a job is never stranded.
func (d *Dispatcher) drain(userID int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		job, err := d.popHead(userID)
		if err != nil {
			log.Printf("Queue for user %d unreadable, stopping drain: %v", userID, err)
			d.draining[userID] = false
			d.mu.Unlock()
			return
		}
		if job == nil {
			d.draining[userID] = false
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()

		d.process(userID, *job)

		// One-shot state is consumed by job completion, success or not.
		if _, err := d.store.UpdateProfile(userID, func(p *models.UserProfile) error {
			p.ClearOneShot()
			return nil
		}); err != nil {
			log.Printf("Failed to clear one-shot state for user %d: %v", userID, err)
		}
	}
}

// popHead removes and returns the head job, persisting the shortened
// queue before the job runs so a restart cannot reprocess it.
func (d *Dispatcher) popHead(userID int64) (*models.Job, error) {
	var job *models.Job
	_, err := d.store.UpdateProfile(userID, func(p *models.UserProfile) error {
		if len(p.Queue) == 0 {
			return nil
		}
		j := p.Queue[0]
		p.Queue = p.Queue[1:]
		job = &j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (d *Dispatcher) process(userID int64, job models.Job) {
	ctx := context.Background()

	progress := func(stage string) {
		d.notifier.Progress(models.ProgressUpdate{
			UserID: userID, Job: job.DisplayName, Stage: stage,
		})
	}

	src := job.Source.Data
	if job.Source.IsURL() {
		progress("fetch")
		data, err := d.fetcher.Fetch(ctx, job.Source.URL)
		if err != nil {
			log.Printf("Job %q for user %d failed to fetch: %v", job.DisplayName, userID, err)
			d.notifier.NotifyError(userID, job, err)
			return
		}
		src = data
	}

	res, err := d.runner.Run(ctx, src, job.Snapshot, progress)
	if err != nil {
		log.Printf("Job %q for user %d failed: %v", job.DisplayName, userID, err)
		d.notifier.NotifyError(userID, job, err)
		return
	}

	d.notifier.Progress(models.ProgressUpdate{
		UserID: userID, Job: job.DisplayName, Stage: "done", Done: true,
	})
	d.notifier.Deliver(userID, job, res)
}
