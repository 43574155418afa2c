package jobs

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/vkarpal/libro-go/internal/store"
)

const CacheEvictionJobID = "cache-eviction"

// RegisterJobs registers every background job with the manager.
func RegisterJobs(jm *JobManager) {
	jm.Register(CacheEvictionJobID, "Content Cache Eviction", RunCacheEviction)
}

// StartJobs starts the background job scheduler.
func StartJobs(app JobContext) {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	startCacheEvictionJob(s, app)

	log.Println("Starting background job scheduler...")
	s.StartAsync()
}

func startCacheEvictionJob(s *gocron.Scheduler, app JobContext) {
	interval := app.Config().Cache.EvictionInterval
	if interval == 0 {
		log.Println("Cache eviction interval is 0, scheduled eviction is disabled.")
		return
	}

	log.Printf("Scheduling job: '%s' to run every %d minutes.", CacheEvictionJobID, interval)

	_, err := s.Every(interval).Minutes().Do(func() {
		log.Println("Scheduler is triggering job:", CacheEvictionJobID)
		// Submit the job to the manager instead of running it directly.
		// This prevents conflicts with manually triggered jobs.
		err := app.JobManager().RunJob(CacheEvictionJobID, app)
		if err != nil {
			log.Printf("Scheduled job '%s' could not start: %v", CacheEvictionJobID, err)
		}
	})
	if err != nil {
		log.Printf("Error scheduling '%s' job: %v", CacheEvictionJobID, err)
	}
}

// RunCacheEviction removes fetched-story cache entries older than the
// configured retention window.
func RunCacheEviction(ctx JobContext) {
	maxAge := ctx.Config().CacheMaxAge()
	if maxAge <= 0 {
		log.Println("Cache max age is 0, nothing to evict.")
		return
	}
	cutoff := time.Now().UTC().Add(-maxAge)

	st := store.New(ctx.DB())
	removed, err := st.CacheEvictBefore(cutoff)
	if err != nil {
		log.Printf("Cache eviction failed: %v", err)
		return
	}
	log.Printf("Cache eviction removed %d entries older than %s.", removed, cutoff.Format(time.RFC3339))
}
