package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkarpal/libro-go/internal/models"
	"github.com/vkarpal/libro-go/internal/pipeline"
	"github.com/vkarpal/libro-go/internal/queue"
	"github.com/vkarpal/libro-go/internal/store"
	"github.com/vkarpal/libro-go/internal/testutil"
)

// fakeRunner records executions and can block or fail on demand.
type fakeRunner struct {
	mu          sync.Mutex
	ran         []string
	inFlight    int
	maxInFlight int
	gate        chan struct{} // when set, Run blocks until the gate closes
	fail        error
	snaps       []models.Snapshot
}

func (r *fakeRunner) Run(_ context.Context, src []byte, snap models.Snapshot, progress func(string)) (*pipeline.Result, error) {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	r.ran = append(r.ran, string(src))
	r.snaps = append(r.snaps, snap)
	gate := r.gate
	r.mu.Unlock()

	if progress != nil {
		progress("open")
	}
	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()

	if r.fail != nil {
		return nil, r.fail
	}
	return &pipeline.Result{Data: append([]byte("out:"), src...)}, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	delivered []string
	errs      []error
	updates   []models.ProgressUpdate
}

func (n *fakeNotifier) Deliver(userID int64, job models.Job, res *pipeline.Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, job.DisplayName)
}

func (n *fakeNotifier) NotifyError(userID int64, job models.Job, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *fakeNotifier) Progress(u models.ProgressUpdate) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, u)
}

type fakeFetcher struct{ data []byte }

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) { return f.data, nil }

func fileJob(name string) models.Job {
	return models.Job{
		DisplayName: name,
		Source:      models.JobSource{Data: []byte(name), FileName: name},
		EnqueuedAt:  time.Now().UTC(),
	}
}

func setup(t *testing.T, r queue.Runner) (*queue.Dispatcher, *store.Store, *fakeNotifier) {
	t.Helper()
	st := store.New(testutil.SetupTestDB(t))
	n := &fakeNotifier{}
	return queue.New(st, r, &fakeFetcher{data: []byte("fetched")}, n), st, n
}

func TestEnqueueReturnsQueuePosition(t *testing.T) {
	runner := &fakeRunner{}
	d, st, _ := setup(t, runner)

	// Preload two jobs without triggering a drain, then enqueue a third.
	_, err := st.UpdateProfile(1, func(p *models.UserProfile) error {
		p.Queue = append(p.Queue, fileJob("a"), fileJob("b"))
		return nil
	})
	require.NoError(t, err)

	length, err := d.Enqueue(1, fileJob("c"))
	require.NoError(t, err)
	assert.Equal(t, 3, length)

	d.Wait()
	assert.Equal(t, []string{"a", "b", "c"}, runner.ran)
}

func TestFIFOWithinOneUserNeverOverlaps(t *testing.T) {
	runner := &fakeRunner{}
	d, _, n := setup(t, runner)

	for _, name := range []string{"j1", "j2", "j3", "j4", "j5"} {
		_, err := d.Enqueue(7, fileJob(name))
		require.NoError(t, err)
	}
	d.Wait()

	assert.Equal(t, []string{"j1", "j2", "j3", "j4", "j5"}, runner.ran)
	assert.Equal(t, 1, runner.maxInFlight)
	assert.Equal(t, []string{"j1", "j2", "j3", "j4", "j5"}, n.delivered)
}

func TestUsersDrainIndependently(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate}
	d, _, _ := setup(t, runner)

	_, err := d.Enqueue(1, fileJob("u1-job"))
	require.NoError(t, err)
	_, err = d.Enqueue(2, fileJob("u2-job"))
	require.NoError(t, err)

	// Both users' jobs must be in flight at once despite the blocked gate.
	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return runner.inFlight == 2
	}, 2*time.Second, 10*time.Millisecond)

	close(gate)
	d.Wait()
	assert.Equal(t, 2, runner.maxInFlight)
}

func TestQueuePersistedAfterEveryPop(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate}
	d, st, _ := setup(t, runner)

	_, err := d.Enqueue(3, fileJob("running"))
	require.NoError(t, err)

	// While the job runs it must already be gone from the persisted queue,
	// so a restart cannot reprocess it.
	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return runner.inFlight == 1
	}, 2*time.Second, 10*time.Millisecond)

	p, err := st.GetProfile(3)
	require.NoError(t, err)
	assert.Empty(t, p.Queue)

	close(gate)
	d.Wait()
}

func TestOneShotStateClearedOnSuccess(t *testing.T) {
	runner := &fakeRunner{}
	d, st, _ := setup(t, runner)

	_, err := st.UpdateProfile(4, func(p *models.UserProfile) error {
		p.SingleUseRules = []models.Rule{{Original: "Capitulo", Replacement: "Capítulo"}}
		p.CustomCSS = "p{}"
		p.Metadata = &models.MetadataOverride{Title: "T"}
		return nil
	})
	require.NoError(t, err)

	job := fileJob("book")
	job.Snapshot.SingleUseRules = []models.Rule{{Original: "Capitulo", Replacement: "Capítulo"}}
	_, err = d.Enqueue(4, job)
	require.NoError(t, err)
	d.Wait()

	// The snapshot kept its frozen copy of the rules.
	require.Len(t, runner.snaps, 1)
	assert.Len(t, runner.snaps[0].SingleUseRules, 1)

	p, err := st.GetProfile(4)
	require.NoError(t, err)
	assert.Empty(t, p.SingleUseRules)
	assert.Empty(t, p.CustomCSS)
	assert.Nil(t, p.Metadata)
}

func TestOneShotStateClearedOnFailure(t *testing.T) {
	runner := &fakeRunner{fail: errors.New("pipeline exploded")}
	d, st, n := setup(t, runner)

	_, err := st.UpdateProfile(5, func(p *models.UserProfile) error {
		p.SingleUseRules = []models.Rule{{Original: "a", Replacement: "b"}}
		return nil
	})
	require.NoError(t, err)

	_, err = d.Enqueue(5, fileJob("doomed"))
	require.NoError(t, err)
	d.Wait()

	require.Len(t, n.errs, 1)
	p, err := st.GetProfile(5)
	require.NoError(t, err)
	assert.Empty(t, p.SingleUseRules)
}

func TestURLJobUsesFetcher(t *testing.T) {
	runner := &fakeRunner{}
	d, _, n := setup(t, runner)

	job := models.Job{
		DisplayName: "story",
		Source:      models.JobSource{URL: "https://example.org/s/1"},
	}
	_, err := d.Enqueue(6, job)
	require.NoError(t, err)
	d.Wait()

	assert.Equal(t, []string{"fetched"}, runner.ran)
	require.NotEmpty(t, n.updates)
	assert.Equal(t, "fetch", n.updates[0].Stage)
}

func TestResumeRestartsPersistedQueues(t *testing.T) {
	runner := &fakeRunner{}
	d, st, _ := setup(t, runner)

	_, err := st.UpdateProfile(8, func(p *models.UserProfile) error {
		p.Queue = append(p.Queue, fileJob("survivor"))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, d.Resume())
	d.Wait()
	assert.Equal(t, []string{"survivor"}, runner.ran)
}
