package jobs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkarpal/libro-go/internal/config"
	"github.com/vkarpal/libro-go/internal/jobs"
	"github.com/vkarpal/libro-go/internal/store"
	"github.com/vkarpal/libro-go/internal/testutil"
	"github.com/vkarpal/libro-go/internal/websocket"
)

func TestRegisterJobs(t *testing.T) {
	ctx := &fakeJobContext{cfg: &config.Config{}, ws: websocket.NewHub()}
	mgr := jobs.NewManager(ctx)
	jobs.RegisterJobs(mgr)

	statuses := mgr.GetStatus()
	require.Len(t, statuses, 1)
	assert.Equal(t, jobs.CacheEvictionJobID, statuses[0].ID)
	assert.Equal(t, "idle", statuses[0].Status)
}

func TestRunCacheEviction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	st := store.New(db)

	require.NoError(t, st.CachePut("fresh", []byte("keep me")))
	// Age one entry past the retention window by hand.
	_, err := db.Exec(
		"INSERT INTO content_cache (key, data, created_at) VALUES (?, ?, ?)",
		"stale", []byte("evict me"), time.Now().UTC().Add(-100*time.Hour))
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Cache.MaxAgeHours = 72
	ctx := &fakeJobContext{db: db, cfg: cfg, ws: websocket.NewHub()}

	jobs.RunCacheEviction(ctx)

	_, ok, err := st.CacheGet("fresh")
	require.NoError(t, err)
	assert.True(t, ok, "fresh entry survives eviction")

	_, ok, err = st.CacheGet("stale")
	require.NoError(t, err)
	assert.False(t, ok, "stale entry is evicted")
}

func TestRunCacheEvictionDisabled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	st := store.New(db)

	_, err := db.Exec(
		"INSERT INTO content_cache (key, data, created_at) VALUES (?, ?, ?)",
		"old", []byte("x"), time.Now().UTC().Add(-1000*time.Hour))
	require.NoError(t, err)

	ctx := &fakeJobContext{db: db, cfg: &config.Config{}, ws: websocket.NewHub()}
	jobs.RunCacheEviction(ctx)

	_, ok, err := st.CacheGet("old")
	require.NoError(t, err)
	assert.True(t, ok, "zero max age disables eviction")
}
