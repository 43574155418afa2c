package store

import (
	"database/sql"
	"fmt"
	"time"
)

// CacheGet returns the cached bytes for a content key, or ok=false on a
// miss.
func (s *Store) CacheGet(key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM content_cache WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: cache get: %w", err)
	}
	return data, true, nil
}

// CachePut stores (or refreshes) the bytes for a content key.
func (s *Store) CachePut(key string, data []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO content_cache (key, data, created_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: cache put: %w", err)
	}
	return nil
}

// CacheEvictBefore deletes every cache row older than the cutoff and
// returns the number of evicted rows.
func (s *Store) CacheEvictBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM content_cache WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("store: cache evict: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
