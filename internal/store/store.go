// To handle all database interactions. This is our data access layer,
// keeping SQL away from the queue and bot logic. Profiles are persisted as
// whole JSON documents keyed by user id: the contract is read-full /
// write-full, and every mutation goes through a read-modify-write cycle
// serialized by the store's mutex so near-simultaneous interactions cannot
// interleave non-atomically.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vkarpal/libro-go/internal/models"
)

// GlobalDefaultID is the reserved profile row holding the bot-wide default
// options new profiles are seeded from.
const GlobalDefaultID int64 = 0

// Store provides all functions to interact with the database.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new Store instance.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetProfile loads a profile, creating it lazily on first interaction.
// A fresh profile is seeded from the global default row when one exists,
// otherwise from factory defaults. The lazily created profile is not
// persisted until its first write.
func (s *Store) GetProfile(userID int64) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getProfileLocked(userID)
}

func (s *Store) getProfileLocked(userID int64) (*models.UserProfile, error) {
	p, err := s.readProfile(userID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	p = models.NewProfile(userID)
	if userID != GlobalDefaultID {
		if def, err := s.readProfile(GlobalDefaultID); err == nil && def != nil {
			p.Options = def.Options
		}
	}
	return p, nil
}

func (s *Store) readProfile(userID int64) (*models.UserProfile, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM profiles WHERE user_id = ?", userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read profile %d: %w", userID, err)
	}

	var p models.UserProfile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("store: decode profile %d: %w", userID, err)
	}
	p.UserID = userID
	return &p, nil
}

// PutProfile persists the full profile document, replacing any previous
// version.
func (s *Store) PutProfile(p *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putProfileLocked(p)
}

func (s *Store) putProfileLocked(p *models.UserProfile) error {
	p.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("store: encode profile %d: %w", p.UserID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO profiles (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		p.UserID, string(data), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: write profile %d: %w", p.UserID, err)
	}
	return nil
}

// UpdateProfile runs fn over the freshly loaded profile and persists the
// result. The whole cycle holds the store lock, so concurrent updates to
// the same or different profiles never blind-overwrite each other.
func (s *Store) UpdateProfile(userID int64, fn func(*models.UserProfile) error) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getProfileLocked(userID)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := s.putProfileLocked(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ProfilesWithQueuedJobs returns the ids of every profile whose persisted
// queue is non-empty. Used on startup to resume draining after a restart.
func (s *Store) ProfilesWithQueuedJobs() ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT user_id, data FROM profiles")
	if err != nil {
		return nil, fmt.Errorf("store: list profiles: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		var data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		var p models.UserProfile
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			continue
		}
		if len(p.Queue) > 0 {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}
