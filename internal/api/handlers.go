package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// queueItem is the queue view exposed over the API. Job payload bytes are
// deliberately omitted.
type queueItem struct {
	Position    int    `json:"position"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url,omitempty"`
	EnqueuedAt  string `json:"enqueued_at"`
}

// handleGetStatus reports background job statuses.
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.JobManager().GetStatus())
}

// handleGetQueue returns the pending queue for one user.
func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	profile, err := s.store.GetProfile(userID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	items := make([]queueItem, 0, len(profile.Queue))
	for i, job := range profile.Queue {
		items = append(items, queueItem{
			Position:    i + 1,
			DisplayName: job.DisplayName,
			URL:         job.Source.URL,
			EnqueuedAt:  job.EnqueuedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	RespondWithJSON(w, http.StatusOK, items)
}

// handleGetProfile returns a user's current options and dictionaries.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	profile, err := s.store.GetProfile(userID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	// The queue has its own endpoint; do not duplicate payload bytes here.
	profile.Queue = nil
	RespondWithJSON(w, http.StatusOK, profile)
}

// handleRunJob triggers a background job by ID.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("id")
	if jobID == "" {
		RespondWithError(w, http.StatusBadRequest, "Missing job ID")
		return
	}
	if err := s.app.JobManager().RunJob(jobID, s.app); err != nil {
		RespondWithError(w, http.StatusConflict, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}
