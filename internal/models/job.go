package models

import "time"

// JobSource is the discriminated submission source: either raw file bytes
// with a declared name, or a remote story URL. Data marshals to base64
// under encoding/json so queued payloads survive persistence intact.
type JobSource struct {
	Data     []byte `json:"data,omitempty"`
	FileName string `json:"file_name,omitempty"`
	URL      string `json:"url,omitempty"`
}

// IsURL reports whether the job was submitted as a remote URL.
func (s JobSource) IsURL() bool { return s.URL != "" }

// Snapshot freezes the transformation-relevant options at enqueue time so
// later edits by the user do not retroactively alter a queued job.
type Snapshot struct {
	Options        Options           `json:"options"`
	SingleUseRules []Rule            `json:"single_use_rules,omitempty"`
	DictRules      []Rule            `json:"dict_rules,omitempty"`
	Metadata       *MetadataOverride `json:"metadata,omitempty"`
	CustomCSS      string            `json:"custom_css,omitempty"`
	Watermarks     []string          `json:"watermarks,omitempty"`
}

// Job is one queued unit of work. It is created at submission time,
// removed from the queue when dequeued, and never re-queued.
type Job struct {
	Source      JobSource `json:"source"`
	DisplayName string    `json:"display_name"`
	Snapshot    Snapshot  `json:"snapshot"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// ProgressUpdate is broadcast over the websocket hub as a job moves
// through the pipeline's named checkpoints.
type ProgressUpdate struct {
	UserID  int64  `json:"user_id"`
	Job     string `json:"job"`
	Stage   string `json:"stage"`
	Message string `json:"message,omitempty"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`
}
