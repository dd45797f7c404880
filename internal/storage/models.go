package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Knowledge document states.
const (
	DocQueued  = "queued"
	DocIndexed = "indexed"
	DocFailed  = "failed"
)

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// KnowledgeDoc is a reference document of the knowledge base. Its descriptive
// fields feed the retrieval snippet; Body is the fallback text.
type KnowledgeDoc struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	Title      string    `json:"title,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Conclusion string    `json:"conclusion,omitempty"`
	Body       string    `json:"text,omitempty"`
	Source     string    `json:"source,omitempty"`
	Status     string    `json:"status"`
	VectorID   string    `json:"vector_id,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
