package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Knowledge document lifecycle.
const (
	DocPending = "pending"
	DocReady   = "ready"
	DocFailed  = "failed"
)

type SessionRecord struct {
	ID          string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PendingText string
}

// MessageRecord is a persisted chat message. PayloadJSON holds the full
// encoded message; RemovedAt is set once it leaves the visible log.
type MessageRecord struct {
	ID          string
	SessionID   string
	Role        string
	Kind        string
	PayloadJSON string
	CreatedAt   time.Time
	RemovedAt   *time.Time
}

type KnowledgeDoc struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	SourceURL   string    `json:"source_url,omitempty"`
	ContentType string    `json:"content_type"` // "text", "html", "pdf"
	Raw         string    `json:"-"`
	Body        string    `json:"body,omitempty"`
	SearchText  string    `json:"-"`
	Tags        string    `json:"tags"` // JSON array stored as text
	Status      string    `json:"status"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
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
