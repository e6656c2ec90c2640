package session

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle of a session.
type Status string

const (
	StatusConverting Status = "converting"
	StatusReady      Status = "ready"
)

// Session is one conversion's workspace: a directory of rendered slides plus
// the index row describing it.
type Session struct {
	ID             string
	Title          string
	SourceFilename string
	SlideCount     int
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      time.Time
}

// Expired reports whether the session's deadline has passed. Sessions with
// no deadline yet (still converting) never report expired.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// SlideFile is a rendered page on disk, ordered by its numeric suffix.
type SlideFile struct {
	Ordinal int
	Name    string
	Path    string
}

// NewID mints a fresh session identifier. UUIDs keep to the lowercase
// hex-and-hyphen charset ValidID accepts.
func NewID() string {
	return uuid.NewString()
}
