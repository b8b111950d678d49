package storage

import (
	"errors"
	"time"

	"github.com/kalambet/jobhunter/internal/resume"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// SavedResume is a structured resume persisted by the save endpoint.
type SavedResume struct {
	ID         string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Resume     resume.Resume
	SourceFile string // original upload name, when known
	ArchiveKey string // object key of the archived upload, when archived
}
