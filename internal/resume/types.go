package resume

import (
	"errors"
	"fmt"
)

// ErrInvalid is the root of every resume validation failure.
var ErrInvalid = errors.New("invalid resume")

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid resume: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Resume is the structured form of an uploaded resume. It is also the
// context the chat assistant receives on every message.
type Resume struct {
	Name       string       `json:"name"`
	Email      string       `json:"email,omitempty"`
	Phone      string       `json:"phone,omitempty"`
	Skills     []string     `json:"skills"`
	Experience []Experience `json:"experience"`
	Education  []Education  `json:"education"`
	Summary    string       `json:"summary,omitempty"`
}

type Experience struct {
	Company          string   `json:"company,omitempty"`
	Position         string   `json:"position,omitempty"`
	Duration         string   `json:"duration,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty"`
}

type Education struct {
	Institution string `json:"institution,omitempty"`
	Degree      string `json:"degree,omitempty"`
	Year        string `json:"year,omitempty"`
}

// Validate checks the fields the chat assistant depends on: a resume must be
// present, carry a name, and carry a skills list (which may be empty).
func Validate(r *Resume) error {
	if r == nil {
		return &ValidationError{Field: "resumeData", Reason: "is required"}
	}
	if r.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if r.Skills == nil {
		return &ValidationError{Field: "skills", Reason: "is required"}
	}
	return nil
}
