package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/jobhunter/internal/chat"
	"github.com/kalambet/jobhunter/internal/resume"
	"github.com/kalambet/jobhunter/internal/storage"
)

// ChatService answers chat messages and manages their sessions.
type ChatService interface {
	Handle(ctx context.Context, sessionKey, message string, r *resume.Resume) (*chat.Reply, error)
	Clear(ctx context.Context, sessionKey string) error
}

// ResumeParser turns extracted resume text into a structured resume.
type ResumeParser interface {
	Parse(ctx context.Context, text string) (*resume.Resume, error)
}

// ResumeStore persists structured resumes.
type ResumeStore interface {
	SaveResume(r storage.SavedResume) (storage.SavedResume, error)
	GetResume(id string) (storage.SavedResume, error)
	ListResumes(limit int) ([]storage.SavedResume, error)
	DeleteResume(id string) error
}

// FileArchive keeps the raw uploaded resume files.
type FileArchive interface {
	Put(ctx context.Context, filename, contentType string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
}

type Deps struct {
	Chat    ChatService
	Parser  ResumeParser
	Resumes ResumeStore
	Archive FileArchive // optional; uploads are not archived when nil
	Token   string      // optional; bearer auth is enforced on /api when set
	Logger  *slog.Logger
}

// NewHandler builds the HTTP API.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/chat/job-hunter", handleChat(deps))
		r.Post("/chat/clear-session", handleClearSession(deps))

		r.Post("/resume/parse", handleParseResume(deps))
		r.Post("/resume/save", handleSaveResume(deps))
		r.Get("/resume", handleListResumes(deps))
		r.Get("/resume/{id}", handleGetResume(deps))
		r.Delete("/resume/{id}", handleDeleteResume(deps))
		r.Get("/resume/{id}/file", handleGetResumeFile(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// failure writes the flat {"error", "details"} body the chat and resume
// endpoints return.
func failure(w http.ResponseWriter, code int, msg string, err error) {
	body := map[string]any{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	writeJSON(w, code, body)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
