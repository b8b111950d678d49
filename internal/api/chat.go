package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kalambet/jobhunter/internal/chat"
	"github.com/kalambet/jobhunter/internal/resume"
)

// defaultSessionKey is used when a client sends no sessionId.
const defaultSessionKey = "default"

type chatRequest struct {
	Message    string         `json:"message"`
	ResumeData *resume.Resume `json:"resumeData"`
	SessionID  string         `json:"sessionId"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

func sessionKey(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return defaultSessionKey
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		reply, err := deps.Chat.Handle(r.Context(), sessionKey(req.SessionID), req.Message, req.ResumeData)
		switch {
		case errors.Is(err, chat.ErrInvalidResume):
			failure(w, http.StatusBadRequest, "Resume data is required", err)
			return
		case errors.Is(err, chat.ErrEmptyMessage):
			failure(w, http.StatusBadRequest, "Message is required", nil)
			return
		case err != nil:
			deps.Logger.Error("chat exchange failed", "session", req.SessionID, "error", err)
			failure(w, http.StatusInternalServerError, "Failed to process chat message", err)
			return
		}

		body := map[string]any{
			"response": reply.Text,
			"toolUsed": reply.ToolUsed,
		}
		if reply.ToolUsed {
			results := reply.JobResults
			if results == nil {
				results = []chat.JobResult{}
			}
			body["searchResults"] = results
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func handleClearSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req sessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := deps.Chat.Clear(r.Context(), sessionKey(req.SessionID)); err != nil {
			deps.Logger.Error("clearing session failed", "session", req.SessionID, "error", err)
			failure(w, http.StatusInternalServerError, "Failed to clear session", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}
