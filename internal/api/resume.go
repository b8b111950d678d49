package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/jobhunter/internal/resume"
	"github.com/kalambet/jobhunter/internal/storage"
)

const (
	maxUploadSize      = 5 << 20 // 5MB
	maxRequestBodySize = 1 << 20 // 1MB
	rawTextPreview     = 500
)

type saveRequest struct {
	ID         string         `json:"id"`
	ResumeData *resume.Resume `json:"resumeData"`
	SourceFile string         `json:"sourceFile"`
	ArchiveKey string         `json:"archiveKey"`
}

type savedResumeView struct {
	ID         string        `json:"id"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
	Data       resume.Resume `json:"data"`
	SourceFile string        `json:"sourceFile,omitempty"`
	ArchiveKey string        `json:"archiveKey,omitempty"`
}

func viewOf(s storage.SavedResume) savedResumeView {
	return savedResumeView{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
		Data:       s.Resume,
		SourceFile: s.SourceFile,
		ArchiveKey: s.ArchiveKey,
	}
}

func handleParseResume(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Leave room for the multipart envelope around the file.
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+maxRequestBodySize)
		defer r.Body.Close()

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				failure(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 5MB.", nil)
				return
			}
			failure(w, http.StatusBadRequest, "No file uploaded", err)
			return
		}

		file, header, err := r.FormFile("resume")
		if err != nil {
			failure(w, http.StatusBadRequest, "No file uploaded", nil)
			return
		}
		defer file.Close()

		if header.Size > maxUploadSize {
			failure(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 5MB.", nil)
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			failure(w, http.StatusBadRequest, "Failed to read uploaded file", err)
			return
		}

		contentType := resume.DetectMIME(header.Header.Get("Content-Type"), header.Filename)
		text, err := resume.ExtractText(contentType, data)
		if errors.Is(err, resume.ErrUnsupportedType) {
			failure(w, http.StatusBadRequest, "Invalid file type. Only PDF, DOCX and plain text allowed.", nil)
			return
		}
		if err != nil {
			failure(w, http.StatusUnprocessableEntity, "Failed to read resume file", err)
			return
		}

		var archiveKey string
		if deps.Archive != nil {
			archiveKey, err = deps.Archive.Put(r.Context(), header.Filename, contentType, data)
			if err != nil {
				deps.Logger.Warn("archiving resume upload failed", "file", header.Filename, "error", err)
			}
		}

		parsed, err := deps.Parser.Parse(r.Context(), text)
		if errors.Is(err, resume.ErrEmptyText) {
			failure(w, http.StatusUnprocessableEntity, "No text found in resume", nil)
			return
		}
		if err != nil {
			deps.Logger.Error("parsing resume failed", "file", header.Filename, "error", err)
			failure(w, http.StatusInternalServerError, "Failed to parse resume", err)
			return
		}

		body := map[string]any{
			"success":    true,
			"data":       parsed,
			"rawText":    resume.Preview(text, rawTextPreview),
			"sourceFile": header.Filename,
		}
		if archiveKey != "" {
			body["archiveKey"] = archiveKey
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func handleSaveResume(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req saveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.ResumeData == nil {
			failure(w, http.StatusBadRequest, "No resume data provided", nil)
			return
		}

		saved, err := deps.Resumes.SaveResume(storage.SavedResume{
			ID:         req.ID,
			Resume:     *req.ResumeData,
			SourceFile: req.SourceFile,
			ArchiveKey: req.ArchiveKey,
		})
		if err != nil {
			deps.Logger.Error("saving resume failed", "error", err)
			failure(w, http.StatusInternalServerError, "Failed to save resume data", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Resume data saved successfully",
			"data":    saved.Resume,
			"id":      saved.ID,
		})
	}
}

func handleListResumes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		saved, err := deps.Resumes.ListResumes(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list resumes: %v", err)
			return
		}

		views := make([]savedResumeView, 0, len(saved))
		for _, s := range saved {
			views = append(views, viewOf(s))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleGetResume(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		saved, err := deps.Resumes.GetResume(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "resume not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get resume: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(saved))
	}
}

func handleDeleteResume(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Resumes.DeleteResume(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "resume not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete resume: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleGetResumeFile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		saved, err := deps.Resumes.GetResume(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "resume not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get resume: %v", err)
			return
		}
		if saved.ArchiveKey == "" || deps.Archive == nil {
			httpError(w, http.StatusNotFound, "not_found", "no archived file for resume %s", saved.ID)
			return
		}

		data, contentType, err := deps.Archive.Get(r.Context(), saved.ArchiveKey)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to fetch archived file: %v", err)
			return
		}

		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		if saved.SourceFile != "" {
			w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": saved.SourceFile}))
		}
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}
