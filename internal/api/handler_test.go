package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/jobhunter/internal/chat"
	"github.com/kalambet/jobhunter/internal/resume"
	"github.com/kalambet/jobhunter/internal/storage"
)

const testToken = "test-token-12345"

const testResumeJSON = `{"name":"Ana","skills":["Go","SQL"],"experience":[],"education":[]}`

// --- mocks ---

type mockChat struct {
	mu      sync.Mutex
	fn      func(sessionKey, message string, r *resume.Resume) (*chat.Reply, error)
	keys    []string
	cleared []string
}

func (m *mockChat) Handle(_ context.Context, sessionKey, message string, r *resume.Resume) (*chat.Reply, error) {
	m.mu.Lock()
	m.keys = append(m.keys, sessionKey)
	m.mu.Unlock()
	if err := resume.Validate(r); err != nil {
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		return nil, chat.ErrEmptyMessage
	}
	if m.fn == nil {
		return &chat.Reply{Text: "echo: " + message}, nil
	}
	return m.fn(sessionKey, message, r)
}

func (m *mockChat) Clear(_ context.Context, sessionKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, sessionKey)
	return nil
}

type mockParser struct {
	out  *resume.Resume
	err  error
	text string
}

func (m *mockParser) Parse(_ context.Context, text string) (*resume.Resume, error) {
	m.text = text
	if strings.TrimSpace(text) == "" {
		return nil, resume.ErrEmptyText
	}
	return m.out, m.err
}

type mockArchive struct {
	mu     sync.Mutex
	files  map[string][]byte
	types  map[string]string
	putErr error
}

func newMockArchive() *mockArchive {
	return &mockArchive{files: map[string][]byte{}, types: map[string]string{}}
}

func (m *mockArchive) Put(_ context.Context, filename, contentType string, data []byte) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("resumes/%d-%s", len(m.files), filename)
	m.files[key] = data
	m.types[key] = contentType
	return key, nil
}

func (m *mockArchive) Get(_ context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, "", errors.New("no such key")
	}
	return data, m.types[key], nil
}

// --- helpers ---

type testEnv struct {
	handler http.Handler
	chat    *mockChat
	parser  *mockParser
	archive *mockArchive
	store   *storage.Store
}

func setupHandler(t *testing.T, token string) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		chat:    &mockChat{},
		parser:  &mockParser{out: &resume.Resume{Name: "Ana", Skills: []string{"Go"}}},
		archive: newMockArchive(),
		store:   store,
	}
	env.handler = NewHandler(Deps{
		Chat:    env.chat,
		Parser:  env.parser,
		Resumes: store,
		Archive: env.archive,
		Token:   token,
	})
	return env
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var body map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decoding response %q: %v", w.Body.String(), err)
		}
	}
	return w, body
}

// --- tests ---

func TestHealth(t *testing.T) {
	env := setupHandler(t, testToken)

	w, body := do(t, env.handler, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body["status"] != "OK" {
		t.Errorf("status = %v, want OK", body["status"])
	}
	if _, ok := body["timestamp"].(string); !ok {
		t.Errorf("timestamp missing: %v", body)
	}
}

func TestAuth(t *testing.T) {
	env := setupHandler(t, testToken)
	body := `{"message":"hi","resumeData":` + testResumeJSON + `,"sessionId":"s1"}`

	w, _ := do(t, env.handler, authReq(http.MethodPost, "/api/chat/job-hunter", body, ""))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("401 should carry a WWW-Authenticate challenge")
	}
	w, _ = do(t, env.handler, authReq(http.MethodPost, "/api/chat/job-hunter", body, "wrong"))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", w.Code)
	}
	w, _ = do(t, env.handler, authReq(http.MethodPost, "/api/chat/job-hunter", body, testToken))
	if w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer  abc ", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/resume", nil)
		r.Header.Set("Authorization", tt.header)
		got, ok := bearerToken(r)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	env := setupHandler(t, "")
	body := `{"message":"hi","resumeData":` + testResumeJSON + `,"sessionId":"s1"}`

	w, _ := do(t, env.handler, authReq(http.MethodPost, "/api/chat/job-hunter", body, ""))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestChat_DirectAnswer(t *testing.T) {
	env := setupHandler(t, "")
	body := `{"message":"How should I format my CV?","resumeData":` + testResumeJSON + `,"sessionId":"s1"}`

	w, resp := do(t, env.handler, authReq(http.MethodPost, "/api/chat/job-hunter", body, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if resp["response"] != "echo: How should I format my CV?" {
		t.Errorf("response = %v", resp["response"])
	}
	if resp["toolUsed"] != false {
		t.Errorf("toolUsed = %v, want false", resp["toolUsed"])
	}
	if _, ok := resp["searchResults"]; ok {
		t.Error("searchResults should be absent when no tool was used")
	}
	if env.chat.keys[0] != "s1" {
		t.Errorf("session key = %q, want s1", env.chat.keys[0])
	}
}

func TestChat_ToolUsed(t *testing.T) {
	env := setupHandler(t, "")
	env.chat.fn = func(_, _ string, _ *resume.Resume) (*chat.Reply, error) {
		return &chat.Reply{
			Text:     "Here are some roles.",
			ToolUsed: true,
			JobResults: []chat.JobResult{
				{Title: "Go Developer", URL: "https://www.linkedin.com/jobs/view/1", Source: "LinkedIn"},
			},
		}, nil
	}
	body := `{"message":"Find Go jobs in Berlin","resumeData":` + testResumeJSON + `,"sessionId":"s1"}`

	w, resp := do(t, env.handler, authReq(http.MethodPost, "/api/chat/job-hunter", body, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp["toolUsed"] != true {
		t.Errorf("toolUsed = %v, want true", resp["toolUsed"])
	}
	results, ok := resp["searchResults"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("searchResults = %v", resp["searchResults"])
	}
	first := results[0].(map[string]any)
	if first["source"] != "LinkedIn" || first["title"] != "Go Developer" {
		t.Errorf("unexpected result %v", first)
	}
}

func TestChat_ToolUsedNoResults(t *testing.T) {
	env := setupHandler(t, "")
	env.chat.fn = func(_, _ string, _ *resume.Resume) (*chat.Reply, error) {
		return &chat.Reply{Text: "Nothing found.", ToolUsed: true}, nil
	}
	body := `{"message":"Find jobs","resumeData":` + testResumeJSON + `,"sessionId":"s1"}`

	_, resp := do(t, env.handler, authReq(http.MethodPost, "/api/chat/job-hunter", body, ""))
	results, ok := resp["searchResults"].([]any)
	if !ok || len(results) != 0 {
		t.Errorf("searchResults = %v, want empty list", resp["searchResults"])
	}
}

func TestChat_MissingResume(t *testing.T) {
	env := setupHandler(t, "")

	for name, body := range map[string]string{
		"absent":    `{"message":"hi","sessionId":"s1"}`,
		"null":      `{"message":"hi","resumeData":null,"sessionId":"s1"}`,
		"no name":   `{"message":"hi","resumeData":{"skills":["Go"]},"sessionId":"s1"}`,
		"no skills": `{"message":"hi","resumeData":{"name":"Ana"},"sessionId":"s1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			w, resp := do(t, env.handler, authReq(http.MethodPost, "/api/chat/job-hunter", body, ""))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if resp["error"] != "Resume data is required" {
				t.Errorf("error = %v", resp["error"])
			}
		})
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	env := setupHandler(t, "")
	body := `{"message":"  ","resumeData":` + testResumeJSON + `,"sessionId":"s1"}`

	w, resp := do(t, env.handler, authReq(http.MethodPost, "/api/chat/job-hunter", body, ""))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp["error"] != "Message is required" {
		t.Errorf("error = %v", resp["error"])
	}
}

func TestChat_CollaboratorFailure(t *testing.T) {
	env := setupHandler(t, "")
	env.chat.fn = func(_, _ string, _ *resume.Resume) (*chat.Reply, error) {
		return nil, fmt.Errorf("%w: quota exceeded", chat.ErrCollaborator)
	}
	body := `{"message":"hi","resumeData":` + testResumeJSON + `,"sessionId":"s1"}`

	w, resp := do(t, env.handler, authReq(http.MethodPost, "/api/chat/job-hunter", body, ""))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if resp["error"] != "Failed to process chat message" {
		t.Errorf("error = %v", resp["error"])
	}
	if details, _ := resp["details"].(string); !strings.Contains(details, "quota exceeded") {
		t.Errorf("details = %v", resp["details"])
	}
}

func TestChat_InvalidBody(t *testing.T) {
	env := setupHandler(t, "")

	w, resp := do(t, env.handler, authReq(http.MethodPost, "/api/chat/job-hunter", `{not json`, ""))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	errObj, ok := resp["error"].(map[string]any)
	if !ok || errObj["type"] != "invalid_request_error" {
		t.Errorf("error = %v", resp["error"])
	}
}

func TestChat_DefaultSessionKey(t *testing.T) {
	env := setupHandler(t, "")
	body := `{"message":"hi","resumeData":` + testResumeJSON + `}`

	do(t, env.handler, authReq(http.MethodPost, "/api/chat/job-hunter", body, ""))
	if env.chat.keys[0] != defaultSessionKey {
		t.Errorf("session key = %q, want %q", env.chat.keys[0], defaultSessionKey)
	}
}

func TestClearSession(t *testing.T) {
	env := setupHandler(t, "")

	w, resp := do(t, env.handler, authReq(http.MethodPost, "/api/chat/clear-session", `{"sessionId":"s1"}`, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp["success"] != true {
		t.Errorf("success = %v", resp["success"])
	}

	// Unknown session and empty body still succeed.
	w, resp = do(t, env.handler, authReq(http.MethodPost, "/api/chat/clear-session", `{"sessionId":"never-seen"}`, ""))
	if w.Code != http.StatusOK || resp["success"] != true {
		t.Errorf("unknown session: status = %d body = %v", w.Code, resp)
	}
	w, _ = do(t, env.handler, authReq(http.MethodPost, "/api/chat/clear-session", "", ""))
	if w.Code != http.StatusOK {
		t.Errorf("empty body: status = %d", w.Code)
	}

	want := []string{"s1", "never-seen", defaultSessionKey}
	if len(env.chat.cleared) != len(want) {
		t.Fatalf("cleared = %v, want %v", env.chat.cleared, want)
	}
	for i := range want {
		if env.chat.cleared[i] != want[i] {
			t.Errorf("cleared[%d] = %q, want %q", i, env.chat.cleared[i], want[i])
		}
	}
}
