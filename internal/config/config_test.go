package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// mockSecrets is a test double for the secrets file.
type mockSecrets map[string]string

func (m mockSecrets) Get(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
		if s.alias != "" {
			t.Setenv(s.alias, "")
		}
	}
}

func writeTempConfig(t *testing.T, content string) *fileBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return openFileBackend(path)
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")

	cfg, err := loadWith(writeTempConfig(t, `{}`), mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Gemini.ChatModel != "gemini-2.0-flash" {
		t.Errorf("Gemini.ChatModel = %q", cfg.Gemini.ChatModel)
	}
	if cfg.Gemini.ParseModel != "gemini-2.5-flash" {
		t.Errorf("Gemini.ParseModel = %q", cfg.Gemini.ParseModel)
	}
	if cfg.Gemini.Temperature != 0.7 {
		t.Errorf("Gemini.Temperature = %v, want 0.7", cfg.Gemini.Temperature)
	}
	if cfg.Gemini.MaxOutputTokens != 2000 {
		t.Errorf("Gemini.MaxOutputTokens = %d, want 2000", cfg.Gemini.MaxOutputTokens)
	}
	if cfg.Session.Serialize {
		t.Error("Session.Serialize should default to false")
	}
	if cfg.Storage.DataDir != "/tmp/xdg-data/jobhunter" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Events.Exchange != "session_updates" {
		t.Errorf("Events.Exchange = %q", cfg.Events.Exchange)
	}
}

func TestFileValues(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{
  "server.port": 8080,
  "gemini.chat_model": "gemini-2.5-pro",
  "gemini.temperature": 0.2,
  "session.serialize": true,
  "archive.bucket": "resumes"
}`)

	cfg, err := loadWith(b, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Gemini.ChatModel != "gemini-2.5-pro" {
		t.Errorf("Gemini.ChatModel = %q", cfg.Gemini.ChatModel)
	}
	if cfg.Gemini.Temperature != 0.2 {
		t.Errorf("Gemini.Temperature = %v, want 0.2", cfg.Gemini.Temperature)
	}
	if !cfg.Session.Serialize {
		t.Error("Session.Serialize = false, want true")
	}
	if cfg.Archive.Bucket != "resumes" {
		t.Errorf("Archive.Bucket = %q", cfg.Archive.Bucket)
	}
}

func TestFileIgnoresSecrets(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{"gemini.api_key": "from-file"}`)

	cfg, err := loadWith(b, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gemini.APIKey != "" {
		t.Errorf("Gemini.APIKey = %q, secrets must not be read from config.json", cfg.Gemini.APIKey)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JOBHUNTER_SERVER_PORT", "9000")
	t.Setenv("JOBHUNTER_GEMINI_TEMPERATURE", "0.3")
	t.Setenv("JOBHUNTER_SESSION_SERIALIZE", "true")
	t.Setenv("JOBHUNTER_TAVILY_API_KEY", "tvly-env")

	b := writeTempConfig(t, `{"server.port": 8080}`)
	cfg, err := loadWith(b, mockSecrets{"tavily.api_key": "tvly-file"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want env value 9000", cfg.Server.Port)
	}
	if cfg.Gemini.Temperature != 0.3 {
		t.Errorf("Gemini.Temperature = %v, want 0.3", cfg.Gemini.Temperature)
	}
	if !cfg.Session.Serialize {
		t.Error("Session.Serialize = false, want true")
	}
	if cfg.Tavily.APIKey != "tvly-env" {
		t.Errorf("Tavily.APIKey = %q, env should win over secrets file", cfg.Tavily.APIKey)
	}
}

func TestEnvAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "g-alias")
	t.Setenv("TAVILY_API_KEY", "t-alias")
	t.Setenv("PORT", "7000")

	cfg, err := loadWith(writeTempConfig(t, `{}`), mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gemini.APIKey != "g-alias" || cfg.Tavily.APIKey != "t-alias" {
		t.Errorf("aliases not applied: gemini=%q tavily=%q", cfg.Gemini.APIKey, cfg.Tavily.APIKey)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}

	t.Setenv("JOBHUNTER_GEMINI_API_KEY", "g-prefixed")
	cfg, _ = loadWith(writeTempConfig(t, `{}`), mockSecrets{})
	if cfg.Gemini.APIKey != "g-prefixed" {
		t.Errorf("Gemini.APIKey = %q, prefixed variable should win", cfg.Gemini.APIKey)
	}
}

func TestInvalidEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("JOBHUNTER_SERVER_PORT", "not-a-port")
	t.Setenv("JOBHUNTER_SESSION_SERIALIZE", "maybe")

	cfg, err := loadWith(writeTempConfig(t, `{}`), mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want default 5000", cfg.Server.Port)
	}
	if cfg.Session.Serialize {
		t.Error("Session.Serialize should keep default on bad input")
	}
}

func TestInvalidFileInt(t *testing.T) {
	clearEnv(t)
	_, err := loadWith(writeTempConfig(t, `{"server.port": 80.5}`), mockSecrets{})
	if err == nil {
		t.Fatal("expected error for fractional port")
	}
}

func TestSecretsFile(t *testing.T) {
	clearEnv(t)
	cfg, err := loadWith(writeTempConfig(t, `{}`), mockSecrets{
		"gemini.api_key": "g-secret",
		"tavily.api_key": "t-secret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gemini.APIKey != "g-secret" || cfg.Tavily.APIKey != "t-secret" {
		t.Errorf("secrets not applied: %+v %+v", cfg.Gemini, cfg.Tavily)
	}
}

func TestRequireAPIKeys(t *testing.T) {
	cfg := defaults()
	err := cfg.RequireAPIKeys()
	if err == nil {
		t.Fatal("expected error for missing keys")
	}
	if !strings.Contains(err.Error(), "gemini.api_key") || !strings.Contains(err.Error(), "tavily.api_key") {
		t.Errorf("error should name both keys: %v", err)
	}

	cfg.Gemini.APIKey = "g"
	cfg.Tavily.APIKey = "t"
	if err := cfg.RequireAPIKeys(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSetKeyRoundTrip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	b := openFileBackend(filepath.Join(dir, "config.json"))
	secrets := fileSecrets{path: filepath.Join(dir, "secrets.json")}

	for key, val := range map[string]string{
		"server.port":        "8081",
		"gemini.temperature": "0.5",
		"session.serialize":  "yes",
		"gemini.api_key":     "g-set",
		"gemini.chat_model":  "gemini-2.5-pro",
	} {
		err := setKey(b, secrets, key, val)
		if key == "session.serialize" {
			if err == nil {
				t.Errorf("setKey(%s, %q) should reject non-boolean", key, val)
			}
			continue
		}
		if err != nil {
			t.Fatalf("setKey(%s): %v", key, err)
		}
	}
	if err := setKey(b, secrets, "session.serialize", "true"); err != nil {
		t.Fatalf("setKey(session.serialize): %v", err)
	}

	cfg, err := loadWith(openFileBackend(b.path), secrets)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.Gemini.Temperature != 0.5 {
		t.Errorf("Gemini.Temperature = %v, want 0.5", cfg.Gemini.Temperature)
	}
	if !cfg.Session.Serialize {
		t.Error("Session.Serialize = false, want true")
	}
	if cfg.Gemini.ChatModel != "gemini-2.5-pro" {
		t.Errorf("Gemini.ChatModel = %q", cfg.Gemini.ChatModel)
	}
	if cfg.Gemini.APIKey != "g-set" {
		t.Errorf("Gemini.APIKey = %q, want value from secrets file", cfg.Gemini.APIKey)
	}

	raw, err := os.ReadFile(b.path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "g-set") {
		t.Error("secret leaked into config.json")
	}
}

func TestSetKeyUnknown(t *testing.T) {
	dir := t.TempDir()
	b := openFileBackend(filepath.Join(dir, "config.json"))
	err := setKey(b, fileSecrets{path: filepath.Join(dir, "s.json")}, "nope.key", "1")
	if err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("err = %v, want unknown key error", err)
	}
}

func TestShowAllMasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Gemini.APIKey = "AIzaSyExampleKey123"
	cfg.Tavily.APIKey = "short"

	got := map[string]string{}
	for _, k := range ShowAll(cfg) {
		got[k.Key] = k.Value
	}
	if got["gemini.api_key"] != "AIza********" {
		t.Errorf("gemini.api_key shown as %q", got["gemini.api_key"])
	}
	if got["tavily.api_key"] != "********" {
		t.Errorf("tavily.api_key shown as %q", got["tavily.api_key"])
	}
	if got["server.port"] != "5000" {
		t.Errorf("server.port shown as %q", got["server.port"])
	}
	if got["server.api_token"] != "" {
		t.Errorf("empty secret should display empty, got %q", got["server.api_token"])
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	if len(keys) != len(specs) {
		t.Errorf("ValidKeys returned %d keys, want %d", len(keys), len(specs))
	}
	seen := map[string]bool{}
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %q", k)
		}
		seen[k] = true
	}
}

func TestFilePaths_FollowXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")

	if got := ConfigFilePath(); got != "/tmp/xdg-config/jobhunter/config.json" {
		t.Errorf("ConfigFilePath = %q", got)
	}
	if got := secretsFilePath(); got != "/tmp/xdg-data/jobhunter/secrets.json" {
		t.Errorf("secretsFilePath = %q", got)
	}
}
