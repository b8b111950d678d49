package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

const appName = "jobhunter"

// ConfigBackend is the persistent layer under env overrides.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	Set(key string, val any) error
}

// appDir returns $<env>/jobhunter, falling back to fallback below the home
// directory, or the working directory without one.
func appDir(env, fallback string) string {
	dir := os.Getenv(env)
	if dir == "" {
		dir = "."
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, fallback)
		}
	}
	return filepath.Join(dir, appName)
}

func defaultDataDir() string {
	return appDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ConfigFilePath returns the location of config.json.
func ConfigFilePath() string {
	return filepath.Join(appDir("XDG_CONFIG_HOME", ".config"), "config.json")
}

// fileBackend is a flat JSON object of dotted keys.
type fileBackend struct {
	path   string
	values map[string]any
}

func newPlatformBackend() ConfigBackend {
	return openFileBackend(ConfigFilePath())
}

// openFileBackend reads path. A missing file is an empty config; an
// unreadable one is reported on stderr and treated as empty.
func openFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, values: map[string]any{}}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] config file %s unreadable, using defaults: %v\n", path, err)
	default:
		if err := json.Unmarshal(raw, &b.values); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] config file %s is not valid JSON, using defaults: %v\n", path, err)
			b.values = map[string]any{}
		}
	}
	return b
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.values[key]
	if !ok {
		return "", false, nil
	}
	if s, isStr := v.(string); isStr {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.values[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n < math.MinInt || n > math.MaxInt {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, n)
		}
		return int(n), true, nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s: unexpected %T", key, v)
	}
}

// Set stores val and rewrites the file.
func (b *fileBackend) Set(key string, val any) error {
	b.values[key] = val
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, out, 0o600)
}
