package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Gemini    GeminiConfig
	Tavily    TavilyConfig
	Session   SessionConfig
	Storage   StorageConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Archive   ArchiveConfig
	Events    EventsConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type GeminiConfig struct {
	APIKey          string
	ChatModel       string
	ParseModel      string
	Temperature     float64
	MaxOutputTokens int
	BaseURL         string
}

type TavilyConfig struct {
	APIKey  string
	BaseURL string
}

type SessionConfig struct {
	// Serialize guards each session's read-modify-write with a per-key lock.
	Serialize bool
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
	File  string
}

type TelemetryConfig struct {
	Dir string
}

type ArchiveConfig struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 5000,
		},
		Gemini: GeminiConfig{
			ChatModel:       "gemini-2.0-flash",
			ParseModel:      "gemini-2.5-flash",
			Temperature:     0.7,
			MaxOutputTokens: 2000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Events: EventsConfig{
			Exchange: "session_updates",
		},
	}
}

// Load builds the configuration in layers: defaults, the JSON config file
// at $XDG_CONFIG_HOME/jobhunter/config.json, a .env file in the working
// directory, JOBHUNTER_* environment variables, and finally the secrets
// file for API keys still unset.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return loadWith(newPlatformBackend(), fileSecrets{path: secretsFilePath()})
}

// secretStore abstracts the secrets file for testing.
type secretStore interface {
	Get(key string) (string, error)
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	applySecrets(&cfg, secrets)

	return cfg, nil
}

// RequireAPIKeys reports every missing API key the server needs.
func (c Config) RequireAPIKeys() error {
	var missing []string
	if c.Gemini.APIKey == "" {
		missing = append(missing, "gemini.api_key (JOBHUNTER_GEMINI_API_KEY or GEMINI_API_KEY)")
	}
	if c.Tavily.APIKey == "" {
		missing = append(missing, "tavily.api_key (JOBHUNTER_TAVILY_API_KEY or TAVILY_API_KEY)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}
