package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	alias   string // conventional variable name accepted when env is unset
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "JOBHUNTER_SERVER_PORT", alias: "PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "JOBHUNTER_SERVER_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "gemini.api_key", typ: kString, env: "JOBHUNTER_GEMINI_API_KEY", alias: "GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "gemini.chat_model", typ: kString, env: "JOBHUNTER_GEMINI_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.ChatModel },
	},
	{
		key: "gemini.parse_model", typ: kString, env: "JOBHUNTER_GEMINI_PARSE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.ParseModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.ParseModel },
	},
	{
		key: "gemini.temperature", typ: kFloat, env: "JOBHUNTER_GEMINI_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Gemini.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Gemini.Temperature },
	},
	{
		key: "gemini.max_output_tokens", typ: kInt, env: "JOBHUNTER_GEMINI_MAX_OUTPUT_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Gemini.MaxOutputTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Gemini.MaxOutputTokens },
	},
	{
		key: "gemini.base_url", typ: kString, env: "JOBHUNTER_GEMINI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.BaseURL },
	},
	{
		key: "tavily.api_key", typ: kString, env: "JOBHUNTER_TAVILY_API_KEY", alias: "TAVILY_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Tavily.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Tavily.APIKey },
	},
	{
		key: "tavily.base_url", typ: kString, env: "JOBHUNTER_TAVILY_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Tavily.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Tavily.BaseURL },
	},
	{
		key: "session.serialize", typ: kBool, env: "JOBHUNTER_SESSION_SERIALIZE",
		apply:   func(cfg *Config, v any) { cfg.Session.Serialize = v.(bool) },
		extract: func(cfg Config) any { return cfg.Session.Serialize },
	},
	{
		key: "storage.data_dir", typ: kString, env: "JOBHUNTER_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "JOBHUNTER_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.file", typ: kString, env: "JOBHUNTER_LOG_FILE",
		apply:   func(cfg *Config, v any) { cfg.Log.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.File },
	},
	{
		key: "telemetry.dir", typ: kString, env: "JOBHUNTER_TELEMETRY_DIR",
		apply:   func(cfg *Config, v any) { cfg.Telemetry.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Telemetry.Dir },
	},
	{
		key: "archive.bucket", typ: kString, env: "JOBHUNTER_ARCHIVE_BUCKET",
		apply:   func(cfg *Config, v any) { cfg.Archive.Bucket = v.(string) },
		extract: func(cfg Config) any { return cfg.Archive.Bucket },
	},
	{
		key: "archive.endpoint", typ: kString, env: "JOBHUNTER_ARCHIVE_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.Archive.Endpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Archive.Endpoint },
	},
	{
		key: "archive.region", typ: kString, env: "JOBHUNTER_ARCHIVE_REGION",
		apply:   func(cfg *Config, v any) { cfg.Archive.Region = v.(string) },
		extract: func(cfg Config) any { return cfg.Archive.Region },
	},
	{
		key: "archive.access_key", typ: kString, env: "JOBHUNTER_ARCHIVE_ACCESS_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Archive.AccessKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Archive.AccessKey },
	},
	{
		key: "archive.secret_key", typ: kString, env: "JOBHUNTER_ARCHIVE_SECRET_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Archive.SecretKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Archive.SecretKey },
	},
	{
		key: "events.amqp_url", typ: kString, env: "JOBHUNTER_EVENTS_AMQP_URL",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Events.AMQPURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Events.AMQPURL },
	},
	{
		key: "events.exchange", typ: kString, env: "JOBHUNTER_EVENTS_EXCHANGE",
		apply:   func(cfg *Config, v any) { cfg.Events.Exchange = v.(string) },
		extract: func(cfg Config) any { return cfg.Events.Exchange },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool, kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || v == "" {
				continue
			}
			parsed, err := parseValue(s.typ, v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, v, err)
				continue
			}
			s.apply(cfg, parsed)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		name, raw := s.env, os.Getenv(s.env)
		if raw == "" && s.alias != "" {
			name, raw = s.alias, os.Getenv(s.alias)
		}
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", name, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

// applySecrets fills secret keys still empty after the environment.
func applySecrets(cfg *Config, secrets secretStore) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg) != "" {
			continue
		}
		if v, err := secrets.Get(s.key); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	default:
		return raw, nil
	}
}
