package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	account string // keychain account for secrets
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "TUTORDESK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_enabled", typ: kBool, env: "TUTORDESK_SERVER_MCP_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.MCPEnabled },
	},
	{
		key: "log.level", typ: kString, env: "TUTORDESK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.file", typ: kString, env: "TUTORDESK_LOG_FILE",
		apply:   func(cfg *Config, v any) { cfg.Log.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.File },
	},
	{
		key: "storage.data_dir", typ: kString, env: "TUTORDESK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "proxy.openrouter_api_key", typ: kString, env: "TUTORDESK_OPENROUTER_API_KEY",
		secret: true, account: accountOpenRouter,
		apply:   func(cfg *Config, v any) { cfg.Proxy.OpenRouterAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.OpenRouterAPIKey },
	},
	{
		key: "proxy.default_model", typ: kString, env: "TUTORDESK_PROXY_DEFAULT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.DefaultModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.DefaultModel },
	},
	{
		key: "proxy.base_url", typ: kString, env: "TUTORDESK_PROXY_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.BaseURL },
	},
	{
		key: "backoffice.base_url", typ: kString, env: "TUTORDESK_BACKOFFICE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.BackOffice.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.BackOffice.BaseURL },
	},
	{
		key: "backoffice.api_key", typ: kString, env: "TUTORDESK_BACKOFFICE_API_KEY",
		secret: true, account: accountBackOffice,
		apply:   func(cfg *Config, v any) { cfg.BackOffice.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.BackOffice.APIKey },
	},
	{
		key: "backoffice.timeout", typ: kDuration, env: "TUTORDESK_BACKOFFICE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.BackOffice.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.BackOffice.Timeout },
	},
	{
		key: "session.ttl", typ: kDuration, env: "TUTORDESK_SESSION_TTL",
		apply:   func(cfg *Config, v any) { cfg.Session.TTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Session.TTL },
	},
	{
		key: "answer.locale", typ: kString, env: "TUTORDESK_ANSWER_LOCALE",
		apply:   func(cfg *Config, v any) { cfg.Answer.Locale = v.(string) },
		extract: func(cfg Config) any { return cfg.Answer.Locale },
	},
}

// parse converts raw into the Go value for s.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		d, err := time.ParseDuration(raw)
		if err == nil && d <= 0 {
			return nil, fmt.Errorf("duration must be positive, got %s", d)
		}
		return d, err
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}
		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			zap.L().Warn("ignoring invalid config value", zap.String("key", s.key), zap.String("value", raw), zap.Error(err))
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			zap.L().Warn("ignoring invalid environment override", zap.String("env", s.env), zap.String("value", raw), zap.Error(err))
			continue
		}
		s.apply(cfg, v)
	}
}
