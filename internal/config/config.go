package config

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Storage    StorageConfig
	Proxy      ProxyConfig
	BackOffice BackOfficeConfig
	Session    SessionConfig
	Answer     AnswerConfig
}

type ServerConfig struct {
	Port       int
	MCPEnabled bool
}

type LogConfig struct {
	Level string
	File  string
}

type StorageConfig struct {
	DataDir string
}

type ProxyConfig struct {
	OpenRouterAPIKey string
	DefaultModel     string
	BaseURL          string
}

// BackOfficeConfig points at the education-center back office that serves
// availability, bookings, tickets, and balances.
type BackOfficeConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type SessionConfig struct {
	TTL time.Duration
}

type AnswerConfig struct {
	Locale string
}

// ErrMissingAPIKey is returned by Load when no OpenRouter key is configured.
var ErrMissingAPIKey = errors.New("missing required config: OpenRouter API key")

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:       4100,
			MCPEnabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Proxy: ProxyConfig{
			DefaultModel: "openai/gpt-4o-mini",
			BaseURL:      "https://openrouter.ai/api/v1",
		},
		BackOffice: BackOfficeConfig{
			BaseURL: "http://127.0.0.1:8080",
			Timeout: 10 * time.Second,
		},
		Session: SessionConfig{
			TTL: 30 * time.Minute,
		},
		Answer: AnswerConfig{
			Locale: "pt-PT",
		},
	}
}

// Load reads configuration from defaults, the platform-native backend,
// TUTORDESK_* environment variables, and finally the platform secret store
// for secrets still unset.
//
// On macOS the backend is UserDefaults (domain: com.tutordesk.app) and secrets
// fall back to the Keychain. Elsewhere the backend is
// $XDG_CONFIG_HOME/tutordesk/config.json and secrets fall back to
// $XDG_DATA_HOME/tutordesk/secrets.json.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), NewKeychain())
}

// LoadRelaxed is Load without the required-key check, for commands that only
// inspect configuration.
func LoadRelaxed() Config {
	cfg, _ := loadConfig(newPlatformBackend(), NewKeychain())
	return cfg
}

// SecretStore abstracts Keychain access for testing.
type SecretStore interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

func loadWith(b ConfigBackend, kc SecretStore) (Config, error) {
	cfg, err := loadConfig(b, kc)
	if err != nil {
		return Config{}, err
	}
	if cfg.Proxy.OpenRouterAPIKey == "" {
		return Config{}, fmt.Errorf("%w: set TUTORDESK_OPENROUTER_API_KEY%s", ErrMissingAPIKey, apiKeyHint())
	}
	return cfg, nil
}

func loadConfig(b ConfigBackend, kc SecretStore) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return cfg, err
	}
	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)
	return cfg, nil
}
