package config

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const (
	keychainService   = "tutordesk"
	accountOpenRouter = "openrouter_api_key"
	accountBackOffice = "backoffice_api_key"
	accountAPIToken   = "api_token"
)

// Keychain is the platform secret store: the macOS Keychain, or a 0600
// secrets file elsewhere.
type Keychain struct{}

func NewKeychain() Keychain { return Keychain{} }

func (Keychain) Get(service, account string) (string, error) {
	return keychainGet(service, account)
}

func (Keychain) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}

// GetAPIToken returns the bearer token guarding the HTTP API, generating and
// storing one on first use.
func GetAPIToken(kc SecretStore) (string, error) {
	if tok, err := kc.Get(keychainService, accountAPIToken); err == nil && tok != "" {
		return tok, nil
	}
	tok := uuid.NewString()
	if err := kc.Set(keychainService, accountAPIToken, tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}

// SetSecret stores a secret config key in the platform secret store.
func SetSecret(kc SecretStore, key, value string) error {
	for _, s := range specs {
		if s.key == key && s.secret {
			return kc.Set(keychainService, s.account, value)
		}
	}
	return errors.New("not a secret config key: " + key)
}

func applySecrets(cfg *Config, kc SecretStore) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg) != "" {
			continue
		}
		if v, err := kc.Get(keychainService, s.account); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
