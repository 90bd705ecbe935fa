//go:build !darwin

package config

import (
	"path/filepath"
	"testing"
)

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tutordesk", "config.json")
	b := newFileBackend(path)
	if err := b.SetInt("server.port", 4300); err != nil {
		t.Fatal(err)
	}
	if err := b.SetString("session.ttl", "10m"); err != nil {
		t.Fatal(err)
	}

	reloaded := newFileBackend(path)
	port, ok, err := reloaded.GetInt("server.port")
	if err != nil || !ok || port != 4300 {
		t.Errorf("GetInt = %d, %v, %v", port, ok, err)
	}
	ttl, ok, _ := reloaded.GetString("session.ttl")
	if !ok || ttl != "10m" {
		t.Errorf("GetString = %q, %v", ttl, ok)
	}
}

func TestSecretsFile(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if _, err := keychainGet("tutordesk", "api_token"); err == nil {
		t.Fatal("expected error before any secret is stored")
	}
	if err := keychainSet("tutordesk", "api_token", "tok"); err != nil {
		t.Fatal(err)
	}
	got, err := keychainGet("tutordesk", "api_token")
	if err != nil || got != "tok" {
		t.Errorf("keychainGet = %q, %v", got, err)
	}
	if want := filepath.Join("tutordesk", "secrets.json"); filepath.Base(filepath.Dir(secretsFilePath())) != "tutordesk" {
		t.Errorf("secrets path %q does not end in %s", secretsFilePath(), want)
	}
}
