package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
server:
  host: 0.0.0.0
  port: 9090
app:
  root_url: https://fantasy.example/
  allowed_origin: https://fantasy.example
oauth:
  client_id: test-client
  client_secret: test-secret
  redirect_uri: https://gateway.example/auth/callback
session:
  secret: super-secret-value-at-least-16
store:
  backend: memory
logging:
  level: debug
  format: text
`

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.OAuth.ClientID != "test-client" {
		t.Errorf("OAuth.ClientID = %q, want test-client", cfg.OAuth.ClientID)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched settings keep their defaults.
	if len(cfg.OAuth.Scopes) != 2 || cfg.OAuth.Scopes[1] != "fspt-r" {
		t.Errorf("OAuth.Scopes = %v, want default openid+fspt-r", cfg.OAuth.Scopes)
	}
	if !cfg.App.SecureCookies {
		t.Error("App.SecureCookies default lost")
	}
}

func TestLoadExpandsEnvReferences(t *testing.T) {
	t.Setenv("TEST_GATEWAY_SECRET", "from-environment")

	cfg, err := Load(writeConfig(t, `
oauth:
  client_id: c
  client_secret: ${TEST_GATEWAY_SECRET}
  redirect_uri: https://gateway.example/auth/callback
session:
  secret: s3cr3t-s3cr3t-s3cr3t
store:
  backend: memory
`))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.OAuth.ClientSecret != "from-environment" {
		t.Errorf("ClientSecret = %q, want expanded env value", cfg.OAuth.ClientSecret)
	}
}

func TestEnvOverridesBeatFileValues(t *testing.T) {
	t.Setenv("YAHOO_CLIENT_ID", "env-client")
	t.Setenv("SESSION_SECRET", "env-session-secret")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.OAuth.ClientID != "env-client" {
		t.Errorf("ClientID = %q, want env-client", cfg.OAuth.ClientID)
	}
	if cfg.Session.Secret != "env-session-secret" {
		t.Errorf("Session.Secret = %q, want env override", cfg.Session.Secret)
	}
}

func TestLoadMissingRequiredSettings(t *testing.T) {
	for _, v := range []string{"YAHOO_CLIENT_ID", "YAHOO_CLIENT_SECRET", "REDIRECT_URI", "SESSION_SECRET"} {
		t.Setenv(v, "")
	}

	_, err := Load(writeConfig(t, `
store:
  backend: memory
`))
	if err == nil {
		t.Fatal("Load succeeded without provider credentials")
	}
	for _, want := range []string{
		"oauth.client_id",
		"oauth.client_secret",
		"oauth.redirect_uri",
		"session.secret",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %s", err, want)
		}
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(validConfig, "backend: memory", "backend: dynamo", 1)))
	if err == nil || !strings.Contains(err.Error(), "store.backend") {
		t.Errorf("error = %v, want store.backend complaint", err)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(validConfig, "port: 9090", "port: 123456", 1)))
	if err == nil || !strings.Contains(err.Error(), "server.port") {
		t.Errorf("error = %v, want server.port complaint", err)
	}
}
