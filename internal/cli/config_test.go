// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-securitykey.
//
// go-securitykey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setConfigFile points the CLI at the given config file for one test.
func setConfigFile(t *testing.T, path string) {
	t.Helper()
	previous := configFile
	configFile = path
	t.Cleanup(func() { configFile = previous })
}

func TestLoadServerConfig_FromFile(t *testing.T) {
	configContent := `
server:
  host: "127.0.0.1"
  port: 9443
  read_timeout: 5s

storage:
  backend: "memory"

webauthn:
  id: "example.com"
  display_name: "Example Corp"
  origins:
    - "https://example.com"
  challenge_ttl: 3m
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	setConfigFile(t, path)

	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig() error = %v, want nil", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %v, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9443 {
		t.Errorf("Server.Port = %v, want 9443", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend = %v, want memory", cfg.Storage.Backend)
	}
	if cfg.WebAuthn.RPID != "example.com" {
		t.Errorf("WebAuthn.RPID = %v, want example.com", cfg.WebAuthn.RPID)
	}
	if cfg.WebAuthn.ChallengeTTL != 3*time.Minute {
		t.Errorf("WebAuthn.ChallengeTTL = %v, want 3m", cfg.WebAuthn.ChallengeTTL)
	}

	// Settings absent from the file keep their defaults.
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %v, want info", cfg.Logging.Level)
	}
}

func TestLoadServerConfig_MissingFile(t *testing.T) {
	setConfigFile(t, filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := loadServerConfig()
	if err == nil {
		t.Fatal("loadServerConfig() error = nil, want error for missing --config file")
	}
}

func TestLoadServerConfig_EnvOverrides(t *testing.T) {
	configContent := `
storage:
  backend: "memory"

webauthn:
  id: "example.com"
  display_name: "Example Corp"
  origins:
    - "https://example.com"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	setConfigFile(t, path)
	t.Setenv("SECURITYKEY_PORT", "7443")
	t.Setenv("SECURITYKEY_RP_ID", "login.example.com")

	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig() error = %v, want nil", err)
	}

	if cfg.Server.Port != 7443 {
		t.Errorf("Server.Port = %v, want 7443", cfg.Server.Port)
	}
	if cfg.WebAuthn.RPID != "login.example.com" {
		t.Errorf("WebAuthn.RPID = %v, want login.example.com", cfg.WebAuthn.RPID)
	}
}

func TestLoadServerConfig_ValidationFailure(t *testing.T) {
	// No relying party configured
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  backend: memory\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	setConfigFile(t, path)

	_, err := loadServerConfig()
	if err == nil {
		t.Fatal("loadServerConfig() error = nil, want validation error")
	}
}
