package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/ansuz/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if !cfg.Index.Watch || cfg.Index.Debounce != 500*time.Millisecond {
		t.Errorf("index defaults = %+v", cfg.Index)
	}
	if cfg.Query.EmptyMarker != "-" {
		t.Errorf("empty marker = %q", cfg.Query.EmptyMarker)
	}
}

func TestVaultConfig_NormalisesExtensions(t *testing.T) {
	cfg := VaultConfig{Path: "v", Extensions: []string{"MD", " .markdown "}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Extensions[0] != ".md" || cfg.Extensions[1] != ".markdown" {
		t.Errorf("extensions = %v", cfg.Extensions)
	}
	bad := VaultConfig{Path: "v", Extensions: []string{""}}
	if err := bad.Validate(); err == nil {
		t.Error("empty extension should fail")
	}
}

func TestIndexConfig_DebounceBounds(t *testing.T) {
	if err := (&IndexConfig{Debounce: -time.Second}).Validate(); err == nil {
		t.Error("negative debounce should fail")
	}
	if err := (&IndexConfig{Debounce: time.Hour}).Validate(); err == nil {
		t.Error("hour-long debounce should fail")
	}
}

func TestQueryConfig(t *testing.T) {
	cfg := QueryConfig{DefaultLimit: -1}
	if err := cfg.Validate(); err == nil {
		t.Error("negative default limit should fail")
	}
	cfg = QueryConfig{DefaultLimit: 50}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	opts := cfg.EngineOptions()
	if opts.DefaultLimit != 50 || opts.EmptyMarker != "-" {
		t.Errorf("engine options = %+v", opts)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("ANSUZ_TEST_VAULT", "/data/vault")
	content := "vault:\n  path: ${ANSUZ_TEST_VAULT}\nindex:\n  debounce: 2s\n  watch: false\nquery:\n  default_limit: 25\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Vault.Path != "/data/vault" {
		t.Errorf("vault path = %q", cfg.Vault.Path)
	}
	if cfg.Index.Debounce != 2*time.Second || cfg.Index.Watch {
		t.Errorf("index = %+v", cfg.Index)
	}
	if !cfg.Index.RebuildOnStart {
		t.Error("unset keys must keep their defaults")
	}
	if cfg.Query.DefaultLimit != 25 || cfg.App.HTTP.Port != 8080 {
		t.Errorf("query=%+v port=%d", cfg.Query, cfg.App.HTTP.Port)
	}
}
