package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_DefaultsWhenMissing(t *testing.T) {
	t.Setenv("EMCTL_CONFIG_DIR", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Fatalf("expected default base url, got %q", cfg.BaseURL)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Fatalf("expected default timeout, got %v", cfg.RequestTimeout)
	}
	if cfg.Token != "" {
		t.Fatalf("expected no token, got %q", cfg.Token)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EMCTL_CONFIG_DIR", dir)

	if err := SaveConfig(&Config{
		BaseURL:        "https://file.example.com/",
		Company:        "Acme",
		RequestTimeout: 3 * time.Second,
		Format:         "edn",
	}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	t.Setenv("EMCTL_COMPANY", "Globex")
	t.Setenv("EMCTL_REQUEST_TIMEOUT", "9s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BaseURL != "https://file.example.com" {
		t.Fatalf("expected file base url (trimmed), got %q", cfg.BaseURL)
	}
	if cfg.Company != "Globex" {
		t.Fatalf("expected env company, got %q", cfg.Company)
	}
	if cfg.RequestTimeout != 9*time.Second {
		t.Fatalf("expected env timeout, got %v", cfg.RequestTimeout)
	}
	if cfg.Format != "edn" {
		t.Fatalf("expected file format, got %q", cfg.Format)
	}
	// Fields not in the file keep their defaults.
	if cfg.CatalogTTL != DefaultCatalogTTL {
		t.Fatalf("expected default ttl, got %v", cfg.CatalogTTL)
	}
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	t.Setenv("EMCTL_CONFIG_DIR", t.TempDir())
	t.Setenv("EMCTL_FORMAT", "xml")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected validation error for format")
	}
}

func TestToken_SaveLoadClear(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EMCTL_CONFIG_DIR", dir)

	if err := SaveToken("  abc.def  "); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	fi, err := os.Stat(filepath.Join(dir, tokenFileName))
	if err != nil {
		t.Fatalf("stat token: %v", err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 token file, got %v", fi.Mode().Perm())
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Token != "abc.def" {
		t.Fatalf("expected saved token, got %q", cfg.Token)
	}

	t.Setenv("EMCTL_TOKEN", "from-env")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Token != "from-env" {
		t.Fatalf("expected env token to win, got %q", cfg.Token)
	}

	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken twice: %v", err)
	}
	tok, err := LoadToken()
	if err != nil || tok != "" {
		t.Fatalf("expected no token after clear, got %q err=%v", tok, err)
	}
}

func TestSaveConfig_DoesNotPersistToken(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EMCTL_CONFIG_DIR", dir)

	if err := SaveConfig(&Config{BaseURL: DefaultBaseURL, Token: "secret"}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, configFileName))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if got := string(b); len(got) == 0 || strings.Contains(got, "secret") {
		t.Fatalf("unexpected config contents: %q", got)
	}
}
