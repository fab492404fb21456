package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL        = "http://localhost:8080"
	DefaultRequestTimeout = 15 * time.Second
	DefaultCatalogTTL     = 5 * time.Minute

	configFileName = "config.yaml"
	tokenFileName  = "token"
)

// Config is the operator configuration. File values are overridden by EMCTL_* env
// vars, which are in turn overridden by command-line flags in internal/cli.
type Config struct {
	BaseURL string `yaml:"base_url,omitempty" env:"EMCTL_BASE_URL" validate:"required,url"`
	// Company is the default company, by id or name.
	Company        string        `yaml:"company,omitempty" env:"EMCTL_COMPANY"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty" env:"EMCTL_REQUEST_TIMEOUT" validate:"gt=0"`
	CatalogTTL     time.Duration `yaml:"catalog_ttl,omitempty" env:"EMCTL_CATALOG_TTL" validate:"gte=0"`
	LogLevel       string        `yaml:"log_level,omitempty" env:"EMCTL_LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
	LogFile        string        `yaml:"log_file,omitempty" env:"EMCTL_LOG_FILE"`
	Format         string        `yaml:"format,omitempty" env:"EMCTL_FORMAT" validate:"omitempty,oneof=json edn text"`

	// Token is never written to config.yaml; it lives in the token file or EMCTL_TOKEN.
	Token string `yaml:"-" env:"EMCTL_TOKEN"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		RequestTimeout: DefaultRequestTimeout,
		CatalogTTL:     DefaultCatalogTTL,
		LogLevel:       "warn",
		Format:         "json",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s (%s)", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.emctl).
	if v := strings.TrimSpace(os.Getenv("EMCTL_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".emctl"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// LoadFileConfig reads config.yaml over the defaults. A missing file is not an error.
func LoadFileConfig() (*Config, error) {
	cfg := DefaultConfig()
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfig resolves defaults, config.yaml, the token file and EMCTL_* env vars,
// in increasing precedence, and validates the result.
func LoadConfig() (*Config, error) {
	cfg, err := LoadFileConfig()
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken()
	if err != nil {
		return nil, err
	}
	cfg.Token = tok
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// SaveConfig writes the file-backed fields of cfg to config.yaml.
func SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicWriteFile(dir, "config.yaml.*.tmp", path, b, 0o644)
}

func tokenPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, tokenFileName), nil
}

// LoadToken returns the saved bearer token, or "" when not logged in.
func LoadToken() (string, error) {
	path, err := tokenPath()
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func SaveToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty token")
	}
	path, err := tokenPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return atomicWriteFile(dir, "token.*.tmp", path, []byte(token+"\n"), 0o600)
}

func ClearToken() error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
