// Package config loads the immutable application configuration from
// environment variables at process start. There is no global config
// state: the loaded value is passed down explicitly.
package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tasksuite/addin-auth/internal/capability"
)

// Config holds all environment-based configuration for addin-auth.
type Config struct {
	// Identity parameters. Immutable once the engine is initialized.
	ClientID    string `env:"ADDIN_CLIENT_ID"`
	TenantID    string `env:"ADDIN_TENANT_ID"`
	APIClientID string `env:"ADDIN_API_CLIENT_ID"`

	// NestedAppID is the callback identifier registered for the
	// nested-auth broker flow.
	NestedAppID string `env:"ADDIN_NESTED_APP_ID"`

	// FallbackRedirectURL is the redirect target used by the dialog
	// fallback flow when the host cannot broker tokens.
	FallbackRedirectURL string `env:"ADDIN_FALLBACK_REDIRECT_URL"`

	// DialogBaseURL is where the dialog page is served. Empty means
	// derive from FallbackRedirectURL's origin.
	DialogBaseURL string `env:"ADDIN_DIALOG_BASE_URL"`

	// AuthorityHost is the identity provider's login endpoint.
	AuthorityHost string `env:"ADDIN_AUTHORITY_HOST" envDefault:"https://login.microsoftonline.com"`

	// BridgeURL is the websocket endpoint of the add-in host shim.
	// Empty means no host integration context is available.
	BridgeURL string `env:"ADDIN_BRIDGE_URL"`

	// ListenAddr is the loopback address for the token endpoint
	// consumed by the API client.
	ListenAddr string `env:"ADDIN_LISTEN_ADDR" envDefault:"127.0.0.1:8119"`

	// ThresholdsFile optionally points to a YAML file overriding the
	// desktop nested-auth version thresholds.
	ThresholdsFile string `env:"NAA_THRESHOLDS_FILE"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`

	// NAAThresholds is populated from defaults plus ThresholdsFile.
	NAAThresholds capability.Thresholds `env:"-"`
}

// Load reads configuration from environment variables. It first
// attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.NAAThresholds = capability.DefaultThresholds()

	if cfg.ThresholdsFile != "" {
		if err := loadThresholds(cfg.ThresholdsFile, &cfg.NAAThresholds); err != nil {
			return nil, fmt.Errorf("loading threshold overrides: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadThresholds applies YAML overrides on top of the defaults already
// present in t. Absent keys keep their default values.
func loadThresholds(path string, t *capability.Thresholds) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, t); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if t.WindowsMinBuild <= 0 {
		return fmt.Errorf("windows_min_build must be positive, got %d", t.WindowsMinBuild)
	}

	if t.MacMinVersion == "" {
		return fmt.Errorf("mac_min_version must not be empty")
	}

	return nil
}

func (c *Config) validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("ADDIN_CLIENT_ID is required")
	}

	if c.TenantID == "" {
		return fmt.Errorf("ADDIN_TENANT_ID is required")
	}

	if c.APIClientID == "" {
		return fmt.Errorf("ADDIN_API_CLIENT_ID is required")
	}

	if c.FallbackRedirectURL == "" {
		return fmt.Errorf("ADDIN_FALLBACK_REDIRECT_URL is required")
	}

	for name, raw := range map[string]string{
		"ADDIN_FALLBACK_REDIRECT_URL": c.FallbackRedirectURL,
		"ADDIN_AUTHORITY_HOST":        c.AuthorityHost,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}

	if c.DialogBaseURL != "" {
		u, err := url.Parse(c.DialogBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("ADDIN_DIALOG_BASE_URL must be an absolute URL, got %q", c.DialogBaseURL)
		}
	}

	return nil
}

// DialogBase returns the base URL the dialog page is served from,
// deriving it from the fallback redirect URL's origin when no explicit
// base is configured. Only valid after Load has validated the URLs.
func (c *Config) DialogBase() string {
	if c.DialogBaseURL != "" {
		return c.DialogBaseURL
	}

	u, err := url.Parse(c.FallbackRedirectURL)
	if err != nil {
		return ""
	}

	return u.Scheme + "://" + u.Host
}

// Authority returns the full authority URL for the configured tenant.
func (c *Config) Authority() string {
	return c.AuthorityHost + "/" + c.TenantID
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
