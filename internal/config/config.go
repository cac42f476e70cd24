// Package config handles loading and validation of the storefront client's
// configuration. Supports development (file or env vars) and production
// (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"gopkg.in/yaml.v3"

	"storefront/internal/transport"
)

// Config holds all client configuration.
// Environment determines whether API settings load from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Local server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// StateDB is the SQLite file holding the local cart and session.
	StateDB string

	// GCP settings (required in production)
	GCPProject   string
	StorefrontID string

	// Storefront API settings (loaded from secrets in production)
	API APIConfig
}

// APIConfig describes the storefront backend and how to talk to it.
// In production, this is loaded from Secret Manager as JSON.
type APIConfig struct {
	BaseURL   string   `json:"base_url" yaml:"base_url"`
	Transport string   `json:"transport,omitempty" yaml:"transport,omitempty"` // "standard" or "chrome"
	Timeout   Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retries   int      `json:"retries,omitempty" yaml:"retries,omitempty"` // 0 = 1, negative disables

	SyncDebounce    Duration `json:"sync_debounce,omitempty" yaml:"sync_debounce,omitempty"`
	CatalogCacheTTL Duration `json:"catalog_cache_ttl,omitempty" yaml:"catalog_cache_ttl,omitempty"`
	CatalogCacheMax int      `json:"catalog_cache_max,omitempty" yaml:"catalog_cache_max,omitempty"`
}

// Defaults applied when a setting is left empty.
const (
	DefaultPort         = "8080"
	DefaultStateDB      = "storefront.db"
	DefaultTimeout      = 10 * time.Second
	DefaultSyncDebounce = 500 * time.Millisecond
)

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:         envOrDefault("PORT", DefaultPort),
		Environment:  envOrDefault("ENVIRONMENT", "development"),
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
		StateDB:      envOrDefault("STATE_DB", DefaultStateDB),
		GCPProject:   os.Getenv("GCP_PROJECT"),
		StorefrontID: os.Getenv("STOREFRONT_ID"),
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.StorefrontID == "" {
			return nil, fmt.Errorf("STOREFRONT_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading api config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// fileConfig mirrors the CONFIG_FILE layout for both JSON and YAML.
type fileConfig struct {
	Port        string    `json:"port" yaml:"port"`
	Environment string    `json:"environment" yaml:"environment"`
	LogLevel    string    `json:"log_level" yaml:"log_level"`
	StateDB     string    `json:"state_db" yaml:"state_db"`
	API         APIConfig `json:"api" yaml:"api"`
}

// loadFromFile reads all configuration from a JSON or YAML file. The format
// follows the extension: .yaml and .yml are YAML, anything else JSON.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fc.Port, DefaultPort),
		Environment: withDefault(fc.Environment, "development"),
		LogLevel:    withDefault(fc.LogLevel, "info"),
		StateDB:     withDefault(fc.StateDB, DefaultStateDB),
		API:         fc.API,
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches the API config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{storefront_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := c.secretName()
	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.API); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

func (c *Config) secretName() string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.GCPProject, c.StorefrontID)
}

// loadFromEnv reads the API config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.API = APIConfig{
		BaseURL:   os.Getenv("STOREFRONT_API_URL"),
		Transport: os.Getenv("STOREFRONT_TRANSPORT"),
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"STOREFRONT_TIMEOUT", &c.API.Timeout},
		{"SYNC_DEBOUNCE", &c.API.SyncDebounce},
		{"CATALOG_CACHE_TTL", &c.API.CatalogCacheTTL},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", d.key, err)
		}
		*d.dst = Duration(parsed)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"STOREFRONT_RETRIES", &c.API.Retries},
		{"CATALOG_CACHE_MAX", &c.API.CatalogCacheMax},
	}
	for _, n := range ints {
		v := os.Getenv(n.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", n.key, err)
		}
		*n.dst = parsed
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Timeout <= 0 {
		c.API.Timeout = Duration(DefaultTimeout)
	}
	if c.API.SyncDebounce <= 0 {
		c.API.SyncDebounce = Duration(DefaultSyncDebounce)
	}
	if c.API.BaseURL != "" && !strings.HasSuffix(c.API.BaseURL, "/") {
		c.API.BaseURL += "/"
	}
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base_url: scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base_url: missing host")
	}

	if _, err := transport.ParseKind(c.API.Transport); err != nil {
		return err
	}
	if c.API.CatalogCacheMax < 0 {
		return fmt.Errorf("catalog_cache_max must not be negative")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}

	return nil
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Duration is a time.Duration written as a Go duration string ("500ms")
// in config files and secrets.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalJSON writes d as a duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.parse(s)
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds")
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// UnmarshalYAML accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" || node.Tag == "!!float" {
		secs, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(parsed)
	return nil
}
