// Package config provides environment-based configuration for causeway.
//
// Every setting is read from the environment. When CAUSEWAY_CONFIG names a
// YAML file, its values are used for any variable the environment leaves
// unset.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable pointing at the YAML config file.
const FileEnv = "CAUSEWAY_CONFIG"

// Config holds all configuration for causeway.
type Config struct {
	Koji KojiConfig
	PNC  PNCConfig

	// Database configuration. Empty keeps import jobs in memory.
	DatabaseDSN string

	// Authentication
	JWTSecret string
	JWTExpiry time.Duration

	// Server configuration
	APIPort int
	APIHost string

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration

	// AgeIdentity decrypts age armored secret values.
	AgeIdentity string

	LogLevel string
	LogJSON  bool
}

// KojiConfig holds Brew hub settings.
type KojiConfig struct {
	URL string
	// WebURL is the prefix build ids are appended to for build links.
	WebURL          string
	ClientCert      string
	ClientKey       string
	CACert          string
	User            string
	Password        string
	Timeout         time.Duration
	UploadChunkSize int
}

// PNCConfig holds PNC settings.
type PNCConfig struct {
	URL      string
	Token    string
	PageSize int
	Timeout  time.Duration
}

// fileConfig is the YAML layout of the config file.
type fileConfig struct {
	Koji struct {
		URL         string `yaml:"url"`
		WebURL      string `yaml:"web_url"`
		ClientCert  string `yaml:"client_cert"`
		ClientKey   string `yaml:"client_key"`
		CACert      string `yaml:"ca_cert"`
		User        string `yaml:"user"`
		Password    string `yaml:"password"`
		Timeout     string `yaml:"timeout"`
		UploadChunk string `yaml:"upload_chunk"`
	} `yaml:"koji"`
	PNC struct {
		URL      string `yaml:"url"`
		Token    string `yaml:"token"`
		PageSize string `yaml:"page_size"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"pnc"`
	DatabaseURL string `yaml:"database_url"`
	API         struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
	} `yaml:"api"`
	JWT struct {
		Secret string `yaml:"secret"`
		Expiry string `yaml:"expiry"`
	} `yaml:"jwt"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	Secrets         struct {
		AgeIdentity string `yaml:"age_identity"`
	} `yaml:"secrets"`
	Log struct {
		Level string `yaml:"level"`
		JSON  string `yaml:"json"`
	} `yaml:"log"`
}

// source looks values up in the environment, then in the config file.
type source map[string]string

// Load reads and validates configuration.
func Load() (*Config, error) {
	cfg, err := load("")
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing and one-shot
// commands.
func LoadWithDefaults() (*Config, error) {
	return load("development-secret-key-min-32-chars")
}

func load(jwtDefault string) (*Config, error) {
	src, err := readFile(os.Getenv(FileEnv))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Koji: KojiConfig{
			URL:             src.get("KOJI_URL", ""),
			WebURL:          src.get("KOJI_WEB_URL", ""),
			ClientCert:      src.get("KOJI_CLIENT_CERT", ""),
			ClientKey:       src.get("KOJI_CLIENT_KEY", ""),
			CACert:          src.get("KOJI_CA_CERT", ""),
			User:            src.get("KOJI_USER", ""),
			Password:        src.get("KOJI_PASSWORD", ""),
			Timeout:         src.getDuration("KOJI_TIMEOUT", 15*time.Minute),
			UploadChunkSize: src.getInt("KOJI_UPLOAD_CHUNK", 1<<20),
		},
		PNC: PNCConfig{
			URL:      src.get("PNC_URL", ""),
			Token:    src.get("PNC_TOKEN", ""),
			PageSize: src.getInt("PNC_PAGE_SIZE", 200),
			Timeout:  src.getDuration("PNC_TIMEOUT", 2*time.Minute),
		},
		DatabaseDSN:     src.get("DATABASE_URL", ""),
		JWTSecret:       src.get("JWT_SECRET", jwtDefault),
		JWTExpiry:       src.getDuration("JWT_EXPIRY", 24*time.Hour),
		APIPort:         src.getInt("API_PORT", 8080),
		APIHost:         src.get("API_HOST", "0.0.0.0"),
		ShutdownTimeout: src.getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		AgeIdentity:     src.get("SECRETS_AGE_IDENTITY", ""),
		LogLevel:        src.get("LOG_LEVEL", "info"),
		LogJSON:         src.getBool("LOG_JSON", true),
	}
	if cfg.Koji.WebURL == "" {
		cfg.Koji.WebURL = DefaultWebURL(cfg.Koji.URL)
	}
	return cfg, nil
}

// Validate checks everything the API server needs.
func (c *Config) Validate() error {
	if err := c.ValidateRemotes(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	return nil
}

// ValidateRemotes checks the Koji and PNC settings.
func (c *Config) ValidateRemotes() error {
	if c.Koji.URL == "" {
		return fmt.Errorf("KOJI_URL is required")
	}
	if c.PNC.URL == "" {
		return fmt.Errorf("PNC_URL is required")
	}
	if (c.Koji.ClientCert == "") != (c.Koji.ClientKey == "") {
		return fmt.Errorf("KOJI_CLIENT_CERT and KOJI_CLIENT_KEY must be set together")
	}
	if c.Koji.ClientCert == "" && c.Koji.User == "" {
		return fmt.Errorf("either KOJI_CLIENT_CERT or KOJI_USER is required")
	}
	if c.Koji.UploadChunkSize <= 0 {
		return fmt.Errorf("KOJI_UPLOAD_CHUNK must be positive")
	}
	return nil
}

// DefaultWebURL derives the build link prefix from the hub URL.
func DefaultWebURL(hubURL string) string {
	u, err := url.Parse(hubURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/koji/buildinfo?buildID="
}

func readFile(path string) (source, error) {
	src := source{}
	if path == "" {
		return src, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	src["KOJI_URL"] = fc.Koji.URL
	src["KOJI_WEB_URL"] = fc.Koji.WebURL
	src["KOJI_CLIENT_CERT"] = fc.Koji.ClientCert
	src["KOJI_CLIENT_KEY"] = fc.Koji.ClientKey
	src["KOJI_CA_CERT"] = fc.Koji.CACert
	src["KOJI_USER"] = fc.Koji.User
	src["KOJI_PASSWORD"] = fc.Koji.Password
	src["KOJI_TIMEOUT"] = fc.Koji.Timeout
	src["KOJI_UPLOAD_CHUNK"] = fc.Koji.UploadChunk
	src["PNC_URL"] = fc.PNC.URL
	src["PNC_TOKEN"] = fc.PNC.Token
	src["PNC_PAGE_SIZE"] = fc.PNC.PageSize
	src["PNC_TIMEOUT"] = fc.PNC.Timeout
	src["DATABASE_URL"] = fc.DatabaseURL
	src["API_HOST"] = fc.API.Host
	src["API_PORT"] = fc.API.Port
	src["JWT_SECRET"] = fc.JWT.Secret
	src["JWT_EXPIRY"] = fc.JWT.Expiry
	src["SHUTDOWN_TIMEOUT"] = fc.ShutdownTimeout
	src["SECRETS_AGE_IDENTITY"] = fc.Secrets.AgeIdentity
	src["LOG_LEVEL"] = fc.Log.Level
	src["LOG_JSON"] = fc.Log.JSON
	return src, nil
}

func (s source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value := s[key]; value != "" {
		return value
	}
	return defaultValue
}

func (s source) getInt(key string, defaultValue int) int {
	if i, err := strconv.Atoi(s.get(key, "")); err == nil {
		return i
	}
	return defaultValue
}

func (s source) getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(s.get(key, "")); err == nil {
		return d
	}
	return defaultValue
}

func (s source) getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(s.get(key, "")); err == nil {
		return b
	}
	return defaultValue
}
