package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// InsecureShareSecret is the built-in share-link secret, accepted only in development.
const InsecureShareSecret = "dosecert-dev-share-secret"

type Config struct {
	Addr           string         `yaml:"addr"`
	ShareSecret    string         `yaml:"share_secret"`
	APITimeout     time.Duration  `yaml:"timeout"`
	DatabasePath   string         `yaml:"database_path"`
	MigrateOnStart bool           `yaml:"migrate_on_start"`
	Workers        int            `yaml:"workers"`
	Autosave       AutosaveConfig `yaml:"autosave"`
	EngineConfig   EngineConfig   `yaml:"engine"`
	Ollama         OllamaConfig   `yaml:"ollama"`
}

type AutosaveConfig struct {
	Interval time.Duration `yaml:"interval"`
	Disabled bool          `yaml:"disabled"`
}

type EngineConfig struct {
	Model    string         `yaml:"model"`
	Template PromptTemplate `yaml:"template"`
	Timeout  time.Duration  `yaml:"timeout"`
}

type PromptTemplate struct {
	Version       string  `yaml:"version"`
	Template      string  `yaml:"template"`
	SchemaVersion *string `yaml:"schema_version,omitempty"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	DefaultModelNames       []string      `yaml:"models"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:         getEnv("DOSECERT_ADDR", ":8080"),
		ShareSecret:  getEnv("DOSECERT_SHARE_SECRET", InsecureShareSecret),
		APITimeout:   15 * time.Second,
		DatabasePath: getEnv("DOSECERT_DATABASE_PATH", "dosecert.db"),
		Workers:      2,
		Autosave:     AutosaveConfig{Interval: 30 * time.Second},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks required settings and fills defaults for optional ones.
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.ShareSecret == "" {
		errs = append(errs, errors.New("share_secret is required"))
	} else if c.ShareSecret == InsecureShareSecret && !IsDevelopment() {
		errs = append(errs, fmt.Errorf("share_secret uses the built-in development value; set DOSECERT_SHARE_SECRET"))
	}
	if c.EngineConfig.Model == "" {
		errs = append(errs, errors.New("engine.model is required"))
	}
	if c.Autosave.Interval < 0 {
		errs = append(errs, errors.New("autosave.interval must not be negative"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.Autosave.Interval == 0 {
		c.Autosave.Interval = 30 * time.Second
	}
	if c.EngineConfig.Template.Version == "" {
		c.EngineConfig.Template.Version = "v1"
	}
	if c.EngineConfig.Timeout <= 0 {
		c.EngineConfig.Timeout = 60 * time.Second
	}

	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.Ollama.Timeout <= 0 {
		c.Ollama.Timeout = 30 * time.Second
	}
	if c.Ollama.Retries == 0 {
		c.Ollama.Retries = 2
	}
	if c.Ollama.Backoff <= 0 {
		c.Ollama.Backoff = 500 * time.Millisecond
	}
	if c.Ollama.CircuitFailureThreshold <= 0 {
		c.Ollama.CircuitFailureThreshold = 5
	}
	if c.Ollama.CircuitReset <= 0 {
		c.Ollama.CircuitReset = 30 * time.Second
	}
	if len(c.Ollama.DefaultModelNames) == 0 {
		c.Ollama.DefaultModelNames = []string{c.EngineConfig.Model}
	}

	return nil
}

// IsDevelopment reports whether DOSECERT_ENV selects the development profile.
func IsDevelopment() bool {
	switch os.Getenv("DOSECERT_ENV") {
	case "development", "dev", "local":
		return true
	}
	return false
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
