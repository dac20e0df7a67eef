// Package config holds the static options of an invocation. Options are layered: built-in defaults, an optional YAML
// file, an optional .env file and finally the process environment, each overriding the previous one.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Prefix of all environment variables, e.g. LEETIFY_TOKEN.
const EnvPrefix = "leetify"

// Environment variable naming the optional YAML file.
const FileVariable = "LEETIFY_CONFIG_FILE"

var ErrMissingToken = errors.New("config: token is required")

type Config struct {
	Token      string `yaml:"token" split_words:"true"`
	HistoryURL string `yaml:"history_url" split_words:"true"`
	GamesURL   string `yaml:"games_url" split_words:"true"`
	OutputDir  string `yaml:"output_dir" split_words:"true"`
	Workers    int    `yaml:"workers" split_words:"true"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" split_words:"true"`
	ReadTimeout    time.Duration `yaml:"read_timeout" split_words:"true"`
	RetryMax       int           `yaml:"retry_max" split_words:"true"`
	RetryWaitMin   time.Duration `yaml:"retry_wait_min" split_words:"true"`
	RetryWaitMax   time.Duration `yaml:"retry_wait_max" split_words:"true"`

	OllamaURL  string        `yaml:"ollama_url" split_words:"true"`
	Model      string        `yaml:"model" split_words:"true"`
	LLMTimeout time.Duration `yaml:"llm_timeout" split_words:"true"`

	// Empty disables the SQLite archive.
	ArchivePath string `yaml:"archive_path" split_words:"true"`
	MonitorAddr string `yaml:"monitor_addr" split_words:"true"`
	// Zero disables the monitor server.
	MonitorPort int           `yaml:"monitor_port" split_words:"true"`
	StoreTTL    time.Duration `yaml:"store_ttl" split_words:"true"`

	Verbose bool `yaml:"verbose" split_words:"true"`
}

func Default() Config {
	return Config{
		HistoryURL:     "https://api.cs-prod.leetify.com/api/v2/games/history",
		GamesURL:       "https://api.cs-prod.leetify.com/api/games",
		OutputDir:      "leetify",
		Workers:        4,
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    30 * time.Second,
		RetryMax:       5,
		RetryWaitMin:   500 * time.Millisecond,
		RetryWaitMax:   8 * time.Second,
		OllamaURL:      "http://localhost:11434",
		Model:          "llama2",
		LLMTimeout:     5 * time.Minute,
		MonitorAddr:    "127.0.0.1",
		StoreTTL:       time.Hour,
	}
}

// LoadFile overlays the YAML file at path on the defaults. Keys missing in the file keep their default.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the effective configuration. dotenv names .env files to read; missing files are skipped and variables
// that are already set in the environment win over the file.
func Load(dotenv ...string) (Config, error) {
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv(FileVariable)); path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides every option that has a LEETIFY_ variable set.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return ErrMissingToken
	}
	if c.HistoryURL == "" || c.GamesURL == "" {
		return errors.New("config: history_url and games_url must be set")
	}
	if c.OutputDir == "" {
		return errors.New("config: output_dir must be set")
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1, got %d", c.Workers)
	}
	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 || c.LLMTimeout <= 0 {
		return errors.New("config: timeouts must be > 0")
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("config: retry_max must be >= 0, got %d", c.RetryMax)
	}
	if c.RetryWaitMin > c.RetryWaitMax {
		return fmt.Errorf("config: retry_wait_min %s exceeds retry_wait_max %s", c.RetryWaitMin, c.RetryWaitMax)
	}
	if c.MonitorPort < 0 || c.MonitorPort > 65535 {
		return fmt.Errorf("config: monitor_port must be within [0,65535], got %d", c.MonitorPort)
	}
	if c.MonitorPort > 0 && c.StoreTTL <= 0 {
		return errors.New("config: store_ttl must be > 0 when the monitor is enabled")
	}
	return nil
}
