// Package config loads the service configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/chefboot-go/internal/endpoint"
	"github.com/John-Robertt/chefboot-go/internal/install"
)

// Group sources.
const (
	SourceStatic = "static"
	SourceDir    = "dir"
	SourceHTTP   = "http"
	SourceS3     = "s3"
)

type Config struct {
	Listen   string `yaml:"listen"`    // default 127.0.0.1:25510
	LogLevel string `yaml:"log_level"` // debug, info, warn, error (default info)

	Chef   ChefConfig   `yaml:"chef"`
	Groups GroupsConfig `yaml:"groups"`
	Fetch  FetchConfig  `yaml:"fetch"`
	HTTP   HTTPConfig   `yaml:"http"`
}

type ChefConfig struct {
	ServerURL string        `yaml:"server_url"`
	Validator KeyConfig     `yaml:"validator"`
	Client    KeyConfig     `yaml:"client"` // optional; used for API calls
	Install   InstallConfig `yaml:"install"`
}

// KeyConfig names an identity and its private key file. Both or neither.
type KeyConfig struct {
	Name    string `yaml:"name"`
	KeyPath string `yaml:"key_path"`
}

func (k KeyConfig) IsSet() bool { return k.Name != "" || k.KeyPath != "" }

type InstallConfig struct {
	Script        string `yaml:"script"`
	ScriptPath    string `yaml:"script_path"`
	ScriptURL     string `yaml:"script_url"`
	WindowsScript string `yaml:"windows_script"`
}

func (i InstallConfig) Source() install.Source {
	return install.Source{
		Script:        i.Script,
		ScriptPath:    i.ScriptPath,
		ScriptURL:     i.ScriptURL,
		WindowsScript: i.WindowsScript,
	}
}

type GroupsConfig struct {
	Source   string        `yaml:"source"`    // static | dir | http | s3
	CacheTTL time.Duration `yaml:"cache_ttl"` // 0 disables caching

	Dir     string            `yaml:"dir"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	S3      S3Config          `yaml:"s3"`
	Static  map[string]any    `yaml:"static"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout"`   // default 15s
	MaxBytes      int64         `yaml:"max_bytes"` // default per kind
	MaxRedirects  int           `yaml:"max_redirects"`
	RatePerSecond float64       `yaml:"rate_per_second"` // 0 means unlimited
	Burst         int           `yaml:"burst"`
}

type HTTPConfig struct {
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"` // default 5s
	RequestTimeout    time.Duration `yaml:"request_timeout"`     // default 30s
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`    // default 10s
	RateLimitRPS      float64       `yaml:"rate_limit_rps"`      // 0 disables
	RateLimitBurst    int           `yaml:"rate_limit_burst"`
}

// Load reads path (optional), applies CHEFBOOT_* environment overrides and
// defaults, then validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Listen, "CHEFBOOT_LISTEN")
	set(&c.LogLevel, "CHEFBOOT_LOG_LEVEL")
	set(&c.Chef.ServerURL, "CHEFBOOT_SERVER_URL")
	set(&c.Chef.Validator.Name, "CHEFBOOT_VALIDATOR_NAME")
	set(&c.Chef.Validator.KeyPath, "CHEFBOOT_VALIDATOR_KEY")
	set(&c.Groups.Source, "CHEFBOOT_GROUPS_SOURCE")
	set(&c.Groups.Dir, "CHEFBOOT_GROUPS_DIR")
	set(&c.Groups.URL, "CHEFBOOT_GROUPS_URL")
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:25510"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Groups.Source == "" {
		switch {
		case c.Groups.Dir != "":
			c.Groups.Source = SourceDir
		case c.Groups.URL != "":
			c.Groups.Source = SourceHTTP
		case c.Groups.S3.Bucket != "":
			c.Groups.Source = SourceS3
		default:
			c.Groups.Source = SourceStatic
		}
	}
	if c.Fetch.RatePerSecond > 0 && c.Fetch.Burst <= 0 {
		c.Fetch.Burst = 1
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		c.HTTP.ReadHeaderTimeout = 5 * time.Second
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.HTTP.RateLimitRPS > 0 && c.HTTP.RateLimitBurst <= 0 {
		c.HTTP.RateLimitBurst = int(c.HTTP.RateLimitRPS*2) + 1
	}
}

// Validate checks internal consistency. It does not touch the file system.
func (c *Config) Validate() error {
	var errs []error
	if _, err := endpoint.Parse(c.Chef.ServerURL); err != nil {
		errs = append(errs, fmt.Errorf("chef.server_url: %w", err))
	}
	if v := c.Chef.Validator; v.Name == "" || v.KeyPath == "" {
		errs = append(errs, errors.New("chef.validator: name and key_path are both required"))
	}
	if k := c.Chef.Client; k.IsSet() && (k.Name == "" || k.KeyPath == "") {
		errs = append(errs, errors.New("chef.client: set both name and key_path, or neither"))
	}
	if err := c.Chef.Install.Source().Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Groups.Source {
	case SourceStatic:
	case SourceDir:
		if c.Groups.Dir == "" {
			errs = append(errs, errors.New("groups.dir is required for source=dir"))
		}
	case SourceHTTP:
		if c.Groups.URL == "" {
			errs = append(errs, errors.New("groups.url is required for source=http"))
		}
	case SourceS3:
		if c.Groups.S3.Bucket == "" {
			errs = append(errs, errors.New("groups.s3.bucket is required for source=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("groups.source %q: expected static, dir, http or s3", c.Groups.Source))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q: expected debug, info, warn or error", c.LogLevel))
	}
	return errors.Join(errs...)
}

// SlogLevel maps LogLevel to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
