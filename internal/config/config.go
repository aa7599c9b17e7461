// Package config loads client settings. Sources are applied in order:
// built-in defaults, a YAML file, a .env file, then the process environment
// (DDT_ prefixed variables). Later sources override earlier ones.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "DDT_"

type Config struct {
	BaseURL  string `yaml:"base_url" env:"BASE_URL"`
	Account  string `yaml:"account" env:"ACCOUNT"`
	Password string `yaml:"password" env:"PASSWORD"`

	HTTPTimeout      time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT"`
	WriteTimeout     time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// ReadTimeout of zero disables the read deadline and pings.
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	PingInterval time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
	TickInterval time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`

	StrictEnvelopes bool   `yaml:"strict_envelopes" env:"STRICT_ENVELOPES"`
	JournalDir      string `yaml:"journal_dir" env:"JOURNAL_DIR"`
}

// Sources names the inputs for LoadFrom. Empty paths are skipped.
type Sources struct {
	File    string
	DotEnv  string
	Environ []string
}

func Defaults() Config {
	return Config{
		BaseURL:          "http://127.0.0.1:8080",
		HTTPTimeout:      10 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     25 * time.Second,
		TickInterval:     50 * time.Millisecond,
	}
}

// Load reads path and dotenv (either may be empty) and overlays the process
// environment. A missing dotenv file is not an error.
func Load(path, dotenv string) (Config, error) {
	return LoadFrom(Sources{File: path, DotEnv: dotenv, Environ: os.Environ()})
}

func LoadFrom(src Sources) (Config, error) {
	cfg := Defaults()

	if strings.TrimSpace(src.File) != "" {
		b, err := os.ReadFile(src.File)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", src.File, err)
		}
	}

	vars := map[string]string{}
	if strings.TrimSpace(src.DotEnv) != "" {
		m, err := godotenv.Read(src.DotEnv)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%s: %w", src.DotEnv, err)
		}
		for k, v := range m {
			vars[k] = v
		}
	}
	for k, v := range env.ToMap(src.Environ) {
		vars[k] = v
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: vars}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.Account = strings.TrimSpace(c.Account)
	c.JournalDir = strings.TrimSpace(c.JournalDir)
	d := Defaults()
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = d.HTTPTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.ReadTimeout < 0 {
		c.ReadTimeout = 0
	}
	if c.ReadTimeout == 0 || c.PingInterval < 0 {
		c.PingInterval = 0
	}
}

func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be http(s)://host, got %q", c.BaseURL)
	}
	if c.PingInterval > 0 && c.PingInterval >= c.ReadTimeout {
		return fmt.Errorf("ping_interval (%s) must be shorter than read_timeout (%s)", c.PingInterval, c.ReadTimeout)
	}
	return nil
}

// RequireCredentials reports an error when account or password is unset.
func (c Config) RequireCredentials() error {
	if c.Account == "" || c.Password == "" {
		return errors.New("account and password are required (DDT_ACCOUNT, DDT_PASSWORD or the config file)")
	}
	return nil
}
