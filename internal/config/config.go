package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const FileName = "signflow.yml"

// Config models signflow.yml.
type Config struct {
	Account  AccountConfig   `yaml:"account"`
	Formulas FormulaConfig   `yaml:"formulas"`
	Invites  InviteConfig    `yaml:"invites"`
	Phone    PhoneConfig     `yaml:"phone"`
	Jobs     JobsConfig      `yaml:"jobs"`
	Form     map[string]any  `yaml:"form"`
	Webhooks []WebhookConfig `yaml:"webhooks" validate:"dive"`
	Auth     AuthConfig      `yaml:"auth"`
}

type AccountConfig struct {
	ID       string `yaml:"id" validate:"required"`
	Name     string `yaml:"name" validate:"required"`
	Timezone string `yaml:"timezone" validate:"required,timezone"`
	Locale   string `yaml:"locale" validate:"required,oneof=en nl"`
}

type FormulaConfig struct {
	MaxDepth  int `yaml:"max_depth" validate:"min=1,max=50"`
	MaxRounds int `yaml:"max_rounds" validate:"min=1,max=10"`
}

type InviteConfig struct {
	GuardianAgeThreshold int `yaml:"guardian_age_threshold" validate:"min=1"`
}

type PhoneConfig struct {
	MinDigits int `yaml:"min_digits" validate:"min=1"`
	MaxDigits int `yaml:"max_digits" validate:"gtefield=MinDigits"`
}

type JobsConfig struct {
	Backend     string  `yaml:"backend" validate:"oneof=outbox redis"`
	RedisAddr   string  `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB     int     `yaml:"redis_db" validate:"min=0"`
	QueuePrefix string  `yaml:"queue_prefix"`
	Rate        float64 `yaml:"rate" validate:"gt=0"`
	Burst       int     `yaml:"burst" validate:"min=1"`
	MaxAttempts int     `yaml:"max_attempts" validate:"min=1"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" validate:"required,url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds" validate:"min=0"`
	Enabled        *bool    `yaml:"enabled"`
}

type AuthConfig struct {
	Secret   string `yaml:"secret"`
	TokenTTL string `yaml:"token_ttl"`
}

// TTL parses the token lifetime; zero means tokens never expire.
func (a AuthConfig) TTL() (time.Duration, error) {
	if strings.TrimSpace(a.TokenTTL) == "" {
		return 0, nil
	}
	return time.ParseDuration(a.TokenTTL)
}

var validate = validator.New()

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config.%s failed %q validation", strings.ToLower(fe.Namespace()[len("Config."):]), fe.Tag())
		}
		return err
	}
	for i, hook := range c.Webhooks {
		for _, evt := range hook.Events {
			if strings.TrimSpace(evt) == "" {
				return fmt.Errorf("webhook %d has empty event name", i)
			}
		}
	}
	if _, err := c.Auth.TTL(); err != nil {
		return fmt.Errorf("config.auth.token_ttl: %w", err)
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Load reads and validates config from workspace. A missing file yields the defaults.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// FromYAML parses config over the defaults and validates it.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `account:
  id: default
  name: Default Account
  timezone: UTC
  locale: en

formulas:
  max_depth: 10
  max_rounds: 2

invites:
  guardian_age_threshold: 16

phone:
  min_digits: 7
  max_digits: 15

jobs:
  backend: outbox
  redis_db: 0
  queue_prefix: signflow
  rate: 10
  burst: 5
  max_attempts: 5

form:
  allow_typed_signature: true
  form_with_confetti: true
  reuse_signature: true
  allow_to_decline: true
  allow_to_partial_download: true
  with_signature_id: true
  with_signature_id_reason: true
  require_signing_reason: false
  with_submitter_timezone: false

auth:
  token_ttl: 72h
`
