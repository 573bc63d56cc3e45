// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Supabase SupabaseConfig          `yaml:"supabase"`
	Catalog  CatalogConfig           `yaml:"catalog"`
	Redis    RedisConfig             `yaml:"redis"`
	Player   PlayerConfig            `yaml:"player"`
	Control  ControlConfig           `yaml:"control"`
	Payments PaymentsConfig          `yaml:"payments"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
	LastFM   LastFMConfig            `yaml:"lastfm"`
}

// SupabaseConfig represents the hosted backend (REST catalog and identity).
type SupabaseConfig struct {
	URL            string `yaml:"url" validate:"required,url"`
	AnonKey        string `yaml:"anon_key" validate:"required"`
	ServiceRoleKey string `yaml:"service_role_key"`
	JWTSecret      string `yaml:"jwt_secret"`
}

// CatalogConfig represents catalog access configuration.
type CatalogConfig struct {
	Driver      string `yaml:"driver" default:"rest" validate:"oneof=rest postgres"`
	DSN         string `yaml:"dsn" validate:"required_if=Driver postgres"`
	CacheTTLSec int    `yaml:"cache_ttl_sec" default:"300" validate:"gte=0,lte=86400"`
}

// RedisConfig represents the catalog cache. Caching is off when Addr is empty.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

// PlayerConfig represents player and widget configuration.
type PlayerConfig struct {
	PollIntervalMs int          `yaml:"poll_interval_ms" default:"1000" validate:"gte=100,lte=10000"`
	DefaultVolume  float64      `yaml:"default_volume" default:"0.5" validate:"gte=0,lte=1"`
	SessionFile    string       `yaml:"session_file" default:".melodify-session.json"`
	Widget         WidgetConfig `yaml:"widget"`
}

// WidgetConfig selects the widget implementation.
type WidgetConfig struct {
	Type     string         `yaml:"type" default:"clock" validate:"oneof=clock mpv"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// ControlConfig represents the player control API.
type ControlConfig struct {
	Addr  string `yaml:"addr" default:":8080"`
	Token string `yaml:"token" validate:"required"`
}

// PaymentsConfig represents the checkout endpoints.
type PaymentsConfig struct {
	Addr               string `yaml:"addr" default:":8090"`
	StripeSecretKey    string `yaml:"stripe_secret_key"`
	WebhookSecret      string `yaml:"webhook_secret"`
	Currency           string `yaml:"currency" default:"usd" validate:"len=3"`
	ProductDescription string `yaml:"product_description" default:"Premium Tamil song"`
	AllowedOrigin      string `yaml:"allowed_origin" default:"*"`
	SiteURL            string `yaml:"site_url" validate:"omitempty,url"` // Used when a request has no Origin
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// SpotifyConfig represents Spotify API credentials used by catalog import.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// LastFMConfig represents Last.fm API credentials used by catalog import.
type LastFMConfig struct {
	APIKey string `yaml:"api_key"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	env := []struct {
		name   string
		target *string
	}{
		{"SUPABASE_URL", &c.Supabase.URL},
		{"SUPABASE_ANON_KEY", &c.Supabase.AnonKey},
		{"SUPABASE_SERVICE_ROLE_KEY", &c.Supabase.ServiceRoleKey},
		{"SUPABASE_JWT_SECRET", &c.Supabase.JWTSecret},
		{"DATABASE_URL", &c.Catalog.DSN},
		{"REDIS_ADDR", &c.Redis.Addr},
		{"REDIS_PASSWORD", &c.Redis.Password},
		{"CONTROL_TOKEN", &c.Control.Token},
		{"STRIPE_SECRET_KEY", &c.Payments.StripeSecretKey},
		{"STRIPE_WEBHOOK_SECRET", &c.Payments.WebhookSecret},
		{"SPOTIFY_CLIENT_ID", &c.Spotify.ClientID},
		{"SPOTIFY_CLIENT_SECRET", &c.Spotify.ClientSecret},
		{"LASTFM_API_KEY", &c.LastFM.APIKey},
	}
	for _, e := range env {
		if v := os.Getenv(e.name); v != "" {
			*e.target = v
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// ValidatePayments checks the settings the payment endpoints need on top
// of Validate.
func (c *Config) ValidatePayments() error {
	if c.Payments.StripeSecretKey == "" {
		return errors.New("payments.stripe_secret_key is required")
	}
	if c.Supabase.ServiceRoleKey == "" && c.Catalog.Driver == "rest" {
		return errors.New("supabase.service_role_key is required to record purchases")
	}
	return nil
}

// PollInterval returns the widget progress poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Player.PollIntervalMs) * time.Millisecond
}

// CacheTTL returns the catalog cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Catalog.CacheTTLSec) * time.Second
}

// CacheEnabled reports whether the Redis catalog cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.Redis.Addr != "" && c.Catalog.CacheTTLSec > 0
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// FilterSettings returns the settings for a filter.
func (c *Config) FilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}
