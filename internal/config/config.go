package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Consent  ConsentConfig  `yaml:"consent"`
	Pixel    PixelConfig    `yaml:"pixel"`
	Webhooks WebhookConfig  `yaml:"webhooks"`
	Lead     LeadConfig     `yaml:"lead"`
	Phone    PhoneConfig    `yaml:"phone"`
	Debug    bool           `yaml:"debug"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RedisConfig holds the consent-store connection settings.
type RedisConfig struct {
	URL  string `yaml:"url"`
	Addr string `yaml:"addr"`
}

// ConsentConfig holds consent persistence and prompt behavior settings.
type ConsentConfig struct {
	// KeyPrefix is the storage key prefix for per-visitor decisions.
	KeyPrefix string `yaml:"key_prefix"`
	// PolicyVersion tags stored decisions so a future policy change can
	// force a re-prompt.
	PolicyVersion string `yaml:"policy_version"`
	// CookiePagePath marks the policy page where the prompt is never
	// shown automatically.
	CookiePagePath string `yaml:"cookie_page_path"`
	// MeasurementID is the analytics measurement identifier sent with the
	// config call after an accept.
	MeasurementID string `yaml:"measurement_id"`
}

// PixelConfig holds the advertising pixel settings.
type PixelConfig struct {
	ID      string `yaml:"id"`
	BaseURL string `yaml:"base_url"`
}

// WebhookConfig holds the outbound relay endpoints.
type WebhookConfig struct {
	ConversionsURL  string `yaml:"conversions_url"`
	IVACaptureURL   string `yaml:"iva_capture_url"`
	GeneralQueryURL string `yaml:"general_query_url"`
}

// LeadConfig holds the lead submission settings.
type LeadConfig struct {
	// EndpointURL is the backend that receives the enriched lead payload.
	EndpointURL string `yaml:"endpoint_url"`
	// ContactEmail is named in the user-facing error message when a
	// submission fails.
	ContactEmail string `yaml:"contact_email"`
	// ContentCategory/ContentName label the Lead tracking event.
	ContentCategory string `yaml:"content_category"`
	ContentName     string `yaml:"content_name"`
}

// PhoneConfig holds the national normalization rule. Single fixed country;
// multi-country support is deliberately out of scope.
type PhoneConfig struct {
	CountryCode string `yaml:"country_code"`
	TrunkPrefix string `yaml:"trunk_prefix"`
}

// Load loads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
// A missing config file is not an error: env vars plus defaults are enough
// to run.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg *Config
	if _, err := os.Stat(path); err == nil {
		cfg, err = Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = &Config{}
		cfg.applyDefaults()
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("META_PIXEL_ID"); v != "" {
		cfg.Pixel.ID = v
	}
	if v := os.Getenv("GA_MEASUREMENT_ID"); v != "" {
		cfg.Consent.MeasurementID = v
	}
	if v := os.Getenv("CAPI_WEBHOOK_URL"); v != "" {
		cfg.Webhooks.ConversionsURL = v
	}
	if v := os.Getenv("IVA_CAPTURE_WEBHOOK_URL"); v != "" {
		cfg.Webhooks.IVACaptureURL = v
	}
	if v := os.Getenv("GENERAL_QUERY_WEBHOOK_URL"); v != "" {
		cfg.Webhooks.GeneralQueryURL = v
	}
	if v := os.Getenv("LEAD_ENDPOINT_URL"); v != "" {
		cfg.Lead.EndpointURL = v
	}
	if v := os.Getenv("CAPTURE_DEBUG"); v != "" {
		cfg.Debug = v == "true" || v == "1"
	}

	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Consent.KeyPrefix == "" {
		cfg.Consent.KeyPrefix = "vlm_consent"
	}
	if cfg.Consent.PolicyVersion == "" {
		cfg.Consent.PolicyVersion = "2025-08-15"
	}
	if cfg.Consent.CookiePagePath == "" {
		cfg.Consent.CookiePagePath = "/cookies/"
	}
	if cfg.Consent.MeasurementID == "" {
		cfg.Consent.MeasurementID = "G-P36T39LW3D"
	}
	if cfg.Pixel.BaseURL == "" {
		cfg.Pixel.BaseURL = "https://www.facebook.com"
	}
	if cfg.Lead.ContactEmail == "" {
		cfg.Lead.ContactEmail = "support@visiblelegal.co.uk"
	}
	if cfg.Lead.ContentCategory == "" {
		cfg.Lead.ContentCategory = "IVA"
	}
	if cfg.Lead.ContentName == "" {
		cfg.Lead.ContentName = "IVA Claim Submission"
	}
	if cfg.Phone.CountryCode == "" {
		cfg.Phone.CountryCode = "44"
	}
	if cfg.Phone.TrunkPrefix == "" {
		cfg.Phone.TrunkPrefix = "0"
	}
}
