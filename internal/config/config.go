package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config stores runtime configuration assembled from defaults, an optional
// YAML file and environment variables.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	OpenAI   OpenAIConfig   `koanf:"openai"`
	Twilio   TwilioConfig   `koanf:"twilio"`
	CalDAV   CalDAVConfig   `koanf:"caldav"`
	Calendar CalendarConfig `koanf:"calendar"`
	Sync     SyncConfig     `koanf:"sync"`
	Digest   DigestConfig   `koanf:"digest"`
	Auth     AuthConfig     `koanf:"auth"`
	Timezone string         `koanf:"timezone"`

	LocalTimezone *time.Location `koanf:"-"`
}

type ServerConfig struct {
	Port string `koanf:"port"`
}

type DatabaseConfig struct {
	URL        string `koanf:"url"`
	SQLitePath string `koanf:"sqlite_path"`
}

type OpenAIConfig struct {
	APIKey    string `koanf:"api_key"`
	Model     string `koanf:"model"`
	MaxTokens int    `koanf:"max_tokens"`
}

type TwilioConfig struct {
	AccountSID     string `koanf:"account_sid"`
	AuthToken      string `koanf:"auth_token"`
	WhatsAppNumber string `koanf:"whatsapp_number"`
	NotifyTo       string `koanf:"notify_to"`
}

type CalDAVConfig struct {
	URL      string `koanf:"url"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// CalendarConfig describes the application calendar kept in the device store.
type CalendarConfig struct {
	Title    string `koanf:"title"`
	Color    string `koanf:"color"`
	Platform string `koanf:"platform"`
}

type SyncConfig struct {
	Interval   string `koanf:"interval"`
	WindowDays int    `koanf:"window_days"`
}

type DigestConfig struct {
	Schedule string `koanf:"schedule"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

// envKeys maps the conventional environment variable names onto config keys.
var envKeys = map[string]string{
	"PORT":                   "server.port",
	"DATABASE_URL":           "database.url",
	"SQLITE_PATH":            "database.sqlite_path",
	"OPENAI_API_KEY":         "openai.api_key",
	"OPENAI_MODEL":           "openai.model",
	"TWILIO_ACCOUNT_SID":     "twilio.account_sid",
	"TWILIO_AUTH_TOKEN":      "twilio.auth_token",
	"TWILIO_WHATSAPP_NUMBER": "twilio.whatsapp_number",
	"TWILIO_NOTIFY_TO":       "twilio.notify_to",
	"CALDAV_URL":             "caldav.url",
	"CALDAV_USERNAME":        "caldav.username",
	"CALDAV_PASSWORD":        "caldav.password",
	"CALENDAR_PLATFORM":      "calendar.platform",
	"JWT_SECRET":             "auth.jwt_secret",
	"LOCAL_TIMEZONE":         "timezone",
}

// Load reads configuration values and prepares defaults where applicable.
// A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	for name, key := range envKeys {
		if value := os.Getenv(name); value != "" {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("set %s: %w", key, err)
			}
		}
	}

	// MEMORYMATE_SYNC__WINDOW_DAYS -> sync.window_days
	if err := k.Load(env.Provider("MEMORYMATE_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "MEMORYMATE_")
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("config: invalid timezone %q, defaulting to system local: %v", cfg.Timezone, err)
		location = time.Local
	}
	cfg.LocalTimezone = location

	return &cfg, nil
}

// Validate reports settings that would make the service unusable.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if strings.TrimSpace(c.Calendar.Title) == "" {
		return fmt.Errorf("calendar title is required")
	}
	switch c.Calendar.Platform {
	case "ios", "android", "web":
	default:
		return fmt.Errorf("unknown calendar platform %q (supported: ios, android, web)", c.Calendar.Platform)
	}
	if c.Sync.WindowDays <= 0 {
		return fmt.Errorf("sync window_days must be positive")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token_ttl must be positive")
	}
	return nil
}

// CalDAVConfigured reports whether credentials for the calendar account are present.
func (c *Config) CalDAVConfigured() bool {
	return c.CalDAV.Username != "" && c.CalDAV.Password != ""
}
