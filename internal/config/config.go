package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

// DefaultAdminPassphrase is the passphrase the app ships with.
const DefaultAdminPassphrase = "مووین ۲۳۸۸"

// Config holds the configuration for the Movin server and its dependencies.
type Config struct {
	// Listen is the address the Movin server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// LogLevel is the default log level. The --log-level flag takes precedence.
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	// SessionKey is the key used to sign the browser session cookie.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// SessionMaxAge is the maximum age of a session in seconds.
	SessionMaxAge int `yaml:"session_max_age" mapstructure:"session_max_age"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Cache holds the cache engine configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// Admin holds the admin panel configuration.
	Admin *AdminConfig `yaml:"admin" mapstructure:"admin"`
	// Gemini holds the configuration of the generative AI service.
	Gemini *GeminiConfig `yaml:"gemini" mapstructure:"gemini"`
	// Video holds the configuration of the video job tracking.
	Video *VideoConfig `yaml:"video" mapstructure:"video"`
	// Sentry holds the error reporting configuration. Reporting is disabled if nil.
	Sentry *SentryConfig `yaml:"sentry" mapstructure:"sentry"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Path is the path to the database file.
	Path string `yaml:"path" mapstructure:"path"`
}

// CacheConfig holds the cache engine configuration.
type CacheConfig struct {
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the URL for the Redis cache if using Redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
}

// AdminConfig holds the admin panel configuration.
type AdminConfig struct {
	// Passphrase unlocks the admin panel. Whitespace runs are collapsed before comparison.
	Passphrase string `yaml:"passphrase" mapstructure:"passphrase"`
}

// GeminiConfig holds the configuration of the generative AI service.
type GeminiConfig struct {
	// APIKey is the Gemini API key.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// ImageModel edits interior photos.
	ImageModel string `yaml:"image_model" mapstructure:"image_model"`
	// ChatModel answers design questions.
	ChatModel string `yaml:"chat_model" mapstructure:"chat_model"`
	// VideoModel animates interior photos.
	VideoModel string `yaml:"video_model" mapstructure:"video_model"`
	// ThemeModel suggests branding colors for the admin panel.
	ThemeModel string `yaml:"theme_model" mapstructure:"theme_model"`
	// RequestsPerMinute limits the calls to the service. Zero disables the limit.
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	// Burst is the number of calls allowed at once.
	Burst int `yaml:"burst" mapstructure:"burst"`
	// RequestTimeout bounds a single image edit or chat call.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	// MaxImageDimension is the longest side uploaded images are scaled down to.
	MaxImageDimension int `yaml:"max_image_dimension" mapstructure:"max_image_dimension"`
}

// VideoConfig holds the configuration of the video job tracking.
type VideoConfig struct {
	// PollInterval is how often pending video jobs are checked.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	// JobTTL is how long finished jobs stay retrievable.
	JobTTL time.Duration `yaml:"job_ttl" mapstructure:"job_ttl"`
}

// SentryConfig holds the error reporting configuration.
type SentryConfig struct {
	// DSN is the Sentry project DSN.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
	// Environment is reported with every event.
	Environment string `yaml:"environment" mapstructure:"environment"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
// If no config file is found, defaults and environment variables are used.
func Load(path string) (*Config, error) {
	v := viper.New()

	// bind some weirdly unsupported nested env vars
	bindNestedEnv(v)

	// Set default values
	setDefaults(v)

	// Configure Viper
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MOVIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		// Use specific config file
		v.SetConfigFile(path)
	} else {
		// Search for config in common locations
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.movin")
		v.AddConfigPath("/etc/movin")
	}

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		// If no config file is found, use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Environment variables with the MOVIN_ prefix override config file values")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "127.0.0.1:3002")
	v.SetDefault("log_level", "info")
	v.SetDefault("session_key", "")
	v.SetDefault("session_max_age", 2592000) // 30 days

	// Database defaults
	v.SetDefault("database.path", "./data/movin.db")

	// Cache defaults
	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")

	// Admin defaults
	v.SetDefault("admin.passphrase", DefaultAdminPassphrase)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.image_model", "gemini-2.5-flash-image")
	v.SetDefault("gemini.chat_model", "gemini-3-flash-preview")
	v.SetDefault("gemini.video_model", "veo-3.1-fast-generate-preview")
	v.SetDefault("gemini.theme_model", "gemini-3-flash-preview")
	v.SetDefault("gemini.requests_per_minute", 30)
	v.SetDefault("gemini.burst", 5)
	v.SetDefault("gemini.request_timeout", 2*time.Minute)
	v.SetDefault("gemini.max_image_dimension", 1536)

	// Video defaults
	v.SetDefault("video.poll_interval", 5*time.Second)
	v.SetDefault("video.job_ttl", 24*time.Hour)
}

// the auto env function from viper only works for nested structs, if the struct to which a value binds isn't nil.
// Sentry has no defaults on purpose, so its env vars are bound manually.
func bindNestedEnv(v *viper.Viper) {
	v.MustBindEnv("sentry.dsn", "MOVIN_SENTRY_DSN")
	v.MustBindEnv("sentry.environment", "MOVIN_SENTRY_ENVIRONMENT")
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing movin config")
	}

	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("session max age must be greater than 0")
	}

	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Cache != nil {
		switch c.Cache.Type {
		case CacheTypeMemory:
		case CacheTypeRedis:
			if c.Cache.RedisURL == "" {
				return fmt.Errorf("Redis URL is required when Redis cache is enabled") //nolint:staticcheck
			}
		default:
			return fmt.Errorf("unknown cache type %q", c.Cache.Type)
		}
	} else {
		c.Cache = &CacheConfig{
			Type: CacheTypeMemory,
		}
	}

	if c.Admin == nil || strings.TrimSpace(c.Admin.Passphrase) == "" {
		return fmt.Errorf("admin passphrase is required")
	}

	if c.Gemini == nil {
		return fmt.Errorf("missing gemini config")
	}
	if c.Gemini.RequestsPerMinute < 0 {
		return fmt.Errorf("gemini requests per minute must not be negative")
	}
	if c.Gemini.RequestsPerMinute > 0 && c.Gemini.Burst <= 0 {
		return fmt.Errorf("gemini burst must be greater than 0 when rate limiting is enabled")
	}
	if c.Gemini.RequestTimeout <= 0 {
		return fmt.Errorf("gemini request timeout must be greater than 0")
	}
	if c.Gemini.MaxImageDimension <= 0 {
		return fmt.Errorf("gemini max image dimension must be greater than 0")
	}

	if c.Video == nil {
		return fmt.Errorf("missing video config")
	}
	if c.Video.PollInterval <= 0 {
		return fmt.Errorf("video poll interval must be greater than 0")
	}
	if c.Video.JobTTL <= 0 {
		return fmt.Errorf("video job ttl must be greater than 0")
	}

	if c.Sentry != nil && c.Sentry.DSN == "" {
		c.Sentry = nil
	}

	return nil
}

// ValidateServe checks the settings only the server needs.
func (c *Config) ValidateServe() error {
	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini API key is required")
	}
	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = strings.TrimSpace(c.Listen)
	c.SessionKey = strings.TrimSpace(c.SessionKey)

	if c.Cache != nil {
		c.Cache.Type = CacheType(strings.ToLower(strings.TrimSpace(string(c.Cache.Type))))
		c.Cache.RedisURL = strings.TrimSpace(c.Cache.RedisURL)
	}

	if c.Gemini != nil {
		c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	}

	if c.Sentry != nil {
		c.Sentry.DSN = strings.TrimSpace(c.Sentry.DSN)
	}
}
