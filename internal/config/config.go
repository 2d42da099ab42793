package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Slskd       SlskdConfig       `mapstructure:"slskd"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Beets       BeetsConfig       `mapstructure:"beets"`
	MusicBrainz MusicBrainzConfig `mapstructure:"musicbrainz"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SlskdConfig holds the download gateway connection settings.
type SlskdConfig struct {
	URL          string `mapstructure:"url"`
	APIKey       string `mapstructure:"api_key"`
	DownloadRoot string `mapstructure:"download_root"`
}

// RateLimitConfig bounds how many searches the gateway accepts per
// sliding window.
type RateLimitConfig struct {
	MaxSearches   int `mapstructure:"max_searches"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// BeetsConfig holds the import tool settings.
type BeetsConfig struct {
	ConfigPath string `mapstructure:"config_path"`
	TargetDir  string `mapstructure:"target_dir"`
	AlbumMode  bool   `mapstructure:"album_mode"`
}

// MusicBrainzConfig holds the metadata provider settings.
type MusicBrainzConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
	Timeout   int    `mapstructure:"timeout"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Database: DatabaseConfig{
			Path: "./data/soulbridge.db",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "console",
			Path:     "./logs",
			Compress: true,
		},
		Slskd: SlskdConfig{
			URL:          "http://localhost:5030",
			DownloadRoot: "./downloads",
		},
		RateLimit: RateLimitConfig{
			MaxSearches:   35,
			WindowSeconds: 220,
		},
		Beets: BeetsConfig{
			ConfigPath: "./configs/beets.yaml",
			TargetDir:  "./music",
			AlbumMode:  true,
		},
		MusicBrainz: MusicBrainzConfig{
			BaseURL:   "https://musicbrainz.org/ws/2",
			UserAgent: "Soulbridge/1.0 (https://github.com/soulbridge/soulbridge)",
			Timeout:   15,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.soulbridge")
	}

	// Environment variable settings
	v.SetEnvPrefix("SOULBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	// Unmarshal into struct
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Slskd.APIKey == "" {
		cfg.Slskd.APIKey = EmbeddedSlskdKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings the application cannot run without.
func (c *Config) Validate() error {
	if c.Slskd.URL == "" {
		return fmt.Errorf("slskd.url is required")
	}
	parsed, err := url.Parse(c.Slskd.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("slskd.url %q is not a valid URL", c.Slskd.URL)
	}
	if c.RateLimit.MaxSearches <= 0 {
		return fmt.Errorf("rate_limit.max_searches must be positive")
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate_limit.window_seconds must be positive")
	}
	return nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)

	// Database defaults
	v.SetDefault("database.path", "./data/soulbridge.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "./logs")
	v.SetDefault("logging.compress", true)

	// Gateway defaults
	v.SetDefault("slskd.url", "http://localhost:5030")
	v.SetDefault("slskd.api_key", "")
	v.SetDefault("slskd.download_root", "./downloads")

	// Rate limit defaults
	v.SetDefault("rate_limit.max_searches", 35)
	v.SetDefault("rate_limit.window_seconds", 220)

	// Import defaults
	v.SetDefault("beets.config_path", "./configs/beets.yaml")
	v.SetDefault("beets.target_dir", "./music")
	v.SetDefault("beets.album_mode", true)

	// Metadata defaults
	v.SetDefault("musicbrainz.base_url", "https://musicbrainz.org/ws/2")
	v.SetDefault("musicbrainz.user_agent", "Soulbridge/1.0 (https://github.com/soulbridge/soulbridge)")
	v.SetDefault("musicbrainz.timeout", 15)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
