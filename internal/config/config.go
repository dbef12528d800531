package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr               string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat          string        `mapstructure:"log_format" yaml:"log_format" validate:"oneof=console json"`
	DatabasePath       string        `mapstructure:"database_path" yaml:"database_path" validate:"required"`
	Room               string        `mapstructure:"room" yaml:"room" validate:"required,max=64"`
	ClientBuffer       int           `mapstructure:"client_buffer" yaml:"client_buffer" validate:"gte=1"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes" validate:"gte=1024"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute" validate:"gte=0"`
	AllowPlainIdentity bool          `mapstructure:"allow_plain_identity" yaml:"allow_plain_identity"`

	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	JWT       JWTConfig       `mapstructure:"jwt" yaml:"jwt"`
	Commands  CommandsConfig  `mapstructure:"commands" yaml:"commands"`
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
}

// HistoryConfig selects the chat event backend.
type HistoryConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend" validate:"oneof=sqlite badger"`
	BadgerPath  string `mapstructure:"badger_path" yaml:"badger_path"` // empty keeps badger in memory
	ReplayLimit int    `mapstructure:"replay_limit" yaml:"replay_limit" validate:"gte=1,lte=500"`
}

// JWTConfig configures join tokens.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret" validate:"required,min=8"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gt=0"`
}

// CommandsConfig tunes "@command" execution.
type CommandsConfig struct {
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	Workers             int           `mapstructure:"workers" yaml:"workers" validate:"gte=1"`
	MovieParserTemplate string        `mapstructure:"movie_parser_template" yaml:"movie_parser_template" validate:"required"`
}

// ProvidersConfig holds the upstream APIs behind the commands.
// An empty key or base URL disables the remote provider.
type ProvidersConfig struct {
	AI      AIProviderConfig      `mapstructure:"ai" yaml:"ai"`
	Weather WeatherProviderConfig `mapstructure:"weather" yaml:"weather"`
	News    NewsProviderConfig    `mapstructure:"news" yaml:"news"`
	Music   MusicProviderConfig   `mapstructure:"music" yaml:"music"`
}

type AIProviderConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Model   string        `mapstructure:"model" yaml:"model"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

type WeatherProviderConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
}

type NewsProviderConfig struct {
	BaseURL  string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	PageSize int    `mapstructure:"page_size" yaml:"page_size" validate:"gte=1,lte=20"`
}

type MusicProviderConfig struct {
	BaseURL     string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	SearchLimit int    `mapstructure:"search_limit" yaml:"search_limit" validate:"gte=1,lte=50"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		DatabasePath:       "wireroom.db",
		Room:               "lobby",
		ClientBuffer:       64,
		MaxMessageBytes:    64 << 10,
		RateLimitPerMinute: 60,
		AllowPlainIdentity: true,
		History: HistoryConfig{
			Backend:     "sqlite",
			ReplayLimit: 50,
		},
		JWT: JWTConfig{
			Secret:   "change-me-in-production",
			Issuer:   "wireroom",
			Audience: "wireroom",
			TTL:      24 * time.Hour,
		},
		Commands: CommandsConfig{
			Timeout:             10 * time.Second,
			Workers:             8,
			MovieParserTemplate: "https://jx.m3u8.tv/jiexi/?url={url}",
		},
		Providers: ProvidersConfig{
			AI:      AIProviderConfig{Model: "gpt-3.5-turbo", Timeout: 8 * time.Second},
			Weather: WeatherProviderConfig{BaseURL: "https://api.openweathermap.org"},
			News:    NewsProviderConfig{BaseURL: "https://newsapi.org", PageSize: 5},
			Music:   MusicProviderConfig{SearchLimit: 10},
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Only the keys exposed as command-line flags are considered.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}
