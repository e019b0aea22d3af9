// Package config provides Viper-based configuration loading for the
// session server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the WebSocket listener settings.
type ServerConfig struct {
	// Host is the bind address for the WebSocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the WebSocket listener.
	Port int `mapstructure:"port"`
	// WriteTimeout is the per-write deadline on client connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PingInterval is how often liveness pings are sent to clients.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// SendBuffer is the per-session outbox capacity in messages.
	SendBuffer int `mapstructure:"send_buffer"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TwitchConfig holds the chat-bridge settings. OAuth, Nick, and Channel are
// optional startup credentials: when all three are set, a bridge bot is
// spawned for Channel at boot.
type TwitchConfig struct {
	// Addr is the IRC endpoint to dial.
	Addr string `mapstructure:"addr"`
	// OAuth is the bot's oauth token.
	OAuth string `mapstructure:"oauth"`
	// Nick is the bot's IRC nickname.
	Nick string `mapstructure:"nick"`
	// Channel is the channel to monitor at startup.
	Channel string `mapstructure:"channel"`
}

// SpawnAtStartup reports whether startup credentials are fully configured.
func (t TwitchConfig) SpawnAtStartup() bool {
	return t.OAuth != "" && t.Nick != "" && t.Channel != ""
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Twitch  TwitchConfig  `mapstructure:"twitch"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error
// describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateTwitch(c.Twitch); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if s.PingInterval < 0 {
		errs = append(errs, "server.ping_interval must not be negative")
	}
	if s.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("server.send_buffer must be >= 1, got %d", s.SendBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTwitch(t TwitchConfig) error {
	var errs []string
	if t.Addr == "" {
		errs = append(errs, "twitch.addr must not be empty")
	}
	partial := t.OAuth != "" || t.Nick != "" || t.Channel != ""
	if partial && !t.SpawnAtStartup() {
		errs = append(errs, "twitch startup credentials require oauth, nick, and channel together")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with GUESSIO_ prefix
	v.SetEnvPrefix("GUESSIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9001)
	v.SetDefault("server.write_timeout", "5s")
	v.SetDefault("server.ping_interval", "30s")
	v.SetDefault("server.send_buffer", 64)

	v.SetDefault("twitch.addr", "irc.chat.twitch.tv:6667")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
