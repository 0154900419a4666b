// Package settings reads server settings from defaults, an optional config
// file and AUTOTRACK_ environment variables, in increasing precedence.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. AUTOTRACK_SERVER_PORT.
const EnvPrefix = "AUTOTRACK"

// Settings is the resolved server configuration.
type Settings struct {
	Server   ServerSettings  `mapstructure:"server"`
	Sim      SimSettings     `mapstructure:"sim"`
	Layouts  DirSettings     `mapstructure:"layouts"`
	Sessions SessionSettings `mapstructure:"sessions"`
	Store    StoreSettings   `mapstructure:"store"`
	Log      LogSettings     `mapstructure:"log"`
	Ngrok    NgrokSettings   `mapstructure:"ngrok"`
}

type ServerSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr is the listen address.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type SimSettings struct {
	TickRate  int  `mapstructure:"tickRate"`
	AutoStart bool `mapstructure:"autoStart"`
}

type DirSettings struct {
	Dir string `mapstructure:"dir"`
}

type SessionSettings struct {
	Dir        string        `mapstructure:"dir"`
	MaxIdle    time.Duration `mapstructure:"maxIdle"`
	PruneEvery time.Duration `mapstructure:"pruneEvery"`
}

type StoreSettings struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type NgrokSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Domain  string `mapstructure:"domain"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)

	v.SetDefault("sim.tickRate", 60)
	v.SetDefault("sim.autoStart", false)

	v.SetDefault("layouts.dir", "layouts")

	v.SetDefault("sessions.dir", "data/sessions")
	v.SetDefault("sessions.maxIdle", "24h")
	v.SetDefault("sessions.pruneEvery", "1h")

	v.SetDefault("store.type", "file")
	v.SetDefault("store.path", "data/tracks.json")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("ngrok.enabled", false)
	v.SetDefault("ngrok.domain", "")
}

// New returns a viper instance with defaults and environment overrides. A
// non-empty configFile must exist; otherwise autotrack.{json,yaml,toml} in
// the working directory is read when present.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		return v, nil
	}

	v.SetConfigName("autotrack")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}

// Decode resolves v into Settings and checks the values.
func Decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error decoding settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load is New followed by Decode.
func Load(configFile string) (*Settings, error) {
	v, err := New(configFile)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate checks ranges and enumerations.
func (s *Settings) Validate() error {
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", s.Server.Port)
	}
	if s.Sim.TickRate < 1 || s.Sim.TickRate > 1000 {
		return fmt.Errorf("sim.tickRate must be between 1 and 1000, got %d", s.Sim.TickRate)
	}
	switch s.Store.Type {
	case "file", "sqlite":
	default:
		return fmt.Errorf("store.type must be file or sqlite, got %q", s.Store.Type)
	}
	if s.Sessions.MaxIdle <= 0 || s.Sessions.PruneEvery <= 0 {
		return fmt.Errorf("sessions.maxIdle and sessions.pruneEvery must be positive")
	}
	return nil
}
