// Package config loads the readaloud configuration from the config file,
// .env files and READALOUD_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/speech"
	"github.com/dgnsrekt/readaloud/readaloud"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "READALOUD_"

// Config contains all readaloud configuration options.
type Config struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level" env:"LOG_LEVEL"`

	Playback PlaybackConfig `yaml:"playback" mapstructure:"playback" envPrefix:"PLAYBACK_"`
	Speech   speech.Config  `yaml:"speech" mapstructure:"speech" envPrefix:"SPEECH_"`
	Audio    AudioConfig    `yaml:"audio" mapstructure:"audio" envPrefix:"AUDIO_"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache" envPrefix:"CACHE_"`
	Remote   RemoteConfig   `yaml:"remote" mapstructure:"remote" envPrefix:"REMOTE_"`
}

// PlaybackConfig holds the user preferences of a session. Zero values are
// unset and fall back to the document metadata, then to the defaults.
type PlaybackConfig struct {
	Language         string            `yaml:"language" mapstructure:"language" env:"LANGUAGE"`
	Speed            float64           `yaml:"speed" mapstructure:"speed" env:"SPEED"`
	Pitch            float64           `yaml:"pitch" mapstructure:"pitch" env:"PITCH"`
	Voices           map[string]string `yaml:"voices" mapstructure:"voices" env:"VOICES"`
	SkippableRoles   []string          `yaml:"skippable_roles" mapstructure:"skippable_roles" env:"SKIPPABLE_ROLES"`
	EscapableRoles   []string          `yaml:"escapable_roles" mapstructure:"escapable_roles" env:"ESCAPABLE_ROLES"`
	ReadContinuously *bool             `yaml:"read_continuously" mapstructure:"read_continuously" env:"READ_CONTINUOUSLY"`
	AutoPlay         bool              `yaml:"auto_play" mapstructure:"auto_play" env:"AUTO_PLAY"`
}

// AudioConfig configures the output device.
type AudioConfig struct {
	SampleRate int     `yaml:"sample_rate" mapstructure:"sample_rate" env:"SAMPLE_RATE"`
	Channels   int     `yaml:"channels" mapstructure:"channels" env:"CHANNELS"`
	BufferSize int     `yaml:"buffer_size" mapstructure:"buffer_size" env:"BUFFER_SIZE"`
	Volume     float64 `yaml:"volume" mapstructure:"volume" env:"VOLUME"`
	// Discard drops audio instead of opening a device.
	Discard bool `yaml:"discard" mapstructure:"discard" env:"DISCARD"`
}

// CacheConfig enables and sizes the synthesis cache.
type CacheConfig struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled" env:"ENABLED"`
	cache.Config `yaml:",inline" mapstructure:",squash"`
}

// RemoteConfig configures the remote control server.
type RemoteConfig struct {
	// Listen is the address to serve on. Empty disables the server.
	Listen         string   `yaml:"listen" mapstructure:"listen" env:"LISTEN"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins" env:"ALLOWED_ORIGINS"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	player := audio.DefaultPlayerConfig()
	return Config{
		LogLevel: "info",
		Speech: speech.Config{
			Engine:   "mock",
			MaxChars: 1000,
			Piper: speech.PiperConfig{
				Binary:  "piper",
				Timeout: 30 * time.Second,
			},
			GTTS: speech.GTTSConfig{
				Binary:            "gtts-cli",
				RequestsPerMinute: 50,
				Timeout:           30 * time.Second,
			},
		},
		Audio: AudioConfig{
			SampleRate: player.SampleRate,
			Channels:   player.Channels,
			BufferSize: player.BufferSize,
			Volume:     1.0,
		},
		Cache: CacheConfig{
			Enabled: true,
			Config:  cache.DefaultConfig(),
		},
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	switch c.Speech.Engine {
	case "piper", "gtts", "google", "mock", "":
	default:
		return fmt.Errorf("speech: %w: %q", speech.ErrUnknownEngine, c.Speech.Engine)
	}
	if c.Speech.MaxChars < 0 {
		return errors.New("speech: max_chars must not be negative")
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := c.Cache.Config.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate checks the ranges and the language tags.
func (c PlaybackConfig) Validate() error {
	if c.Speed < 0 || c.Speed > 4 {
		return fmt.Errorf("speed must be between 0 and 4, got %.2f", c.Speed)
	}
	if c.Pitch < 0 || c.Pitch > 4 {
		return fmt.Errorf("pitch must be between 0 and 4, got %.2f", c.Pitch)
	}
	_, err := c.Preferences()
	return err
}

// Preferences converts c into navigator preferences.
func (c PlaybackConfig) Preferences() (readaloud.Preferences, error) {
	var p readaloud.Preferences

	if c.Language != "" {
		tag, err := language.Parse(c.Language)
		if err != nil {
			return p, fmt.Errorf("invalid language %q: %w", c.Language, err)
		}
		p.Language = &tag
	}
	if c.Speed > 0 {
		speed := c.Speed
		p.Speed = &speed
	}
	if c.Pitch > 0 {
		pitch := c.Pitch
		p.Pitch = &pitch
	}
	if len(c.Voices) > 0 {
		p.Voices = make(map[language.Tag]string, len(c.Voices))
		for lang, voice := range c.Voices {
			tag, err := language.Parse(lang)
			if err != nil {
				return p, fmt.Errorf("invalid voice language %q: %w", lang, err)
			}
			p.Voices[tag] = voice
		}
	}
	p.SkippableRoles = roleSet(c.SkippableRoles)
	p.EscapableRoles = roleSet(c.EscapableRoles)
	p.ReadContinuously = c.ReadContinuously
	return p, nil
}

func roleSet(names []string) guided.RoleSet {
	if names == nil {
		return nil
	}
	roles := make([]guided.Role, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			roles = append(roles, guided.Role(name))
		}
	}
	return guided.NewRoleSet(roles...)
}

// Validate checks the device settings. A discarding device accepts any format.
func (c AudioConfig) Validate() error {
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("volume must be between 0 and 1, got %.2f", c.Volume)
	}
	if c.Discard {
		return nil
	}
	return c.Player().Validate()
}

// Player returns the oto player configuration.
func (c AudioConfig) Player() audio.PlayerConfig {
	p := audio.DefaultPlayerConfig()
	p.SampleRate = c.SampleRate
	p.Channels = c.Channels
	p.BufferSize = c.BufferSize
	return p
}

// Load builds the configuration from v, then applies READALOUD_ environment
// variables. Keys missing from v keep their defaults.
func Load(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile reads the config file at path.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Load(v)
}

// LoadEnvFiles loads .env files into the process environment. Missing files
// are ignored and variables already set are kept.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		err := godotenv.Load(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		log.Debug("loaded env file", "path", path)
	}
	return nil
}
