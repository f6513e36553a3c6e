// Package config loads critvid settings from an optional YAML file and
// CRITVID_* environment variables, on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Shofol/CritVid-sub002/internal/drawing"
	"github.com/Shofol/CritVid-sub002/internal/player"
	"github.com/Shofol/CritVid-sub002/internal/store"
	"github.com/Shofol/CritVid-sub002/internal/studio"
)

// Keys.
const (
	StoreBackend          = "store.backend"
	StorePath             = "store.path"
	RedisAddr             = "redis.addr"
	RedisPrefix           = "redis.prefix"
	RedisTTL              = "redis.ttl"
	PlayerSocket          = "player.socket"
	AudioDual             = "audio.dual"
	AudioSampleRate       = "audio.sample_rate"
	DrawingColor          = "drawing.color"
	DrawingWidth          = "drawing.width"
	DrawingDuration       = "drawing.duration"
	ReplayDriftTolerance  = "replay.drift_tolerance"
	ReplayHardDrift       = "replay.hard_drift"
	ReplayDesyncWarnAfter = "replay.desync_warn_after"
	ReplayStrictTransport = "replay.strict_transport"
	LogLevel              = "log.level"
	LogFile               = "log.file"
	MetricsAddr           = "metrics.addr"
)

const envPrefix = "critvid"

type Config struct {
	Store   StoreConfig
	Redis   RedisConfig
	Player  PlayerConfig
	Audio   AudioConfig
	Drawing DrawingConfig
	Replay  ReplayConfig
	Log     LogConfig
	Metrics MetricsConfig

	// File is the config file that was read, empty if none.
	File string
}

type StoreConfig struct {
	Backend string
	Path    string
}

type RedisConfig struct {
	Addr   string
	Prefix string
	TTL    time.Duration
}

type PlayerConfig struct {
	Socket string
}

type AudioConfig struct {
	Dual       bool
	SampleRate int
}

type DrawingConfig struct {
	Color    string
	Width    float64
	Duration float64 // seconds
}

type ReplayConfig struct {
	DriftTolerance  time.Duration
	HardDrift       time.Duration
	DesyncWarnAfter int
	StrictTransport bool
}

type LogConfig struct {
	Level string
	File  string
}

type MetricsConfig struct {
	Addr string
}

// DefaultFile returns $XDG_CONFIG_HOME/critvid/config.yaml or its platform
// equivalent.
func DefaultFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "critvid", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(StoreBackend, "sqlite")
	v.SetDefault(StorePath, store.DefaultDBPath())
	v.SetDefault(RedisAddr, "localhost:6379")
	v.SetDefault(RedisPrefix, "critvid")
	v.SetDefault(RedisTTL, time.Duration(0))
	v.SetDefault(PlayerSocket, player.SocketPath())
	v.SetDefault(AudioDual, false)
	v.SetDefault(AudioSampleRate, 16000)
	v.SetDefault(DrawingColor, drawing.DefaultColor)
	v.SetDefault(DrawingWidth, drawing.DefaultWidth)
	v.SetDefault(DrawingDuration, drawing.DefaultDuration)
	v.SetDefault(ReplayDriftTolerance, 100*time.Millisecond)
	v.SetDefault(ReplayHardDrift, 300*time.Millisecond)
	v.SetDefault(ReplayDesyncWarnAfter, 3)
	v.SetDefault(ReplayStrictTransport, false)
	v.SetDefault(LogLevel, "info")
	v.SetDefault(LogFile, "")
	v.SetDefault(MetricsAddr, "")
}

// Load reads path, or DefaultFile when path is empty. A missing default file
// is not an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix) // will be uppercased automatically
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := path
	if file == "" {
		file = DefaultFile()
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			file = ""
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := fromViper(v)
	cfg.File = file
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in settings, ignoring files and environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Store: StoreConfig{
			Backend: v.GetString(StoreBackend),
			Path:    v.GetString(StorePath),
		},
		Redis: RedisConfig{
			Addr:   v.GetString(RedisAddr),
			Prefix: v.GetString(RedisPrefix),
			TTL:    v.GetDuration(RedisTTL),
		},
		Player: PlayerConfig{Socket: v.GetString(PlayerSocket)},
		Audio: AudioConfig{
			Dual:       v.GetBool(AudioDual),
			SampleRate: v.GetInt(AudioSampleRate),
		},
		Drawing: DrawingConfig{
			Color:    v.GetString(DrawingColor),
			Width:    v.GetFloat64(DrawingWidth),
			Duration: v.GetFloat64(DrawingDuration),
		},
		Replay: ReplayConfig{
			DriftTolerance:  v.GetDuration(ReplayDriftTolerance),
			HardDrift:       v.GetDuration(ReplayHardDrift),
			DesyncWarnAfter: v.GetInt(ReplayDesyncWarnAfter),
			StrictTransport: v.GetBool(ReplayStrictTransport),
		},
		Log: LogConfig{
			Level: v.GetString(LogLevel),
			File:  v.GetString(LogFile),
		},
		Metrics: MetricsConfig{Addr: v.GetString(MetricsAddr)},
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("%s: unknown backend %q", StoreBackend, c.Store.Backend)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("%s must be positive, got %d", AudioSampleRate, c.Audio.SampleRate)
	}
	if c.Drawing.Width <= 0 {
		return fmt.Errorf("%s must be positive, got %v", DrawingWidth, c.Drawing.Width)
	}
	if c.Drawing.Duration <= 0 {
		return fmt.Errorf("%s must be positive, got %v", DrawingDuration, c.Drawing.Duration)
	}
	if c.Replay.DriftTolerance <= 0 || c.Replay.HardDrift < c.Replay.DriftTolerance {
		return fmt.Errorf("%s (%s) must be positive and not above %s (%s)",
			ReplayDriftTolerance, c.Replay.DriftTolerance, ReplayHardDrift, c.Replay.HardDrift)
	}
	if c.Replay.DesyncWarnAfter < 1 {
		return fmt.Errorf("%s must be at least 1", ReplayDesyncWarnAfter)
	}
	return nil
}

// StoreOptions maps the store and redis sections onto store.Options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:     c.Store.Backend,
		Path:        c.Store.Path,
		RedisAddr:   c.Redis.Addr,
		RedisPrefix: c.Redis.Prefix,
		RedisTTL:    c.Redis.TTL,
	}
}

// DrawingEngine maps the drawing section onto the engine's settings.
func (c *Config) DrawingEngine() drawing.Config {
	return drawing.Config{
		Color:    c.Drawing.Color,
		Width:    c.Drawing.Width,
		Duration: c.Drawing.Duration,
	}
}

// Studio maps the replay section onto the synchronizer's settings.
func (c *Config) Studio() studio.Config {
	return studio.Config{
		DriftTolerance:  c.Replay.DriftTolerance,
		HardDrift:       c.Replay.HardDrift,
		DesyncWarnAfter: c.Replay.DesyncWarnAfter,
		StrictTransport: c.Replay.StrictTransport,
	}
}
