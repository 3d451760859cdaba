package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Audio   AudioConfig   `yaml:"audio"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	// StreamURL is the duplex websocket endpoint, e.g. ws://localhost:8000/ws.
	StreamURL string `yaml:"stream_url"`
	// FallbackURL is the base of the upload and history endpoints. Empty
	// disables the non-streaming mode.
	FallbackURL          string        `yaml:"fallback_url"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts uint64        `yaml:"max_reconnect_attempts"`
}

type AudioConfig struct {
	CaptureFrameSize    int           `yaml:"capture_frame_size"`
	BargeInThreshold    float64       `yaml:"barge_in_threshold"`
	AnalysisWindow      int           `yaml:"analysis_window"`
	SamplingInterval    time.Duration `yaml:"sampling_interval"`
	ContinuousListening bool          `yaml:"continuous_listening"`
	ArchiveDir          string        `yaml:"archive_dir"`
}

type SessionConfig struct {
	File string `yaml:"file"`
	// ID pins the session id instead of resuming the stored one.
	ID string `yaml:"id"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads the YAML file at path, expanding ${VAR} references from the
// environment. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.StreamURL == "" && cfg.Server.FallbackURL == "" {
		cfg.Server.StreamURL = "ws://localhost:8000/ws"
	}
	if cfg.Server.ReconnectDelay == 0 {
		cfg.Server.ReconnectDelay = 3 * time.Second
	}

	if cfg.Audio.CaptureFrameSize == 0 {
		cfg.Audio.CaptureFrameSize = 4096
	}
	if cfg.Audio.BargeInThreshold == 0 {
		cfg.Audio.BargeInThreshold = 15
	}
	if cfg.Audio.AnalysisWindow == 0 {
		cfg.Audio.AnalysisWindow = 256
	}
	if cfg.Audio.SamplingInterval == 0 {
		cfg.Audio.SamplingInterval = 16 * time.Millisecond
	}

	if cfg.Session.File == "" {
		cfg.Session.File = filepath.Join(defaultStateDir(), "session")
	}

	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(defaultStateDir(), "ema-voice.log")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}
}

func (c *Config) Validate() error {
	if c.Audio.CaptureFrameSize < 0 || c.Audio.AnalysisWindow < 0 {
		return errors.New("audio sizes must be positive")
	}
	if c.Audio.BargeInThreshold < 0 {
		return errors.New("barge-in threshold must not be negative")
	}
	if _, err := parseSeverity(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ema-voice")
	}
	return ".ema-voice"
}
