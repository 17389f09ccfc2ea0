package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pantheon-lab/realtime-audio-sdk/internal/vad"
)

// Config represents the complete service configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	HTTP    HTTPConfig    `yaml:"http"`
	Audio   AudioConfig   `yaml:"audio"`
	VAD     VADConfig     `yaml:"vad"`
	Sink    SinkConfig    `yaml:"sink"`
	Forward ForwardConfig `yaml:"forward"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains UDP ingest server configuration
type ServerConfig struct {
	UDPPort              int    `yaml:"udp_port"`
	BindAddress          string `yaml:"bind_address"`
	BufferSize           int    `yaml:"buffer_size"`
	MaxConcurrentStreams int    `yaml:"max_concurrent_streams"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// AudioConfig contains audio stream parameters
type AudioConfig struct {
	SampleRate    int `yaml:"sample_rate"`
	Channels      int `yaml:"channels"`
	BitDepth      int `yaml:"bit_depth"`
	StreamTimeout int `yaml:"stream_timeout"` // seconds
	MaxGap        int `yaml:"max_gap"`        // packets to wait before declaring loss
}

// VADConfig contains voice activity detection configuration
type VADConfig struct {
	WindowSize          int     `yaml:"window_size"`           // samples
	PositiveThreshold   float32 `yaml:"positive_threshold"`
	NegativeThreshold   float32 `yaml:"negative_threshold"`
	MinSpeechDuration   float64 `yaml:"min_speech_duration"`   // seconds
	MinSilenceDuration  float64 `yaml:"min_silence_duration"`  // seconds
	PreRollDuration     float64 `yaml:"pre_roll_duration"`     // seconds
	MaxBufferedDuration float64 `yaml:"max_buffered_duration"` // seconds
}

// SinkConfig contains segment WAV archival configuration
type SinkConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
}

// ForwardConfig contains downstream segment forwarding configuration
type ForwardConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with sensible defaults for a 16 kHz mono
// deployment, used when no config file is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			UDPPort:              9999,
			BindAddress:          "0.0.0.0",
			BufferSize:           65536,
			MaxConcurrentStreams: 100,
		},
		HTTP: HTTPConfig{
			Port:    8080,
			Address: "0.0.0.0",
			Enabled: true,
		},
		Audio: AudioConfig{
			SampleRate:    16000,
			Channels:      1,
			BitDepth:      16,
			StreamTimeout: 60,
			MaxGap:        20,
		},
		VAD: VADConfig{
			WindowSize:          512,
			PositiveThreshold:   vad.DefaultPositiveThreshold,
			NegativeThreshold:   vad.DefaultNegativeThreshold,
			MinSpeechDuration:   vad.DefaultMinSpeechDurationMS / 1000,
			MinSilenceDuration:  vad.DefaultMinSilenceDurationMS / 1000,
			PreRollDuration:     vad.DefaultPreRollDurationMS / 1000,
			MaxBufferedDuration: vad.DefaultMaxBufferedDurationMS / 1000,
		},
		Sink: SinkConfig{
			Enabled:   false,
			Directory: "segments",
		},
		Forward: ForwardConfig{
			Enabled:       false,
			Timeout:       30,
			MaxRetries:    3,
			MaxConcurrent: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(c.Audio.SampleRate); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Sink.Validate(); err != nil {
		return fmt.Errorf("sink config: %w", err)
	}

	if err := c.Forward.Validate(); err != nil {
		return fmt.Errorf("forward config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.UDPPort < 1 || s.UDPPort > 65535 {
		return fmt.Errorf("udp_port must be between 1 and 65535, got %d", s.UDPPort)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.BufferSize < 1024 {
		return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", s.BufferSize)
	}

	if s.MaxConcurrentStreams < 1 {
		return fmt.Errorf("max_concurrent_streams must be at least 1, got %d", s.MaxConcurrentStreams)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	if a.StreamTimeout < 1 {
		return fmt.Errorf("stream_timeout must be at least 1 second, got %d", a.StreamTimeout)
	}

	if a.MaxGap < 1 {
		return fmt.Errorf("max_gap must be at least 1 packet, got %d", a.MaxGap)
	}

	return nil
}

// Validate validates VAD configuration. The detector config derived from this
// section carries the full cross-field checks; this delegates to them.
func (v *VADConfig) Validate(sampleRate int) error {
	if v.WindowSize < 256 || v.WindowSize > 2048 {
		return fmt.Errorf("window_size must be between 256 and 2048 samples, got %d", v.WindowSize)
	}

	detectorCfg := v.DetectorConfig(sampleRate)
	if err := detectorCfg.Validate(); err != nil {
		return err
	}

	return nil
}

// Validate validates sink configuration
func (s *SinkConfig) Validate() error {
	if s.Enabled && s.Directory == "" {
		return fmt.Errorf("directory cannot be empty when sink is enabled")
	}

	return nil
}

// Validate validates forwarding configuration
func (f *ForwardConfig) Validate() error {
	if !f.Enabled {
		return nil
	}

	if f.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty when forwarding is enabled")
	}

	if f.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", f.Timeout)
	}

	if f.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", f.MaxRetries)
	}

	if f.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", f.MaxConcurrent)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output accepts stdout, stderr, or a file path.

	return nil
}

// DetectorConfig builds the per-stream detector configuration from the VAD
// section.
func (v *VADConfig) DetectorConfig(sampleRate int) vad.Config {
	return vad.Config{
		SampleRate:            sampleRate,
		PositiveThreshold:     v.PositiveThreshold,
		NegativeThreshold:     v.NegativeThreshold,
		MinSpeechDurationMS:   v.MinSpeechDuration * 1000,
		MinSilenceDurationMS:  v.MinSilenceDuration * 1000,
		PreRollDurationMS:     v.PreRollDuration * 1000,
		MaxBufferedDurationMS: v.MaxBufferedDuration * 1000,
	}
}

// GetStreamTimeoutDuration returns the stream timeout as a time.Duration
func (a *AudioConfig) GetStreamTimeoutDuration() time.Duration {
	return time.Duration(a.StreamTimeout) * time.Second
}

// GetTimeoutDuration returns the forwarding timeout as a time.Duration
func (f *ForwardConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(f.Timeout) * time.Second
}
