package vad

import "fmt"

// Default detection parameters, tuned for 16 kHz conversational speech.
const (
	DefaultPositiveThreshold     = 0.30
	DefaultNegativeThreshold     = 0.25
	DefaultMinSilenceDurationMS  = 1400.0
	DefaultMinSpeechDurationMS   = 400.0
	DefaultPreRollDurationMS     = 800.0
	DefaultMaxBufferedDurationMS = 120000.0
)

// Config contains the tunable parameters of a Detector.
type Config struct {
	SampleRate int

	// Hysteresis thresholds. A window probability above PositiveThreshold
	// enters speech; below NegativeThreshold it counts toward silence.
	// Probabilities between the two change nothing.
	PositiveThreshold float32
	NegativeThreshold float32

	MinSilenceDurationMS float64
	MinSpeechDurationMS  float64
	PreRollDurationMS    float64

	// MaxBufferedDurationMS soft-caps audio retained during a speech run.
	// Once exceeded, the oldest buffered audio is dropped with a warning
	// event instead of growing without bound.
	MaxBufferedDurationMS float64
}

// DefaultConfig returns the documented default configuration for the given
// sample rate.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate:            sampleRate,
		PositiveThreshold:     DefaultPositiveThreshold,
		NegativeThreshold:     DefaultNegativeThreshold,
		MinSilenceDurationMS:  DefaultMinSilenceDurationMS,
		MinSpeechDurationMS:   DefaultMinSpeechDurationMS,
		PreRollDurationMS:     DefaultPreRollDurationMS,
		MaxBufferedDurationMS: DefaultMaxBufferedDurationMS,
	}
}

// Validate checks the configuration invariants. A Detector is never
// constructed from an invalid configuration.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}

	if c.PositiveThreshold < 0 || c.PositiveThreshold > 1 {
		return fmt.Errorf("positive threshold must be between 0 and 1, got %f", c.PositiveThreshold)
	}

	if c.NegativeThreshold < 0 || c.NegativeThreshold > 1 {
		return fmt.Errorf("negative threshold must be between 0 and 1, got %f", c.NegativeThreshold)
	}

	// Equal thresholds would collapse the hysteresis dead zone.
	if c.NegativeThreshold >= c.PositiveThreshold {
		return fmt.Errorf("negative threshold (%f) must be below positive threshold (%f)",
			c.NegativeThreshold, c.PositiveThreshold)
	}

	if c.MinSilenceDurationMS <= 0 {
		return fmt.Errorf("min silence duration must be positive, got %f", c.MinSilenceDurationMS)
	}

	if c.MinSpeechDurationMS <= 0 {
		return fmt.Errorf("min speech duration must be positive, got %f", c.MinSpeechDurationMS)
	}

	if c.PreRollDurationMS < 0 {
		return fmt.Errorf("pre-roll duration cannot be negative, got %f", c.PreRollDurationMS)
	}

	if c.MaxBufferedDurationMS <= c.PreRollDurationMS {
		return fmt.Errorf("max buffered duration (%f) must exceed pre-roll duration (%f)",
			c.MaxBufferedDurationMS, c.PreRollDurationMS)
	}

	return nil
}

// ConfigUpdate is a partial configuration change. Nil fields keep their
// current value. Sample rate is fixed for the life of a detector.
type ConfigUpdate struct {
	PositiveThreshold     *float32 `json:"positive_threshold,omitempty"`
	NegativeThreshold     *float32 `json:"negative_threshold,omitempty"`
	MinSilenceDurationMS  *float64 `json:"min_silence_duration_ms,omitempty"`
	MinSpeechDurationMS   *float64 `json:"min_speech_duration_ms,omitempty"`
	PreRollDurationMS     *float64 `json:"pre_roll_duration_ms,omitempty"`
	MaxBufferedDurationMS *float64 `json:"max_buffered_duration_ms,omitempty"`
}

// merge applies the update on top of the receiver and returns the result.
func (c Config) merge(u ConfigUpdate) Config {
	if u.PositiveThreshold != nil {
		c.PositiveThreshold = *u.PositiveThreshold
	}
	if u.NegativeThreshold != nil {
		c.NegativeThreshold = *u.NegativeThreshold
	}
	if u.MinSilenceDurationMS != nil {
		c.MinSilenceDurationMS = *u.MinSilenceDurationMS
	}
	if u.MinSpeechDurationMS != nil {
		c.MinSpeechDurationMS = *u.MinSpeechDurationMS
	}
	if u.PreRollDurationMS != nil {
		c.PreRollDurationMS = *u.PreRollDurationMS
	}
	if u.MaxBufferedDurationMS != nil {
		c.MaxBufferedDurationMS = *u.MaxBufferedDurationMS
	}
	return c
}
