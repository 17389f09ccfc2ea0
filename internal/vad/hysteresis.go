package vad

// State is the speech classification of a stream at a point in time.
type State int

const (
	StateNonSpeech State = iota
	StateSpeech
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateNonSpeech:
		return "non_speech"
	case StateSpeech:
		return "speech"
	default:
		return "unknown"
	}
}

// Transition identifies a state change produced by a window.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionStart
	TransitionEnd
)

// Step is the outcome of advancing the machine by one window.
type Step struct {
	Transition  Transition
	TimestampMS float64

	// SpeechStartMS is the timestamp of the start transition that opened
	// the current (or just-ended) speech run.
	SpeechStartMS float64

	// Valid is set on end transitions whose speech run met the minimum
	// speech duration. Invalid ends discard the run without a segment.
	Valid bool
}

// Machine is the dual-threshold hysteresis state machine. Probabilities above
// the positive threshold open (or sustain) speech, probabilities below the
// negative threshold accumulate silence, and the band between the two is a
// dead zone in which nothing changes. Speech ends once accumulated silence
// reaches the configured minimum.
//
// The machine cycles between the two states for the life of the session;
// there is no terminal state.
type Machine struct {
	positive     float32
	negative     float32
	minSilenceMS float64
	minSpeechMS  float64

	state         State
	speechStartMS float64
	silenceMS     float64
}

// NewMachine creates a machine in StateNonSpeech. The config is assumed
// validated by the Detector.
func NewMachine(cfg Config) *Machine {
	m := &Machine{}
	m.applyConfig(cfg)
	return m
}

// applyConfig installs new thresholds without touching the current state or
// accumulated silence.
func (m *Machine) applyConfig(cfg Config) {
	m.positive = cfg.PositiveThreshold
	m.negative = cfg.NegativeThreshold
	m.minSilenceMS = cfg.MinSilenceDurationMS
	m.minSpeechMS = cfg.MinSpeechDurationMS
}

// Advance feeds one window probability with its caller timestamp and window
// duration, returning the resulting transition (if any).
func (m *Machine) Advance(probability float32, timestampMS, windowMS float64) Step {
	switch m.state {
	case StateNonSpeech:
		if probability > m.positive {
			m.state = StateSpeech
			m.speechStartMS = timestampMS
			m.silenceMS = 0
			return Step{
				Transition:    TransitionStart,
				TimestampMS:   timestampMS,
				SpeechStartMS: timestampMS,
			}
		}

	case StateSpeech:
		switch {
		case probability >= m.positive:
			m.silenceMS = 0
		case probability < m.negative:
			m.silenceMS += windowMS
		}
		// Dead zone: neither branch taken, accumulator untouched.

		if m.silenceMS >= m.minSilenceMS {
			return m.endAt(timestampMS)
		}
	}

	return Step{TimestampMS: timestampMS}
}

// ForceEnd ends the current speech run immediately, as on a stream flush.
// Returns false when the machine is not in speech.
func (m *Machine) ForceEnd(timestampMS float64) (Step, bool) {
	if m.state != StateSpeech {
		return Step{}, false
	}
	return m.endAt(timestampMS), true
}

func (m *Machine) endAt(timestampMS float64) Step {
	start := m.speechStartMS
	m.state = StateNonSpeech
	m.silenceMS = 0

	return Step{
		Transition:    TransitionEnd,
		TimestampMS:   timestampMS,
		SpeechStartMS: start,
		Valid:         timestampMS-start >= m.minSpeechMS,
	}
}

// State returns the current speech state.
func (m *Machine) State() State {
	return m.state
}

// SilenceMS returns the accumulated silence while in speech.
func (m *Machine) SilenceMS() float64 {
	return m.silenceMS
}

// Reset returns the machine to StateNonSpeech and clears all accumulators.
func (m *Machine) Reset() {
	m.state = StateNonSpeech
	m.speechStartMS = 0
	m.silenceMS = 0
}
