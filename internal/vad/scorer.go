package vad

import (
	"context"
	"fmt"
	"math"
)

// RecurrentState is the opaque memory a Scorer carries between calls. It is
// owned by the caller, handed back on every Score call, and replaced (never
// mutated in place) by the returned value.
type RecurrentState any

// Scorer assigns a speech probability to a single fixed-size window of audio
// samples. Implementations may run out of process; a failed call must leave
// the passed-in state usable for the next attempt.
type Scorer interface {
	// WindowSize returns the exact number of samples Score expects.
	WindowSize() int

	// InitialState returns the defined zero state for a fresh stream.
	InitialState() RecurrentState

	// Score returns a probability in [0,1] and the replacement state.
	Score(ctx context.Context, window []float32, state RecurrentState) (float32, RecurrentState, error)
}

// energyState carries the previous smoothed probability between windows.
type energyState struct {
	prev   float32
	primed bool
}

// EnergyScorer is the reference Scorer: RMS energy mapped to a probability
// with light exponential smoothing. It exists for tests and for deployments
// without a model backend; accuracy is far below a trained model.
type EnergyScorer struct {
	windowSize int
	smoothing  float32
	reference  float32
}

// NewEnergyScorer creates an energy-based scorer for windows of windowSize
// samples in the nominal [-1,1] range.
func NewEnergyScorer(windowSize int) (*EnergyScorer, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}

	return &EnergyScorer{
		windowSize: windowSize,
		smoothing:  0.1,
		reference:  0.1, // RMS level mapped to probability 1.0
	}, nil
}

// WindowSize returns the expected window length in samples.
func (s *EnergyScorer) WindowSize() int {
	return s.windowSize
}

// InitialState returns the zero state for a new stream.
func (s *EnergyScorer) InitialState() RecurrentState {
	return energyState{}
}

// Score computes the smoothed RMS-energy probability for one window.
func (s *EnergyScorer) Score(_ context.Context, window []float32, state RecurrentState) (float32, RecurrentState, error) {
	if len(window) != s.windowSize {
		return 0, state, fmt.Errorf("expected %d samples, got %d", s.windowSize, len(window))
	}

	prev, ok := state.(energyState)
	if !ok {
		return 0, state, fmt.Errorf("unexpected state type %T", state)
	}

	var energy float64
	for _, sample := range window {
		energy += float64(sample) * float64(sample)
	}
	rms := math.Sqrt(energy / float64(len(window)))

	probability := float32(rms) / s.reference
	if probability > 1 {
		probability = 1
	}

	if prev.primed {
		probability = s.smoothing*probability + (1-s.smoothing)*prev.prev
	}

	return probability, energyState{prev: probability, primed: true}, nil
}
