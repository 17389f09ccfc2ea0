package vad

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// EventType identifies a detection event.
type EventType int

const (
	EventSpeechStart EventType = iota
	EventSpeechEnd
	EventSegment
	EventScorerError
	EventAudioDropped
)

// String returns a human-readable event type name.
func (t EventType) String() string {
	switch t {
	case EventSpeechStart:
		return "speech_start"
	case EventSpeechEnd:
		return "speech_end"
	case EventSegment:
		return "speech_segment"
	case EventScorerError:
		return "scorer_error"
	case EventAudioDropped:
		return "audio_dropped"
	default:
		return "unknown"
	}
}

// Event is a detection event delivered synchronously, in order, from inside
// Process or Flush.
type Event struct {
	Type        EventType
	TimestampMS float64
	Probability float32

	// DurationMS is set on speech-end events that are followed by a segment.
	DurationMS float64

	// DroppedSamples is set on audio-dropped warnings.
	DroppedSamples int

	// Segment is set on segment events only.
	Segment *Segment

	// Err is set on scorer-error events only.
	Err error
}

// Segment is one assembled speech segment, pre-roll included. The audio is
// owned by the segment; the detector retains no reference after emission.
//
// DurationMS is derived from the sample count, not from timestamp
// subtraction: StartTime and EndTime come from caller-supplied timestamps,
// which may drift from the nominal sample rate.
type Segment struct {
	ID                 string    `json:"id"`
	StartTime          float64   `json:"start_time_ms"`
	EndTime            float64   `json:"end_time_ms"`
	DurationMS         float64   `json:"duration_ms"`
	Samples            []float32 `json:"-"`
	SampleRate         int       `json:"sample_rate"`
	AverageProbability float32   `json:"average_probability"`
	Confidence         float32   `json:"confidence"`
}

// Result is the immediate per-chunk feedback returned by Process.
type Result struct {
	IsSpeech    bool
	Probability float32
}

// Handler receives detection events.
type Handler func(Event)

// DetectorStats is a snapshot of detector counters for monitoring.
type DetectorStats struct {
	State           string `json:"state"`
	WindowsScored   uint64 `json:"windows_scored"`
	ScorerErrors    uint64 `json:"scorer_errors"`
	SegmentsEmitted uint64 `json:"segments_emitted"`
	SamplesDropped  uint64 `json:"samples_dropped"`
	BufferedSamples int    `json:"buffered_samples"`
	PendingSamples  int    `json:"pending_samples"`
}

// Detector is the per-stream controller: it aligns incoming chunks into
// scoring windows, drives the hysteresis machine with the resulting
// probabilities, and assembles pre-roll-padded segments on speech end.
//
// A Detector serves exactly one logical stream and is not safe for concurrent
// use: Process, Flush, Reset and UpdateConfig must not overlap. Callers
// needing multiple streams create one Detector per stream.
type Detector struct {
	cfg     Config
	scorer  Scorer
	handler Handler

	aligner  *FrameAligner
	machine  *Machine
	arena    *Arena
	state    RecurrentState
	windowMS float64

	lastProbability float32
	lastTimestampMS float64
	probSum         float64
	probCount       int
	closed          bool

	windowsScored   uint64
	scorerErrors    uint64
	segmentsEmitted uint64
	samplesDropped  uint64
}

// New creates a detector. The handler may be nil when only the Result return
// values are of interest. Configuration errors are fatal: no detector is
// created.
func New(cfg Config, scorer Scorer, handler Handler) (*Detector, error) {
	if scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}

	aligner, err := NewFrameAligner(scorer.WindowSize())
	if err != nil {
		return nil, fmt.Errorf("failed to create frame aligner: %w", err)
	}

	return &Detector{
		cfg:      cfg,
		scorer:   scorer,
		handler:  handler,
		aligner:  aligner,
		machine:  NewMachine(cfg),
		arena:    NewArena(cfg.SampleRate, cfg.PreRollDurationMS, cfg.MaxBufferedDurationMS),
		state:    scorer.InitialState(),
		windowMS: float64(scorer.WindowSize()) / float64(cfg.SampleRate) * 1000,
	}, nil
}

// Process feeds one chunk of samples with its caller-supplied millisecond
// timestamp. Windows derived from the chunk are scored in order; any
// transitions fire events through the handler before Process returns. The
// returned Result reflects the state after the chunk.
func (d *Detector) Process(ctx context.Context, chunk []float32, timestampMS float64) (Result, error) {
	if d.closed {
		return Result{}, fmt.Errorf("detector is closed")
	}

	if dropped := d.arena.Append(chunk); dropped > 0 {
		d.samplesDropped += uint64(dropped)
		d.emit(Event{Type: EventAudioDropped, TimestampMS: timestampMS, DroppedSamples: dropped})
	}
	d.lastTimestampMS = timestampMS

	for _, window := range d.aligner.Push(chunk) {
		probability, next, err := d.scorer.Score(ctx, window, d.state)
		if err != nil {
			// Recoverable: hold the previous probability and state so a
			// failed call never corrupts the scorer's recurrent memory.
			d.scorerErrors++
			d.emit(Event{Type: EventScorerError, TimestampMS: timestampMS, Err: err})
			continue
		}

		d.state = next
		d.lastProbability = probability
		d.windowsScored++

		step := d.machine.Advance(probability, timestampMS, d.windowMS)
		switch step.Transition {
		case TransitionStart:
			d.probSum = float64(probability)
			d.probCount = 1
			d.arena.Mark()
			d.emit(Event{Type: EventSpeechStart, TimestampMS: timestampMS, Probability: probability})

		case TransitionEnd:
			d.finishRun(step, probability)

		default:
			if d.machine.State() == StateSpeech {
				d.probSum += float64(probability)
				d.probCount++
			}
		}
	}

	return Result{
		IsSpeech:    d.machine.State() == StateSpeech,
		Probability: d.lastProbability,
	}, nil
}

// Flush forces an end transition when the stream is currently in speech, so a
// stream ending mid-utterance does not silently drop its final segment. A
// timestamp <= 0 means "use the last timestamp seen by Process". Flushing
// while in non-speech is a no-op, which also makes repeated flushes harmless.
func (d *Detector) Flush(timestampMS float64) {
	if d.closed {
		return
	}

	if timestampMS <= 0 {
		timestampMS = d.lastTimestampMS
	}

	if step, ok := d.machine.ForceEnd(timestampMS); ok {
		d.finishRun(step, d.lastProbability)
	}
}

// Reset discards all buffered audio, the recurrent state, and any in-progress
// speech run (without emitting it), returning the detector to its freshly
// constructed behavior. Callers wanting the tail segment call Flush first.
func (d *Detector) Reset() {
	d.aligner.Reset()
	d.machine.Reset()
	d.arena.Reset()
	d.state = d.scorer.InitialState()
	d.lastProbability = 0
	d.lastTimestampMS = 0
	d.probSum = 0
	d.probCount = 0
}

// Close resets the detector and rejects further Process calls. Any unflushed
// segment is discarded.
func (d *Detector) Close() {
	if d.closed {
		return
	}
	d.Reset()
	d.closed = true
}

// UpdateConfig merges a partial configuration change without resetting
// buffers or the current speech state. The merged configuration is validated
// before anything is applied.
func (d *Detector) UpdateConfig(update ConfigUpdate) error {
	merged := d.cfg.merge(update)
	if err := merged.Validate(); err != nil {
		return fmt.Errorf("invalid config update: %w", err)
	}

	d.cfg = merged
	d.machine.applyConfig(merged)
	d.arena.SetLimits(merged.PreRollDurationMS, merged.MaxBufferedDurationMS)
	return nil
}

// Config returns the current configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// State returns the current speech state.
func (d *Detector) State() State {
	return d.machine.State()
}

// Stats returns a snapshot of the detector counters.
func (d *Detector) Stats() DetectorStats {
	return DetectorStats{
		State:           d.machine.State().String(),
		WindowsScored:   d.windowsScored,
		ScorerErrors:    d.scorerErrors,
		SegmentsEmitted: d.segmentsEmitted,
		SamplesDropped:  d.samplesDropped,
		BufferedSamples: d.arena.Buffered(),
		PendingSamples:  d.aligner.Pending(),
	}
}

// finishRun handles an end transition: emits the segment when the run met the
// minimum speech duration, then trims the arena back to pre-roll depth.
func (d *Detector) finishRun(step Step, probability float32) {
	if step.Valid {
		samples := d.arena.Assemble()
		durationMS := float64(len(samples)) / float64(d.cfg.SampleRate) * 1000

		average := probability
		if d.probCount > 0 {
			average = float32(d.probSum / float64(d.probCount))
		}

		segment := &Segment{
			ID:                 uuid.NewString(),
			StartTime:          step.SpeechStartMS,
			EndTime:            step.TimestampMS,
			DurationMS:         durationMS,
			Samples:            samples,
			SampleRate:         d.cfg.SampleRate,
			AverageProbability: average,
			Confidence:         confidenceFor(average),
		}
		d.segmentsEmitted++

		d.emit(Event{
			Type:        EventSpeechEnd,
			TimestampMS: step.TimestampMS,
			Probability: probability,
			DurationMS:  durationMS,
		})
		d.emit(Event{
			Type:        EventSegment,
			TimestampMS: step.TimestampMS,
			Probability: average,
			Segment:     segment,
		})
	} else {
		// Speech blip below the minimum duration: end event only.
		d.emit(Event{Type: EventSpeechEnd, TimestampMS: step.TimestampMS, Probability: probability})
	}

	d.arena.Release()
	d.probSum = 0
	d.probCount = 0
}

func (d *Detector) emit(event Event) {
	if d.handler != nil {
		d.handler(event)
	}
}

// confidenceFor maps an average probability to a segment confidence via a
// fixed step function.
func confidenceFor(average float32) float32 {
	switch {
	case average > 0.9:
		return 1.0
	case average > 0.7:
		return 0.9
	case average > 0.5:
		return 0.8
	default:
		return average
	}
}
