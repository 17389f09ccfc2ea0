package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pantheon-lab/realtime-audio-sdk/internal/audio"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/forward"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/vad"
)

// Session is one active audio stream: a reorder buffer feeding a detector.
// Packet processing is serialized by the session mutex; detection events fire
// synchronously inside PushPacket while the lock is held.
type Session struct {
	ID           uint32
	Label        string
	SampleRate   int
	StartTime    time.Time
	LastActivity time.Time

	detector *vad.Detector
	reorder  *audio.ReorderBuffer
	manager  *Manager

	// lastTimestampMS is the stream clock of the most recent packet, used
	// when finalizing so the tail flush keeps the real stream timeline.
	lastTimestampMS float64

	finalized bool

	mu sync.Mutex
}

// SessionInfo represents session information for monitoring and APIs
type SessionInfo struct {
	StreamID     uint32        `json:"stream_id"`
	Label        string        `json:"label"`
	SampleRate   int           `json:"sample_rate"`
	StartTime    time.Time     `json:"start_time"`
	LastActivity time.Time     `json:"last_activity"`
	Duration     time.Duration `json:"duration"`
	State        string        `json:"state"`

	Detector vad.DetectorStats  `json:"detector"`
	Reorder  audio.ReorderStats `json:"reorder"`
}

// PushPacket feeds one sequenced audio packet into the session. Data is
// little-endian PCM-16; timestampMS is the sender's stream clock for the
// first sample of the packet.
func (s *Session) PushPacket(ctx context.Context, sequence uint32, timestampMS float64, data []byte) error {
	samples, err := audio.Int16BytesToFloat32(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return nil
	}
	s.LastActivity = time.Now()
	if timestampMS > s.lastTimestampMS {
		s.lastTimestampMS = timestampMS
	}

	lostBefore := s.reorder.Stats().LostPackets
	chunks, err := s.reorder.Push(sequence, samples)
	if err != nil {
		// Duplicates are dropped, not fatal.
		s.manager.logger.Debug("Dropped packet",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.String("reason", err.Error()),
		)
		return nil
	}

	if lost := s.reorder.Stats().LostPackets - lostBefore; lost > 0 {
		s.manager.logger.Warn("Packet loss detected",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.Uint64("lost", uint64(lost)),
		)
		if s.manager.metrics != nil {
			s.manager.metrics.RecordPacketsLost(int(lost))
		}
	}

	for _, chunk := range chunks {
		windowsBefore := s.detector.Stats().WindowsScored
		if _, err := s.detector.Process(ctx, chunk, timestampMS); err != nil {
			return err
		}
		if s.manager.metrics != nil {
			s.manager.metrics.RecordWindowsScored(int(s.detector.Stats().WindowsScored - windowsBefore))
		}
	}

	return nil
}

// Info returns a snapshot of the session for monitoring.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SessionInfo{
		StreamID:     s.ID,
		Label:        s.Label,
		SampleRate:   s.SampleRate,
		StartTime:    s.StartTime,
		LastActivity: s.LastActivity,
		Duration:     time.Since(s.StartTime),
		State:        s.detector.State().String(),
		Detector:     s.detector.Stats(),
		Reorder:      s.reorder.Stats(),
	}
}

// UpdateDetectorConfig applies a partial detector configuration change to
// this session without disturbing buffered audio.
func (s *Session) UpdateDetectorConfig(update vad.ConfigUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detector.UpdateConfig(update)
}

// finalize drains the reorder buffer, flushes the in-progress utterance so
// the tail segment is emitted, and closes the detector. Idempotent.
func (s *Session) finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return
	}

	for _, chunk := range s.reorder.Flush() {
		if _, err := s.detector.Process(context.Background(), chunk, s.lastTimestampMS); err != nil {
			break
		}
	}
	s.detector.Flush(s.lastTimestampMS)
	s.detector.Close()
	s.finalized = true
}

// handleEvent consumes detection events: logs transitions, updates metrics,
// and hands finished segments to the sink and the forwarder.
func (s *Session) handleEvent(event vad.Event) {
	logger := s.manager.logger
	m := s.manager.metrics

	switch event.Type {
	case vad.EventSpeechStart:
		logger.Info("Speech started",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.Float64("timestamp_ms", event.TimestampMS),
			slog.Float64("probability", float64(event.Probability)),
		)
		if m != nil {
			m.RecordSpeechStart()
		}

	case vad.EventSpeechEnd:
		logger.Info("Speech ended",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.Float64("timestamp_ms", event.TimestampMS),
			slog.Float64("duration_ms", event.DurationMS),
		)

	case vad.EventSegment:
		s.handleSegment(event.Segment)

	case vad.EventScorerError:
		logger.Error("Scorer failure, holding previous state",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.Float64("timestamp_ms", event.TimestampMS),
			slog.String("error", event.Err.Error()),
		)
		if m != nil {
			m.RecordScorerError()
		}

	case vad.EventAudioDropped:
		logger.Warn("Buffered audio dropped under cap",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.Int("dropped_samples", event.DroppedSamples),
		)
		if m != nil {
			m.RecordSamplesDropped(event.DroppedSamples)
		}
	}
}

// handleSegment delivers one finished segment to the configured consumers.
func (s *Session) handleSegment(segment *vad.Segment) {
	logger := s.manager.logger

	logger.Info("Speech segment emitted",
		slog.Uint64("stream_id", uint64(s.ID)),
		slog.String("segment_id", segment.ID),
		slog.Float64("duration_ms", segment.DurationMS),
		slog.Int("samples", len(segment.Samples)),
		slog.Float64("confidence", float64(segment.Confidence)),
	)

	if s.manager.metrics != nil {
		s.manager.metrics.RecordSegmentEmitted(
			segment.DurationMS/1000, len(segment.Samples), float64(segment.Confidence))
	}

	if s.manager.wavSink != nil {
		path, err := s.manager.wavSink.Write(s.ID, segment)
		if err != nil {
			logger.Error("Failed to archive segment",
				slog.Uint64("stream_id", uint64(s.ID)),
				slog.String("segment_id", segment.ID),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("Segment archived",
				slog.String("segment_id", segment.ID),
				slog.String("path", path),
			)
		}
	}

	if s.manager.forwarder != nil {
		// Forward asynchronously; the segment owns its samples so the
		// detector never touches them again.
		go s.forwardSegment(segment)
	}
}

// forwardSegment sends one segment downstream.
func (s *Session) forwardSegment(segment *vad.Segment) {
	logger := s.manager.logger
	m := s.manager.metrics

	if m != nil {
		m.RecordForwardRequest()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	startTime := time.Now()
	err := s.manager.forwarder.Forward(ctx, &forward.Request{
		StreamID:    s.ID,
		StreamLabel: s.Label,
		Segment:     segment,
	})
	duration := time.Since(startTime)

	if err != nil {
		logger.Error("Segment forwarding failed",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.String("segment_id", segment.ID),
			slog.String("error", err.Error()),
			slog.Float64("duration", duration.Seconds()),
		)
		if m != nil {
			m.RecordForwardFailure(duration.Seconds())
		}
		return
	}

	logger.Info("Segment forwarded",
		slog.Uint64("stream_id", uint64(s.ID)),
		slog.String("segment_id", segment.ID),
		slog.Float64("duration", duration.Seconds()),
	)
	if m != nil {
		m.RecordForwardSuccess(duration.Seconds())
	}
}
