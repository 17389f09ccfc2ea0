package stream

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pantheon-lab/realtime-audio-sdk/internal/audio"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/sink"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/vad"
)

// levelScorer scores a window by its first sample: anything loud reads as
// near-certain speech. Keeps session tests deterministic without a model.
type levelScorer struct{}

func (levelScorer) WindowSize() int                     { return 160 }
func (levelScorer) InitialState() vad.RecurrentState   { return struct{}{} }

func (levelScorer) Score(_ context.Context, window []float32, state vad.RecurrentState) (float32, vad.RecurrentState, error) {
	if window[0] > 0.1 {
		return 0.9, state, nil
	}
	return 0.05, state, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManagerConfig() ManagerConfig {
	return ManagerConfig{
		DetectorConfig: vad.Config{
			SampleRate:            16000,
			PositiveThreshold:     0.5,
			NegativeThreshold:     0.3,
			MinSpeechDurationMS:   100,
			MinSilenceDurationMS:  50,
			PreRollDurationMS:     50,
			MaxBufferedDurationMS: 60000,
		},
		ScorerFactory: func() (vad.Scorer, error) { return levelScorer{}, nil },
		Timeout:       time.Minute,
	}
}

func newTestManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	mgr, err := NewManager(testLogger(), nil, cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(mgr.Stop)
	return mgr
}

// packet builds one 160-sample PCM-16 packet at the given level.
func packet(level float32) []byte {
	samples := make([]float32, 160)
	for i := range samples {
		samples[i] = level
	}
	return audio.Float32ToInt16Bytes(samples)
}

// pushPackets feeds count packets at the given level, advancing sequence and
// the 10ms-per-packet timestamp from their start values.
func pushPackets(t *testing.T, s *Session, startSeq uint32, startMS float64, count int, level float32) {
	t.Helper()
	for i := 0; i < count; i++ {
		seq := startSeq + uint32(i)
		ts := startMS + float64(i)*10
		if err := s.PushPacket(context.Background(), seq, ts, packet(level)); err != nil {
			t.Fatalf("PushPacket(seq=%d) failed: %v", seq, err)
		}
	}
}

func TestManagerSessionLifecycle(t *testing.T) {
	mgr := newTestManager(t, testManagerConfig())

	session, err := mgr.CreateSession(1, 16000, "mic-left")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.Label != "mic-left" || session.SampleRate != 16000 {
		t.Errorf("Unexpected session fields: %+v", session)
	}

	got, exists := mgr.GetSession(1)
	if !exists || got != session {
		t.Error("GetSession did not return the created session")
	}
	if mgr.GetActiveSessionCount() != 1 {
		t.Errorf("Expected 1 active session, got %d", mgr.GetActiveSessionCount())
	}

	if !mgr.RemoveSession(1) {
		t.Error("RemoveSession returned false for existing session")
	}
	if mgr.RemoveSession(1) {
		t.Error("RemoveSession returned true for removed session")
	}
	if _, exists := mgr.GetSession(1); exists {
		t.Error("Session still present after removal")
	}
}

func TestManagerDuplicateHelloRefreshes(t *testing.T) {
	mgr := newTestManager(t, testManagerConfig())

	first, err := mgr.CreateSession(1, 16000, "original")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	second, err := mgr.CreateSession(1, 16000, "renamed")
	if err != nil {
		t.Fatalf("Second CreateSession failed: %v", err)
	}
	if second != first {
		t.Error("Duplicate hello created a second session")
	}
	if first.Label != "renamed" {
		t.Errorf("Label not refreshed: %q", first.Label)
	}
	if mgr.GetActiveSessionCount() != 1 {
		t.Errorf("Expected 1 session, got %d", mgr.GetActiveSessionCount())
	}
}

func TestManagerSessionLimit(t *testing.T) {
	cfg := testManagerConfig()
	cfg.MaxSessions = 2
	mgr := newTestManager(t, cfg)

	for id := uint32(1); id <= 2; id++ {
		if _, err := mgr.CreateSession(id, 16000, ""); err != nil {
			t.Fatalf("CreateSession(%d) failed: %v", id, err)
		}
	}
	if _, err := mgr.CreateSession(3, 16000, ""); err == nil {
		t.Error("Expected error past the session limit")
	}
}

func TestSessionDetectsSpeechSegment(t *testing.T) {
	wavSink, err := sink.NewWAVSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewWAVSink failed: %v", err)
	}

	cfg := testManagerConfig()
	cfg.WAVSink = wavSink
	mgr := newTestManager(t, cfg)

	session, err := mgr.CreateSession(1, 16000, "test")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// 200ms of speech, then enough silence to close the segment.
	pushPackets(t, session, 0, 0, 20, 0.5)
	pushPackets(t, session, 20, 200, 20, 0)

	if got := wavSink.Stats().SegmentsWritten; got != 1 {
		t.Fatalf("Expected 1 archived segment, got %d", got)
	}

	info := session.Info()
	if info.Detector.SegmentsEmitted != 1 {
		t.Errorf("Expected 1 emitted segment, got %d", info.Detector.SegmentsEmitted)
	}
	if info.Detector.WindowsScored != 40 {
		t.Errorf("Expected 40 scored windows, got %d", info.Detector.WindowsScored)
	}
	if info.State != "non_speech" {
		t.Errorf("Expected non_speech after silence, got %s", info.State)
	}
}

func TestSessionFlushesTailSegmentOnRemoval(t *testing.T) {
	wavSink, err := sink.NewWAVSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewWAVSink failed: %v", err)
	}

	cfg := testManagerConfig()
	cfg.WAVSink = wavSink
	mgr := newTestManager(t, cfg)

	session, err := mgr.CreateSession(1, 16000, "test")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// Stream ends mid-utterance: removal must still emit the segment.
	pushPackets(t, session, 0, 0, 20, 0.5)
	mgr.RemoveSession(1)

	if got := wavSink.Stats().SegmentsWritten; got != 1 {
		t.Errorf("Expected tail segment archived on removal, got %d", got)
	}
}

func TestSessionFlushKeepsStreamTimeline(t *testing.T) {
	wavSink, err := sink.NewWAVSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewWAVSink failed: %v", err)
	}

	cfg := testManagerConfig()
	cfg.WAVSink = wavSink
	mgr := newTestManager(t, cfg)

	session, err := mgr.CreateSession(1, 16000, "test")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// Mid-utterance stream well past timestamp zero, with a sequence gap:
	// seq 20 never arrives, so seq 21 is still pending in the reorder
	// buffer when the session is removed. The finalize drain must keep the
	// stream's own timeline, or the end transition lands before the
	// minimum speech duration and the tail segment is lost.
	pushPackets(t, session, 0, 1000, 20, 0.5)
	if err := session.PushPacket(context.Background(), 21, 1210, packet(0.5)); err != nil {
		t.Fatalf("PushPacket(seq=21) failed: %v", err)
	}

	mgr.RemoveSession(1)

	if got := wavSink.Stats().SegmentsWritten; got != 1 {
		t.Fatalf("Expected tail segment archived despite pending packet, got %d", got)
	}

	info := session.Info()
	if info.Detector.SegmentsEmitted != 1 {
		t.Errorf("Expected 1 emitted segment, got %d", info.Detector.SegmentsEmitted)
	}
	// 20 in-order packets plus the pending one drained at finalize.
	if info.Detector.WindowsScored != 21 {
		t.Errorf("Expected 21 scored windows, got %d", info.Detector.WindowsScored)
	}
}

func TestSessionReordersPackets(t *testing.T) {
	mgr := newTestManager(t, testManagerConfig())

	session, err := mgr.CreateSession(1, 16000, "test")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	ctx := context.Background()
	if err := session.PushPacket(ctx, 0, 0, packet(0)); err != nil {
		t.Fatalf("PushPacket failed: %v", err)
	}
	// Packet 2 before packet 1: held, then both delivered.
	if err := session.PushPacket(ctx, 2, 20, packet(0)); err != nil {
		t.Fatalf("PushPacket failed: %v", err)
	}
	if session.Info().Detector.WindowsScored != 1 {
		t.Errorf("Held packet was scored early")
	}
	if err := session.PushPacket(ctx, 1, 10, packet(0)); err != nil {
		t.Fatalf("PushPacket failed: %v", err)
	}

	info := session.Info()
	if info.Detector.WindowsScored != 3 {
		t.Errorf("Expected 3 scored windows after reorder, got %d", info.Detector.WindowsScored)
	}
	if info.Reorder.PendingSeqs != 0 {
		t.Errorf("Reorder buffer still holds %d packets", info.Reorder.PendingSeqs)
	}
}

func TestSessionRejectsOddPacket(t *testing.T) {
	mgr := newTestManager(t, testManagerConfig())

	session, err := mgr.CreateSession(1, 16000, "test")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := session.PushPacket(context.Background(), 0, 0, []byte{0x01}); err == nil {
		t.Error("Expected error for odd-length PCM data")
	}
}

func TestSessionUpdateDetectorConfig(t *testing.T) {
	mgr := newTestManager(t, testManagerConfig())

	session, err := mgr.CreateSession(1, 16000, "test")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	positive := float32(0.7)
	if err := session.UpdateDetectorConfig(vad.ConfigUpdate{PositiveThreshold: &positive}); err != nil {
		t.Fatalf("UpdateDetectorConfig failed: %v", err)
	}

	bad := float32(0.1) // below negative threshold
	if err := session.UpdateDetectorConfig(vad.ConfigUpdate{PositiveThreshold: &bad}); err == nil {
		t.Error("Expected error for invalid threshold update")
	}
}

func TestManagerStopFinalizesSessions(t *testing.T) {
	wavSink, err := sink.NewWAVSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewWAVSink failed: %v", err)
	}

	cfg := testManagerConfig()
	cfg.WAVSink = wavSink
	mgr, err := NewManager(testLogger(), nil, cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	session, err := mgr.CreateSession(1, 16000, "test")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	pushPackets(t, session, 0, 0, 20, 0.5)

	mgr.Stop()

	if got := wavSink.Stats().SegmentsWritten; got != 1 {
		t.Errorf("Expected tail segment archived on stop, got %d", got)
	}
	if mgr.GetActiveSessionCount() != 0 {
		t.Errorf("Sessions remain after stop: %d", mgr.GetActiveSessionCount())
	}
}
