package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pantheon-lab/realtime-audio-sdk/internal/audio"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/forward"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/metrics"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/sink"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/vad"
)

// ScorerFactory builds one scorer per session. Scorers carry per-stream
// recurrent state, so sessions never share an instance.
type ScorerFactory func() (vad.Scorer, error)

// Manager owns all active audio sessions: it creates them on stream hello,
// routes audio packets into them, and tears them down on bye, timeout, or
// shutdown.
type Manager struct {
	sessions map[uint32]*Session
	mu       sync.RWMutex
	logger   *slog.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration

	detectorConfig vad.Config
	scorerFactory  ScorerFactory
	maxGap         uint32
	maxSessions    int

	// Optional segment consumers
	wavSink   *sink.WAVSink
	forwarder *forward.Client

	// Cleanup management
	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// ManagerConfig contains configuration for the stream manager
type ManagerConfig struct {
	DetectorConfig vad.Config
	ScorerFactory  ScorerFactory
	Timeout        time.Duration
	MaxGap         uint32
	MaxSessions    int

	// Optional: nil disables the consumer
	WAVSink   *sink.WAVSink
	Forwarder *forward.Client
}

// NewManager creates a new stream manager
func NewManager(logger *slog.Logger, m *metrics.Metrics, config ManagerConfig) (*Manager, error) {
	if config.ScorerFactory == nil {
		return nil, fmt.Errorf("scorer factory is required")
	}

	if err := config.DetectorConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}

	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	if config.MaxSessions <= 0 {
		config.MaxSessions = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	mgr := &Manager{
		sessions:       make(map[uint32]*Session),
		logger:         logger,
		metrics:        m,
		timeout:        config.Timeout,
		detectorConfig: config.DetectorConfig,
		scorerFactory:  config.ScorerFactory,
		maxGap:         config.MaxGap,
		maxSessions:    config.MaxSessions,
		wavSink:        config.WAVSink,
		forwarder:      config.Forwarder,
		ctx:            ctx,
		cancel:         cancel,
		cleanup:        make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr, nil
}

// CreateSession creates a new session for streamID. If the session already
// exists its metadata is refreshed instead.
func (m *Manager) CreateSession(streamID uint32, sampleRate int, label string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.sessions[streamID]; exists {
		m.logger.Warn("Session already exists, refreshing metadata",
			slog.Uint64("stream_id", uint64(streamID)),
			slog.String("existing_label", existing.Label),
			slog.String("new_label", label),
		)

		existing.mu.Lock()
		existing.Label = label
		existing.LastActivity = time.Now()
		existing.mu.Unlock()

		return existing, nil
	}

	if len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("session limit reached: %d active", len(m.sessions))
	}

	cfg := m.detectorConfig
	cfg.SampleRate = sampleRate

	scorer, err := m.scorerFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create scorer: %w", err)
	}

	now := time.Now()
	session := &Session{
		ID:           streamID,
		Label:        label,
		SampleRate:   sampleRate,
		StartTime:    now,
		LastActivity: now,
		reorder:      audio.NewReorderBuffer(m.maxGap),
		manager:      m,
	}

	detector, err := vad.New(cfg, scorer, session.handleEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	session.detector = detector

	m.sessions[streamID] = session
	if m.metrics != nil {
		m.metrics.RecordSessionCreated()
		m.metrics.SetActiveSessions(len(m.sessions))
	}

	m.logger.Info("Created new audio session",
		slog.Uint64("stream_id", uint64(streamID)),
		slog.String("label", label),
		slog.Int("sample_rate", sampleRate),
	)

	return session, nil
}

// GetSession retrieves an existing session
func (m *Manager) GetSession(streamID uint32) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[streamID]
	return session, exists
}

// GetActiveSessionCount returns the number of currently active sessions
func (m *Manager) GetActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetAllSessions returns a snapshot of all active sessions (for monitoring)
func (m *Manager) GetAllSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}

	return sessions
}

// RemoveSession finalizes and removes a session. Any in-progress utterance is
// flushed so the tail segment is emitted before the detector closes.
func (m *Manager) RemoveSession(streamID uint32) bool {
	m.mu.Lock()
	session, exists := m.sessions[streamID]
	if exists {
		delete(m.sessions, streamID)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !exists {
		return false
	}

	session.finalize()

	if m.metrics != nil {
		m.metrics.RecordSessionDestroyed(time.Since(session.StartTime).Seconds())
		m.metrics.SetActiveSessions(count)
	}

	stats := session.detector.Stats()
	m.logger.Info("Audio session removed",
		slog.Uint64("stream_id", uint64(streamID)),
		slog.String("label", session.Label),
		slog.Duration("duration", time.Since(session.StartTime)),
		slog.Uint64("segments_emitted", stats.SegmentsEmitted),
		slog.Uint64("windows_scored", stats.WindowsScored),
	)

	return true
}

// Stop gracefully stops the stream manager, finalizing all sessions.
func (m *Manager) Stop() {
	m.logger.Info("Stopping stream manager...")

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[uint32]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.finalize()
	}

	if m.forwarder != nil {
		if err := m.forwarder.Close(); err != nil {
			m.logger.Warn("Error closing forward client", slog.String("error", err.Error()))
		}
	}

	m.cancel()
	<-m.cleanup

	m.logger.Info("Stream manager stopped",
		slog.Int("finalized_sessions", len(sessions)),
	)
}

// GetForwardStats returns forwarding client statistics, or zero stats when
// forwarding is disabled.
func (m *Manager) GetForwardStats() forward.ClientStats {
	if m.forwarder == nil {
		return forward.ClientStats{}
	}
	return m.forwarder.GetStats()
}

// GetSinkStats returns sink statistics, or zero stats when the sink is
// disabled.
func (m *Manager) GetSinkStats() sink.SinkStats {
	if m.wavSink == nil {
		return sink.SinkStats{}
	}
	return m.wavSink.Stats()
}

// startCleanupRoutine runs in a separate goroutine to clean up expired sessions
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	m.logger.Info("Session cleanup routine started",
		slog.Duration("timeout", m.timeout),
		slog.Duration("check_interval", 30*time.Second),
	)

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Session cleanup routine stopping")
			return

		case <-ticker.C:
			m.cleanupExpiredSessions()
		}
	}
}

// cleanupExpiredSessions removes sessions that have been inactive for too long
func (m *Manager) cleanupExpiredSessions() {
	now := time.Now()
	expired := make([]uint32, 0)

	m.mu.RLock()
	for streamID, session := range m.sessions {
		session.mu.Lock()
		lastActivity := session.LastActivity
		session.mu.Unlock()

		if now.Sub(lastActivity) > m.timeout {
			expired = append(expired, streamID)
		}
	}
	m.mu.RUnlock()

	if len(expired) > 0 {
		m.logger.Info("Cleaning up expired sessions",
			slog.Int("expired_count", len(expired)),
		)

		for _, streamID := range expired {
			m.RemoveSession(streamID)
		}
	}
}
