package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pantheon-lab/realtime-audio-sdk/internal/metrics"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/protocol"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/stream"
)

// WSServer accepts audio streams over WebSocket connections. Each binary
// message carries one framed packet in the same wire format the UDP path
// uses, so clients behind NAT or restrictive firewalls can reuse the
// protocol unchanged.
type WSServer struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	streamMgr *stream.Manager
	upgrader  websocket.Upgrader

	mu                sync.RWMutex
	connectionsTotal  uint64
	activeConnections uint64
	messagesReceived  uint64
	messagesProcessed uint64
	parseErrors       uint64
	shuttingDown      bool
}

// NewWSServer creates a WebSocket ingest server backed by the stream manager.
func NewWSServer(logger *slog.Logger, m *metrics.Metrics, streamMgr *stream.Manager) *WSServer {
	return &WSServer{
		logger:    logger,
		metrics:   m,
		streamMgr: streamMgr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			// Ingest clients are SDK integrations, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleIngest upgrades the HTTP request and serves the connection until the
// client disconnects. Sessions opened over a connection are torn down when
// the connection closes, even if the client never sent a bye packet.
func (s *WSServer) HandleIngest(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	closing := s.shuttingDown
	s.mu.RUnlock()
	if closing {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	s.connectionsTotal++
	s.activeConnections++
	s.mu.Unlock()

	s.logger.Info("WebSocket connection established",
		slog.String("remote_addr", conn.RemoteAddr().String()),
	)

	s.serveConnection(conn)
}

// connStreams tracks which stream IDs a single connection has opened.
type connStreams map[uint32]struct{}

func (s *WSServer) serveConnection(conn *websocket.Conn) {
	defer conn.Close()

	streams := make(connStreams)
	defer s.closeConnectionStreams(conn, streams)
	defer func() {
		s.mu.Lock()
		s.activeConnections--
		s.mu.Unlock()
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("WebSocket connection error",
					slog.String("remote_addr", conn.RemoteAddr().String()),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		if messageType != websocket.BinaryMessage {
			s.logger.Debug("Ignoring non-binary WebSocket message",
				slog.String("remote_addr", conn.RemoteAddr().String()),
				slog.Int("message_type", messageType),
			)
			continue
		}

		s.mu.Lock()
		s.messagesReceived++
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordPacketReceived()
		}

		s.handleMessage(conn, streams, data)
	}
}

// handleMessage parses one framed packet and routes it into the stream manager.
func (s *WSServer) handleMessage(conn *websocket.Conn, streams connStreams, data []byte) {
	packet, err := protocol.ParsePacket(data)
	if err != nil {
		s.mu.Lock()
		s.parseErrors++
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordParseError()
		}

		s.logger.Error("Failed to parse WebSocket packet",
			slog.String("remote_addr", conn.RemoteAddr().String()),
			slog.Int("packet_size", len(data)),
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	s.messagesProcessed++
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordPacketProcessed()
	}

	header := packet.Header

	switch header.PacketType {
	case protocol.PacketTypeHello:
		session, err := s.streamMgr.CreateSession(header.StreamID, int(packet.Hello.SampleRate), packet.Hello.GetLabel())
		if err != nil {
			s.logger.Error("Failed to create stream session",
				slog.Uint64("stream_id", uint64(header.StreamID)),
				slog.String("remote_addr", conn.RemoteAddr().String()),
				slog.String("error", err.Error()),
			)
			return
		}
		streams[header.StreamID] = struct{}{}

		s.logger.Info("WebSocket stream opened",
			slog.Uint64("stream_id", uint64(header.StreamID)),
			slog.String("label", session.Label),
		)

	case protocol.PacketTypeAudio:
		session, exists := s.streamMgr.GetSession(header.StreamID)
		if !exists {
			s.logger.Warn("Received audio for unknown stream",
				slog.Uint64("stream_id", uint64(header.StreamID)),
				slog.Uint64("sequence", uint64(packet.Audio.Sequence)),
			)
			return
		}

		if err := session.PushPacket(context.Background(), packet.Audio.Sequence, header.TimestampMS, packet.Audio.AudioData); err != nil {
			s.logger.Error("Failed to process audio packet",
				slog.Uint64("stream_id", uint64(header.StreamID)),
				slog.Uint64("sequence", uint64(packet.Audio.Sequence)),
				slog.String("error", err.Error()),
			)
		}

	case protocol.PacketTypeBye:
		delete(streams, header.StreamID)
		if removed := s.streamMgr.RemoveSession(header.StreamID); !removed {
			s.logger.Warn("Received bye for unknown stream",
				slog.Uint64("stream_id", uint64(header.StreamID)),
			)
			return
		}

		s.logger.Info("WebSocket stream closed",
			slog.Uint64("stream_id", uint64(header.StreamID)),
		)
	}
}

// closeConnectionStreams removes any sessions the connection left open.
func (s *WSServer) closeConnectionStreams(conn *websocket.Conn, streams connStreams) {
	for streamID := range streams {
		if s.streamMgr.RemoveSession(streamID) {
			s.logger.Info("Closed orphaned WebSocket stream",
				slog.Uint64("stream_id", uint64(streamID)),
				slog.String("remote_addr", conn.RemoteAddr().String()),
			)
		}
	}
}

// Stop marks the server as shutting down; new upgrade requests are rejected.
func (s *WSServer) Stop() {
	s.mu.Lock()
	s.shuttingDown = true
	s.mu.Unlock()
}

// GetStatistics returns current WebSocket ingest statistics
func (s *WSServer) GetStatistics() WSStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return WSStatistics{
		ConnectionsTotal:  s.connectionsTotal,
		ActiveConnections: s.activeConnections,
		MessagesReceived:  s.messagesReceived,
		MessagesProcessed: s.messagesProcessed,
		ParseErrors:       s.parseErrors,
	}
}

// WSStatistics represents WebSocket ingest metrics
type WSStatistics struct {
	ConnectionsTotal  uint64 `json:"connections_total"`
	ActiveConnections uint64 `json:"active_connections"`
	MessagesReceived  uint64 `json:"messages_received"`
	MessagesProcessed uint64 `json:"messages_processed"`
	ParseErrors       uint64 `json:"parse_errors"`
}
