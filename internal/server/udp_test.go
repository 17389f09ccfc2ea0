package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/pantheon-lab/realtime-audio-sdk/internal/config"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/protocol"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/stream"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/vad"
)

// quietScorer reads every window as silence; server tests only exercise
// packet plumbing.
type quietScorer struct{}

func (quietScorer) WindowSize() int                   { return 160 }
func (quietScorer) InitialState() vad.RecurrentState { return struct{}{} }

func (quietScorer) Score(_ context.Context, _ []float32, state vad.RecurrentState) (float32, vad.RecurrentState, error) {
	return 0, state, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStreamManager(t *testing.T) *stream.Manager {
	t.Helper()
	mgr, err := stream.NewManager(testLogger(), nil, stream.ManagerConfig{
		DetectorConfig: vad.DefaultConfig(16000),
		ScorerFactory:  func() (vad.Scorer, error) { return quietScorer{}, nil },
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(mgr.Stop)
	return mgr
}

func TestUDPServerStopUnderLoad(t *testing.T) {
	cfg := &config.ServerConfig{
		UDPPort:     0, // ephemeral
		BindAddress: "127.0.0.1",
		BufferSize:  65536,
	}
	srv := NewUDPServer(cfg, testLogger(), nil, testStreamManager(t))

	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	client, err := net.Dial("udp", srv.conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	// Keep packets arriving while the server stops: the receiver must be
	// fully drained before the processing channel closes, or an in-flight
	// enqueue panics.
	senderDone := make(chan struct{})
	go func() {
		defer close(senderDone)
		data := protocol.EncodeHello(1, 0, 16000, "load")
		for i := 0; i < 500; i++ {
			if _, err := client.Write(data); err != nil {
				return
			}
		}
	}()

	time.Sleep(10 * time.Millisecond)
	if err := srv.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	<-senderDone

	stats := srv.GetStatistics()
	if stats.PacketsReceived == 0 {
		t.Error("Server received no packets before stopping")
	}
}

func TestUDPServerStopWithoutStart(t *testing.T) {
	cfg := &config.ServerConfig{UDPPort: 0, BindAddress: "127.0.0.1", BufferSize: 65536}
	srv := NewUDPServer(cfg, testLogger(), nil, testStreamManager(t))

	if err := srv.Stop(); err != nil {
		t.Errorf("Stop before Start failed: %v", err)
	}
}
