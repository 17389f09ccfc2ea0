package forward

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pantheon-lab/realtime-audio-sdk/internal/vad"
)

func testRequest() *Request {
	return &Request{
		StreamID:    7,
		StreamLabel: "mic-left",
		Segment: &vad.Segment{
			ID:                 "seg-1",
			StartTime:          1000,
			EndTime:            2500,
			DurationMS:         1500,
			Samples:            make([]float32, 24000),
			SampleRate:         16000,
			AverageProbability: 0.85,
			Confidence:         0.9,
		},
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("Expected error for empty endpoint")
	}
}

func TestForwardSuccess(t *testing.T) {
	var received atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
		}

		if got := r.FormValue("segment_id"); got != "seg-1" {
			t.Errorf("Expected segment_id seg-1, got %q", got)
		}
		if got := r.FormValue("stream_id"); got != "7" {
			t.Errorf("Expected stream_id 7, got %q", got)
		}
		if got := r.FormValue("sample_rate"); got != "16000" {
			t.Errorf("Expected sample_rate 16000, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer auth, got %q", got)
		}

		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("Missing audio part: %v", err)
		} else {
			file.Close()
			if header.Size != 48000 { // 24000 samples, 2 bytes each
				t.Errorf("Expected 48000 audio bytes, got %d", header.Size)
			}
		}

		received.Store(true)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if err := client.Forward(context.Background(), testRequest()); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if !received.Load() {
		t.Error("Server never received the request")
	}

	stats := client.GetStats()
	if stats.SuccessRequests != 1 || stats.FailedRequests != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestForwardRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 3})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	start := time.Now()
	if err := client.Forward(context.Background(), testRequest()); err != nil {
		t.Fatalf("Forward failed despite retries: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
	// Two backoffs: 1s + 2s.
	if elapsed := time.Since(start); elapsed < 2*time.Second {
		t.Errorf("Retries completed too fast (%v), backoff not applied", elapsed)
	}

	if client.GetStats().TotalRetries != 2 {
		t.Errorf("Expected 2 retries, got %d", client.GetStats().TotalRetries)
	}
}

func TestForwardDoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 3})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if err := client.Forward(context.Background(), testRequest()); err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if attempts.Load() != 1 {
		t.Errorf("Client error retried: %d attempts", attempts.Load())
	}
}

func TestForwardNilSegment(t *testing.T) {
	client, err := NewClient(Config{Endpoint: "http://localhost:1"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if err := client.Forward(context.Background(), &Request{}); err == nil {
		t.Error("Expected error for nil segment")
	}
	if err := client.Forward(context.Background(), nil); err == nil {
		t.Error("Expected error for nil request")
	}
}

func TestForwardContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 5})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// Cancellation interrupts the backoff between retries.
	if err := client.Forward(ctx, testRequest()); err == nil {
		t.Error("Expected error after context cancellation")
	}
}
