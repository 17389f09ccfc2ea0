package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/pantheon-lab/realtime-audio-sdk/internal/audio"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/vad"
)

// WAVSink archives emitted speech segments as 16-bit mono WAV files, one file
// per segment, named by stream and segment ID.
type WAVSink struct {
	directory string

	mu      sync.Mutex
	written uint64
	failed  uint64
}

// SinkStats is a snapshot of sink counters for monitoring.
type SinkStats struct {
	Directory       string `json:"directory"`
	SegmentsWritten uint64 `json:"segments_written"`
	WriteFailures   uint64 `json:"write_failures"`
}

// NewWAVSink creates a sink writing into directory, creating it if needed.
func NewWAVSink(directory string) (*WAVSink, error) {
	if directory == "" {
		return nil, fmt.Errorf("sink directory cannot be empty")
	}

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sink directory %s: %w", directory, err)
	}

	return &WAVSink{directory: directory}, nil
}

// Write stores one segment and returns the path of the created file.
func (s *WAVSink) Write(streamID uint32, segment *vad.Segment) (string, error) {
	if segment == nil || len(segment.Samples) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}

	path := filepath.Join(s.directory, fmt.Sprintf("stream_%d_%s.wav", streamID, segment.ID))
	if err := s.writeFile(path, segment); err != nil {
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		return "", err
	}

	s.mu.Lock()
	s.written++
	s.mu.Unlock()

	return path, nil
}

// Stats returns a snapshot of the sink counters.
func (s *WAVSink) Stats() SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SinkStats{
		Directory:       s.directory,
		SegmentsWritten: s.written,
		WriteFailures:   s.failed,
	}
}

func (s *WAVSink) writeFile(path string, segment *vad.Segment) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	encoder := wav.NewEncoder(file, segment.SampleRate, 16, 1, 1)

	samples := audio.Float32ToInt16(segment.Samples)
	data := make([]int, len(samples))
	for i, sample := range samples {
		data[i] = int(sample)
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  segment.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := encoder.Write(buf); err != nil {
		file.Close()
		return fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := encoder.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	return nil
}
