package vad

import "fmt"

// FrameAligner converts a stream of irregular-length sample chunks into
// fixed-size scoring windows. Samples that do not fill a complete window are
// carried over to the next Push call, so no sample is ever dropped or
// duplicated across chunk boundaries.
type FrameAligner struct {
	frameSize int
	remainder []float32
}

// NewFrameAligner creates an aligner emitting windows of frameSize samples.
func NewFrameAligner(frameSize int) (*FrameAligner, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSize)
	}

	return &FrameAligner{
		frameSize: frameSize,
		remainder: make([]float32, 0, frameSize),
	}, nil
}

// Push appends a chunk and returns every complete window now available, in
// order. Returned windows are freshly allocated and never alias the chunk.
// For every call: emitted*frameSize + remainderAfter == remainderBefore + len(chunk).
func (a *FrameAligner) Push(chunk []float32) [][]float32 {
	total := len(a.remainder) + len(chunk)
	count := total / a.frameSize

	if count == 0 {
		a.remainder = append(a.remainder, chunk...)
		return nil
	}

	combined := make([]float32, total)
	copy(combined, a.remainder)
	copy(combined[len(a.remainder):], chunk)

	windows := make([][]float32, 0, count)
	for i := 0; i < count; i++ {
		window := make([]float32, a.frameSize)
		copy(window, combined[i*a.frameSize:])
		windows = append(windows, window)
	}

	a.remainder = a.remainder[:0]
	a.remainder = append(a.remainder, combined[count*a.frameSize:]...)

	return windows
}

// Pending returns the number of carried-over samples awaiting a full window.
func (a *FrameAligner) Pending() int {
	return len(a.remainder)
}

// FrameSize returns the window size in samples.
func (a *FrameAligner) FrameSize() int {
	return a.frameSize
}

// Reset discards any carried-over samples.
func (a *FrameAligner) Reset() {
	a.remainder = a.remainder[:0]
}
