package vad

// Arena retains raw audio chunks for pre-roll padding and segment assembly.
// Chunks are retained by append and compacted only when the retained span
// exceeds its bound, so long speech runs never pay a per-chunk shift cost.
//
// Unmarked (non-speech): the arena keeps just enough trailing chunks to cover
// the pre-roll duration. Marked (speech in progress): every chunk is retained
// uncompacted until the soft cap, beyond which the oldest chunks are dropped.
type Arena struct {
	sampleRate     int
	preRollSamples int
	maxSamples     int

	chunks  [][]float32
	samples int
	marked  bool
}

// NewArena creates an arena for the given sample rate and retention bounds.
func NewArena(sampleRate int, preRollMS, maxBufferedMS float64) *Arena {
	a := &Arena{sampleRate: sampleRate}
	a.SetLimits(preRollMS, maxBufferedMS)
	return a
}

// SetLimits updates the retention bounds without discarding buffered audio.
func (a *Arena) SetLimits(preRollMS, maxBufferedMS float64) {
	a.preRollSamples = int(preRollMS * float64(a.sampleRate) / 1000)
	a.maxSamples = int(maxBufferedMS * float64(a.sampleRate) / 1000)
}

// Append retains a copy of the chunk and returns the number of samples
// dropped by the soft cap (zero in the common case).
func (a *Arena) Append(chunk []float32) int {
	if len(chunk) == 0 {
		return 0
	}

	owned := make([]float32, len(chunk))
	copy(owned, chunk)
	a.chunks = append(a.chunks, owned)
	a.samples += len(owned)

	if !a.marked {
		a.trimToPreRoll()
		return 0
	}

	dropped := 0
	for a.samples > a.maxSamples && len(a.chunks) > 1 {
		dropped += len(a.chunks[0])
		a.samples -= len(a.chunks[0])
		a.chunks[0] = nil
		a.chunks = a.chunks[1:]
	}
	return dropped
}

// Mark pins the currently retained audio as the start of a speech segment.
// Everything from the oldest retained chunk (the pre-roll) onward will be
// part of the assembled segment.
func (a *Arena) Mark() {
	a.marked = true
}

// Release unpins the segment start and compacts back down to pre-roll depth.
// Called after every speech end, whether or not a segment was emitted.
func (a *Arena) Release() {
	a.marked = false
	a.trimToPreRoll()
}

// Assemble concatenates all retained chunks into one contiguous sample
// sequence. The arena keeps its chunks; callers own the returned slice.
func (a *Arena) Assemble() []float32 {
	out := make([]float32, 0, a.samples)
	for _, chunk := range a.chunks {
		out = append(out, chunk...)
	}
	return out
}

// Buffered returns the number of samples currently retained.
func (a *Arena) Buffered() int {
	return a.samples
}

// Reset discards all retained audio and unmarks the arena.
func (a *Arena) Reset() {
	a.chunks = nil
	a.samples = 0
	a.marked = false
}

// trimToPreRoll drops oldest chunks while the rest still cover the pre-roll
// duration. Whole chunks are dropped only; the retained span is therefore at
// least preRollSamples whenever that much audio has been seen.
func (a *Arena) trimToPreRoll() {
	for len(a.chunks) > 1 && a.samples-len(a.chunks[0]) >= a.preRollSamples {
		a.samples -= len(a.chunks[0])
		a.chunks[0] = nil
		a.chunks = a.chunks[1:]
	}
}
