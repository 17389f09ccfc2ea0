package vad

import "testing"

// chunkOf builds a chunk of n samples all carrying the given value, so
// assembled output can be traced back to its source chunk.
func chunkOf(n int, value float32) []float32 {
	chunk := make([]float32, n)
	for i := range chunk {
		chunk[i] = value
	}
	return chunk
}

func TestArenaTrimsToPreRollWhileUnmarked(t *testing.T) {
	// 100ms pre-roll at 16kHz = 1600 samples.
	arena := NewArena(16000, 100, 10000)

	for i := 0; i < 50; i++ {
		arena.Append(chunkOf(320, float32(i)))
	}

	// Retained span must cover the pre-roll but stay bounded: dropping one
	// more chunk would go below 1600 samples.
	if arena.Buffered() < 1600 {
		t.Errorf("Retained %d samples, below pre-roll depth 1600", arena.Buffered())
	}
	if arena.Buffered() >= 1600+320 {
		t.Errorf("Retained %d samples, trim is not keeping up", arena.Buffered())
	}
}

func TestArenaRetainsEverythingWhileMarked(t *testing.T) {
	arena := NewArena(16000, 100, 1000000)

	arena.Append(chunkOf(320, 0))
	arena.Mark()

	for i := 1; i <= 100; i++ {
		if dropped := arena.Append(chunkOf(320, float32(i))); dropped != 0 {
			t.Fatalf("Unexpected drop of %d samples under the cap", dropped)
		}
	}

	if arena.Buffered() != 101*320 {
		t.Errorf("Expected %d retained samples, got %d", 101*320, arena.Buffered())
	}
}

func TestArenaSoftCapDropsOldest(t *testing.T) {
	// Cap at 100ms = 1600 samples.
	arena := NewArena(16000, 50, 100)
	arena.Mark()

	dropped := 0
	for i := 0; i < 10; i++ {
		dropped += arena.Append(chunkOf(320, float32(i)))
	}

	if dropped == 0 {
		t.Fatal("Expected soft cap to drop samples")
	}
	if arena.Buffered() > 1600 {
		t.Errorf("Buffered %d samples exceeds cap 1600", arena.Buffered())
	}

	// The newest audio must survive; the oldest must be gone.
	samples := arena.Assemble()
	if samples[len(samples)-1] != 9 {
		t.Errorf("Newest chunk missing, tail sample %f", samples[len(samples)-1])
	}
	if samples[0] == 0 {
		t.Error("Oldest chunk should have been dropped")
	}
}

func TestArenaAssembleIsContiguousAndOrdered(t *testing.T) {
	arena := NewArena(16000, 1000, 10000)

	arena.Append(chunkOf(100, 1))
	arena.Mark()
	arena.Append(chunkOf(200, 2))
	arena.Append(chunkOf(300, 3))

	samples := arena.Assemble()
	if len(samples) != 600 {
		t.Fatalf("Expected 600 samples, got %d", len(samples))
	}

	for i, want := range []struct {
		from, to int
		value    float32
	}{{0, 100, 1}, {100, 300, 2}, {300, 600, 3}} {
		for j := want.from; j < want.to; j++ {
			if samples[j] != want.value {
				t.Fatalf("Region %d: sample %d = %f, want %f", i, j, samples[j], want.value)
			}
		}
	}

	// Assemble does not consume; a second call returns the same audio.
	if again := arena.Assemble(); len(again) != 600 {
		t.Errorf("Second assemble returned %d samples", len(again))
	}
}

func TestArenaAppendCopiesChunk(t *testing.T) {
	arena := NewArena(16000, 1000, 10000)

	chunk := chunkOf(100, 5)
	arena.Append(chunk)
	chunk[0] = 99

	if samples := arena.Assemble(); samples[0] != 5 {
		t.Error("Arena aliases the caller's chunk")
	}
}

func TestArenaReleaseTrimsBack(t *testing.T) {
	arena := NewArena(16000, 100, 1000000)
	arena.Mark()
	for i := 0; i < 100; i++ {
		arena.Append(chunkOf(320, float32(i)))
	}

	arena.Release()
	if arena.Buffered() >= 1600+320 {
		t.Errorf("Expected trim back to pre-roll depth, still holding %d samples", arena.Buffered())
	}
}

func TestArenaReset(t *testing.T) {
	arena := NewArena(16000, 100, 10000)
	arena.Append(chunkOf(320, 1))
	arena.Mark()
	arena.Append(chunkOf(320, 2))

	arena.Reset()
	if arena.Buffered() != 0 {
		t.Errorf("Expected empty arena after reset, got %d samples", arena.Buffered())
	}
	if len(arena.Assemble()) != 0 {
		t.Error("Assemble after reset should be empty")
	}
}
