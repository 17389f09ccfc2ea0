package audio

import "testing"

func TestInt16BytesToFloat32(t *testing.T) {
	// 0, 16384 (0.5), -16384 (-0.5), -32768 (-1.0), little-endian.
	data := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0xC0, 0x00, 0x80}

	samples, err := Int16BytesToFloat32(data)
	if err != nil {
		t.Fatalf("Conversion failed: %v", err)
	}

	want := []float32{0, 0.5, -0.5, -1.0}
	if len(samples) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(samples))
	}
	for i, w := range want {
		if samples[i] != w {
			t.Errorf("Sample %d: expected %f, got %f", i, w, samples[i])
		}
	}
}

func TestInt16BytesToFloat32OddLength(t *testing.T) {
	if _, err := Int16BytesToFloat32([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Error("Expected error for odd byte count")
	}
}

func TestFloat32ToInt16Clamping(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1.5, -1.5}
	out := Float32ToInt16(samples)

	want := []int16{0, 16383, -16383, 32767, -32768}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("Sample %d: expected %d, got %d", i, w, out[i])
		}
	}
}

func TestPCMRoundTrip(t *testing.T) {
	samples := []float32{0, 0.25, -0.25, 0.999, -1.0}

	data := Float32ToInt16Bytes(samples)
	if len(data) != len(samples)*2 {
		t.Fatalf("Expected %d bytes, got %d", len(samples)*2, len(data))
	}

	back, err := Int16BytesToFloat32(data)
	if err != nil {
		t.Fatalf("Conversion failed: %v", err)
	}

	// Quantization to 16 bits loses at most one step.
	const tolerance = 1.0 / 32768
	for i := range samples {
		diff := back[i] - samples[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			t.Errorf("Sample %d: %f round-tripped to %f", i, samples[i], back[i])
		}
	}
}
