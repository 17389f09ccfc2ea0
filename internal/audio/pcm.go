package audio

import "fmt"

// Int16BytesToFloat32 converts little-endian PCM-16 bytes to float32 samples
// in [-1,1).
func Int16BytesToFloat32(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("audio data length must be even (got %d bytes)", len(data))
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		// Little-endian for PCM-16
		sample := int16(data[i*2]) | int16(data[i*2+1])<<8
		samples[i] = float32(sample) / 32768.0
	}
	return samples, nil
}

// Float32ToInt16 converts float32 samples to int16, clamping out-of-range
// values instead of wrapping.
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, sample := range samples {
		scaled := sample * 32767.0
		switch {
		case scaled > 32767:
			out[i] = 32767
		case scaled < -32768:
			out[i] = -32768
		default:
			out[i] = int16(scaled)
		}
	}
	return out
}

// Float32ToInt16Bytes converts float32 samples to little-endian PCM-16 bytes.
func Float32ToInt16Bytes(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range Float32ToInt16(samples) {
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	return out
}
