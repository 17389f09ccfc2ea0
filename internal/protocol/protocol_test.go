package protocol

import (
	"bytes"
	"testing"
)

func TestHelloRoundTrip(t *testing.T) {
	data := EncodeHello(42, 0, 16000, "mic-left")

	packet, err := ParsePacket(data)
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}

	if packet.Header.PacketType != PacketTypeHello {
		t.Errorf("Expected hello type, got 0x%02x", packet.Header.PacketType)
	}
	if packet.Header.StreamID != 42 {
		t.Errorf("Expected stream 42, got %d", packet.Header.StreamID)
	}
	if packet.Hello == nil {
		t.Fatal("Hello payload not set")
	}
	if packet.Hello.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", packet.Hello.SampleRate)
	}
	if packet.Hello.GetLabel() != "mic-left" {
		t.Errorf("Expected label %q, got %q", "mic-left", packet.Hello.GetLabel())
	}
	if packet.Audio != nil {
		t.Error("Audio payload set on hello packet")
	}
}

func TestHelloLabelTruncation(t *testing.T) {
	long := "this-label-is-far-longer-than-the-thirty-two-byte-field-allows"
	data := EncodeHello(1, 0, 16000, long)

	packet, err := ParsePacket(data)
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}
	if got := packet.Hello.GetLabel(); got != long[:LabelSize] {
		t.Errorf("Expected truncated label %q, got %q", long[:LabelSize], got)
	}
}

func mustEncodeAudio(t *testing.T, streamID uint32, timestampMS float64, sequence uint32, audioData []byte) []byte {
	t.Helper()
	data, err := EncodeAudio(streamID, timestampMS, sequence, audioData)
	if err != nil {
		t.Fatalf("EncodeAudio failed: %v", err)
	}
	return data
}

func TestAudioRoundTrip(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	data := mustEncodeAudio(t, 7, 1234.5, 99, pcm)

	packet, err := ParsePacket(data)
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}

	if packet.Header.TimestampMS != 1234.5 {
		t.Errorf("Expected timestamp 1234.5, got %f", packet.Header.TimestampMS)
	}
	if packet.Audio == nil {
		t.Fatal("Audio payload not set")
	}
	if packet.Audio.Sequence != 99 {
		t.Errorf("Expected sequence 99, got %d", packet.Audio.Sequence)
	}
	if !bytes.Equal(packet.Audio.AudioData, pcm) {
		t.Errorf("Audio data mismatch: %v vs %v", packet.Audio.AudioData, pcm)
	}
}

func TestByeRoundTrip(t *testing.T) {
	data := EncodeBye(7, 5000)
	if len(data) != HeaderSize {
		t.Fatalf("Bye packet is %d bytes, expected %d", len(data), HeaderSize)
	}

	packet, err := ParsePacket(data)
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}
	if packet.Header.PacketType != PacketTypeBye {
		t.Errorf("Expected bye type, got 0x%02x", packet.Header.PacketType)
	}
	if packet.Hello != nil || packet.Audio != nil {
		t.Error("Bye packet carried a payload")
	}
}

func TestParsePacketErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", make([]byte, HeaderSize-1)},
		{"unknown type", func() []byte {
			data := EncodeBye(1, 0)
			data[0] = 0x7F
			return data
		}()},
		{"length mismatch", append(EncodeBye(1, 0), 0x00)},
		{"odd audio data", mustEncodeAudio(t, 1, 0, 0, []byte{0x01})},
		{"bye with payload", func() []byte {
			data := mustEncodeAudio(t, 1, 0, 0, nil)
			data[0] = PacketTypeBye
			return data
		}()},
		{"oversized packet", make([]byte, MaxPacketSize+1)},
		{"negative timestamp", EncodeBye(1, -5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePacket(tt.data); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}

func TestAudioSizeBounds(t *testing.T) {
	if _, err := EncodeAudio(1, 0, 0, make([]byte, MaxAudioDataSize+2)); err == nil {
		t.Error("Expected error for oversized audio data")
	}

	data := mustEncodeAudio(t, 1, 0, 0, make([]byte, MaxAudioDataSize))
	if len(data) != MaxPacketSize {
		t.Fatalf("Maximum packet is %d bytes, expected %d", len(data), MaxPacketSize)
	}

	packet, err := ParsePacket(data)
	if err != nil {
		t.Fatalf("ParsePacket rejected a maximum-size packet: %v", err)
	}
	if len(packet.Audio.AudioData) != MaxAudioDataSize {
		t.Errorf("Audio data is %d bytes, expected %d", len(packet.Audio.AudioData), MaxAudioDataSize)
	}
}

func TestHeaderString(t *testing.T) {
	data := mustEncodeAudio(t, 3, 10, 0, []byte{0x00, 0x00})
	header, err := ParseHeader(data)
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}

	s := header.String()
	if s == "" {
		t.Error("Empty header string")
	}
}
