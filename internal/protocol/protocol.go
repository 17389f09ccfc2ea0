package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Wire format constants
const (
	// Packet types
	PacketTypeHello = 0x01
	PacketTypeAudio = 0x02
	PacketTypeBye   = 0x03

	// Packet structure sizes
	HeaderSize             = 16 // 1 + 1 + 2 + 4 + 8 bytes
	HelloPayloadSize       = 36 // 4 + 32 bytes
	AudioPayloadHeaderSize = 4  // Sequence number (4 bytes)

	// Fixed label field size in the hello payload
	LabelSize = 32

	// MaxAudioDataSize bounds the PCM payload of one audio packet: the
	// largest even byte count that keeps PacketLen within its 16-bit field.
	MaxAudioDataSize = 65514

	// MaxPacketSize is the largest valid packet on the wire.
	MaxPacketSize = HeaderSize + AudioPayloadHeaderSize + MaxAudioDataSize
)

// Header is the fixed 16-byte packet header.
// Layout: [PacketType:1][Flags:1][PacketLen:2][StreamID:4][TimestampMS:8]
//
// TimestampMS is the sender's stream clock in milliseconds, IEEE-754 encoded.
// All integer fields are big-endian.
type Header struct {
	PacketType  uint8
	Flags       uint8
	PacketLen   uint16 // Total packet size (header + payload)
	StreamID    uint32
	TimestampMS float64
}

// HelloPayload opens a stream.
// Layout: [SampleRate:4][Label:32]
type HelloPayload struct {
	SampleRate uint32
	Label      [LabelSize]byte // Null-terminated string
}

// AudioPayload carries one chunk of PCM-16 audio.
// Layout: [Sequence:4][AudioData:N]
type AudioPayload struct {
	Sequence  uint32
	AudioData []byte // int16 little-endian PCM
}

// ParsedPacket is a fully parsed packet.
type ParsedPacket struct {
	Header *Header
	Hello  *HelloPayload // Only set for hello packets
	Audio  *AudioPayload // Only set for audio packets
}

// ParseHeader parses the 16-byte packet header.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("header too short: expected %d bytes, got %d", HeaderSize, len(data))
	}

	return &Header{
		PacketType:  data[0],
		Flags:       data[1],
		PacketLen:   binary.BigEndian.Uint16(data[2:4]),
		StreamID:    binary.BigEndian.Uint32(data[4:8]),
		TimestampMS: math.Float64frombits(binary.BigEndian.Uint64(data[8:16])),
	}, nil
}

// ParseHelloPayload parses the 36-byte hello payload.
func ParseHelloPayload(data []byte) (*HelloPayload, error) {
	if len(data) < HelloPayloadSize {
		return nil, fmt.Errorf("hello payload too short: expected %d bytes, got %d",
			HelloPayloadSize, len(data))
	}

	payload := &HelloPayload{
		SampleRate: binary.BigEndian.Uint32(data[0:4]),
	}
	copy(payload.Label[:], data[4:4+LabelSize])

	return payload, nil
}

// ParseAudioPayload parses the audio payload (4-byte sequence + PCM data).
func ParseAudioPayload(data []byte) (*AudioPayload, error) {
	if len(data) < AudioPayloadHeaderSize {
		return nil, fmt.Errorf("audio payload too short: expected at least %d bytes, got %d",
			AudioPayloadHeaderSize, len(data))
	}

	payload := &AudioPayload{
		Sequence: binary.BigEndian.Uint32(data[0:4]),
	}

	if len(data) > AudioPayloadHeaderSize {
		payload.AudioData = make([]byte, len(data)-AudioPayloadHeaderSize)
		copy(payload.AudioData, data[AudioPayloadHeaderSize:])
	}

	return payload, nil
}

// ParsePacket parses a complete packet (header + payload).
func ParsePacket(data []byte) (*ParsedPacket, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("packet too short: expected at least %d bytes, got %d", HeaderSize, len(data))
	}

	if len(data) > MaxPacketSize {
		return nil, fmt.Errorf("packet too large: %d bytes (maximum %d)", len(data), MaxPacketSize)
	}

	header, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if int(header.PacketLen) != len(data) {
		return nil, fmt.Errorf("packet length mismatch: header says %d bytes, got %d bytes",
			header.PacketLen, len(data))
	}

	if err := ValidateHeader(header); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	packet := &ParsedPacket{Header: header}
	payloadData := data[HeaderSize:]

	switch header.PacketType {
	case PacketTypeHello:
		payload, err := ParseHelloPayload(payloadData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse hello payload: %w", err)
		}
		packet.Hello = payload

	case PacketTypeAudio:
		payload, err := ParseAudioPayload(payloadData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audio payload: %w", err)
		}
		packet.Audio = payload

	case PacketTypeBye:
		// Header only.

	default:
		return nil, fmt.Errorf("unknown packet type: 0x%02x", header.PacketType)
	}

	return packet, nil
}

// ValidateHeader validates the packet header fields.
func ValidateHeader(header *Header) error {
	if !IsValidPacketType(header.PacketType) {
		return fmt.Errorf("invalid packet type: 0x%02x", header.PacketType)
	}

	if header.PacketLen < HeaderSize {
		return fmt.Errorf("packet length too small: %d (minimum %d)", header.PacketLen, HeaderSize)
	}

	if header.TimestampMS < 0 || math.IsNaN(header.TimestampMS) || math.IsInf(header.TimestampMS, 0) {
		return fmt.Errorf("invalid timestamp: %f", header.TimestampMS)
	}

	expectedPayloadSize := int(header.PacketLen) - HeaderSize
	switch header.PacketType {
	case PacketTypeHello:
		if expectedPayloadSize != HelloPayloadSize {
			return fmt.Errorf("hello packet payload size mismatch: expected %d, got %d",
				HelloPayloadSize, expectedPayloadSize)
		}
	case PacketTypeAudio:
		if expectedPayloadSize < AudioPayloadHeaderSize {
			return fmt.Errorf("audio packet payload too small: expected at least %d, got %d",
				AudioPayloadHeaderSize, expectedPayloadSize)
		}
		if (expectedPayloadSize-AudioPayloadHeaderSize)%2 != 0 {
			return fmt.Errorf("audio data length must be even, got %d", expectedPayloadSize-AudioPayloadHeaderSize)
		}
	case PacketTypeBye:
		if expectedPayloadSize != 0 {
			return fmt.Errorf("bye packet carries no payload, got %d bytes", expectedPayloadSize)
		}
	}

	return nil
}

// IsValidPacketType checks if the packet type is valid.
func IsValidPacketType(ptype uint8) bool {
	return ptype == PacketTypeHello || ptype == PacketTypeAudio || ptype == PacketTypeBye
}

// EncodeHello builds a complete hello packet. Labels longer than the label
// field are truncated.
func EncodeHello(streamID uint32, timestampMS float64, sampleRate uint32, label string) []byte {
	packet := make([]byte, HeaderSize+HelloPayloadSize)
	encodeHeader(packet, PacketTypeHello, streamID, timestampMS)

	binary.BigEndian.PutUint32(packet[HeaderSize:], sampleRate)
	copy(packet[HeaderSize+4:HeaderSize+4+LabelSize], label)

	return packet
}

// EncodeAudio builds a complete audio packet around little-endian PCM-16 data.
// Oversized payloads are rejected: the packet length must fit the 16-bit
// header field.
func EncodeAudio(streamID uint32, timestampMS float64, sequence uint32, audioData []byte) ([]byte, error) {
	if len(audioData) > MaxAudioDataSize {
		return nil, fmt.Errorf("audio data too large: %d bytes (maximum %d)", len(audioData), MaxAudioDataSize)
	}

	packet := make([]byte, HeaderSize+AudioPayloadHeaderSize+len(audioData))
	encodeHeader(packet, PacketTypeAudio, streamID, timestampMS)

	binary.BigEndian.PutUint32(packet[HeaderSize:], sequence)
	copy(packet[HeaderSize+AudioPayloadHeaderSize:], audioData)

	return packet, nil
}

// EncodeBye builds a complete bye packet.
func EncodeBye(streamID uint32, timestampMS float64) []byte {
	packet := make([]byte, HeaderSize)
	encodeHeader(packet, PacketTypeBye, streamID, timestampMS)
	return packet
}

func encodeHeader(packet []byte, ptype uint8, streamID uint32, timestampMS float64) {
	packet[0] = ptype
	packet[1] = 0
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(packet)))
	binary.BigEndian.PutUint32(packet[4:8], streamID)
	binary.BigEndian.PutUint64(packet[8:16], math.Float64bits(timestampMS))
}

// ExtractString extracts a null-terminated string from a fixed-size byte array.
func ExtractString(buf []byte) string {
	nullPos := len(buf)
	for i, b := range buf {
		if b == 0 {
			nullPos = i
			break
		}
	}
	return string(buf[:nullPos])
}

// GetLabel extracts the stream label as a string.
func (p *HelloPayload) GetLabel() string {
	return ExtractString(p.Label[:])
}

// String returns a human-readable representation of the header.
func (h *Header) String() string {
	var packetType string
	switch h.PacketType {
	case PacketTypeHello:
		packetType = "Hello"
	case PacketTypeAudio:
		packetType = "Audio"
	case PacketTypeBye:
		packetType = "Bye"
	default:
		packetType = fmt.Sprintf("Unknown(0x%02x)", h.PacketType)
	}

	return fmt.Sprintf("Header{Type:%s, Len:%d, StreamID:%d, TimestampMS:%.1f}",
		packetType, h.PacketLen, h.StreamID, h.TimestampMS)
}

// String returns a human-readable representation of the hello payload.
func (p *HelloPayload) String() string {
	return fmt.Sprintf("HelloPayload{SampleRate:%d, Label:%q}", p.SampleRate, p.GetLabel())
}

// String returns a human-readable representation of the audio payload.
func (p *AudioPayload) String() string {
	return fmt.Sprintf("AudioPayload{Sequence:%d, AudioDataLen:%d}", p.Sequence, len(p.AudioData))
}
