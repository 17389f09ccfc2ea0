// Package audio provides PCM sample conversion and sequence-ordered
// reassembly of packetized audio ahead of detection.
package audio
