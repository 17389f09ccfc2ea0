// Package protocol implements the binary wire format for audio ingest:
// fixed-header packets carrying stream hellos, sequenced PCM-16 audio,
// and stream teardown.
package protocol
