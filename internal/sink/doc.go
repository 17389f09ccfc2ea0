// Package sink archives speech segments to disk as WAV files.
package sink
