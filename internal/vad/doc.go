// Package vad implements streaming voice activity detection. It re-aligns
// arbitrarily sized sample chunks into fixed scoring windows, converts noisy
// per-window probabilities into stable speech boundaries via dual-threshold
// hysteresis, and assembles emitted segments with a pre-roll audio pad.
package vad
