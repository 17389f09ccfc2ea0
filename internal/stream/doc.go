// Package stream manages the lifecycle of active audio sessions: creation on
// stream hello, packet routing into per-session detectors, and teardown on
// bye, inactivity timeout, or shutdown.
package stream
