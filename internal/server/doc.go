// Package server implements the UDP and WebSocket ingest servers and the
// HTTP API. It handles concurrent packet processing, routing to stream
// sessions, and provides monitoring/management endpoints.
package server
