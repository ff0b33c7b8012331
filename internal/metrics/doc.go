// Package metrics defines the Prometheus metrics exported by the audio
// server and a small standalone metrics HTTP server.
package metrics
