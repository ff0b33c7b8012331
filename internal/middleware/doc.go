// Package middleware provides the HTTP middleware chain: CORS, admission
// control, W3C request logging, Prometheus metrics and the auth gate.
package middleware
