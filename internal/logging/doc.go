// Package logging provides a simple leveled logging interface for the
// audio server.
//
// Levels, from most to least verbose: DEBUG, INFO, WARN, ERROR, FATAL.
// The level is configured once via the LOG_LEVEL environment variable,
// or forced to debug with DEBUG=true.
package logging
