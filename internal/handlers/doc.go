// Package handlers implements the HTTP API: audio streaming with range
// and transcoding support, folder browsing and search, covers and
// descriptions with scaled icons, authentication, health probes and the
// static web client.
//
// Content routes exist in two forms, bare and under a numeric collection
// prefix: /audio/... serves collection 0, /2/audio/... collection 2.
package handlers
