// Package httprange parses HTTP Range headers into a single validated byte
// range. Only the bytes unit and exactly one range per request are
// supported; multipart/byteranges responses are deliberately out of scope.
package httprange
