package httprange

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ByteRange is a single inclusive byte range. A nil End means "to the end
// of the file".
type ByteRange struct {
	Start uint64
	End   *uint64
}

// Length returns the number of bytes the range covers within a resource of
// the given size, clamping End to size-1. The second return value is false
// when Start lies beyond the resource.
func (r ByteRange) Length(size uint64) (uint64, bool) {
	if r.Start >= size {
		return 0, false
	}
	end := size - 1
	if r.End != nil && *r.End < end {
		end = *r.End
	}
	return end - r.Start + 1, true
}

func (r ByteRange) String() string {
	if r.End != nil {
		return fmt.Sprintf("bytes=%d-%d", r.Start, *r.End)
	}
	return fmt.Sprintf("bytes=%d-", r.Start)
}

// ParseError describes a Range header the server rejects, together with the
// HTTP status the response must carry.
type ParseError struct {
	Status  int
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

var (
	errNoRanges = &ParseError{http.StatusBadRequest, "One range is required"}
	errMultiple = &ParseError{http.StatusNotImplemented, "Do not support multiple ranges"}
	errNotBytes = &ParseError{http.StatusNotImplemented, "Other than bytes ranges are not supported"}
	errInvalid  = &ParseError{http.StatusBadRequest, "Invalid bytes range"}
)

// Parse validates a Range header value. An empty header yields (nil, nil):
// the whole resource is requested. Exactly one bytes range of the form
// "start-" or "start-end" is accepted; everything else fails with a
// *ParseError carrying the status to respond with.
func Parse(header string) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}

	unit, spec, found := strings.Cut(header, "=")
	if !found {
		return nil, errInvalid
	}
	if strings.TrimSpace(unit) != "bytes" {
		return nil, errNotBytes
	}

	var specs []string
	for _, s := range strings.Split(spec, ",") {
		if s = strings.TrimSpace(s); s != "" {
			specs = append(specs, s)
		}
	}

	switch {
	case len(specs) == 0:
		return nil, errNoRanges
	case len(specs) > 1:
		return nil, errMultiple
	}

	startStr, endStr, found := strings.Cut(specs[0], "-")
	if !found || startStr == "" {
		// Suffix ranges ("-500") carry no start offset and are not produced
		// by the players this server targets.
		return nil, errInvalid
	}

	start, err := strconv.ParseUint(strings.TrimSpace(startStr), 10, 64)
	if err != nil {
		return nil, errInvalid
	}

	br := &ByteRange{Start: start}
	if endStr = strings.TrimSpace(endStr); endStr != "" {
		end, err := strconv.ParseUint(endStr, 10, 64)
		if err != nil || end < start {
			return nil, errInvalid
		}
		br.End = &end
	}
	return br, nil
}
