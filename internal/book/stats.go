package book

import (
	"fmt"
	"time"
)

// Stats tracks processed/skipped event counts and, optionally, a rolling
// log of error messages. OutOfSequence is not broken out from other error
// kinds here — a caller wanting per-kind counts should classify entries in
// ErrorMsgs, or extend this struct; the upstream reference implementation
// has the same limitation.
type Stats struct {
	EventsProcessed    uint64
	EventsNotProcessed uint64

	trackErrors bool
	errorMsgs   []string
}

// NewStats builds a Stats tracker. If trackErrors is true, error message
// strings are collected for every non-Outlier failure (see ErrorMsgs).
func NewStats(trackErrors bool) *Stats {
	return &Stats{trackErrors: trackErrors}
}

// recordSuccess counts a successfully applied event.
func (s *Stats) recordSuccess() {
	s.EventsProcessed++
}

// recordOutlier counts an event consumed as a legitimate outlier rejection.
func (s *Stats) recordOutlier() {
	s.EventsNotProcessed++
}

// recordError counts a rejected event and, if enabled, appends a formatted
// message carrying the prior last-applied sequence and the error.
func (s *Stats) recordError(priorSequence uint64, err error) {
	s.EventsNotProcessed++
	if !s.trackErrors {
		return
	}
	s.errorMsgs = append(s.errorMsgs, fmt.Sprintf("%s - sequence %d - %v", time.Now().Format(time.RFC3339Nano), priorSequence, err))
}

// ErrorMsgs returns the collected error messages, or nil if error tracking
// was not enabled.
func (s *Stats) ErrorMsgs() []string {
	if !s.trackErrors {
		return nil
	}
	return s.errorMsgs
}

// TracksErrors reports whether this Stats collects error message strings.
func (s *Stats) TracksErrors() bool {
	return s.trackErrors
}
