package logging

import (
	"sync"
	"time"
)

// StatusReporter coalesces repeated failures of a recurring operation into a
// single status message. The detection loop runs unattended for hours; a
// window that cannot be captured would otherwise produce one error line per
// tick. The first failure is logged once, later failures are counted
// silently, and recovery logs a single summary.
type StatusReporter struct {
	log       *Logger
	operation string

	mu         sync.Mutex
	failing    bool
	failures   int
	firstError error
	since      time.Time
}

// NewStatusReporter creates a reporter for a named recurring operation.
func NewStatusReporter(log *Logger, operation string) *StatusReporter {
	return &StatusReporter{
		log:       log,
		operation: operation,
	}
}

// Failure records one failed attempt and reports whether this attempt began
// a new failure streak. Only that transition produces a log line.
func (sr *StatusReporter) Failure(err error) bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	sr.failures++
	if sr.failing {
		return false
	}

	sr.failing = true
	sr.firstError = err
	sr.since = time.Now()
	sr.log.ErrorWithContext(sr.operation+" failing", err, nil)
	return true
}

// Success records one successful attempt. The transition out of the failing
// state logs a summary and reports how many failures were coalesced;
// recovered is false when the operation was not failing.
func (sr *StatusReporter) Success() (recovered bool, failures int) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if !sr.failing {
		return false, 0
	}

	failures = sr.failures
	sr.log.InfoWithContext(sr.operation+" recovered", map[string]interface{}{
		"failures": failures,
		"down_for": time.Since(sr.since).Round(time.Millisecond).String(),
	})
	sr.failing = false
	sr.failures = 0
	sr.firstError = nil
	return true, failures
}

// Failing reports whether the operation is currently in the failing state.
func (sr *StatusReporter) Failing() bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.failing
}

// FailureCount returns the number of failures recorded since the last
// recovery.
func (sr *StatusReporter) FailureCount() int {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.failures
}
