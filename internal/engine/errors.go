// Package engine tracks vehicle zone presence and enforces dwell budgets.
//
// One engine instance owns all per-vehicle state. Telemetry for the same
// vehicle is serialized; distinct vehicles proceed concurrently. The active
// zone snapshot is swapped atomically so every sample is evaluated against
// exactly one consistent zone set.
package engine

import (
	"fmt"
	"time"
)

// StaleSampleError rejects telemetry that does not advance a vehicle's
// clock. The sample is dropped without touching tracker state, so replayed
// or duplicated fixes are harmless.
type StaleSampleError struct {
	AuvID     string
	Timestamp time.Time
	Last      time.Time
}

func (e *StaleSampleError) Error() string {
	return fmt.Sprintf("stale sample for %s: %s is not after %s",
		e.AuvID, e.Timestamp.Format(time.RFC3339), e.Last.Format(time.RFC3339))
}

// InvalidSampleError wraps a field validation failure.
type InvalidSampleError struct {
	AuvID string
	Err   error
}

func (e *InvalidSampleError) Error() string {
	return fmt.Sprintf("invalid sample for %q: %v", e.AuvID, e.Err)
}

func (e *InvalidSampleError) Unwrap() error { return e.Err }
