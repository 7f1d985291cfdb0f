package worker

import "time"

// Metrics lets callers observe session lifecycle and per-block timing
// without this package depending on any particular metrics backend.
// Implementers may log, aggregate, or emit traces; all methods are optional
// to implement meaningfully (a NopMetrics is provided for tests/defaults).
// Adapted from the shape of a plugin-catalog metrics hook: named events with
// durations, not a generic counter/gauge API.
type Metrics interface {
	OnSessionStart(sessionID string)
	OnSessionEnd(sessionID string, reason error)
	OnBlockProcessed(sessionID string, duration time.Duration)
	OnSocketError(sessionID string, err error)
}

// NopMetrics implements Metrics with no-ops.
type NopMetrics struct{}

func (NopMetrics) OnSessionStart(sessionID string)                        {}
func (NopMetrics) OnSessionEnd(sessionID string, reason error)            {}
func (NopMetrics) OnBlockProcessed(sessionID string, duration time.Duration) {}
func (NopMetrics) OnSocketError(sessionID string, err error)              {}
