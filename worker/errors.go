package worker

import "errors"

// Sentinel error kinds, matchable with errors.Is, per spec §7.
var (
	ErrChannelMismatch    = errors.New("worker: received buffer smaller than active-channel mask")
	ErrIO                 = errors.New("worker: socket read/write failure")
	ErrBusesNegotiation   = errors.New("worker: bus negotiation failed for a mid-session plugin change")
	ErrSessionShuttingDown = errors.New("worker: session is shutting down")
)
