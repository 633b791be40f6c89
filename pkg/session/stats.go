package session

import "sync/atomic"

// Stats is a snapshot of controller counters across all sessions.
type Stats struct {
	Ticks          uint64 `json:"ticks"`
	Submitted      uint64 `json:"submitted"`
	NotReady       uint64 `json:"not_ready"`
	BusySkips      uint64 `json:"busy_skips"`
	Failures       uint64 `json:"failures"`
	StaleDiscards  uint64 `json:"stale_discards"`
	Applied        uint64 `json:"applied"`
	InFlight       int64  `json:"in_flight"`
	Sessions       uint64 `json:"sessions"`
	DeviceFailures uint64 `json:"device_failures"`
}

type counters struct {
	ticks          atomic.Uint64
	submitted      atomic.Uint64
	notReady       atomic.Uint64
	busySkips      atomic.Uint64
	failures       atomic.Uint64
	staleDiscards  atomic.Uint64
	applied        atomic.Uint64
	inFlight       atomic.Int64
	sessions       atomic.Uint64
	deviceFailures atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Ticks:          c.ticks.Load(),
		Submitted:      c.submitted.Load(),
		NotReady:       c.notReady.Load(),
		BusySkips:      c.busySkips.Load(),
		Failures:       c.failures.Load(),
		StaleDiscards:  c.staleDiscards.Load(),
		Applied:        c.applied.Load(),
		InFlight:       c.inFlight.Load(),
		Sessions:       c.sessions.Load(),
		DeviceFailures: c.deviceFailures.Load(),
	}
}
