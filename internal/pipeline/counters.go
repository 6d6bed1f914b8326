package pipeline

import "sync/atomic"

// ServiceCounters tracks aggregate per-process record outcomes. All fields
// are updated atomically; the router increments each counter exactly once
// per terminal outcome.
type ServiceCounters struct {
	received        atomic.Int64
	validatedOK     atomic.Int64
	validatedFailed atomic.Int64
	published       atomic.Int64
	deadLettered    atomic.Int64
	fallbackLogged  atomic.Int64
}

func (c *ServiceCounters) IncReceived()        { c.received.Add(1) }
func (c *ServiceCounters) IncValidatedOK()     { c.validatedOK.Add(1) }
func (c *ServiceCounters) IncValidatedFailed() { c.validatedFailed.Add(1) }
func (c *ServiceCounters) IncPublished()       { c.published.Add(1) }
func (c *ServiceCounters) IncDeadLettered()    { c.deadLettered.Add(1) }
func (c *ServiceCounters) IncFallbackLogged()  { c.fallbackLogged.Add(1) }

// CountersSnapshot is a point-in-time read of the service counters,
// returned by the status endpoint.
type CountersSnapshot struct {
	Received        int64 `json:"received"`
	ValidatedOK     int64 `json:"validated_ok"`
	ValidatedFailed int64 `json:"validated_failed"`
	Published       int64 `json:"published"`
	DeadLettered    int64 `json:"dead_lettered"`
	FallbackLogged  int64 `json:"fallback_logged"`
}

// Snapshot returns the current counter values.
func (c *ServiceCounters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		Received:        c.received.Load(),
		ValidatedOK:     c.validatedOK.Load(),
		ValidatedFailed: c.validatedFailed.Load(),
		Published:       c.published.Load(),
		DeadLettered:    c.deadLettered.Load(),
		FallbackLogged:  c.fallbackLogged.Load(),
	}
}
