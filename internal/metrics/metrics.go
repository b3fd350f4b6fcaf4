// Package metrics tracks performance and operational statistics for the
// process runtime: messages, reschedules, timeouts, allocator and stack
// pool behavior, and context switches.
package metrics

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks runtime-wide counters. One instance is shared by the
// scheduler, the timeout worker, and every network poller worker.
type Metrics struct {
	// Message/mailbox counters.
	MessagesSent       atomic.Uint64
	ReschedulesAcquired atomic.Uint64
	ReschedulesFailed  atomic.Uint64

	// Timeout worker counters.
	TimeoutsArmed     atomic.Uint64
	TimeoutsFired     atomic.Uint64
	TimeoutsExpired   atomic.Uint64 // invalidated before firing
	DefragmentPasses  atomic.Uint64
	DefragmentRemoved atomic.Uint64

	// Allocator counters.
	BlocksChained   atomic.Uint64
	HolesClaimed    atomic.Uint64
	AllocationsTotal atomic.Uint64

	// Stack pool counters.
	StackPoolHits   atomic.Uint64
	StackPoolMisses atomic.Uint64
	StackPoolShrinks atomic.Uint64

	// Context switch counters.
	ContextSwitches atomic.Uint64

	// Latency histogram for context-switch round trips (process resume to
	// suspend), cumulative counts per bucket.
	SwitchLatencyNs   atomic.Uint64
	SwitchLatencyOps  atomic.Uint64
	SwitchLatencyHist [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64 // UnixNano
	StopTime  atomic.Int64 // UnixNano
}

// New creates a new Metrics instance with its start time set to now.
func New() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordSwitch records the latency of one scheduler<->process context switch.
func (m *Metrics) RecordSwitch(latencyNs uint64) {
	m.ContextSwitches.Add(1)
	m.SwitchLatencyNs.Add(latencyNs)
	m.SwitchLatencyOps.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.SwitchLatencyHist[i].Add(1)
		}
	}
}

// Stop marks the runtime as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// Snapshot is a point-in-time, non-atomic view of Metrics for reporting.
type Snapshot struct {
	MessagesSent        uint64
	ReschedulesAcquired uint64
	ReschedulesFailed   uint64

	TimeoutsArmed     uint64
	TimeoutsFired     uint64
	TimeoutsExpired   uint64
	DefragmentPasses  uint64
	DefragmentRemoved uint64

	BlocksChained    uint64
	HolesClaimed     uint64
	AllocationsTotal uint64

	StackPoolHits    uint64
	StackPoolMisses  uint64
	StackPoolShrinks uint64

	ContextSwitches uint64
	AvgSwitchNs     uint64
	UptimeNs        uint64

	SwitchLatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot returns a consistent-enough point-in-time snapshot.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		MessagesSent:        m.MessagesSent.Load(),
		ReschedulesAcquired: m.ReschedulesAcquired.Load(),
		ReschedulesFailed:   m.ReschedulesFailed.Load(),
		TimeoutsArmed:       m.TimeoutsArmed.Load(),
		TimeoutsFired:       m.TimeoutsFired.Load(),
		TimeoutsExpired:     m.TimeoutsExpired.Load(),
		DefragmentPasses:    m.DefragmentPasses.Load(),
		DefragmentRemoved:   m.DefragmentRemoved.Load(),
		BlocksChained:       m.BlocksChained.Load(),
		HolesClaimed:        m.HolesClaimed.Load(),
		AllocationsTotal:    m.AllocationsTotal.Load(),
		StackPoolHits:       m.StackPoolHits.Load(),
		StackPoolMisses:     m.StackPoolMisses.Load(),
		StackPoolShrinks:    m.StackPoolShrinks.Load(),
		ContextSwitches:     m.ContextSwitches.Load(),
	}

	totalNs := m.SwitchLatencyNs.Load()
	ops := m.SwitchLatencyOps.Load()
	if ops > 0 {
		s.AvgSwitchNs = totalNs / ops
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		s.UptimeNs = uint64(stopTime - startTime)
	} else {
		s.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		s.SwitchLatencyHistogram[i] = m.SwitchLatencyHist[i].Load()
	}

	return s
}

// Observer allows pluggable metrics collection by other components.
type Observer interface {
	ObserveMessageSent()
	ObserveReschedule(acquired bool)
	ObserveTimeoutFired()
	ObserveTimeoutExpired()
	ObserveSwitch(latencyNs uint64)
	ObserveBlockChained()
	ObserveHoleClaimed()
	ObserveStackPoolHit()
	ObserveStackPoolMiss()
	ObserveStackPoolShrink(removed int)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveMessageSent()           {}
func (NoOpObserver) ObserveReschedule(bool)         {}
func (NoOpObserver) ObserveTimeoutFired()           {}
func (NoOpObserver) ObserveTimeoutExpired()         {}
func (NoOpObserver) ObserveSwitch(uint64)           {}
func (NoOpObserver) ObserveBlockChained()           {}
func (NoOpObserver) ObserveHoleClaimed()            {}
func (NoOpObserver) ObserveStackPoolHit()           {}
func (NoOpObserver) ObserveStackPoolMiss()          {}
func (NoOpObserver) ObserveStackPoolShrink(int)     {}

// MetricsObserver implements Observer by writing into a Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewObserver creates an observer that records into the given Metrics.
func NewObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveMessageSent() {
	o.metrics.MessagesSent.Add(1)
}

func (o *MetricsObserver) ObserveReschedule(acquired bool) {
	if acquired {
		o.metrics.ReschedulesAcquired.Add(1)
	} else {
		o.metrics.ReschedulesFailed.Add(1)
	}
}

func (o *MetricsObserver) ObserveTimeoutFired() {
	o.metrics.TimeoutsFired.Add(1)
}

func (o *MetricsObserver) ObserveTimeoutExpired() {
	o.metrics.TimeoutsExpired.Add(1)
}

func (o *MetricsObserver) ObserveSwitch(latencyNs uint64) {
	o.metrics.RecordSwitch(latencyNs)
}

func (o *MetricsObserver) ObserveBlockChained() {
	o.metrics.BlocksChained.Add(1)
}

func (o *MetricsObserver) ObserveHoleClaimed() {
	o.metrics.HolesClaimed.Add(1)
}

func (o *MetricsObserver) ObserveStackPoolHit() {
	o.metrics.StackPoolHits.Add(1)
}

func (o *MetricsObserver) ObserveStackPoolMiss() {
	o.metrics.StackPoolMisses.Add(1)
}

func (o *MetricsObserver) ObserveStackPoolShrink(removed int) {
	o.metrics.StackPoolShrinks.Add(uint64(removed))
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
