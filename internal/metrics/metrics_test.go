package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsStartsClock(t *testing.T) {
	m := New()
	require.NotZero(t, m.StartTime.Load())
	assert.Zero(t, m.StopTime.Load())
}

func TestRecordSwitchUpdatesHistogram(t *testing.T) {
	m := New()
	m.RecordSwitch(5_000) // 5us, falls in the 10us bucket and above

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.ContextSwitches)
	assert.Equal(t, uint64(5_000), snap.AvgSwitchNs)

	// bucket 0 is 1us, 5us should not count there; bucket 1 is 10us, should.
	assert.Equal(t, uint64(0), snap.SwitchLatencyHistogram[0])
	assert.Equal(t, uint64(1), snap.SwitchLatencyHistogram[1])
	// every larger bucket is cumulative
	assert.Equal(t, uint64(1), snap.SwitchLatencyHistogram[numLatencyBuckets-1])
}

func TestObserverReschedule(t *testing.T) {
	m := New()
	o := NewObserver(m)

	o.ObserveReschedule(true)
	o.ObserveReschedule(true)
	o.ObserveReschedule(false)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.ReschedulesAcquired)
	assert.Equal(t, uint64(1), snap.ReschedulesFailed)
}

func TestObserverConcurrentSafety(t *testing.T) {
	m := New()
	o := NewObserver(m)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.ObserveMessageSent()
			o.ObserveSwitch(1_000)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, uint64(100), snap.MessagesSent)
	assert.Equal(t, uint64(100), snap.ContextSwitches)
}

func TestNoOpObserverDoesNothing(t *testing.T) {
	var o NoOpObserver
	assert.NotPanics(t, func() {
		o.ObserveMessageSent()
		o.ObserveReschedule(true)
		o.ObserveTimeoutFired()
		o.ObserveTimeoutExpired()
		o.ObserveSwitch(1)
		o.ObserveBlockChained()
		o.ObserveHoleClaimed()
		o.ObserveStackPoolHit()
		o.ObserveStackPoolMiss()
		o.ObserveStackPoolShrink(2)
	})
}

func TestStopSetsUptimeBound(t *testing.T) {
	m := New()
	m.Stop()
	snap := m.Snapshot()
	assert.GreaterOrEqual(t, snap.UptimeNs, uint64(0))
}
