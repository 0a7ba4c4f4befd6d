package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-agent/pkg/types"
)

// collector gathers emitted events behind a lock so tests can inspect
// them while the run is live.
type collector struct {
	mu     sync.Mutex
	events []types.ProgressEvent
}

func (c *collector) add(e types.ProgressEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) snapshot() []types.ProgressEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.ProgressEvent, len(c.events))
	copy(out, c.events)
	return out
}

func TestRunEmitsFullScriptInOrder(t *testing.T) {
	var c collector
	run := NewScheduler(time.Millisecond).Start(c.add)
	defer run.Stop()

	require.Eventually(t, func() bool {
		return len(c.snapshot()) == Steps()
	}, time.Second, time.Millisecond)

	events := c.snapshot()
	for i, e := range events {
		assert.Equal(t, i+1, e.ID)
		assert.Equal(t, script[i].message, e.Message)
		assert.Equal(t, script[i].category, e.Category)
	}
}

func TestAnalyzeStepsIncrementSourceCounter(t *testing.T) {
	var c collector
	run := NewScheduler(time.Millisecond).Start(c.add)
	defer run.Stop()

	require.Eventually(t, func() bool {
		return len(c.snapshot()) == Steps()
	}, time.Second, time.Millisecond)

	prev := 0
	for _, e := range c.snapshot() {
		if e.Category == types.ProgressAnalyze {
			assert.Greater(t, e.SourcesSoFar, prev)
		} else {
			assert.Equal(t, prev, e.SourcesSoFar)
		}
		prev = e.SourcesSoFar
	}
}

func TestStopHaltsEmission(t *testing.T) {
	var c collector
	run := NewScheduler(time.Millisecond).Start(c.add)

	require.Eventually(t, func() bool {
		return len(c.snapshot()) >= 1
	}, time.Second, time.Millisecond)

	run.Stop()
	seen := len(c.snapshot())

	// Give any wrongly-surviving tick ample time to fire.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, seen, len(c.snapshot()))
}

func TestStopBeforeFirstTick(t *testing.T) {
	var c collector
	run := NewScheduler(50 * time.Millisecond).Start(c.add)
	run.Stop()

	time.Sleep(120 * time.Millisecond)
	assert.Empty(t, c.snapshot())
}

func TestStopIsIdempotent(t *testing.T) {
	run := NewScheduler(time.Millisecond).Start(func(types.ProgressEvent) {})
	run.Stop()
	assert.NotPanics(t, run.Stop)
}

func TestStopUnderRepeatedTimings(t *testing.T) {
	// Exercise many stop timings relative to the tick boundary; the
	// count observed at Stop must never grow afterwards.
	for i := 0; i < 20; i++ {
		var c collector
		run := NewScheduler(time.Millisecond).Start(c.add)
		time.Sleep(time.Duration(i) * 200 * time.Microsecond)
		run.Stop()
		seen := len(c.snapshot())
		time.Sleep(5 * time.Millisecond)
		require.Equal(t, seen, len(c.snapshot()), "timing %d", i)
	}
}
