// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress emits canned, category-tagged status events on a
// fixed cadence while a research request is outstanding. The schedule
// is illustrative only: it is not synchronized to real pipeline
// progress, and stopping it is deterministic — after Stop returns, no
// further events are ever delivered.
package progress

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pdiddy/research-agent/pkg/types"
)

// step is one canned entry in the progress script.
type step struct {
	message  string
	category types.ProgressCategory
}

// script is the fixed, ordered list of progress messages. Analyze
// steps bump the running "sources analyzed" counter.
var script = []step{
	{"Breaking down your question into research areas...", types.ProgressInfo},
	{"Searching industry reports and publications...", types.ProgressSearch},
	{"Analyzing market data sources...", types.ProgressAnalyze},
	{"Searching for recent news and announcements...", types.ProgressSearch},
	{"Evaluating source credibility...", types.ProgressAnalyze},
	{"Cross-referencing findings across sources...", types.ProgressAnalyze},
	{"Identifying knowledge gaps...", types.ProgressInfo},
	{"Synthesizing findings into a report...", types.ProgressSynthesize},
	{"Finalizing citations and formatting...", types.ProgressSynthesize},
}

const defaultInterval = 2 * time.Second

// Scheduler creates progress runs. The zero value is not usable; use
// NewScheduler.
type Scheduler struct {
	interval time.Duration

	// rngMu guards rng: a superseded run's goroutine can overlap its
	// replacement briefly.
	rngMu sync.Mutex
	rng   *rand.Rand
}

func (s *Scheduler) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

// NewScheduler returns a Scheduler emitting one event per interval.
// A non-positive interval selects the default cadence.
func NewScheduler(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run is a handle for one emission sequence. Stop cancels all future
// emissions; it is safe to call more than once and from any goroutine.
type Run struct {
	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// Start begins emitting the canned script, invoking onEvent once per
// tick until the script is exhausted or Stop is called. onEvent is
// never invoked after Stop returns: the stopped flag is checked under
// the same lock that Stop holds, so a tick racing with Stop either
// completes before Stop returns or is discarded.
func (s *Scheduler) Start(onEvent func(types.ProgressEvent)) *Run {
	run := &Run{done: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		sourcesSoFar := 0
		for i, st := range script {
			select {
			case <-run.done:
				return
			case <-ticker.C:
			}

			if st.category == types.ProgressAnalyze {
				sourcesSoFar += 2 + s.intn(3)
			}
			event := types.ProgressEvent{
				ID:           i + 1,
				Message:      st.message,
				Category:     st.category,
				EmittedAt:    time.Now(),
				SourcesSoFar: sourcesSoFar,
			}

			run.mu.Lock()
			if run.stopped {
				run.mu.Unlock()
				return
			}
			onEvent(event)
			run.mu.Unlock()
		}
	}()

	return run
}

// Stop cancels the run. Once Stop returns, zero further events are
// delivered, even if a tick was already pending.
func (r *Run) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	close(r.done)
}

// Steps returns the number of canned steps in the script. Exposed so
// callers can size progress displays.
func Steps() int {
	return len(script)
}
