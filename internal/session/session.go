// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session owns the single live research session. The
// orchestrator sequences the progress scheduler and the generation
// pipeline, normalizes the provider's answer into a report, persists
// best-effort side effects, and exposes phase/progress/report/error
// to its consumer.
//
// Exactly one logical flow mutates the session at a time, but that
// flow hops goroutines (scheduler ticks, the provider call, store
// writes), so the session record sits behind a mutex. An epoch counter
// guards against stale results: a provider response that resolves
// after its session was reset or superseded is silently discarded.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/generate"
	"github.com/pdiddy/research-agent/internal/normalize"
	"github.com/pdiddy/research-agent/internal/progress"
	"github.com/pdiddy/research-agent/internal/store"
	"github.com/pdiddy/research-agent/pkg/types"
)

// Snapshot is a copied, read-only view of the session for the UI
// boundary.
type Snapshot struct {
	Phase               types.Phase
	CurrentQuestion     *types.Question
	ProgressEvents      []types.ProgressEvent
	CurrentReport       *types.Report
	ConversationHistory []types.Exchange
	Err                 string
	SourcesSoFar        int
}

// Orchestrator drives research sessions. One orchestrator instance
// holds one live session; it is reusable indefinitely.
type Orchestrator struct {
	pipeline  *generate.Pipeline
	scheduler *progress.Scheduler
	store     store.SessionStore
	logger    *zap.Logger
	userID    string

	mu              sync.Mutex
	phase           types.Phase
	currentQuestion *types.Question
	depth           types.Depth
	progressEvents  []types.ProgressEvent
	currentReport   *types.Report
	history         []types.Exchange
	errMsg          string
	sourcesSoFar    int

	epoch           int
	run             *progress.Run
	remoteSessionID string
	startedAt       time.Time
	done            chan struct{}
}

// New builds an Orchestrator. A nil store disables persistence and a
// nil logger disables logging.
func New(pipeline *generate.Pipeline, scheduler *progress.Scheduler, st store.SessionStore, logger *zap.Logger, userID string) *Orchestrator {
	if st == nil {
		st = store.NopStore{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		pipeline:  pipeline,
		scheduler: scheduler,
		store:     st,
		logger:    logger,
		userID:    userID,
		phase:     types.PhaseIdle,
		depth:     types.DepthStandard,
	}
}

// StartResearch begins research on questionText at the given depth.
// It validates synchronously, transitions to researching, and returns
// immediately; completion is observed through Snapshot or Done. Any
// outstanding research is superseded: its scheduler is cancelled and
// its eventual provider result will be dropped.
func (o *Orchestrator) StartResearch(questionText string, depth types.Depth) error {
	if isBlank(questionText) {
		// Rejected before any state change.
		return generate.ErrEmptyQuestion
	}

	o.stopCurrentRun()

	question := types.Question{
		ID:          uuid.NewString(),
		Text:        questionText,
		SubmittedAt: time.Now(),
	}

	o.mu.Lock()
	o.epoch++
	epoch := o.epoch
	if o.done != nil {
		// Release anyone waiting on superseded research.
		select {
		case <-o.done:
		default:
			close(o.done)
		}
	}
	o.phase = types.PhaseResearching
	o.currentQuestion = &question
	o.depth = types.NormalizeDepth(string(depth))
	o.progressEvents = nil
	o.currentReport = nil
	o.errMsg = ""
	o.sourcesSoFar = 0
	o.remoteSessionID = ""
	o.startedAt = time.Now()
	o.done = make(chan struct{})
	o.run = o.scheduler.Start(func(e types.ProgressEvent) {
		o.appendEvent(epoch, e)
	})
	runDepth := o.depth
	o.mu.Unlock()

	o.logger.Info("research started",
		zap.String("question_id", question.ID),
		zap.String("depth", string(runDepth)))

	// Best-effort remote session record; never blocks or fails research.
	go o.createRemoteSession(epoch, questionText)

	go o.runPipeline(epoch, question, runDepth)
	return nil
}

// SubmitFollowUp starts research on a follow-up question using the
// session's current depth. History accumulates across follow-ups.
func (o *Orchestrator) SubmitFollowUp(questionText string) error {
	o.mu.Lock()
	depth := o.depth
	o.mu.Unlock()
	return o.StartResearch(questionText, depth)
}

// Reset cancels the progress scheduler, clears all session fields, and
// returns to idle. After Reset returns, no further progress events are
// appended. An in-flight provider call is not aborted at the transport
// level; its result is discarded by the epoch guard (and bounded by
// the pipeline's per-call timeout).
func (o *Orchestrator) Reset() {
	o.stopCurrentRun()

	o.mu.Lock()
	o.epoch++
	o.phase = types.PhaseIdle
	o.currentQuestion = nil
	o.progressEvents = nil
	o.currentReport = nil
	o.history = nil
	o.errMsg = ""
	o.sourcesSoFar = 0
	o.remoteSessionID = ""
	done := o.done
	o.done = nil
	o.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		default:
			close(done)
		}
	}
	o.logger.Info("session reset")
}

// Snapshot returns a copied view of the session.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		Phase:        o.phase,
		Err:          o.errMsg,
		SourcesSoFar: o.sourcesSoFar,
	}
	if o.currentQuestion != nil {
		q := *o.currentQuestion
		snap.CurrentQuestion = &q
	}
	if o.currentReport != nil {
		r := *o.currentReport
		snap.CurrentReport = &r
	}
	snap.ProgressEvents = make([]types.ProgressEvent, len(o.progressEvents))
	copy(snap.ProgressEvents, o.progressEvents)
	snap.ConversationHistory = make([]types.Exchange, len(o.history))
	copy(snap.ConversationHistory, o.history)
	return snap
}

// Done returns a channel closed when the current research settles
// (completed, error, or reset). Returns nil when no research has been
// started.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

// stopCurrentRun stops the active scheduler run. Must be called
// without holding o.mu: Stop waits for any in-flight tick, and ticks
// take o.mu to append their event.
func (o *Orchestrator) stopCurrentRun() {
	o.mu.Lock()
	run := o.run
	o.run = nil
	o.mu.Unlock()
	if run != nil {
		run.Stop()
	}
}

// appendEvent records a progress event if its research is still the
// current one.
func (o *Orchestrator) appendEvent(epoch int, e types.ProgressEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if epoch != o.epoch || o.phase != types.PhaseResearching {
		return
	}
	o.progressEvents = append(o.progressEvents, e)
	o.sourcesSoFar = e.SourcesSoFar
}

// runPipeline makes the single provider call and applies its result.
func (o *Orchestrator) runPipeline(epoch int, question types.Question, depth types.Depth) {
	resp, err := o.pipeline.Generate(context.Background(), question.Text, depth)
	o.finish(epoch, question, resp, err)
}

// finish applies a pipeline result to the session, unless the session
// has moved on. The provider result, not the scheduler, decides
// completed/error: pending ticks are cancelled first and never emitted.
func (o *Orchestrator) finish(epoch int, question types.Question, resp generate.Response, genErr error) {
	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		o.logger.Debug("stale provider result dropped",
			zap.String("question_id", question.ID))
		return
	}
	run := o.run
	o.run = nil
	startedAt := o.startedAt
	o.mu.Unlock()

	if run != nil {
		run.Stop()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	// The session may have been reset or restarted while the scheduler
	// was being stopped.
	if epoch != o.epoch {
		o.logger.Debug("stale provider result dropped",
			zap.String("question_id", question.ID))
		return
	}

	if genErr != nil {
		o.phase = types.PhaseError
		o.errMsg = userMessage(genErr)
		o.logger.Warn("research failed",
			zap.String("question_id", question.ID),
			zap.Error(genErr))
		go o.updateRemoteStatus(o.remoteSessionID, types.StatusFailed)
	} else {
		report := normalize.Normalize(resp.Text, question.Text)
		report.DurationSeconds = time.Since(startedAt).Seconds()
		report.Usage = resp.Usage

		o.currentReport = &report
		o.history = append(o.history, types.Exchange{Question: question, Report: report})
		o.phase = types.PhaseCompleted
		o.logger.Info("research completed",
			zap.String("question_id", question.ID),
			zap.Int("sections", len(report.Sections)),
			zap.Int("sources", len(report.Sources)),
			zap.Int("input_tokens", report.Usage.InputTokens),
			zap.Int("output_tokens", report.Usage.OutputTokens),
			zap.Float64("quality", report.QualityScore))
		go o.persistReport(o.remoteSessionID, report)
	}

	if o.done != nil {
		close(o.done)
	}
}

// createRemoteSession records the session remotely, best-effort.
func (o *Orchestrator) createRemoteSession(epoch int, questionText string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := o.store.CreateSession(ctx, o.userID, questionText)
	if err != nil {
		o.logger.Warn("session record creation failed", zap.Error(err))
		return
	}
	if id == "" {
		return
	}

	o.mu.Lock()
	current := epoch == o.epoch
	if current {
		o.remoteSessionID = id
	}
	o.mu.Unlock()
	if !current {
		return
	}

	if err := o.store.UpdateSessionStatus(ctx, id, types.StatusResearching, nil); err != nil {
		o.logger.Warn("session status update failed", zap.Error(err))
	}
}

// persistReport saves the report and marks the session completed,
// best-effort. Failures are logged and swallowed; they never alter
// phase or error.
func (o *Orchestrator) persistReport(sessionID string, report types.Report) {
	if sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.store.SaveReport(ctx, sessionID, report); err != nil {
		o.logger.Warn("report persistence failed", zap.Error(err))
	}
	now := time.Now()
	if err := o.store.UpdateSessionStatus(ctx, sessionID, types.StatusCompleted, &now); err != nil {
		o.logger.Warn("session status update failed", zap.Error(err))
	}
}

// updateRemoteStatus marks the remote session record, best-effort.
func (o *Orchestrator) updateRemoteStatus(sessionID string, status types.SessionStatus) {
	if sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	if err := o.store.UpdateSessionStatus(ctx, sessionID, status, &now); err != nil {
		o.logger.Warn("session status update failed", zap.Error(err))
	}
}

// userMessage maps a pipeline error onto the single human-readable
// string the consumer displays next to the retry affordance.
func userMessage(err error) string {
	switch {
	case errors.Is(err, generate.ErrProviderNotConfigured):
		return "No research provider is configured. Add an API key and try again."
	case errors.Is(err, generate.ErrEmptyResponse):
		return "The research provider returned an empty response. Please try again."
	default:
		var pErr *generate.ProviderError
		if errors.As(err, &pErr) && pErr.Message != "" {
			return "Research failed: " + pErr.Message
		}
		return "Research failed: " + err.Error()
	}
}

// isBlank reports whether s is empty or whitespace-only.
func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
