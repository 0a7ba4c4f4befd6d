package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-agent/internal/generate"
	"github.com/pdiddy/research-agent/internal/progress"
	"github.com/pdiddy/research-agent/internal/store"
	"github.com/pdiddy/research-agent/pkg/types"
)

// --- fake provider ---

// queuedResponse is one scripted provider answer. A non-nil gate
// blocks the call until the gate is closed, letting tests control the
// relative timing of provider resolution.
type queuedResponse struct {
	text  string
	usage types.Usage
	err   error
	gate  chan struct{}
}

type fakeProvider struct {
	mu    sync.Mutex
	queue []queuedResponse
	calls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, _ generate.Request) (generate.Response, error) {
	f.mu.Lock()
	f.calls++
	var resp queuedResponse
	if len(f.queue) > 0 {
		resp = f.queue[0]
		f.queue = f.queue[1:]
	}
	f.mu.Unlock()

	if resp.gate != nil {
		select {
		case <-resp.gate:
		case <-ctx.Done():
			return generate.Response{}, ctx.Err()
		}
	}
	return generate.Response{Text: resp.text, Usage: resp.usage}, resp.err
}

func (f *fakeProvider) enqueue(r queuedResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, r)
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// --- helpers ---

func providerCfg() types.ProviderConfig {
	return types.ProviderConfig{Model: "test-model", Timeout: 5 * time.Second}
}

func newTestOrchestrator(t *testing.T, provider generate.Provider, st store.SessionStore) *Orchestrator {
	t.Helper()
	pipeline := generate.NewPipeline(provider, providerCfg())
	scheduler := progress.NewScheduler(time.Millisecond)
	o := New(pipeline, scheduler, st, nil, "test-user")
	t.Cleanup(o.Reset)
	return o
}

func waitDone(t *testing.T, o *Orchestrator) {
	t.Helper()
	done := o.Done()
	require.NotNil(t, done)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("research did not settle")
	}
}

// reportJSON builds a well-formed provider payload with the requested
// number of findings and sources.
func reportJSON(t *testing.T, title string, findings, sources int) string {
	t.Helper()
	payload := map[string]any{
		"title":         title,
		"summary":       "summary",
		"knowledgeGaps": []string{"gap"},
		"qualityScore":  0.9,
	}
	var fs []map[string]any
	for i := 0; i < findings; i++ {
		fs = append(fs, map[string]any{
			"title":       fmt.Sprintf("Finding %d", i+1),
			"content":     "content",
			"citationIds": []int{i + 1},
		})
	}
	var ss []map[string]any
	for i := 0; i < sources; i++ {
		ss = append(ss, map[string]any{
			"title": fmt.Sprintf("Title %d", i+1),
			"url":   fmt.Sprintf("https://example.com/%d", i+1),
			"type":  "article",
		})
	}
	payload["findings"] = fs
	payload["sources"] = ss
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(raw)
}

// --- scenarios ---

func TestResearchCompletesWithStructuredReport(t *testing.T) {
	provider := &fakeProvider{}
	provider.enqueue(queuedResponse{
		text:  reportJSON(t, "EV Battery Trends", 6, 10),
		usage: types.Usage{InputTokens: 900, OutputTokens: 2100},
	})
	o := newTestOrchestrator(t, provider, nil)

	require.NoError(t, o.StartResearch("What are EV battery trends?", types.DepthStandard))
	waitDone(t, o)

	snap := o.Snapshot()
	assert.Equal(t, types.PhaseCompleted, snap.Phase)
	require.NotNil(t, snap.CurrentReport)
	assert.Len(t, snap.CurrentReport.Sections, 6)
	require.Len(t, snap.CurrentReport.Sources, 10)
	for i, src := range snap.CurrentReport.Sources {
		assert.Equal(t, i+1, src.ID)
	}
	assert.Equal(t, "What are EV battery trends?", snap.CurrentReport.Question)
	assert.Equal(t, types.Usage{InputTokens: 900, OutputTokens: 2100}, snap.CurrentReport.Usage)
	assert.Empty(t, snap.Err)
	require.Len(t, snap.ConversationHistory, 1)
}

func TestNonJSONResponseStillCompletes(t *testing.T) {
	prose := "Sure! Solid-state batteries are promising..."
	provider := &fakeProvider{}
	provider.enqueue(queuedResponse{text: prose})
	o := newTestOrchestrator(t, provider, nil)

	require.NoError(t, o.StartResearch("What are EV battery trends?", types.DepthStandard))
	waitDone(t, o)

	snap := o.Snapshot()
	assert.Equal(t, types.PhaseCompleted, snap.Phase)
	require.NotNil(t, snap.CurrentReport)
	require.Len(t, snap.CurrentReport.Sections, 1)
	assert.Equal(t, "Analysis", snap.CurrentReport.Sections[0].Title)
	assert.Equal(t, prose, snap.CurrentReport.Sections[0].Content)
	assert.Empty(t, snap.CurrentReport.Sources)
	assert.Equal(t, 0.7, snap.CurrentReport.QualityScore)
	assert.Empty(t, snap.Err, "malformed responses are never surfaced as errors")
}

func TestEmptyQuestionRejectedSynchronously(t *testing.T) {
	provider := &fakeProvider{}
	o := newTestOrchestrator(t, provider, nil)

	err := o.StartResearch("   ", types.DepthStandard)
	assert.ErrorIs(t, err, generate.ErrEmptyQuestion)

	snap := o.Snapshot()
	assert.Equal(t, types.PhaseIdle, snap.Phase, "no state change on validation failure")
	assert.Zero(t, provider.callCount())
}

func TestMissingProviderYieldsErrorPhase(t *testing.T) {
	pipeline := generate.NewPipeline(nil, providerCfg())
	o := New(pipeline, progress.NewScheduler(time.Millisecond), nil, nil, "")
	t.Cleanup(o.Reset)

	require.NoError(t, o.StartResearch("q", types.DepthStandard))
	waitDone(t, o)

	snap := o.Snapshot()
	assert.Equal(t, types.PhaseError, snap.Phase)
	assert.Contains(t, snap.Err, "configured")
	assert.Nil(t, snap.CurrentReport)
}

func TestProviderErrorSurfacesAndRetryWorks(t *testing.T) {
	provider := &fakeProvider{}
	provider.enqueue(queuedResponse{err: &generate.ProviderError{Provider: "fake", StatusCode: 529, Message: "overloaded"}})
	provider.enqueue(queuedResponse{text: reportJSON(t, "Second Try", 2, 3)})
	o := newTestOrchestrator(t, provider, nil)

	require.NoError(t, o.StartResearch("q", types.DepthQuick))
	waitDone(t, o)

	snap := o.Snapshot()
	assert.Equal(t, types.PhaseError, snap.Phase)
	assert.Contains(t, snap.Err, "overloaded")
	assert.Empty(t, snap.ConversationHistory)

	// error -> researching is a legal direct re-entry.
	require.NoError(t, o.StartResearch("q", types.DepthQuick))
	waitDone(t, o)

	snap = o.Snapshot()
	assert.Equal(t, types.PhaseCompleted, snap.Phase)
	assert.Empty(t, snap.Err)
	require.Len(t, snap.ConversationHistory, 1)
}

func TestProgressEventsAccumulateWhileResearching(t *testing.T) {
	gate := make(chan struct{})
	provider := &fakeProvider{}
	provider.enqueue(queuedResponse{text: "{}", gate: gate})
	o := newTestOrchestrator(t, provider, nil)

	require.NoError(t, o.StartResearch("q", types.DepthStandard))

	require.Eventually(t, func() bool {
		return len(o.Snapshot().ProgressEvents) >= 3
	}, 2*time.Second, time.Millisecond)

	events := o.Snapshot().ProgressEvents
	for i, e := range events {
		assert.Equal(t, i+1, e.ID)
	}

	close(gate)
	waitDone(t, o)
	assert.Equal(t, types.PhaseCompleted, o.Snapshot().Phase)
}

func TestCompletionStopsScheduler(t *testing.T) {
	provider := &fakeProvider{}
	provider.enqueue(queuedResponse{text: "{}"})
	o := newTestOrchestrator(t, provider, nil)

	require.NoError(t, o.StartResearch("q", types.DepthStandard))
	waitDone(t, o)

	seen := len(o.Snapshot().ProgressEvents)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, seen, len(o.Snapshot().ProgressEvents),
		"no ticks fire after the provider result settles the session")
}

func TestResetCancelsEverything(t *testing.T) {
	gate := make(chan struct{})
	provider := &fakeProvider{}
	provider.enqueue(queuedResponse{text: reportJSON(t, "Stale", 1, 1), gate: gate})
	o := newTestOrchestrator(t, provider, nil)

	require.NoError(t, o.StartResearch("Topic A", types.DepthStandard))
	require.Eventually(t, func() bool {
		return len(o.Snapshot().ProgressEvents) >= 1
	}, 2*time.Second, time.Millisecond)

	o.Reset()

	snap := o.Snapshot()
	assert.Equal(t, types.PhaseIdle, snap.Phase)
	assert.Empty(t, snap.ProgressEvents)
	assert.Nil(t, snap.CurrentQuestion)
	assert.Nil(t, snap.CurrentReport)
	assert.Empty(t, snap.ConversationHistory)

	// No events may ever arrive after Reset returns.
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, o.Snapshot().ProgressEvents)

	// A late-arriving provider response for Topic A has no effect.
	close(gate)
	time.Sleep(20 * time.Millisecond)
	snap = o.Snapshot()
	assert.Equal(t, types.PhaseIdle, snap.Phase)
	assert.Nil(t, snap.CurrentReport)
}

func TestStaleResponseImmunity(t *testing.T) {
	gateA := make(chan struct{})
	provider := &fakeProvider{}
	provider.enqueue(queuedResponse{text: reportJSON(t, "Report A", 1, 1), gate: gateA})
	provider.enqueue(queuedResponse{text: reportJSON(t, "Report B", 2, 2)})
	o := newTestOrchestrator(t, provider, nil)

	require.NoError(t, o.StartResearch("Topic A", types.DepthStandard))
	require.NoError(t, o.StartResearch("Topic B", types.DepthStandard))
	waitDone(t, o)

	snap := o.Snapshot()
	assert.Equal(t, types.PhaseCompleted, snap.Phase)
	require.NotNil(t, snap.CurrentReport)
	assert.Equal(t, "Report B", snap.CurrentReport.Title)
	require.Len(t, snap.ConversationHistory, 1)

	// A's result resolves late and must not mutate the session.
	close(gateA)
	time.Sleep(20 * time.Millisecond)
	snap = o.Snapshot()
	assert.Equal(t, "Report B", snap.CurrentReport.Title)
	assert.Len(t, snap.ConversationHistory, 1)
}

func TestFollowUpAccumulatesHistory(t *testing.T) {
	provider := &fakeProvider{}
	provider.enqueue(queuedResponse{text: reportJSON(t, "Report A", 1, 1)})
	provider.enqueue(queuedResponse{text: reportJSON(t, "Report B", 1, 1)})
	o := newTestOrchestrator(t, provider, nil)

	require.NoError(t, o.StartResearch("Topic A", types.DepthComprehensive))
	waitDone(t, o)
	require.NoError(t, o.SubmitFollowUp("Topic B"))
	waitDone(t, o)

	snap := o.Snapshot()
	assert.Equal(t, types.PhaseCompleted, snap.Phase)
	require.Len(t, snap.ConversationHistory, 2)
	assert.Equal(t, "Topic A", snap.ConversationHistory[0].Question.Text)
	assert.Equal(t, "Topic B", snap.ConversationHistory[1].Question.Text)
	assert.Equal(t, "Report B", snap.CurrentReport.Title)
}

// --- persistence ---

// failingStore errors on every call.
type failingStore struct{}

func (failingStore) CreateSession(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("store unavailable")
}

func (failingStore) UpdateSessionStatus(context.Context, string, types.SessionStatus, *time.Time) error {
	return fmt.Errorf("store unavailable")
}

func (failingStore) SaveReport(context.Context, string, types.Report) error {
	return fmt.Errorf("store unavailable")
}

func TestStoreFailuresNeverSurface(t *testing.T) {
	provider := &fakeProvider{}
	provider.enqueue(queuedResponse{text: reportJSON(t, "T", 1, 1)})
	o := newTestOrchestrator(t, provider, failingStore{})

	require.NoError(t, o.StartResearch("q", types.DepthStandard))
	waitDone(t, o)

	snap := o.Snapshot()
	assert.Equal(t, types.PhaseCompleted, snap.Phase)
	assert.Empty(t, snap.Err, "persistence failures are swallowed")
}

func TestReportPersistedBestEffort(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(dir + "/sessions.db")
	require.NoError(t, err)
	defer st.Close()

	gate := make(chan struct{})
	provider := &fakeProvider{}
	provider.enqueue(queuedResponse{text: reportJSON(t, "Persisted", 1, 2), gate: gate})
	o := newTestOrchestrator(t, provider, st)

	require.NoError(t, o.StartResearch("q", types.DepthStandard))
	// Let the remote session record land before the provider resolves.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	waitDone(t, o)

	snap := o.Snapshot()
	require.Equal(t, types.PhaseCompleted, snap.Phase)

	require.Eventually(t, func() bool {
		reports, err := st.LoadReports(context.Background(), remoteID(o))
		return err == nil && len(reports) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// remoteID reads the orchestrator's remote session id for verification.
func remoteID(o *Orchestrator) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remoteSessionID
}
