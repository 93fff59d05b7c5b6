package summary

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-meeting-summary-service/internal/models"
	"ai-meeting-summary-service/internal/storage"
	"ai-meeting-summary-service/internal/storage/memory"
)

// aiStub implements summarizer.Summarizer with canned behavior.
type aiStub struct {
	mu     sync.Mutex
	inputs []string
	resp   string
	err    error
	gate   chan struct{} // when set, Summarize blocks until closed
}

func (a *aiStub) Summarize(ctx context.Context, input string) (string, error) {
	a.mu.Lock()
	a.inputs = append(a.inputs, input)
	gate := a.gate
	err := a.err
	resp := a.resp
	a.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

func (a *aiStub) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inputs)
}

func (a *aiStub) lastInput() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.inputs) == 0 {
		return ""
	}
	return a.inputs[len(a.inputs)-1]
}

func (a *aiStub) setError(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

// broadcastStub records fan-out messages per session.
type broadcastStub struct {
	mu       sync.Mutex
	messages []any
}

func (b *broadcastStub) SendToSession(sessionID uuid.UUID, message any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, message)
	return nil
}

func (b *broadcastStub) summaries() []models.LiveSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.LiveSummary
	for _, m := range b.messages {
		if ls, ok := m.(models.LiveSummary); ok {
			out = append(out, ls)
		}
	}
	return out
}

type fixture struct {
	sched       *Scheduler
	transcripts *memory.TranscriptLog
	summaries   *memory.SummaryStore
	ai          *aiStub
	broadcast   *broadcastStub
}

func newFixture(t *testing.T, interval time.Duration) *fixture {
	t.Helper()
	transcripts := memory.NewTranscriptLog()
	summaries := memory.NewSummaryStore()
	ai := &aiStub{resp: "summary v1"}
	broadcast := &broadcastStub{}

	sched := New(context.Background(), interval, transcripts, summaries, ai, broadcast)
	t.Cleanup(sched.Shutdown)

	return &fixture{
		sched:       sched,
		transcripts: transcripts,
		summaries:   summaries,
		ai:          ai,
		broadcast:   broadcast,
	}
}

func strPtr(s string) *string { return &s }

func TestScheduler_TickGeneratesPersistsAndBroadcasts(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	sessionID := uuid.New()
	ctx := context.Background()

	require.NoError(t, f.transcripts.AppendFinal(ctx, sessionID, "we should ship on Friday", strPtr("Alice")))
	require.NoError(t, f.transcripts.AppendFinal(ctx, sessionID, "agreed, pending QA", strPtr("Bob")))

	f.sched.StartJob(sessionID)

	require.Eventually(t, func() bool {
		_, err := f.summaries.Latest(ctx, sessionID)
		return err == nil
	}, time.Second, 5*time.Millisecond, "expected a summary to be persisted")

	rec, err := f.summaries.Latest(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "summary v1", rec.Summary)
	assert.Nil(t, rec.CreatedBy, "scheduler summaries are system-generated")

	// Both segments went into the AI input, in creation order.
	input := f.ai.lastInput()
	aliceIdx := strings.Index(input, "Alice: we should ship on Friday")
	bobIdx := strings.Index(input, "Bob: agreed, pending QA")
	require.GreaterOrEqual(t, aliceIdx, 0)
	require.GreaterOrEqual(t, bobIdx, 0)
	assert.Less(t, aliceIdx, bobIdx, "segments must be concatenated in creation order")

	// Broadcast carries the persisted summary.
	require.Eventually(t, func() bool {
		return len(f.broadcast.summaries()) > 0
	}, time.Second, 5*time.Millisecond)
	ls := f.broadcast.summaries()[0]
	assert.Equal(t, models.MessageTypeLiveSummary, ls.Type)
	assert.Equal(t, sessionID.String(), ls.SessionID)
	assert.Equal(t, "summary v1", ls.Summary)

	// Segments are marked processed, so the next tick is empty.
	require.Eventually(t, func() bool {
		segs, err := f.transcripts.FetchUnprocessed(ctx, sessionID)
		return err == nil && len(segs) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_EmptyBacklogSkipsAICall(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	sessionID := uuid.New()

	f.sched.StartJob(sessionID)
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 0, f.ai.callCount(), "no AI call without transcripts")
	assert.Empty(t, f.broadcast.summaries())
}

func TestScheduler_PreviousSummaryCarriedIntoNextInput(t *testing.T) {
	f := newFixture(t, 15*time.Millisecond)
	sessionID := uuid.New()
	ctx := context.Background()

	require.NoError(t, f.transcripts.AppendFinal(ctx, sessionID, "first point", strPtr("Alice")))
	f.sched.StartJob(sessionID)

	require.Eventually(t, func() bool {
		_, err := f.summaries.Latest(ctx, sessionID)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.transcripts.AppendFinal(ctx, sessionID, "second point", strPtr("Bob")))

	require.Eventually(t, func() bool {
		return strings.Contains(f.ai.lastInput(), "second point")
	}, time.Second, 5*time.Millisecond)

	input := f.ai.lastInput()
	assert.Contains(t, input, "Previous Summary:\nsummary v1")
	assert.NotContains(t, input, "first point", "processed segments must not be refed")
}

func TestScheduler_AIErrorLeavesBacklogAndLoopAlive(t *testing.T) {
	f := newFixture(t, 15*time.Millisecond)
	sessionID := uuid.New()
	ctx := context.Background()

	f.ai.setError(errors.New("model unavailable"))
	require.NoError(t, f.transcripts.AppendFinal(ctx, sessionID, "important decision", strPtr("Alice")))
	f.sched.StartJob(sessionID)

	require.Eventually(t, func() bool {
		return f.ai.callCount() >= 2
	}, time.Second, 5*time.Millisecond, "loop must keep ticking after an AI error")

	_, err := f.summaries.Latest(ctx, sessionID)
	assert.ErrorIs(t, err, storage.ErrSummaryNotFound)

	segs, err := f.transcripts.FetchUnprocessed(ctx, sessionID)
	require.NoError(t, err)
	assert.Len(t, segs, 1, "failed tick must leave the backlog untouched")

	// Recovery: once the AI works again the backlog drains.
	f.ai.setError(nil)
	require.Eventually(t, func() bool {
		_, err := f.summaries.Latest(ctx, sessionID)
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_StartIsIdempotentPerSession(t *testing.T) {
	f := newFixture(t, time.Hour)
	sessionID := uuid.New()

	f.sched.StartJob(sessionID)
	f.sched.StartJob(sessionID)

	assert.True(t, f.sched.Running(sessionID))
	f.sched.StopJob(sessionID)
	assert.False(t, f.sched.Running(sessionID), "one stop must fully clear a double-started session")
}

func TestScheduler_StopUnknownSessionIsNoop(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.sched.StopJob(uuid.New())
}

func TestScheduler_StopWaitsForInFlightTick(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	sessionID := uuid.New()
	ctx := context.Background()

	gate := make(chan struct{})
	f.ai.mu.Lock()
	f.ai.gate = gate
	f.ai.mu.Unlock()

	require.NoError(t, f.transcripts.AppendFinal(ctx, sessionID, "hold the line", strPtr("Alice")))
	f.sched.StartJob(sessionID)

	// Wait until the tick is inside the AI call.
	require.Eventually(t, func() bool {
		return f.ai.callCount() == 1
	}, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		f.sched.StopJob(sessionID)
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("StopJob returned while a tick was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("StopJob did not return after the tick completed")
	}

	// The in-flight tick completed normally: summary persisted and
	// marked, not abandoned.
	rec, err := f.summaries.Latest(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "summary v1", rec.Summary)
	segs, err := f.transcripts.FetchUnprocessed(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestScheduler_StopThenRestart(t *testing.T) {
	f := newFixture(t, 15*time.Millisecond)
	sessionID := uuid.New()
	ctx := context.Background()

	f.sched.StartJob(sessionID)
	f.sched.StopJob(sessionID)
	assert.False(t, f.sched.Running(sessionID))

	require.NoError(t, f.transcripts.AppendFinal(ctx, sessionID, "after the restart", strPtr("Alice")))
	f.sched.StartJob(sessionID)
	assert.True(t, f.sched.Running(sessionID))

	require.Eventually(t, func() bool {
		_, err := f.summaries.Latest(ctx, sessionID)
		return err == nil
	}, time.Second, 5*time.Millisecond, "restarted job must tick again")
}

func TestScheduler_ShutdownStopsAllJobs(t *testing.T) {
	f := newFixture(t, time.Hour)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		f.sched.StartJob(id)
	}

	f.sched.Shutdown()

	for _, id := range ids {
		assert.False(t, f.sched.Running(id))
	}
}
