package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-meeting-summary-service/internal/events"
	"ai-meeting-summary-service/internal/models"
	"ai-meeting-summary-service/internal/service/viewers"
	"ai-meeting-summary-service/internal/storage"
	"ai-meeting-summary-service/internal/storage/memory"
)

type fakeEnder struct {
	mu     sync.Mutex
	ended  []uuid.UUID
	reason string
}

func (e *fakeEnder) EndSession(ctx context.Context, sessionID uuid.UUID, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ended = append(e.ended, sessionID)
	e.reason = reason
	return nil
}

func (e *fakeEnder) endedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ended)
}

// noopJob satisfies viewers.SummaryJob.
type noopJob struct{}

func (noopJob) StartJob(uuid.UUID) {}
func (noopJob) StopJob(uuid.UUID)  {}

type testEnv struct {
	server      *httptest.Server
	handler     *Handler
	sessions    *memory.SessionStore
	transcripts *memory.TranscriptLog
	summaries   *memory.SummaryStore
	registry    *viewers.Registry
	ender       *fakeEnder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		sessions:    memory.NewSessionStore(),
		transcripts: memory.NewTranscriptLog(),
		summaries:   memory.NewSummaryStore(),
		registry:    viewers.NewRegistry(),
		ender:       &fakeEnder{},
	}
	env.registry.SetScheduler(noopJob{})

	env.handler = NewHandler(Config{
		Sessions:      env.sessions,
		Transcripts:   env.transcripts,
		Summaries:     env.summaries,
		Registry:      env.registry,
		Ender:         env.ender,
		Events:        events.New(&events.Config{Enabled: false}),
		PublicBaseURL: "http://localhost:8080",
	})

	env.server = httptest.NewServer(NewRouter(env.handler))
	t.Cleanup(env.server.Close)
	return env
}

func (env *testEnv) wsURL(sessionID string) string {
	return "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/transcription?sessionId=" + sessionID
}

func (env *testEnv) createSession(t *testing.T) *models.MeetingSession {
	t.Helper()
	session, err := env.sessions.Create(context.Background(), storage.CreateSessionParams{
		MeetingID: "meeting-1",
		ThreadID:  "thread-1",
		MessageID: "message-1",
		TenantID:  "tenant-1",
	})
	require.NoError(t, err)
	return session
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// expectPolicyClose reads until the server closes the socket and
// asserts the close code.
func expectPolicyClose(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close error, got %v", err)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
}

func TestServeTranscription_RejectsInvalidSessionID(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env.wsURL("not-a-uuid"))
	expectPolicyClose(t, conn)
}

func TestServeTranscription_RejectsUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env.wsURL(uuid.NewString()))
	expectPolicyClose(t, conn)
}

func TestServeTranscription_RejectsEndedSession(t *testing.T) {
	env := newTestEnv(t)
	session := env.createSession(t)
	require.NoError(t, env.sessions.UpdateStatus(context.Background(), session.ID, models.SessionEnded))

	conn := dial(t, env.wsURL(session.ID.String()))
	expectPolicyClose(t, conn)
}

func TestServeTranscription_RegistersViewerForLifetime(t *testing.T) {
	env := newTestEnv(t)
	session := env.createSession(t)

	conn := dial(t, env.wsURL(session.ID.String()))

	require.Eventually(t, func() bool {
		return env.registry.ViewerCount(session.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return env.registry.ViewerCount(session.ID) == 0
	}, 2*time.Second, 10*time.Millisecond, "viewer must be removed when the socket drops")
}

func TestServeTranscription_FinalTranscriptPersisted(t *testing.T) {
	env := newTestEnv(t)
	session := env.createSession(t)
	conn := dial(t, env.wsURL(session.ID.String()))

	speaker := "Alice"
	require.NoError(t, conn.WriteJSON(models.IncomingMessage{
		Type:        models.MessageTypeTranscript,
		SessionID:   session.ID.String(),
		Text:        "we decided to ship",
		SpeakerName: &speaker,
		IsFinal:     true,
	}))

	require.Eventually(t, func() bool {
		segs, err := env.transcripts.FetchUnprocessed(context.Background(), session.ID)
		return err == nil && len(segs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	segs, err := env.transcripts.FetchUnprocessed(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "we decided to ship", segs[0].Text)
	require.NotNil(t, segs[0].SpeakerName)
	assert.Equal(t, "Alice", *segs[0].SpeakerName)
}

func TestServeTranscription_InterimTranscriptNotPersisted(t *testing.T) {
	env := newTestEnv(t)
	session := env.createSession(t)
	conn := dial(t, env.wsURL(session.ID.String()))

	require.NoError(t, conn.WriteJSON(models.IncomingMessage{
		Type:      models.MessageTypeTranscript,
		SessionID: session.ID.String(),
		Text:      "we deci",
		IsFinal:   false,
	}))

	time.Sleep(100 * time.Millisecond)
	segs, err := env.transcripts.FetchUnprocessed(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, segs, "interim transcripts must not be persisted")
}

func TestServeTranscription_MismatchedSessionIDIgnored(t *testing.T) {
	env := newTestEnv(t)
	session := env.createSession(t)
	conn := dial(t, env.wsURL(session.ID.String()))

	require.NoError(t, conn.WriteJSON(models.IncomingMessage{
		Type:      models.MessageTypeTranscript,
		SessionID: uuid.NewString(),
		Text:      "someone else's meeting",
		IsFinal:   true,
	}))

	time.Sleep(100 * time.Millisecond)
	segs, err := env.transcripts.FetchUnprocessed(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, segs, "frames bound to another session must be ignored")
}

func TestServeTranscription_MeetingEndEndsSession(t *testing.T) {
	env := newTestEnv(t)
	session := env.createSession(t)
	conn := dial(t, env.wsURL(session.ID.String()))

	require.NoError(t, conn.WriteJSON(models.IncomingMessage{
		Type:      models.MessageTypeMeetingEnd,
		SessionID: session.ID.String(),
		Reason:    "organizerLeft",
	}))

	require.Eventually(t, func() bool {
		return env.ender.endedCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "organizerLeft", env.ender.reason)
}

func TestServeTranscription_UnknownFrameTypeSkipped(t *testing.T) {
	env := newTestEnv(t)
	session := env.createSession(t)
	conn := dial(t, env.wsURL(session.ID.String()))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"BOGUS"}`)))

	// Connection stays open; a valid frame afterwards still works.
	require.NoError(t, conn.WriteJSON(models.IncomingMessage{
		Type:      models.MessageTypeTranscript,
		SessionID: session.ID.String(),
		Text:      "still alive",
		IsFinal:   true,
	}))

	require.Eventually(t, func() bool {
		segs, err := env.transcripts.FetchUnprocessed(context.Background(), session.ID)
		return err == nil && len(segs) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServeTranscription_BroadcastReachesViewer(t *testing.T) {
	env := newTestEnv(t)
	session := env.createSession(t)
	conn := dial(t, env.wsURL(session.ID.String()))

	require.Eventually(t, func() bool {
		return env.registry.ViewerCount(session.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, env.registry.SendToSession(session.ID, models.NewLiveSummary(session.ID.String(), "the team aligned on v2")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame models.LiveSummary
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, models.MessageTypeLiveSummary, frame.Type)
	assert.Equal(t, "the team aligned on v2", frame.Summary)
}

func TestCreateSession_Endpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.server.URL+"/v1/sessions", "application/json",
		strings.NewReader(`{"meetingId":"m-1","threadId":"t-1","messageId":"msg-1","tenantId":"ten-1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateSession_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.server.URL+"/v1/sessions", "application/json",
		strings.NewReader(`{"meetingId":"m-1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetLatestSummary_Endpoint(t *testing.T) {
	env := newTestEnv(t)
	session := env.createSession(t)

	// No summary yet
	resp, err := http.Get(env.server.URL + "/v1/sessions/" + session.ID.String() + "/summary")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, env.summaries.Append(context.Background(), session.ID, "current summary", nil))

	resp, err = http.Get(env.server.URL + "/v1/sessions/" + session.ID.String() + "/summary")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Unknown session
	resp2, err := http.Get(env.server.URL + "/v1/sessions/" + uuid.NewString() + "/summary")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}
