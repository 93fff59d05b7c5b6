package call

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-meeting-summary-service/internal/models"
	"ai-meeting-summary-service/internal/observability/logging"
	"ai-meeting-summary-service/internal/observability/metrics"
	"ai-meeting-summary-service/internal/service/stt"
	"ai-meeting-summary-service/internal/storage"
)

// Rejection reasons, also used as metric labels.
const (
	RejectNotGroupCall    = "not_group_call"
	RejectMissingIdentity = "missing_identity"
)

// ErrCallRejected is returned by HandleIncomingCall when validation fails.
var ErrCallRejected = errors.New("call rejected")

// CallHandle is the call-engine surface for one incoming call. Identity
// accessors must be cheap and side-effect free; Answer requests a
// receive-only audio configuration.
type CallHandle interface {
	CallID() string
	IsGroupCall() bool
	MeetingID() string
	ThreadID() string
	MessageID() string
	TenantID() string

	Answer(ctx context.Context) error
	Reject(ctx context.Context, reason string) error
}

// AudioFrame is one buffer of call audio. Data is valid only until
// Release returns the buffer to the engine; consumers must copy first.
type AudioFrame interface {
	Data() []byte
	Release()
}

// ComplianceNotifier toggles the meeting's recording-status banner.
type ComplianceNotifier interface {
	RecordingStarted(ctx context.Context, callID string) error
	RecordingStopped(ctx context.Context, callID string) error
}

// ChatPublisher posts the viewer-facing session link into the meeting
// chat thread.
type ChatPublisher interface {
	PostSessionLink(ctx context.Context, threadID, url string) error
}

// EventSink publishes transcript and session lifecycle events
// downstream. Satisfied by events.Publisher.
type EventSink interface {
	PublishPartial(ctx context.Context, key string, event any) error
	PublishFinal(ctx context.Context, key string, event any) error
	PublishSessionEnded(ctx context.Context, key string, event any) error
}

// ViewerCloser ends the viewer side of a session. Satisfied by the
// viewer registry.
type ViewerCloser interface {
	CloseSession(sessionID uuid.UUID, message any)
}

// AdapterFactory creates a fresh STT adapter for one call.
type AdapterFactory func(ctx context.Context) (stt.Adapter, error)

// Orchestrator manages the lifecycle of active meeting calls.
type Orchestrator struct {
	sessions    storage.SessionStore
	transcripts storage.TranscriptLog
	newAdapter  AdapterFactory
	compliance  ComplianceNotifier
	chat        ChatPublisher
	events      EventSink
	viewers     ViewerCloser
	baseURL     string

	mu     sync.Mutex
	active map[uuid.UUID]*CallSession

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Config holds the orchestrator's collaborators.
type Config struct {
	Sessions    storage.SessionStore
	Transcripts storage.TranscriptLog
	NewAdapter  AdapterFactory
	Compliance  ComplianceNotifier
	Chat        ChatPublisher
	Events      EventSink
	Viewers     ViewerCloser
	// PublicBaseURL is the externally reachable base for viewer links.
	PublicBaseURL string
}

// NewOrchestrator creates a call orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{
		sessions:    cfg.Sessions,
		transcripts: cfg.Transcripts,
		newAdapter:  cfg.NewAdapter,
		compliance:  cfg.Compliance,
		chat:        cfg.Chat,
		events:      cfg.Events,
		viewers:     cfg.Viewers,
		baseURL:     cfg.PublicBaseURL,
		active:      make(map[uuid.UUID]*CallSession),
		logger:      logging.WithComponent("call_orchestrator"),
		metrics:     metrics.DefaultMetrics,
	}
}

// HandleIncomingCall validates, registers, and answers a call. The
// ordered steps after validation are: register session, start STT,
// raise the recording banner, answer media, post the viewer link, mark
// the session active. Any failure aborts the remaining steps and tears
// the call down.
func (o *Orchestrator) HandleIncomingCall(ctx context.Context, call CallHandle) (*CallSession, error) {
	lc := NewLifecycle(call.CallID())
	logger := logging.WithCall("call_orchestrator", call.CallID(), call.TenantID())

	if err := lc.Transition(StateValidating); err != nil {
		return nil, err
	}

	if reason := o.validate(call); reason != "" {
		_ = lc.Transition(StateRejected)
		o.metrics.RecordCallRejected(reason)
		logger.Warn().Str("reason", reason).Msg("Rejecting incoming call")
		if err := call.Reject(ctx, reason); err != nil {
			logger.Error().Err(err).Msg("Failed to deliver call rejection")
		}
		return nil, fmt.Errorf("%w: %s", ErrCallRejected, reason)
	}

	session, err := o.sessions.Create(ctx, storage.CreateSessionParams{
		MeetingID: call.MeetingID(),
		ThreadID:  call.ThreadID(),
		MessageID: call.MessageID(),
		TenantID:  call.TenantID(),
	})
	if err != nil {
		_ = lc.Transition(StateRejected)
		return nil, fmt.Errorf("register meeting session: %w", err)
	}
	if err := lc.Transition(StateRegistered); err != nil {
		return nil, err
	}
	o.metrics.RecordSessionRegistered()

	cs := &CallSession{
		orchestrator: o,
		lifecycle:    lc,
		session:      session,
		call:         call,
		logger:       logging.WithSession("call_session", session.ID.String()),
	}

	// Failures before the call is answered reject it as well as tearing
	// the session down, so the engine does not leave the call ringing.
	abortJoin := func(reason string) {
		if err := call.Reject(ctx, reason); err != nil {
			logger.Error().Err(err).Msg("Failed to reject call during abort")
		}
		cs.Teardown(reason)
	}

	adapter, err := o.newAdapter(ctx)
	if err != nil {
		abortJoin("sttInitFailed")
		return nil, fmt.Errorf("create stt adapter: %w", err)
	}
	cs.adapter = adapter
	if err := adapter.Start(ctx, cs); err != nil {
		abortJoin("sttStartFailed")
		return nil, fmt.Errorf("start stt stream: %w", err)
	}

	// Recording banner must be visible before any audio is consumed; a
	// failure here aborts the join rather than recording silently.
	if err := o.compliance.RecordingStarted(ctx, call.CallID()); err != nil {
		abortJoin("complianceFailed")
		return nil, fmt.Errorf("update recording status: %w", err)
	}

	if err := call.Answer(ctx); err != nil {
		cs.Teardown("answerFailed")
		return nil, fmt.Errorf("answer call: %w", err)
	}

	if err := o.sessions.UpdateStatus(ctx, session.ID, models.SessionActive); err != nil {
		cs.Teardown("statusUpdateFailed")
		return nil, fmt.Errorf("mark session active: %w", err)
	}
	if err := lc.Transition(StateMediaActive); err != nil {
		cs.Teardown("invalidState")
		return nil, err
	}
	o.metrics.RecordSessionActive()

	if err := o.chat.PostSessionLink(ctx, call.ThreadID(), o.viewerURL(session.ID)); err != nil {
		cs.Teardown("chatPostFailed")
		return nil, fmt.Errorf("post session link: %w", err)
	}

	o.mu.Lock()
	o.active[session.ID] = cs
	o.mu.Unlock()

	logger.Info().
		Str("sessionId", session.ID.String()).
		Str("meetingId", session.MeetingID).
		Msg("Call answered, transcription active")
	return cs, nil
}

func (o *Orchestrator) validate(call CallHandle) string {
	if !call.IsGroupCall() {
		return RejectNotGroupCall
	}
	if call.ThreadID() == "" || call.MessageID() == "" || call.TenantID() == "" {
		return RejectMissingIdentity
	}
	return ""
}

func (o *Orchestrator) viewerURL(sessionID uuid.UUID) string {
	return fmt.Sprintf("%s/ws/transcription?sessionId=%s", o.baseURL, sessionID)
}

// Session returns the active call session for a session id, if any.
func (o *Orchestrator) Session(sessionID uuid.UUID) (*CallSession, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cs, ok := o.active[sessionID]
	return cs, ok
}

// EndSession terminates a session by id. Sessions with a live call are
// torn down through the call path; sessions registered out of process
// (no call handle) are closed directly: status flipped to ENDED, the
// end event published, and viewers disconnected.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID uuid.UUID, reason string) error {
	if cs, ok := o.Session(sessionID); ok {
		cs.Teardown(reason)
		return nil
	}

	session, err := o.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status == models.SessionEnded {
		return nil
	}

	if err := o.sessions.UpdateStatus(ctx, sessionID, models.SessionEnded); err != nil {
		return err
	}
	o.publishSessionEnded(ctx, sessionID, session.TenantID, reason)
	o.closeViewers(sessionID, reason)

	o.logger.Info().
		Str("sessionId", sessionID.String()).
		Str("reason", reason).
		Msg("Session ended")
	return nil
}

func (o *Orchestrator) publishSessionEnded(ctx context.Context, sessionID uuid.UUID, tenantID, reason string) {
	ev := models.SessionEndedEvent{
		EventType: "meeting.session.ended",
		SessionID: sessionID.String(),
		TenantID:  tenantID,
		Timestamp: time.Now().UnixMilli(),
		Reason:    reason,
	}
	if err := o.events.PublishSessionEnded(ctx, sessionID.String(), ev); err != nil {
		o.logger.Error().Err(err).
			Str("sessionId", sessionID.String()).
			Msg("Failed to publish session ended event")
	}
}

func (o *Orchestrator) closeViewers(sessionID uuid.UUID, reason string) {
	if o.viewers == nil {
		return
	}
	o.viewers.CloseSession(sessionID, models.NewMeetingEnd(sessionID.String(), reason))
}
