// Package ws serves the meeting websocket endpoint and the session
// REST routes.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-meeting-summary-service/internal/models"
	"ai-meeting-summary-service/internal/observability/logging"
	"ai-meeting-summary-service/internal/observability/metrics"
	"ai-meeting-summary-service/internal/service/viewers"
	"ai-meeting-summary-service/internal/storage"
)

// SessionEnder terminates a session. Satisfied by the call orchestrator.
type SessionEnder interface {
	EndSession(ctx context.Context, sessionID uuid.UUID, reason string) error
}

// EventSink publishes transcript events downstream. Satisfied by
// events.Publisher.
type EventSink interface {
	PublishPartial(ctx context.Context, key string, event any) error
	PublishFinal(ctx context.Context, key string, event any) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Viewer links are shared into meeting chats, so cross-origin
		// browser clients are expected.
		return true
	},
}

// Handler owns the websocket endpoint. Each accepted connection is
// registered as a viewer; bots reuse the same endpoint to push
// TRANSCRIPT and MEETING_END frames.
type Handler struct {
	sessions    storage.SessionStore
	transcripts storage.TranscriptLog
	summaries   storage.SummaryStore
	registry    *viewers.Registry
	ender       SessionEnder
	events      EventSink
	baseURL     string

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Config holds the handler's collaborators.
type Config struct {
	Sessions      storage.SessionStore
	Transcripts   storage.TranscriptLog
	Summaries     storage.SummaryStore
	Registry      *viewers.Registry
	Ender         SessionEnder
	Events        EventSink
	PublicBaseURL string
}

// NewHandler creates the websocket handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		sessions:    cfg.Sessions,
		transcripts: cfg.Transcripts,
		summaries:   cfg.Summaries,
		registry:    cfg.Registry,
		ender:       cfg.Ender,
		events:      cfg.Events,
		baseURL:     cfg.PublicBaseURL,
		logger:      logging.WithComponent("ws"),
		metrics:     metrics.DefaultMetrics,
	}
}

// ServeTranscription handles GET /ws/transcription?sessionId=...
// The id must parse and refer to a session that still accepts viewers;
// otherwise the socket is closed with a policy-violation code and a
// readable reason.
func (h *Handler) ServeTranscription(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	conn := newWSConn(raw)

	sessionID, err := uuid.Parse(r.URL.Query().Get("sessionId"))
	if err != nil {
		conn.closeWithReason(websocket.ClosePolicyViolation, "invalid sessionId")
		return
	}

	session, err := h.sessions.GetByID(r.Context(), sessionID)
	if err != nil {
		conn.closeWithReason(websocket.ClosePolicyViolation, "unknown session")
		return
	}
	if !session.Status.AcceptsViewers() {
		conn.closeWithReason(websocket.ClosePolicyViolation, "session has ended")
		return
	}

	logger := logging.WithSession("ws", sessionID.String())
	logger.Info().Msg("Viewer websocket accepted")

	h.registry.AddViewer(sessionID, conn)
	defer func() {
		h.registry.RemoveViewer(sessionID, conn)
		_ = conn.Close()
		logger.Info().Msg("Viewer websocket closed")
	}()

	h.readLoop(conn, session, logger)
}

// readLoop consumes inbound frames until the connection drops.
func (h *Handler) readLoop(conn *wsConn, session *models.MeetingSession, logger zerolog.Logger) {
	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("Websocket read error")
			}
			return
		}

		msg, err := models.DecodeIncoming(data)
		if err != nil {
			logger.Warn().Err(err).Msg("Dropping undecodable frame")
			continue
		}
		// Frames for another session are silently ignored.
		if msg.SessionID != session.ID.String() {
			continue
		}

		switch msg.Type {
		case models.MessageTypeTranscript:
			h.handleTranscript(session, msg, logger)
		case models.MessageTypeMeetingEnd:
			reason := msg.Reason
			if reason == "" {
				reason = "meetingEnded"
			}
			if err := h.ender.EndSession(context.Background(), session.ID, reason); err != nil {
				logger.Error().Err(err).Msg("Failed to end session")
			}
			return
		}
	}
}

// handleTranscript persists final transcripts and relays every
// transcript event downstream.
func (h *Handler) handleTranscript(session *models.MeetingSession, msg models.IncomingMessage, logger zerolog.Logger) {
	ctx := context.Background()
	sessionID := session.ID.String()

	if !msg.IsFinal {
		h.metrics.RecordPartialTranscript()
		ev := models.TranscriptPartial{
			EventType: "meeting.transcript.partial",
			SessionID: sessionID,
			TenantID:  session.TenantID,
			Timestamp: time.Now().UnixMilli(),
			Text:      msg.Text,
		}
		if err := h.events.PublishPartial(ctx, sessionID, ev); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish partial transcript")
		}
		return
	}

	h.metrics.RecordFinalTranscript()
	if err := h.transcripts.AppendFinal(ctx, session.ID, msg.Text, msg.SpeakerName); err != nil {
		logger.Error().Err(err).Msg("Failed to persist transcript segment")
		return
	}

	ev := models.TranscriptFinal{
		EventType: "meeting.transcript.final",
		SessionID: sessionID,
		TenantID:  session.TenantID,
		Timestamp: time.Now().UnixMilli(),
		Text:      msg.Text,
	}
	if msg.SpeakerName != nil {
		ev.SpeakerName = *msg.SpeakerName
	}
	if err := h.events.PublishFinal(ctx, sessionID, ev); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish final transcript")
	}
}
