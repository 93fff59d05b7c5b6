package call

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-meeting-summary-service/internal/models"
	"ai-meeting-summary-service/internal/service/stt"
)

// CallSession is the live context of one answered call. It implements
// stt.Callback to relay transcripts and receives audio frames and call
// state changes from the engine.
type CallSession struct {
	orchestrator *Orchestrator
	lifecycle    *Lifecycle
	session      *models.MeetingSession
	call         CallHandle
	adapter      stt.Adapter
	logger       zerolog.Logger

	teardownOnce sync.Once
}

// SessionID returns the persistent session id for this call.
func (cs *CallSession) SessionID() string {
	return cs.session.ID.String()
}

// State returns the current call lifecycle state.
func (cs *CallSession) State() State {
	return cs.lifecycle.State()
}

// HandleAudioFrame receives one audio buffer from the call engine. The
// frame's data is owned by the engine and is only valid until Release,
// so it is copied before any forwarding happens; the frame is released
// no matter what the forwarding outcome is.
func (cs *CallSession) HandleAudioFrame(ctx context.Context, frame AudioFrame) {
	defer frame.Release()

	src := frame.Data()
	if len(src) == 0 {
		return
	}
	buf := make([]byte, len(src))
	copy(buf, src)

	cs.orchestrator.metrics.RecordAudioReceived(len(buf))

	if cs.lifecycle.IsTerminal() {
		return
	}
	if err := cs.adapter.SendAudio(ctx, buf); err != nil {
		cs.logger.Warn().Err(err).Msg("Failed to forward audio frame to STT")
	}
}

// HandleCallStateChange receives engine call-state notifications.
// Termination runs teardown; every other state is informational.
func (cs *CallSession) HandleCallStateChange(state string) {
	cs.logger.Debug().Str("callState", state).Msg("Call state changed")
	if state == "terminated" {
		cs.Teardown("callEnded")
	}
}

// OnPartial relays an interim transcript downstream. Interim results
// are never persisted.
func (cs *CallSession) OnPartial(text string) {
	cs.orchestrator.metrics.RecordPartialTranscript()

	ev := models.TranscriptPartial{
		EventType: "meeting.transcript.partial",
		SessionID: cs.SessionID(),
		TenantID:  cs.session.TenantID,
		Timestamp: time.Now().UnixMilli(),
		Text:      text,
	}
	if err := cs.orchestrator.events.PublishPartial(context.Background(), cs.SessionID(), ev); err != nil {
		cs.logger.Warn().Err(err).Msg("Failed to publish partial transcript")
	}
}

// OnFinal persists a final transcript segment and relays it downstream.
// Persistence comes first: the summary pipeline depends on the log, the
// event stream is best effort.
func (cs *CallSession) OnFinal(text string, confidence float64) {
	cs.orchestrator.metrics.RecordFinalTranscript()

	if err := cs.orchestrator.transcripts.AppendFinal(context.Background(), cs.session.ID, text, nil); err != nil {
		cs.logger.Error().Err(err).Msg("Failed to persist final transcript segment")
	}

	ev := models.TranscriptFinal{
		EventType:  "meeting.transcript.final",
		SessionID:  cs.SessionID(),
		TenantID:   cs.session.TenantID,
		Timestamp:  time.Now().UnixMilli(),
		Text:       text,
		Confidence: confidence,
	}
	if err := cs.orchestrator.events.PublishFinal(context.Background(), cs.SessionID(), ev); err != nil {
		cs.logger.Warn().Err(err).Msg("Failed to publish final transcript")
	}
}

// OnError receives STT stream errors. The stream may still recover on
// the provider side, so the call keeps running; only termination from
// the engine ends it.
func (cs *CallSession) OnError(err error) {
	cs.logger.Error().Err(err).Msg("STT stream error")
}

// Teardown shuts the call session down exactly once: revert the
// recording banner, publish the end-of-session event, stop the STT
// stream, mark the session ended, and disconnect viewers. Safe to call
// from both error paths and the terminated state change; the second
// call is a no-op.
func (cs *CallSession) Teardown(reason string) {
	cs.teardownOnce.Do(func() {
		ctx := context.Background()
		wasActive := cs.lifecycle.State() == StateMediaActive
		cs.lifecycle.Terminate()

		cs.logger.Info().Str("reason", reason).Msg("Tearing down call session")

		if err := cs.orchestrator.compliance.RecordingStopped(ctx, cs.call.CallID()); err != nil {
			cs.logger.Error().Err(err).Msg("Failed to revert recording status")
		}

		cs.orchestrator.publishSessionEnded(ctx, cs.session.ID, cs.session.TenantID, reason)

		if cs.adapter != nil {
			if err := cs.adapter.Close(); err != nil {
				cs.logger.Warn().Err(err).Msg("Failed to close STT stream")
			}
		}

		if err := cs.orchestrator.sessions.UpdateStatus(ctx, cs.session.ID, models.SessionEnded); err != nil {
			cs.logger.Error().Err(err).Msg("Failed to mark session ended")
		}
		if wasActive {
			cs.orchestrator.metrics.RecordSessionEnded()
		}

		cs.orchestrator.mu.Lock()
		delete(cs.orchestrator.active, cs.session.ID)
		cs.orchestrator.mu.Unlock()

		cs.orchestrator.closeViewers(cs.session.ID, reason)
	})
}
