package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ai-meeting-summary-service/internal/storage"
)

type createSessionRequest struct {
	MeetingID string `json:"meetingId"`
	ThreadID  string `json:"threadId"`
	MessageID string `json:"messageId"`
	TenantID  string `json:"tenantId"`
}

type createSessionResponse struct {
	SessionID      string `json:"sessionId"`
	LiveSummaryURL string `json:"liveSummaryUrl"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// CreateSession handles POST /v1/sessions for out-of-process bots that
// register a session without going through the call orchestrator.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.MeetingID == "" || req.ThreadID == "" || req.MessageID == "" || req.TenantID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "meetingId, threadId, messageId and tenantId are required"})
		return
	}

	session, err := h.sessions.Create(r.Context(), storage.CreateSessionParams{
		MeetingID: req.MeetingID,
		ThreadID:  req.ThreadID,
		MessageID: req.MessageID,
		TenantID:  req.TenantID,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create session")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create session"})
		return
	}
	h.metrics.RecordSessionRegistered()

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:      session.ID.String(),
		LiveSummaryURL: fmt.Sprintf("%s/ws/transcription?sessionId=%s", h.baseURL, session.ID),
	})
}

// GetLatestSummary handles GET /v1/sessions/{sessionID}/summary so a
// late-joining viewer can render the current summary before the next
// scheduler tick.
func (h *Handler) GetLatestSummary(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid session id"})
		return
	}

	if _, err := h.sessions.GetByID(r.Context(), sessionID); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
			return
		}
		h.logger.Error().Err(err).Msg("Failed to load session")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load session"})
		return
	}

	rec, err := h.summaries.Latest(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSummaryNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "no summary yet"})
			return
		}
		h.logger.Error().Err(err).Msg("Failed to load summary")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load summary"})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
