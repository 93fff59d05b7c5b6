// Package storage defines the persistence interfaces for meeting
// sessions, transcript segments, and summaries, with PostgreSQL
// implementations backed by pgx.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"ai-meeting-summary-service/internal/models"
)

// Domain errors.
var (
	// ErrSessionNotFound indicates the session does not exist or is deleted.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSummaryNotFound indicates no summary has been stored for the session.
	ErrSummaryNotFound = errors.New("summary not found")

	// ErrProcessedCountMismatch indicates MarkProcessed updated a
	// different number of rows than requested. This is a consistency
	// fault and must surface to the caller, never be swallowed.
	ErrProcessedCountMismatch = errors.New("processed row count mismatch")
)

// CreateSessionParams holds the immutable identity of a new session.
type CreateSessionParams struct {
	MeetingID string
	ThreadID  string
	MessageID string
	TenantID  string
}

// SessionStore persists meeting sessions.
type SessionStore interface {
	// Create registers a new session in REGISTERED status and returns it.
	Create(ctx context.Context, params CreateSessionParams) (*models.MeetingSession, error)

	// GetByID returns a non-deleted session, or ErrSessionNotFound.
	GetByID(ctx context.Context, sessionID uuid.UUID) (*models.MeetingSession, error)

	// UpdateStatus transitions a session's status.
	UpdateStatus(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus) error
}

// TranscriptLog is the append-only store of finalized transcript
// segments. Appends are at-least-once: duplicate relays may produce
// duplicate rows; the summary scheduler tolerates the repetition.
type TranscriptLog interface {
	// AppendFinal persists one final segment.
	AppendFinal(ctx context.Context, sessionID uuid.UUID, text string, speaker *string) error

	// FetchUnprocessed returns non-deleted, final, unprocessed segments
	// ordered by creation time ascending.
	FetchUnprocessed(ctx context.Context, sessionID uuid.UUID) ([]models.TranscriptSegment, error)

	// MarkProcessed marks the given segments processed. Updating any
	// number of rows other than len(ids) returns ErrProcessedCountMismatch.
	MarkProcessed(ctx context.Context, ids []uuid.UUID) error
}

// SummaryStore is the append-only store of generated summaries.
// History is immutable; there are no update or delete operations.
type SummaryStore interface {
	// Append persists one summary row. A nil author means system-generated.
	Append(ctx context.Context, sessionID uuid.UUID, summary string, author *string) error

	// Latest returns the most recently created summary for a session,
	// or ErrSummaryNotFound.
	Latest(ctx context.Context, sessionID uuid.UUID) (*models.SummaryRecord, error)
}
