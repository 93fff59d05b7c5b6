// Package models defines the data structures for meeting sessions,
// transcript segments, summaries, and websocket frames.
package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle status of a meeting session.
type SessionStatus string

const (
	// SessionRegistered - Session created, call not yet answered.
	SessionRegistered SessionStatus = "REGISTERED"
	// SessionActive - Media answered, transcription running.
	SessionActive SessionStatus = "ACTIVE"
	// SessionEnded - Call terminated, session closed.
	SessionEnded SessionStatus = "ENDED"
)

// AcceptsViewers reports whether viewers may still connect to a session
// in this status.
func (s SessionStatus) AcceptsViewers() bool {
	return s == SessionRegistered || s == SessionActive
}

// MeetingSession is the live transcription-and-summary context for one
// meeting call. Identity fields are immutable once created; only the
// status transitions (REGISTERED → ACTIVE → ENDED).
type MeetingSession struct {
	ID        uuid.UUID     `json:"sessionId"`
	MeetingID string        `json:"meetingId"`
	ThreadID  string        `json:"threadId"`
	MessageID string        `json:"messageId"`
	TenantID  string        `json:"tenantId"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// TranscriptSegment is one finalized transcript unit for a session.
// Append-only: Processed is the only mutable field, and it is set
// exclusively by the summary scheduler.
type TranscriptSegment struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"sessionId"`
	Text        string    `json:"text"`
	SpeakerName *string   `json:"speakerName,omitempty"`
	IsFinal     bool      `json:"isFinal"`
	Processed   bool      `json:"processed"`
	Deleted     bool      `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SummaryRecord is one generated summary for a session. Rows are
// immutable; the row with the latest CreatedAt is the current summary.
type SummaryRecord struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"sessionId"`
	Summary   string    `json:"summary"`
	CreatedBy *string   `json:"createdBy,omitempty"` // nil = system-generated
	CreatedAt time.Time `json:"createdAt"`
}
