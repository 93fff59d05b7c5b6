// Package memory provides in-memory implementations of the storage
// interfaces for tests and credential-free demo runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-meeting-summary-service/internal/models"
	"ai-meeting-summary-service/internal/storage"
)

// SessionStore is an in-memory implementation of storage.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*models.MeetingSession
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uuid.UUID]*models.MeetingSession)}
}

func (s *SessionStore) Create(ctx context.Context, params storage.CreateSessionParams) (*models.MeetingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := &models.MeetingSession{
		ID:        uuid.New(),
		MeetingID: params.MeetingID,
		ThreadID:  params.ThreadID,
		MessageID: params.MessageID,
		TenantID:  params.TenantID,
		Status:    models.SessionRegistered,
		CreatedAt: time.Now().UTC(),
	}
	s.sessions[session.ID] = session

	copied := *session
	return &copied, nil
}

func (s *SessionStore) GetByID(ctx context.Context, sessionID uuid.UUID) (*models.MeetingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *SessionStore) UpdateStatus(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return storage.ErrSessionNotFound
	}
	session.Status = status
	return nil
}

// TranscriptLog is an in-memory implementation of storage.TranscriptLog.
type TranscriptLog struct {
	mu       sync.RWMutex
	segments map[uuid.UUID]*models.TranscriptSegment
	seq      int64
}

// NewTranscriptLog creates an empty in-memory transcript log.
func NewTranscriptLog() *TranscriptLog {
	return &TranscriptLog{segments: make(map[uuid.UUID]*models.TranscriptSegment)}
}

func (l *TranscriptLog) AppendFinal(ctx context.Context, sessionID uuid.UUID, text string, speaker *string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Monotonic sequence keeps creation order stable even when
	// timestamps collide within clock resolution.
	l.seq++
	seg := &models.TranscriptSegment{
		ID:        uuid.New(),
		SessionID: sessionID,
		Text:      text,
		IsFinal:   true,
		CreatedAt: time.Now().UTC().Add(time.Duration(l.seq) * time.Nanosecond),
	}
	if speaker != nil {
		name := *speaker
		seg.SpeakerName = &name
	}
	l.segments[seg.ID] = seg
	return nil
}

func (l *TranscriptLog) FetchUnprocessed(ctx context.Context, sessionID uuid.UUID) ([]models.TranscriptSegment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.TranscriptSegment
	for _, seg := range l.segments {
		if seg.SessionID == sessionID && seg.IsFinal && !seg.Processed && !seg.Deleted {
			out = append(out, *seg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (l *TranscriptLog) MarkProcessed(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	updated := 0
	for _, id := range ids {
		if seg, ok := l.segments[id]; ok && !seg.Processed {
			seg.Processed = true
			updated++
		}
	}
	if updated != len(ids) {
		return fmt.Errorf("%w: expected %d rows, updated %d",
			storage.ErrProcessedCountMismatch, len(ids), updated)
	}
	return nil
}

// SoftDelete flags a segment deleted. Used by tests to verify that
// FetchUnprocessed skips deleted rows.
func (l *TranscriptLog) SoftDelete(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seg, ok := l.segments[id]; ok {
		seg.Deleted = true
	}
}

// SummaryStore is an in-memory implementation of storage.SummaryStore.
type SummaryStore struct {
	mu        sync.RWMutex
	summaries []models.SummaryRecord
}

// NewSummaryStore creates an empty in-memory summary store.
func NewSummaryStore() *SummaryStore {
	return &SummaryStore{}
}

func (s *SummaryStore) Append(ctx context.Context, sessionID uuid.UUID, summary string, author *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := models.SummaryRecord{
		ID:        uuid.New(),
		SessionID: sessionID,
		Summary:   summary,
		CreatedAt: time.Now().UTC().Add(time.Duration(len(s.summaries)) * time.Nanosecond),
	}
	if author != nil {
		name := *author
		rec.CreatedBy = &name
	}
	s.summaries = append(s.summaries, rec)
	return nil
}

func (s *SummaryStore) Latest(ctx context.Context, sessionID uuid.UUID) (*models.SummaryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.summaries) - 1; i >= 0; i-- {
		if s.summaries[i].SessionID == sessionID {
			rec := s.summaries[i]
			return &rec, nil
		}
	}
	return nil, storage.ErrSummaryNotFound
}

// All returns every stored summary for a session in creation order.
// Used by tests to assert on history.
func (s *SummaryStore) All(sessionID uuid.UUID) []models.SummaryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.SummaryRecord
	for _, rec := range s.summaries {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out
}
