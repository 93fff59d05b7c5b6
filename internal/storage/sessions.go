package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"ai-meeting-summary-service/internal/models"
	"ai-meeting-summary-service/internal/observability/logging"
)

// PostgresSessionStore implements SessionStore over a pgx pool.
type PostgresSessionStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresSessionStore creates a session store backed by Postgres.
func NewPostgresSessionStore(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{
		pool:   pool,
		logger: logging.WithComponent("session_store"),
	}
}

func (s *PostgresSessionStore) Create(ctx context.Context, params CreateSessionParams) (*models.MeetingSession, error) {
	session := &models.MeetingSession{
		ID:        uuid.New(),
		MeetingID: params.MeetingID,
		ThreadID:  params.ThreadID,
		MessageID: params.MessageID,
		TenantID:  params.TenantID,
		Status:    models.SessionRegistered,
	}

	query := `
		INSERT INTO meeting_session (id, meeting_id, thread_id, message_id, tenant_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	err := s.pool.QueryRow(ctx, query,
		session.ID,
		session.MeetingID,
		session.ThreadID,
		session.MessageID,
		session.TenantID,
		session.Status,
	).Scan(&session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert meeting session: %w", err)
	}

	s.logger.Info().
		Str("sessionId", session.ID.String()).
		Str("meetingId", session.MeetingID).
		Msg("Meeting session registered")
	return session, nil
}

func (s *PostgresSessionStore) GetByID(ctx context.Context, sessionID uuid.UUID) (*models.MeetingSession, error) {
	query := `
		SELECT id, meeting_id, thread_id, message_id, tenant_id, status, created_at
		FROM meeting_session
		WHERE id = $1 AND is_deleted = FALSE
	`
	var session models.MeetingSession
	err := s.pool.QueryRow(ctx, query, sessionID).Scan(
		&session.ID,
		&session.MeetingID,
		&session.ThreadID,
		&session.MessageID,
		&session.TenantID,
		&session.Status,
		&session.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select meeting session: %w", err)
	}
	return &session, nil
}

func (s *PostgresSessionStore) UpdateStatus(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE meeting_session SET status = $2 WHERE id = $1 AND is_deleted = FALSE`,
		sessionID, status,
	)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	s.logger.Info().
		Str("sessionId", sessionID.String()).
		Str("status", string(status)).
		Msg("Session status updated")
	return nil
}
