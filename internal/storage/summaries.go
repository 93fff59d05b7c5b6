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

// PostgresSummaryStore implements SummaryStore over a pgx pool.
type PostgresSummaryStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresSummaryStore creates a summary store backed by Postgres.
func NewPostgresSummaryStore(pool *pgxpool.Pool) *PostgresSummaryStore {
	return &PostgresSummaryStore{
		pool:   pool,
		logger: logging.WithComponent("summary_store"),
	}
}

func (s *PostgresSummaryStore) Append(ctx context.Context, sessionID uuid.UUID, summary string, author *string) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO meeting_summary (id, session_id, summary, created_by, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, uuid.New(), sessionID, summary, author)
	if err != nil {
		return fmt.Errorf("insert meeting summary: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("insert meeting summary: expected 1 row, got %d", tag.RowsAffected())
	}

	s.logger.Debug().
		Str("sessionId", sessionID.String()).
		Msg("Summary persisted")
	return nil
}

func (s *PostgresSummaryStore) Latest(ctx context.Context, sessionID uuid.UUID) (*models.SummaryRecord, error) {
	query := `
		SELECT ms.id, ms.session_id, ms.summary, ms.created_by, ms.created_at
		FROM meeting_summary ms
		JOIN meeting_session s ON s.id = ms.session_id
		WHERE ms.session_id = $1
		  AND ms.is_deleted = FALSE
		  AND s.is_deleted = FALSE
		ORDER BY ms.created_at DESC
		LIMIT 1
	`
	var rec models.SummaryRecord
	err := s.pool.QueryRow(ctx, query, sessionID).Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.Summary,
		&rec.CreatedBy,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSummaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select latest summary: %w", err)
	}
	return &rec, nil
}
