package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"ai-meeting-summary-service/internal/models"
	"ai-meeting-summary-service/internal/observability/logging"
)

// PostgresTranscriptLog implements TranscriptLog over a pgx pool.
type PostgresTranscriptLog struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresTranscriptLog creates a transcript log backed by Postgres.
func NewPostgresTranscriptLog(pool *pgxpool.Pool) *PostgresTranscriptLog {
	return &PostgresTranscriptLog{
		pool:   pool,
		logger: logging.WithComponent("transcript_log"),
	}
}

// AppendFinal persists one final segment. There is no idempotency key:
// a duplicate relay inserts a duplicate row (at-least-once semantics).
func (l *PostgresTranscriptLog) AppendFinal(ctx context.Context, sessionID uuid.UUID, text string, speaker *string) error {
	tag, err := l.pool.Exec(ctx, `
		INSERT INTO transcript_segment (id, session_id, text, speaker_name, is_final, processed, created_at)
		VALUES ($1, $2, $3, $4, TRUE, FALSE, NOW())
	`, uuid.New(), sessionID, text, speaker)
	if err != nil {
		return fmt.Errorf("insert transcript segment: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("insert transcript segment: expected 1 row, got %d", tag.RowsAffected())
	}
	return nil
}

func (l *PostgresTranscriptLog) FetchUnprocessed(ctx context.Context, sessionID uuid.UUID) ([]models.TranscriptSegment, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, session_id, text, speaker_name, is_final, processed, created_at
		FROM transcript_segment
		WHERE session_id = $1
		  AND is_final = TRUE
		  AND processed = FALSE
		  AND is_deleted = FALSE
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select unprocessed segments: %w", err)
	}
	defer rows.Close()

	var segments []models.TranscriptSegment
	for rows.Next() {
		var seg models.TranscriptSegment
		if err := rows.Scan(
			&seg.ID,
			&seg.SessionID,
			&seg.Text,
			&seg.SpeakerName,
			&seg.IsFinal,
			&seg.Processed,
			&seg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transcript segment: %w", err)
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript segments: %w", err)
	}
	return segments, nil
}

// markProcessedSQL restricts the update to rows still unprocessed.
// Postgres counts a row as affected even when the written value equals
// the stored one, so without the predicate a re-mark of already
// processed ids would report a full count and hide the fault.
const markProcessedSQL = `UPDATE transcript_segment SET processed = TRUE WHERE id = ANY($1) AND processed = FALSE`

// MarkProcessed flips the processed flag for exactly the given rows.
// A count mismatch means another writer touched the log or an id was
// already processed; that is a correctness hazard and is returned as
// ErrProcessedCountMismatch rather than ignored.
func (l *PostgresTranscriptLog) MarkProcessed(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	tag, err := l.pool.Exec(ctx, markProcessedSQL, ids)
	if err != nil {
		return fmt.Errorf("mark segments processed: %w", err)
	}
	if int(tag.RowsAffected()) != len(ids) {
		return fmt.Errorf("%w: expected %d rows, updated %d",
			ErrProcessedCountMismatch, len(ids), tag.RowsAffected())
	}

	l.logger.Debug().
		Int("count", len(ids)).
		Msg("Transcript segments marked processed")
	return nil
}
