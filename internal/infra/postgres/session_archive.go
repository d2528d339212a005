package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quizflow/internal/domain"
)

// SessionArchive persists completed sessions as JSONB rows so partial and
// finished attempts survive the cache layer. Upserts keep the archive
// idempotent under replayed completions.
type SessionArchive struct {
	pool *pgxpool.Pool
}

func NewSessionArchive(pool *pgxpool.Pool) *SessionArchive {
	return &SessionArchive{pool: pool}
}

func (a *SessionArchive) ArchiveSession(ctx context.Context, session domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO quiz_sessions (id, quiz_id, data)
		 VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		session.ID, session.QuizID, string(data))
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	return nil
}
