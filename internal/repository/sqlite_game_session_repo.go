package repository

import (
	"codingescape/internal/model"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type sqliteGameSessionRepo struct {
	db *sql.DB
}

// NewSQLiteGameSessionRepo returns a GameSessionRepo backed by SQLite
func NewSQLiteGameSessionRepo(db *sql.DB) GameSessionRepo {
	return &sqliteGameSessionRepo{db: db}
}

func (r *sqliteGameSessionRepo) Create(ctx context.Context, session *model.GameSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.FinishedAt.IsZero() {
		session.FinishedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO game_sessions (id, user_id, difficulty, time_taken, finished_at) VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.Difficulty, session.TimeTaken, formatTime(session.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert game session: %w", err)
	}
	return nil
}

func (r *sqliteGameSessionRepo) ListByDifficulty(ctx context.Context, difficulty string) ([]*model.GameSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, difficulty, time_taken, finished_at FROM game_sessions
		WHERE difficulty = ? ORDER BY time_taken ASC, finished_at ASC`, difficulty)
	if err != nil {
		return nil, fmt.Errorf("query game sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*model.GameSession{}
	for rows.Next() {
		var (
			s          model.GameSession
			finishedAt string
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Difficulty, &s.TimeTaken, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan game session: %w", err)
		}
		s.FinishedAt = parseTime(finishedAt)
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

func (r *sqliteGameSessionRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM game_sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete game sessions: %w", err)
	}
	return res.RowsAffected()
}
