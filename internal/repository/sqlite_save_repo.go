package repository

import (
	"codingescape/internal/model"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

type sqliteSaveRepo struct {
	db *sql.DB
}

// NewSQLiteSaveRepo returns a SaveRepo backed by SQLite
func NewSQLiteSaveRepo(db *sql.DB) SaveRepo {
	return &sqliteSaveRepo{db: db}
}

const saveColumns = `id, user_id, difficulty, time_left, current_room, solved_rooms_json, room_states_json, created_at, updated_at`

func (r *sqliteSaveRepo) Create(ctx context.Context, save *model.SaveState) error {
	if save.ID == "" {
		save.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	save.CreatedAt = now
	save.UpdatedAt = now

	solved, states, err := encodeSaveJSON(save)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO saves (`+saveColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		save.ID, save.UserID, save.Difficulty, save.TimeLeft, save.CurrentRoom,
		solved, states, formatTime(save.CreatedAt), formatTime(save.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert save: %w", err)
	}
	return nil
}

func (r *sqliteSaveRepo) GetByID(ctx context.Context, id string) (*model.SaveState, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+saveColumns+` FROM saves WHERE id = ?`, id)
	return scanSave(row)
}

func (r *sqliteSaveRepo) Update(ctx context.Context, save *model.SaveState) error {
	save.UpdatedAt = time.Now().UTC()
	solved, states, err := encodeSaveJSON(save)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE saves SET difficulty = ?, time_left = ?, current_room = ?, solved_rooms_json = ?,
			room_states_json = ?, updated_at = ? WHERE id = ?`,
		save.Difficulty, save.TimeLeft, save.CurrentRoom, solved, states, formatTime(save.UpdatedAt), save.ID,
	)
	if err != nil {
		return fmt.Errorf("update save: %w", err)
	}
	return nil
}

func (r *sqliteSaveRepo) Latest(ctx context.Context, userID string) (*model.SaveState, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+saveColumns+` FROM saves WHERE user_id = ? ORDER BY updated_at DESC, rowid DESC LIMIT 1`, userID)
	return scanSave(row)
}

func (r *sqliteSaveRepo) ListByUser(ctx context.Context, userID string) ([]*model.SaveState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+saveColumns+` FROM saves WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query saves: %w", err)
	}
	defer rows.Close()

	saves := []*model.SaveState{}
	for rows.Next() {
		s, err := scanSave(rows)
		if err != nil {
			return nil, err
		}
		saves = append(saves, s)
	}
	return saves, rows.Err()
}

func (r *sqliteSaveRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM saves WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete saves: %w", err)
	}
	return res.RowsAffected()
}

func encodeSaveJSON(save *model.SaveState) (string, sql.NullString, error) {
	solved := save.SolvedRooms
	if solved == nil {
		solved = map[string]bool{}
	}
	solvedJSON, err := json.Marshal(solved)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("marshal solved rooms: %w", err)
	}
	if save.RoomStates == nil {
		return string(solvedJSON), sql.NullString{}, nil
	}
	statesJSON, err := json.Marshal(save.RoomStates)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("marshal room states: %w", err)
	}
	return string(solvedJSON), sql.NullString{String: string(statesJSON), Valid: true}, nil
}

func scanSave(row rowScanner) (*model.SaveState, error) {
	var (
		s                    model.SaveState
		solvedJSON           string
		statesJSON           sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&s.ID, &s.UserID, &s.Difficulty, &s.TimeLeft, &s.CurrentRoom,
		&solvedJSON, &statesJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan save: %w", err)
	}
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)

	// malformed columns fall back to empty state instead of failing the read
	if err := json.Unmarshal([]byte(solvedJSON), &s.SolvedRooms); err != nil || s.SolvedRooms == nil {
		if err != nil {
			log.Printf("save %s: bad solved_rooms_json, using empty: %v", s.ID, err)
		}
		s.SolvedRooms = map[string]bool{}
	}
	if statesJSON.Valid {
		if err := json.Unmarshal([]byte(statesJSON.String), &s.RoomStates); err != nil {
			log.Printf("save %s: bad room_states_json, using empty: %v", s.ID, err)
			s.RoomStates = map[string]model.RoomState{}
		}
	}
	return &s, nil
}
