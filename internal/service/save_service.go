package service

import (
	"codingescape/internal/escape"
	"codingescape/internal/model"
	"codingescape/internal/repository"
	"context"
	"errors"
	"fmt"
)

var (
	ErrSaveNotFound = errors.New("save not found")
	ErrInvalidSave  = errors.New("difficulty, timeLeft and currentRoom are required")
)

// SaveService stores and loads resumable snapshots
type SaveService struct {
	saves repository.SaveRepo
}

// NewSaveService creates a new save service
func NewSaveService(saves repository.SaveRepo) *SaveService {
	return &SaveService{saves: saves}
}

// Save stores a client-provided snapshot
func (s *SaveService) Save(ctx context.Context, userID string, req *model.SaveRequest) (*model.SaveState, error) {
	if req.Difficulty == nil || req.TimeLeft == nil || req.CurrentRoom == nil {
		logEvent(EventSaveProgress, Fields{"userId": userID, "error": "invalid_payload"})
		return nil, ErrInvalidSave
	}
	d, err := escape.ParseDifficulty(*req.Difficulty)
	if err != nil {
		logEvent(EventSaveProgress, Fields{"userId": userID, "error": "invalid_payload"})
		return nil, err
	}

	save := &model.SaveState{
		UserID:      userID,
		Difficulty:  string(d),
		TimeLeft:    *req.TimeLeft,
		CurrentRoom: *req.CurrentRoom,
		SolvedRooms: req.SolvedRooms,
		RoomStates:  req.RoomStates,
	}
	if save.SolvedRooms == nil {
		save.SolvedRooms = map[string]bool{}
	}
	return s.upsert(ctx, req.SaveID, save)
}

// SaveSnapshot stores the snapshot of a live run and returns the save id
func (s *SaveService) SaveSnapshot(ctx context.Context, userID, saveID string, snap escape.Snapshot) (string, error) {
	save, err := s.upsert(ctx, saveID, model.SaveFromSnapshot(userID, snap))
	if err != nil {
		return "", err
	}
	return save.ID, nil
}

// upsert updates saveID when the user owns it, otherwise starts a new save
func (s *SaveService) upsert(ctx context.Context, saveID string, save *model.SaveState) (*model.SaveState, error) {
	var existing *model.SaveState
	if saveID != "" {
		var err error
		existing, err = s.saves.GetByID(ctx, saveID)
		if err != nil {
			return nil, fmt.Errorf("get save: %w", err)
		}
	}

	if existing != nil && existing.UserID == save.UserID {
		save.ID = existing.ID
		save.CreatedAt = existing.CreatedAt
		if err := s.saves.Update(ctx, save); err != nil {
			return nil, fmt.Errorf("update save: %w", err)
		}
	} else {
		if err := s.saves.Create(ctx, save); err != nil {
			return nil, fmt.Errorf("create save: %w", err)
		}
	}

	logEvent(EventSaveProgress, Fields{
		"userId":      save.UserID,
		"difficulty":  save.Difficulty,
		"timeLeft":    save.TimeLeft,
		"currentRoom": save.CurrentRoom,
		"saveId":      save.ID,
	})
	return save, nil
}

// Latest returns the most recently updated save, or nil
func (s *SaveService) Latest(ctx context.Context, userID string) (*model.SaveState, error) {
	save, err := s.saves.Latest(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("latest save: %w", err)
	}
	if save == nil {
		logEvent(EventGetLatestSave, Fields{"userId": userID, "hasSave": false})
		return nil, nil
	}
	logEvent(EventGetLatestSave, Fields{"userId": userID, "hasSave": true, "saveId": save.ID})
	return save, nil
}

// History lists the user's saves newest first
func (s *SaveService) History(ctx context.Context, userID string) ([]*model.SaveState, error) {
	saves, err := s.saves.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	logEvent(EventGetSaveHistory, Fields{"userId": userID, "count": len(saves)})
	return saves, nil
}

// Get returns a save owned by the user
func (s *SaveService) Get(ctx context.Context, userID, saveID string) (*model.SaveState, error) {
	save, err := s.saves.GetByID(ctx, saveID)
	if err != nil {
		return nil, fmt.Errorf("get save: %w", err)
	}
	if save == nil || save.UserID != userID {
		return nil, ErrSaveNotFound
	}
	return save, nil
}

// DeleteAll removes every save of the user
func (s *SaveService) DeleteAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.saves.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete saves: %w", err)
	}
	logEvent(EventGetSaveHistory, Fields{"userId": userID, "deleted": n})
	return n, nil
}
