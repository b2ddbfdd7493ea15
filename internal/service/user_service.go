package service

import (
	"codingescape/internal/cache"
	"codingescape/internal/model"
	"codingescape/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

var ErrUserNotFound = errors.New("user not found")

// UserService manages the logged-in player's account
type UserService struct {
	users       repository.UserRepo
	saves       repository.SaveRepo
	sessions    repository.GameSessionRepo
	leaderboard cache.LeaderboardCache // nil when Redis is off
}

// NewUserService creates a new user service
func NewUserService(
	users repository.UserRepo,
	saves repository.SaveRepo,
	sessions repository.GameSessionRepo,
	leaderboard cache.LeaderboardCache,
) *UserService {
	return &UserService{
		users:       users,
		saves:       saves,
		sessions:    sessions,
		leaderboard: leaderboard,
	}
}

// Me returns the account behind a token
func (s *UserService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Update changes display name and/or password; empty fields are kept
func (s *UserService) Update(ctx context.Context, userID string, req *model.UpdateUserRequest) (*model.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(req.DisplayName); name != "" {
		user.DisplayName = name
	}
	if req.Password != "" {
		hash, err := HashPassword(req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// Delete removes the account with its saves, finished runs and leaderboard entries
func (s *UserService) Delete(ctx context.Context, userID string) error {
	if _, err := s.Me(ctx, userID); err != nil {
		logEvent(EventUserDelete, Fields{"userId": userID, "error": "not_found"})
		return err
	}

	saves, err := s.saves.DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete saves: %w", err)
	}
	sessions, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete game sessions: %w", err)
	}
	if s.leaderboard != nil {
		if err := s.leaderboard.Remove(ctx, userID); err != nil {
			log.Printf("Warning: failed to remove %s from leaderboard cache: %v", userID, err)
		}
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	logEvent(EventUserDelete, Fields{"userId": userID, "saves": saves, "sessions": sessions})
	return nil
}
