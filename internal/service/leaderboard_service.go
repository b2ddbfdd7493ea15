package service

import (
	"codingescape/internal/cache"
	"codingescape/internal/escape"
	"codingescape/internal/model"
	"codingescape/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

const (
	DefaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

var ErrInvalidSession = errors.New("difficulty and a timeTaken within the difficulty budget are required")

// LeaderboardService records escaped runs and ranks them
type LeaderboardService struct {
	sessions repository.GameSessionRepo
	users    repository.UserRepo
	cache    cache.LeaderboardCache // nil when Redis is off
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(sessions repository.GameSessionRepo, users repository.UserRepo, lb cache.LeaderboardCache) *LeaderboardService {
	return &LeaderboardService{
		sessions: sessions,
		users:    users,
		cache:    lb,
	}
}

// Record stores one escaped run. Cache failures are logged only.
func (s *LeaderboardService) Record(ctx context.Context, userID string, c escape.Completion) (*model.GameSession, error) {
	session := &model.GameSession{
		UserID:     userID,
		Difficulty: string(c.Difficulty),
		TimeTaken:  c.TimeTaken,
		FinishedAt: time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		logEvent(EventSessionFinished, Fields{"userId": userID, "error": "store_failed"})
		return nil, fmt.Errorf("create game session: %w", err)
	}

	if s.cache != nil {
		_, err := s.cache.Record(ctx, session.Difficulty, cache.LeaderboardEntry{
			UserID:     userID,
			TimeTaken:  session.TimeTaken,
			FinishedAt: session.FinishedAt,
		})
		if err != nil {
			log.Printf("Warning: leaderboard cache update failed: %v", err)
		}
	}

	logEvent(EventSessionFinished, Fields{
		"userId":        userID,
		"difficulty":    session.Difficulty,
		"timeTaken":     session.TimeTaken,
		"gameSessionId": session.ID,
	})
	return session, nil
}

// RecordReport stores a completion reported by the client
func (s *LeaderboardService) RecordReport(ctx context.Context, userID string, req *model.FinishSessionRequest) (*model.GameSession, error) {
	d, err := escape.ParseDifficulty(req.Difficulty)
	if err != nil || req.TimeTaken == nil || *req.TimeTaken < 0 || *req.TimeTaken > d.Budget().TimeSeconds {
		logEvent(EventSessionFinished, Fields{"userId": userID, "error": "invalid_payload"})
		return nil, ErrInvalidSession
	}
	return s.Record(ctx, userID, escape.Completion{Difficulty: d, TimeTaken: *req.TimeTaken})
}

// Top returns the n fastest players for a difficulty, one row per player
func (s *LeaderboardService) Top(ctx context.Context, difficulty string, n int) (*model.LeaderboardResponse, error) {
	if difficulty == "" {
		difficulty = string(escape.Easy)
	}
	d, err := escape.ParseDifficulty(difficulty)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = DefaultLeaderboardSize
	}
	n = min(n, maxLeaderboardSize)

	entries, err := s.topEntries(ctx, string(d), n)
	if err != nil {
		return nil, err
	}
	rows, err := s.withNames(ctx, entries)
	if err != nil {
		return nil, err
	}

	logEvent(EventLeaderboardView, Fields{"difficulty": d, "entries": len(rows)})
	return &model.LeaderboardResponse{Difficulty: string(d), Leaderboard: rows}, nil
}

func (s *LeaderboardService) topEntries(ctx context.Context, difficulty string, n int) ([]cache.LeaderboardEntry, error) {
	if s.cache != nil {
		entries, warm, err := s.cache.GetTop(ctx, difficulty, n)
		if err != nil {
			log.Printf("Warning: leaderboard cache read failed, using store: %v", err)
		} else if warm {
			return entries, nil
		}
	}

	// runs recorded while the store is read land on the rebuilding board
	rebuilding := false
	if s.cache != nil {
		if err := s.cache.BeginRebuild(ctx, difficulty); err != nil {
			log.Printf("Warning: leaderboard cache rebuild failed: %v", err)
		} else {
			rebuilding = true
		}
	}

	sessions, err := s.sessions.ListByDifficulty(ctx, difficulty)
	if err != nil {
		return nil, fmt.Errorf("list game sessions: %w", err)
	}
	best := bestPerUser(sessions)

	if rebuilding {
		if err := s.cache.Warm(ctx, difficulty, best); err != nil {
			log.Printf("Warning: leaderboard cache warm failed: %v", err)
		}
	}
	if len(best) > n {
		best = best[:n]
	}
	return best, nil
}

// bestPerUser keeps the first session of each user; input is sorted fastest first
func bestPerUser(sessions []*model.GameSession) []cache.LeaderboardEntry {
	seen := make(map[string]bool, len(sessions))
	out := make([]cache.LeaderboardEntry, 0, len(sessions))
	for _, gs := range sessions {
		if seen[gs.UserID] {
			continue
		}
		seen[gs.UserID] = true
		out = append(out, cache.LeaderboardEntry{
			UserID:     gs.UserID,
			TimeTaken:  gs.TimeTaken,
			FinishedAt: gs.FinishedAt,
			Rank:       len(out) + 1,
		})
	}
	return out
}

// withNames resolves display names; entries of deleted accounts are dropped
func (s *LeaderboardService) withNames(ctx context.Context, entries []cache.LeaderboardEntry) ([]model.LeaderboardRow, error) {
	rows := []model.LeaderboardRow{}
	if len(entries) == 0 {
		return rows, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName
	}

	for _, e := range entries {
		name, ok := names[e.UserID]
		if !ok {
			continue
		}
		rows = append(rows, model.LeaderboardRow{
			Rank:       len(rows) + 1,
			UserID:     e.UserID,
			Player:     name,
			TimeTaken:  e.TimeTaken,
			FinishedAt: e.FinishedAt,
		})
	}
	return rows, nil
}
