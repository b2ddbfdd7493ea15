package main

import (
	"codingescape/internal/app"
	"codingescape/internal/config"
	"codingescape/internal/escape"
	"codingescape/internal/model"
	"codingescape/internal/repository"
	"codingescape/internal/service"
	"context"
	"errors"
	"log"
	"time"
)

type demoRun struct {
	difficulty escape.Difficulty
	timeTaken  int
}

type demoUser struct {
	email string
	name  string
	runs  []demoRun
}

var demoUsers = []demoUser{
	{"ada@example.com", "Ada", []demoRun{{escape.Easy, 412}, {escape.Easy, 377}, {escape.Medium, 655}}},
	{"grace@example.com", "Grace", []demoRun{{escape.Easy, 398}, {escape.Hard, 540}}},
	{"linus@example.com", "Linus", []demoRun{{escape.Medium, 701}, {escape.Hard, 590}}},
	{"guest@example.com", "Guest", nil},
}

const demoPassword = "escape123"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.Load()
	backends, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open backends: %v", err)
	}
	defer backends.Close(context.Background())
	store := backends.Store

	hash, err := service.HashPassword(demoPassword)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	leaderboard := service.NewLeaderboardService(store.Sessions, store.Users, backends.Leaderboard)

	for _, du := range demoUsers {
		user := &model.User{Email: du.email, DisplayName: du.name, PasswordHash: hash}
		err := store.Users.Create(ctx, user)
		if errors.Is(err, repository.ErrDuplicate) {
			log.Printf("User %s already exists, skipping", du.email)
			continue
		}
		if err != nil {
			log.Fatalf("Failed to create %s: %v", du.email, err)
		}

		for _, run := range du.runs {
			c := escape.Completion{Difficulty: run.difficulty, TimeTaken: run.timeTaken}
			if _, err := leaderboard.Record(ctx, user.ID, c); err != nil {
				log.Fatalf("Failed to record run for %s: %v", du.email, err)
			}
		}

		// one half-finished run to resume
		snap := escape.Snapshot{
			Difficulty:  escape.Easy,
			TimeLeft:    840,
			CurrentRoom: 2,
			SolvedRooms: map[string]bool{"room1": true, "room2": true},
		}
		if err := store.Saves.Create(ctx, model.SaveFromSnapshot(user.ID, snap)); err != nil {
			log.Fatalf("Failed to save progress for %s: %v", du.email, err)
		}
		log.Printf("Seeded %s (%d runs)", du.email, len(du.runs))
	}

	log.Printf("Done. Demo password: %s", demoPassword)
}
