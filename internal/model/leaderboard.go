package model

import "time"

// LeaderboardRow is one ranked entry, best time per player
type LeaderboardRow struct {
	Rank       int       `json:"rank"`
	UserID     string    `json:"-"`
	Player     string    `json:"player"`
	TimeTaken  int       `json:"timeTaken"`
	FinishedAt time.Time `json:"finishedAt"`
}

// LeaderboardResponse is the body of GET /leaderboard
type LeaderboardResponse struct {
	Difficulty  string           `json:"difficulty"`
	Leaderboard []LeaderboardRow `json:"leaderboard"`
}
