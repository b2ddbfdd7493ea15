package model

import "time"

// GameSession is one finished, escaped run
type GameSession struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	UserID     string    `json:"userId" bson:"userId"`
	Difficulty string    `json:"difficulty" bson:"difficulty"`
	TimeTaken  int       `json:"timeTaken" bson:"timeTaken"` // seconds
	FinishedAt time.Time `json:"finishedAt" bson:"finishedAt"`
}

// FinishSessionRequest is the body of POST /sessions
type FinishSessionRequest struct {
	Difficulty string `json:"difficulty"`
	TimeTaken  *int   `json:"timeTaken"`
}
