package model

import "codingescape/internal/escape"

// GameView is what the game endpoints and the socket send back
type GameView struct {
	escape.State
	SaveID   string `json:"saveId,omitempty"`
	Advisory string `json:"advisory,omitempty"` // collaborator failure, gameplay continues
}

// StartGameRequest picks the difficulty of a new run
type StartGameRequest struct {
	Difficulty string `json:"difficulty"`
}

// ResumeGameRequest resumes a save; empty SaveID means the latest one
type ResumeGameRequest struct {
	SaveID string `json:"saveId"`
}

// CodeRequest carries editor text for submit and draft updates
type CodeRequest struct {
	Code string `json:"code"`
}

// SubmitResponse is the result of running code in a room
type SubmitResponse struct {
	Result escape.ValidationResult `json:"result"`
	View   *GameView               `json:"view"`
}

// HintResponse is returned by POST /game/hint
type HintResponse struct {
	Hint      string    `json:"hint"`
	HintsLeft int       `json:"hintsLeft"`
	View      *GameView `json:"view"`
}

// RoomInfo describes one room for the catalogue
type RoomInfo struct {
	ID       string `json:"id"`
	Index    int    `json:"index"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Prompt   string `json:"prompt"`
	Starter  string `json:"starter"`
}

// RoomsResponse is the body of GET /rooms
type RoomsResponse struct {
	Difficulty string        `json:"difficulty"`
	Budget     escape.Budget `json:"budget"`
	Rooms      []RoomInfo    `json:"rooms"`
}
