package model

import (
	"time"

	"codingescape/internal/escape"
)

// RoomState is the persisted editor and console of one room
type RoomState struct {
	EditorCode      string   `json:"editorCode" bson:"editorCode"`
	ConsoleLines    []string `json:"consoleLines" bson:"consoleLines"`
	PuzzleConnected bool     `json:"puzzleConnected" bson:"puzzleConnected"`
}

// SaveState is one resumable snapshot of a run
type SaveState struct {
	ID          string               `json:"id" bson:"_id,omitempty"`
	UserID      string               `json:"-" bson:"userId"`
	Difficulty  string               `json:"difficulty" bson:"difficulty"`
	TimeLeft    int                  `json:"timeLeft" bson:"timeLeft"`
	CurrentRoom int                  `json:"currentRoom" bson:"currentRoom"`
	SolvedRooms map[string]bool      `json:"solvedRooms" bson:"solvedRooms"`
	RoomStates  map[string]RoomState `json:"roomStates,omitempty" bson:"roomStates,omitempty"`
	CreatedAt   time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// SaveRequest is the body of POST /save. SaveID continues an existing save.
type SaveRequest struct {
	SaveID      string               `json:"saveId,omitempty"`
	Difficulty  *string              `json:"difficulty"`
	TimeLeft    *int                 `json:"timeLeft"`
	CurrentRoom *int                 `json:"currentRoom"`
	SolvedRooms map[string]bool      `json:"solvedRooms"`
	RoomStates  map[string]RoomState `json:"roomStates"`
}

// SaveResponse is returned after a save
type SaveResponse struct {
	ID string `json:"id"`
}

// SaveFromSnapshot maps an engine snapshot onto a save owned by userID
func SaveFromSnapshot(userID string, snap escape.Snapshot) *SaveState {
	s := &SaveState{
		UserID:      userID,
		Difficulty:  string(snap.Difficulty),
		TimeLeft:    snap.TimeLeft,
		CurrentRoom: snap.CurrentRoom,
		SolvedRooms: make(map[string]bool, len(snap.SolvedRooms)),
		RoomStates:  make(map[string]RoomState, len(snap.RoomStates)),
	}
	for id, ok := range snap.SolvedRooms {
		s.SolvedRooms[id] = ok
	}
	for id, rs := range snap.RoomStates {
		s.RoomStates[id] = RoomState{
			EditorCode:      rs.EditorCode,
			ConsoleLines:    rs.ConsoleLines,
			PuzzleConnected: rs.PuzzleConnected,
		}
	}
	return s
}

// Snapshot maps the save back onto the engine's resumable form
func (s *SaveState) Snapshot() escape.Snapshot {
	snap := escape.Snapshot{
		Difficulty:  escape.Difficulty(s.Difficulty),
		TimeLeft:    s.TimeLeft,
		CurrentRoom: s.CurrentRoom,
		SolvedRooms: make(map[string]bool, len(s.SolvedRooms)),
		RoomStates:  make(map[string]escape.RoomSnapshot, len(s.RoomStates)),
	}
	for id, ok := range s.SolvedRooms {
		snap.SolvedRooms[id] = ok
	}
	for id, rs := range s.RoomStates {
		snap.RoomStates[id] = escape.RoomSnapshot{
			EditorCode:      rs.EditorCode,
			ConsoleLines:    rs.ConsoleLines,
			PuzzleConnected: rs.PuzzleConnected,
		}
	}
	return snap
}
