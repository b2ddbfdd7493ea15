package escape

// RoomSnapshot is the persisted form of RoomState
type RoomSnapshot struct {
	EditorCode      string   `json:"editorCode"`
	ConsoleLines    []string `json:"consoleLines"`
	PuzzleConnected bool     `json:"puzzleConnected"`
}

// Snapshot is the resumable projection of a run. Rooms are keyed by id.
type Snapshot struct {
	Difficulty  Difficulty              `json:"difficulty"`
	TimeLeft    int                     `json:"timeLeft"`
	CurrentRoom int                     `json:"currentRoom"`
	SolvedRooms map[string]bool         `json:"solvedRooms"`
	RoomStates  map[string]RoomSnapshot `json:"roomStates"`
}

// Snapshot captures the run for persistence
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Difficulty:  r.difficulty,
		TimeLeft:    r.timeLeft,
		CurrentRoom: r.current,
		SolvedRooms: make(map[string]bool, len(r.solved)),
		RoomStates:  make(map[string]RoomSnapshot, len(r.rooms)),
	}
	for i, room := range r.book.Rooms() {
		snap.SolvedRooms[room.ID] = r.solved[i]
		rs := r.rooms[i]
		snap.RoomStates[room.ID] = RoomSnapshot{
			EditorCode:      rs.Code,
			ConsoleLines:    append([]string{}, rs.Console...),
			PuzzleConnected: rs.Connected,
		}
	}
	return snap
}
