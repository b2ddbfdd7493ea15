package escape

import (
	"sync"
)

// Status is the lifecycle of a run
type Status string

const (
	StatusRunning  Status = "running"
	StatusEscaped  Status = "escaped"
	StatusTimedOut Status = "timed_out"
)

// IsTerminal reports whether no further moves count
func (s Status) IsTerminal() bool {
	return s == StatusEscaped || s == StatusTimedOut
}

// RoomState is the per-room editor and console
type RoomState struct {
	Code      string
	Console   []string
	Connected bool
}

// Completion is emitted once when a run escapes
type Completion struct {
	Difficulty Difficulty `json:"difficulty"`
	TimeTaken  int        `json:"timeTaken"`
}

// RoomView is the read-only projection of one room
type RoomView struct {
	ID        string   `json:"id"`
	Index     int      `json:"index"`
	Kind      string   `json:"kind"`
	Title     string   `json:"title"`
	Subtitle  string   `json:"subtitle"`
	Prompt    string   `json:"prompt"`
	Solved    bool     `json:"solved"`
	Code      string   `json:"code"`
	Console   []string `json:"console"`
	Connected bool     `json:"connected"`
}

// State is a copy of the run for rendering
type State struct {
	Difficulty  Difficulty `json:"difficulty"`
	Status      Status     `json:"status"`
	CurrentRoom int        `json:"currentRoom"`
	TimeLeft    int        `json:"timeLeft"`
	BaseTime    int        `json:"baseTime"`
	HintsLeft   int        `json:"hintsLeft"`
	LastMessage string     `json:"lastMessage"`
	Rooms       []RoomView `json:"rooms"`
}

// Current returns the projection of the room the player stands in
func (s State) Current() RoomView {
	if s.CurrentRoom < 0 || s.CurrentRoom >= len(s.Rooms) {
		return RoomView{}
	}
	return s.Rooms[s.CurrentRoom]
}

// Run owns the mutable state of one player's attempt. All methods are safe
// for concurrent use; the ticker and player actions share one mutex.
type Run struct {
	mu sync.Mutex

	book       *Rulebook
	difficulty Difficulty
	current    int
	solved     []bool
	rooms      []RoomState
	timeLeft   int
	baseTime   int
	hintsLeft  int
	message    string
	claimed    bool
}

// NewRun starts a fresh run at room 0 with the full budget of d
func NewRun(book *Rulebook, d Difficulty) (*Run, error) {
	if !d.IsValid() {
		return nil, ErrUnknownDifficulty
	}
	budget := d.Budget()
	return &Run{
		book:       book,
		difficulty: d,
		solved:     make([]bool, book.Len()),
		rooms:      make([]RoomState, book.Len()),
		timeLeft:   budget.TimeSeconds,
		baseTime:   budget.TimeSeconds,
		hintsLeft:  budget.Hints,
		message:    "Choose a room and start coding.",
	}, nil
}

// ResumeRun rebuilds a run from a snapshot. It never fails: an unknown
// difficulty falls back to easy and unrecognised room ids are dropped.
func ResumeRun(book *Rulebook, snap Snapshot) *Run {
	d, err := ParseDifficulty(string(snap.Difficulty))
	if err != nil {
		d = Easy
	}
	r, _ := NewRun(book, d)

	if snap.TimeLeft > 0 {
		r.timeLeft = min(snap.TimeLeft, r.baseTime)
	}
	r.current = max(0, min(snap.CurrentRoom, book.Len()-1))

	for id, solved := range snap.SolvedRooms {
		if i, ok := book.IndexOf(id); ok {
			r.solved[i] = solved
		}
	}
	for id, rs := range snap.RoomStates {
		if i, ok := book.IndexOf(id); ok {
			r.rooms[i] = RoomState{
				Code:      rs.EditorCode,
				Console:   append([]string(nil), rs.ConsoleLines...),
				Connected: rs.PuzzleConnected,
			}
		}
	}
	r.message = "Progress restored."
	return r
}

func (r *Run) allSolved() bool {
	for _, s := range r.solved {
		if !s {
			return false
		}
	}
	return len(r.solved) > 0
}

func (r *Run) status() Status {
	switch {
	case r.allSolved():
		return StatusEscaped
	case r.timeLeft <= 0:
		return StatusTimedOut
	default:
		return StatusRunning
	}
}

// Status returns the current lifecycle state
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status()
}

// Finished reports whether every room is solved or time ran out
func (r *Run) Finished() bool {
	return r.Status().IsTerminal()
}

// Difficulty of the run
func (r *Run) Difficulty() Difficulty {
	return r.difficulty
}

// Tick removes one second. It reports false when the run was already finished.
func (r *Run) Tick() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status().IsTerminal() {
		return false
	}
	r.timeLeft = max(0, r.timeLeft-1)
	if r.timeLeft == 0 {
		r.message = "Time is up. The lab locks down."
	}
	return true
}

// Submit validates text for a room. Rooms ahead of the current one and
// submissions after the run finished are rejected without side effects.
func (r *Run) Submit(roomIndex int, text string) ValidationResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status().IsTerminal() {
		return ValidationResult{
			Message:    "The run is over. Start a new run to keep playing.",
			Transcript: []string{},
		}
	}
	room, ok := r.book.Room(roomIndex)
	if !ok || roomIndex > r.current {
		return ValidationResult{
			Message:    "That door is still locked.",
			Transcript: []string{},
		}
	}

	res := r.book.Validate(roomIndex, r.difficulty, text)

	rs := &r.rooms[roomIndex]
	rs.Code = text
	rs.Console = append(rs.Console, "", "// Executing "+room.Title)
	rs.Console = append(rs.Console, res.Transcript...)
	r.message = res.Message
	if res.OK {
		r.solved[roomIndex] = true
		if r.status() == StatusEscaped {
			r.message = res.Message + " You escaped!"
		}
	}
	return res
}

// Advance opens the door of the current room
func (r *Run) Advance() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timeLeft <= 0 {
		return ErrRunFinished
	}
	if !r.solved[r.current] {
		r.message = "Solve the current puzzle before opening the door."
		return ErrRoomLocked
	}
	if r.current >= len(r.rooms)-1 {
		return nil
	}

	r.current++
	room, _ := r.book.Room(r.current)
	rs := &r.rooms[r.current]
	rs.Console = append(rs.Console, "// Entered "+room.Title)
	r.message = "You moved to: " + room.Title
	return nil
}

// UseHint spends one hint and returns the current room's hint text.
// An empty budget reports ErrNoHints even after the run is over.
func (r *Run) UseHint() (string, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hintsLeft <= 0 {
		r.message = "No hints left."
		return "", 0, ErrNoHints
	}
	if r.status().IsTerminal() {
		return "", r.hintsLeft, ErrRunFinished
	}
	r.hintsLeft--
	room, _ := r.book.Room(r.current)
	r.message = "Hint: " + room.Hint
	return room.Hint, r.hintsLeft, nil
}

// Connect plugs the current room's terminal in and loads the starter code
func (r *Run) Connect() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status().IsTerminal() {
		return "", ErrRunFinished
	}
	room, _ := r.book.Room(r.current)
	rs := &r.rooms[r.current]
	if !rs.Connected {
		rs.Connected = true
		if rs.Code == "" {
			rs.Code = room.Starter
		}
		rs.Console = append(rs.Console, "// Connected to "+room.Title)
	}
	r.message = "Terminal connected. Edit the code and run it."
	return rs.Code, nil
}

// SetCode stores an editor draft without validating it
func (r *Run) SetCode(roomIndex int, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if roomIndex < 0 || roomIndex >= len(r.rooms) {
		return ErrUnknownRoom
	}
	if roomIndex > r.current {
		return ErrRoomLocked
	}
	r.rooms[roomIndex].Code = code
	return nil
}

// ClaimCompletion hands out the completion exactly once, and only for an escaped run
func (r *Run) ClaimCompletion() (Completion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.claimed || r.status() != StatusEscaped {
		return Completion{}, false
	}
	r.claimed = true
	return Completion{
		Difficulty: r.difficulty,
		TimeTaken:  r.baseTime - r.timeLeft,
	}, true
}

// State returns a deep copy for rendering
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	views := make([]RoomView, len(r.rooms))
	for i, room := range r.book.Rooms() {
		v, _ := room.Variant(r.difficulty)
		rs := r.rooms[i]
		views[i] = RoomView{
			ID:        room.ID,
			Index:     i,
			Kind:      string(room.Kind),
			Title:     room.Title,
			Subtitle:  room.Subtitle,
			Prompt:    v.Prompt,
			Solved:    r.solved[i],
			Code:      rs.Code,
			Console:   append([]string{}, rs.Console...),
			Connected: rs.Connected,
		}
	}
	return State{
		Difficulty:  r.difficulty,
		Status:      r.status(),
		CurrentRoom: r.current,
		TimeLeft:    r.timeLeft,
		BaseTime:    r.baseTime,
		HintsLeft:   r.hintsLeft,
		LastMessage: r.message,
		Rooms:       views,
	}
}
