package escape

import (
	"errors"
	"strings"
)

var (
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	ErrUnknownRoom       = errors.New("unknown room")
	ErrRoomLocked        = errors.New("solve the current puzzle before opening the door")
	ErrNoHints           = errors.New("no hints left")
	ErrRunFinished       = errors.New("run is already finished")
)

// Difficulty selects the time budget, hint allowance and rule variant of a run
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties lists every difficulty in menu order
var Difficulties = []Difficulty{Easy, Medium, Hard}

// Budget is what a difficulty grants at the start of a run
type Budget struct {
	TimeSeconds int `json:"timeSeconds"`
	Hints       int `json:"hints"`
}

var budgets = map[Difficulty]Budget{
	Easy:   {TimeSeconds: 20 * 60, Hints: 6},
	Medium: {TimeSeconds: 15 * 60, Hints: 3},
	Hard:   {TimeSeconds: 10 * 60, Hints: 0},
}

// IsValid reports whether d is one of the known difficulties
func (d Difficulty) IsValid() bool {
	_, ok := budgets[d]
	return ok
}

// Budget returns the time and hint budget; unknown difficulties get a zero budget
func (d Difficulty) Budget() Budget {
	return budgets[d]
}

func (d Difficulty) String() string {
	return string(d)
}

// ParseDifficulty accepts any casing and surrounding whitespace
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", ErrUnknownDifficulty
	}
	return d, nil
}
