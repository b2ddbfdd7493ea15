package escape

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rooms.yaml
var defaultRooms string

// PuzzleKind names the puzzle a room hosts
type PuzzleKind string

const (
	KindFormat    PuzzleKind = "format"
	KindDebug     PuzzleKind = "debug"
	KindGenerator PuzzleKind = "generator"
	KindCSVToJSON PuzzleKind = "csv2json"
	KindLock      PuzzleKind = "lock"
	KindFinal     PuzzleKind = "final"
)

func (k PuzzleKind) IsValid() bool {
	switch k {
	case KindFormat, KindDebug, KindGenerator, KindCSVToJSON, KindLock, KindFinal:
		return true
	}
	return false
}

// Outcome is what the console shows after a validation attempt
type Outcome struct {
	Message    string   `yaml:"message" json:"message"`
	Transcript []string `yaml:"transcript" json:"transcript"`
}

// ValidationResult is the output of one submission
type ValidationResult struct {
	OK         bool     `json:"ok"`
	Message    string   `json:"message"`
	Transcript []string `json:"transcript"`
}

// Variant is the per-difficulty part of a room
type Variant struct {
	Prompt  string
	Rule    Predicate
	Success Outcome
	Failure Outcome
}

// Room is one stage of the escape sequence
type Room struct {
	ID       string
	Index    int
	Kind     PuzzleKind
	Title    string
	Subtitle string
	Hint     string
	Starter  string

	variants map[Difficulty]Variant
}

// Variant returns the rule variant for d
func (r Room) Variant(d Difficulty) (Variant, bool) {
	v, ok := r.variants[d]
	return v, ok
}

// Rulebook is the immutable room table
type Rulebook struct {
	rooms []Room
	index map[string]int
}

type rulebookFile struct {
	Rooms []roomFile `yaml:"rooms"`
}

type roomFile struct {
	ID       string                 `yaml:"id"`
	Kind     PuzzleKind             `yaml:"kind"`
	Title    string                 `yaml:"title"`
	Subtitle string                 `yaml:"subtitle"`
	Hint     string                 `yaml:"hint"`
	Starter  string                 `yaml:"starter"`
	Success  Outcome                `yaml:"success"`
	Failure  Outcome                `yaml:"failure"`
	Variants map[string]variantFile `yaml:"variants"`
}

type variantFile struct {
	Prompt  string        `yaml:"prompt"`
	Rule    PredicateSpec `yaml:"rule"`
	Success *Outcome      `yaml:"success,omitempty"`
	Failure *Outcome      `yaml:"failure,omitempty"`
}

// LoadRulebook parses and validates a YAML room table
func LoadRulebook(r io.Reader) (*Rulebook, error) {
	var f rulebookFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode rulebook: %w", err)
	}
	if len(f.Rooms) == 0 {
		return nil, fmt.Errorf("rulebook has no rooms")
	}

	book := &Rulebook{
		rooms: make([]Room, 0, len(f.Rooms)),
		index: make(map[string]int, len(f.Rooms)),
	}
	for i, rf := range f.Rooms {
		room, err := rf.build(i)
		if err != nil {
			return nil, fmt.Errorf("room %d (%s): %w", i+1, rf.ID, err)
		}
		if _, dup := book.index[room.ID]; dup {
			return nil, fmt.Errorf("duplicate room id %q", room.ID)
		}
		book.index[room.ID] = i
		book.rooms = append(book.rooms, room)
	}
	return book, nil
}

// LoadRulebookFile loads a rulebook from disk
func LoadRulebookFile(path string) (*Rulebook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rulebook: %w", err)
	}
	defer f.Close()
	return LoadRulebook(f)
}

var (
	defaultOnce sync.Once
	defaultBook *Rulebook
)

// DefaultRulebook returns the embedded six-room table
func DefaultRulebook() *Rulebook {
	defaultOnce.Do(func() {
		book, err := LoadRulebook(strings.NewReader(defaultRooms))
		if err != nil {
			panic("escape: embedded rooms.yaml: " + err.Error())
		}
		defaultBook = book
	})
	return defaultBook
}

func (rf roomFile) build(index int) (Room, error) {
	if rf.ID == "" {
		return Room{}, fmt.Errorf("missing id")
	}
	if !rf.Kind.IsValid() {
		return Room{}, fmt.Errorf("unknown kind %q", rf.Kind)
	}

	room := Room{
		ID:       rf.ID,
		Index:    index,
		Kind:     rf.Kind,
		Title:    rf.Title,
		Subtitle: rf.Subtitle,
		Hint:     rf.Hint,
		Starter:  rf.Starter,
		variants: make(map[Difficulty]Variant, len(Difficulties)),
	}

	for name, vf := range rf.Variants {
		d, err := ParseDifficulty(name)
		if err != nil {
			return Room{}, fmt.Errorf("variant %q: %w", name, err)
		}
		rule, err := vf.Rule.Compile()
		if err != nil {
			return Room{}, fmt.Errorf("variant %s rule: %w", d, err)
		}
		v := Variant{
			Prompt:  vf.Prompt,
			Rule:    rule,
			Success: rf.Success,
			Failure: rf.Failure,
		}
		if vf.Success != nil {
			v.Success = *vf.Success
		}
		if vf.Failure != nil {
			v.Failure = *vf.Failure
		}
		if v.Success.Message == "" || v.Failure.Message == "" {
			return Room{}, fmt.Errorf("variant %s: success and failure need a message", d)
		}
		room.variants[d] = v
	}

	for _, d := range Difficulties {
		if _, ok := room.variants[d]; !ok {
			return Room{}, fmt.Errorf("missing %s variant", d)
		}
	}
	return room, nil
}

// Len is the number of rooms
func (b *Rulebook) Len() int {
	return len(b.rooms)
}

// Rooms returns the rooms in play order
func (b *Rulebook) Rooms() []Room {
	out := make([]Room, len(b.rooms))
	copy(out, b.rooms)
	return out
}

// Room returns the room at a zero-based index
func (b *Rulebook) Room(index int) (Room, bool) {
	if index < 0 || index >= len(b.rooms) {
		return Room{}, false
	}
	return b.rooms[index], true
}

// IndexOf maps a room id to its index
func (b *Rulebook) IndexOf(id string) (int, bool) {
	i, ok := b.index[id]
	return i, ok
}

// Validate runs the acceptance rule for (room, difficulty) against submitted text.
// It never fails: unknown rooms or difficulties produce a rejected result.
func (b *Rulebook) Validate(roomIndex int, d Difficulty, text string) ValidationResult {
	room, ok := b.Room(roomIndex)
	if !ok {
		return ValidationResult{
			Message:    "Unknown room.",
			Transcript: []string{"No validator configured."},
		}
	}
	v, ok := room.Variant(d)
	if !ok {
		return ValidationResult{
			Message:    "Unknown difficulty.",
			Transcript: []string{"No validator configured."},
		}
	}

	out := v.Failure
	passed := v.Rule.Match(strings.TrimSpace(text))
	if passed {
		out = v.Success
	}
	transcript := make([]string, len(out.Transcript))
	copy(transcript, out.Transcript)
	return ValidationResult{
		OK:         passed,
		Message:    out.Message,
		Transcript: transcript,
	}
}
