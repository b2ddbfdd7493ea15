package escape

import (
	"fmt"
	"regexp"
	"strings"
)

// Predicate is one node of an acceptance rule. Implementations are pure.
type Predicate interface {
	Match(text string) bool
}

// Contains checks for a literal substring
type Contains struct {
	Substr     string
	IgnoreCase bool
}

func (c Contains) Match(text string) bool {
	if c.IgnoreCase {
		return strings.Contains(strings.ToLower(text), strings.ToLower(c.Substr))
	}
	return strings.Contains(text, c.Substr)
}

// Matches checks that a regular expression matches somewhere in the text
type Matches struct {
	Re *regexp.Regexp
}

func (m Matches) Match(text string) bool {
	return m.Re.MatchString(text)
}

// All is a conjunction; an empty All matches everything
type All []Predicate

func (a All) Match(text string) bool {
	for _, p := range a {
		if !p.Match(text) {
			return false
		}
	}
	return true
}

// Any is a disjunction; an empty Any matches nothing
type Any []Predicate

func (a Any) Match(text string) bool {
	for _, p := range a {
		if p.Match(text) {
			return true
		}
	}
	return false
}

// PredicateSpec is the YAML form of a predicate tree. Exactly one field is set per node.
type PredicateSpec struct {
	Contains     string          `yaml:"contains,omitempty"`
	ContainsFold string          `yaml:"containsFold,omitempty"`
	Matches      string          `yaml:"matches,omitempty"`
	All          []PredicateSpec `yaml:"all,omitempty"`
	Any          []PredicateSpec `yaml:"any,omitempty"`
}

// Compile turns the YAML node into a Predicate
func (s PredicateSpec) Compile() (Predicate, error) {
	set := 0
	for _, ok := range []bool{s.Contains != "", s.ContainsFold != "", s.Matches != "", s.All != nil, s.Any != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("predicate must set exactly one of contains, containsFold, matches, all, any (got %d)", set)
	}

	switch {
	case s.Contains != "":
		return Contains{Substr: s.Contains}, nil
	case s.ContainsFold != "":
		return Contains{Substr: s.ContainsFold, IgnoreCase: true}, nil
	case s.Matches != "":
		re, err := regexp.Compile(s.Matches)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", s.Matches, err)
		}
		return Matches{Re: re}, nil
	case s.All != nil:
		children, err := compileAll(s.All)
		if err != nil {
			return nil, err
		}
		return All(children), nil
	default:
		children, err := compileAll(s.Any)
		if err != nil {
			return nil, err
		}
		return Any(children), nil
	}
}

func compileAll(specs []PredicateSpec) ([]Predicate, error) {
	out := make([]Predicate, 0, len(specs))
	for i, c := range specs {
		p, err := c.Compile()
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}
