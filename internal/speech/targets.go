package speech

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTarget is returned when a letter does not map to one of the 26
// targets.
var ErrInvalidTarget = errors.New("speech: invalid target letter")

// Target pairs a letter with the word a child learns it by.
type Target struct {
	// Letter is a single uppercase ASCII letter, A-Z.
	Letter string
	// Word is the canonical English word for Letter.
	Word string
	// Emoji illustrates Word in the app.
	Emoji string
}

// ID returns the 1-based position of the letter in the alphabet (A=1, Z=26).
func (t Target) ID() int {
	return int(t.Letter[0]-'A') + 1
}

// Hint is the recognition prompt for t, e.g. "A. Apple.".
func (t Target) Hint() string {
	return t.Letter + ". " + t.Word + "."
}

// targets is indexed by ID()-1. It is never mutated.
var targets = [26]Target{
	{"A", "Apple", "🍎"},
	{"B", "Ball", "⚽"},
	{"C", "Cat", "🐱"},
	{"D", "Dog", "🐶"},
	{"E", "Elephant", "🐘"},
	{"F", "Fish", "🐟"},
	{"G", "Grape", "🍇"},
	{"H", "House", "🏠"},
	{"I", "Ice cream", "🍦"},
	{"J", "Juice", "🧃"},
	{"K", "Kite", "🪁"},
	{"L", "Lion", "🦁"},
	{"M", "Moon", "🌙"},
	{"N", "Nest", "🪺"},
	{"O", "Orange", "🍊"},
	{"P", "Panda", "🐼"},
	{"Q", "Queen", "👸"},
	{"R", "Rainbow", "🌈"},
	{"S", "Sun", "☀️"},
	{"T", "Tiger", "🐯"},
	{"U", "Umbrella", "☂️"},
	{"V", "Violin", "🎻"},
	{"W", "Watermelon", "🍉"},
	{"X", "X-ray", "🩻"},
	{"Y", "Yo-yo", "🪀"},
	{"Z", "Zebra", "🦓"},
}

// Targets returns all 26 targets in alphabetical order.
func Targets() []Target {
	out := make([]Target, len(targets))
	copy(out, targets[:])
	return out
}

// LookupTarget resolves a letter case-insensitively. Surrounding whitespace is
// ignored; anything other than a single ASCII letter is rejected.
func LookupTarget(letter string) (Target, error) {
	l := strings.TrimSpace(letter)
	if len(l) != 1 {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, letter)
	}
	c := l[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < 'A' || c > 'Z' {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, letter)
	}
	return targets[c-'A'], nil
}

// TargetByID resolves a 1-based letter ID.
func TargetByID(id int) (Target, error) {
	if id < 1 || id > len(targets) {
		return Target{}, fmt.Errorf("%w: id %d", ErrInvalidTarget, id)
	}
	return targets[id-1], nil
}
