// Package input tracks held keys and decides which subsystem gets to react
// to them.
package input

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"github.com/zyedidia/generic/mapset"
)

// Key identifies a physical key: a tcell key code, plus the rune for
// printable keys.
type Key struct {
	Code tcell.Key
	Rune rune
}

// Rune returns the key for a printable character.
func Rune(r rune) Key { return Key{Code: tcell.KeyRune, Rune: r} }

var (
	KeyUp     = Key{Code: tcell.KeyUp}
	KeyDown   = Key{Code: tcell.KeyDown}
	KeyLeft   = Key{Code: tcell.KeyLeft}
	KeyRight  = Key{Code: tcell.KeyRight}
	KeyEnter  = Key{Code: tcell.KeyEnter}
	KeyEscape = Key{Code: tcell.KeyEscape}
	KeySpace  = Rune(' ')
)

var keyNames = map[string]Key{
	"up":     KeyUp,
	"down":   KeyDown,
	"left":   KeyLeft,
	"right":  KeyRight,
	"enter":  KeyEnter,
	"escape": KeyEscape,
	"space":  KeySpace,
}

// KeyOf converts a terminal key event.
func KeyOf(ev *tcell.EventKey) Key {
	if ev.Key() == tcell.KeyRune {
		return Rune(ev.Rune())
	}
	return Key{Code: ev.Key()}
}

// ParseKey accepts a key name ("up", "enter", "space", ...) or a single
// character.
func ParseKey(name string) (Key, error) {
	if k, ok := keyNames[strings.ToLower(name)]; ok {
		return k, nil
	}
	if utf8.RuneCountInString(name) == 1 {
		r, _ := utf8.DecodeRuneInString(name)
		return Rune(r), nil
	}
	return Key{}, fmt.Errorf("input: unknown key %q", name)
}

func (k Key) String() string {
	if k.Code == tcell.KeyRune {
		return string(k.Rune)
	}
	for name, v := range keyNames {
		if v == k {
			return name
		}
	}
	return fmt.Sprintf("key(%d)", k.Code)
}

// Source reports key state to pollers.
type Source interface {
	IsDown(k Key) bool
}

// State is the set of keys currently held. Writers may live on other
// goroutines (network readers, terminal pollers); the tick only reads.
type State struct {
	mu   sync.RWMutex
	down mapset.Set[Key]
}

// NewState creates an empty key state.
func NewState() *State {
	return &State{down: mapset.New[Key]()}
}

// Press marks k as held.
func (s *State) Press(k Key) {
	s.mu.Lock()
	s.down.Put(k)
	s.mu.Unlock()
}

// Release marks k as released.
func (s *State) Release(k Key) {
	s.mu.Lock()
	s.down.Remove(k)
	s.mu.Unlock()
}

// Set presses or releases k.
func (s *State) Set(k Key, down bool) {
	if down {
		s.Press(k)
	} else {
		s.Release(k)
	}
}

// IsDown reports whether k is held.
func (s *State) IsDown(k Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.down.Has(k)
}

// Held returns the number of held keys.
func (s *State) Held() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.down.Size()
}

// Reset releases every key.
func (s *State) Reset() {
	s.mu.Lock()
	s.down = mapset.New[Key]()
	s.mu.Unlock()
}
