package input

import (
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
)

// DefaultHold covers the gap before a terminal's key repeat kicks in.
const DefaultHold = 150 * time.Millisecond

// TerminalSource feeds terminal key events into a State. Terminals only
// report presses, so each press holds the key for a while and auto-repeat
// keeps extending it; Expire releases keys whose hold ran out.
type TerminalSource struct {
	state *State
	hold  time.Duration
	now   func() time.Time

	mu       sync.Mutex
	deadline map[Key]time.Time
}

// NewTerminalSource creates a source writing into state.
func NewTerminalSource(state *State, hold time.Duration) *TerminalSource {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &TerminalSource{
		state:    state,
		hold:     hold,
		now:      time.Now,
		deadline: make(map[Key]time.Time),
	}
}

// HandleEvent consumes key events. Returns false for anything else.
func (t *TerminalSource) HandleEvent(ev tcell.Event) bool {
	kev, ok := ev.(*tcell.EventKey)
	if !ok {
		return false
	}
	k := KeyOf(kev)
	t.mu.Lock()
	t.deadline[k] = t.now().Add(t.hold)
	t.mu.Unlock()
	t.state.Press(k)
	return true
}

// Expire releases keys whose hold has elapsed. Call once per tick.
func (t *TerminalSource) Expire() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, d := range t.deadline {
		if !now.Before(d) {
			delete(t.deadline, k)
			t.state.Release(k)
		}
	}
}
