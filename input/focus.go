package input

// Arbiter decides which claimant observes the keyboard. The highest
// priority claim owns focus; among equal priorities the most recent wins.
// An Arbiter belongs to one simulation and is used from its tick goroutine.
type Arbiter struct {
	claims []*Claim
	seq    uint64
}

// Claim is a request for focus. It stays active until Yield.
type Claim struct {
	Name     string
	arb      *Arbiter
	priority int
	seq      uint64
	active   bool
}

// NewArbiter creates an arbiter with no claimants.
func NewArbiter() *Arbiter {
	return &Arbiter{}
}

// Request registers a new claimant.
func (a *Arbiter) Request(name string, priority int) *Claim {
	a.seq++
	c := &Claim{Name: name, arb: a, priority: priority, seq: a.seq, active: true}
	a.claims = append(a.claims, c)
	return c
}

// Owner returns the claim holding focus, or nil.
func (a *Arbiter) Owner() *Claim {
	var best *Claim
	for _, c := range a.claims {
		if best == nil || c.priority > best.priority || (c.priority == best.priority && c.seq > best.seq) {
			best = c
		}
	}
	return best
}

// Len returns the number of active claims.
func (a *Arbiter) Len() int { return len(a.claims) }

// HasFocus reports whether c currently owns focus. A nil claim always does.
func (c *Claim) HasFocus() bool {
	if c == nil {
		return true
	}
	return c.active && c.arb.Owner() == c
}

// Active reports whether the claim has not yielded.
func (c *Claim) Active() bool { return c != nil && c.active }

// Raise moves c to the front of its priority band.
func (c *Claim) Raise() {
	if c == nil || !c.active {
		return
	}
	c.arb.seq++
	c.seq = c.arb.seq
}

// Yield gives up the claim. Safe to call more than once.
func (c *Claim) Yield() {
	if c == nil || !c.active {
		return
	}
	c.active = false
	a := c.arb
	for i, o := range a.claims {
		if o == c {
			a.claims = append(a.claims[:i], a.claims[i+1:]...)
			break
		}
	}
}
