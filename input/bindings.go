package input

import (
	"errors"
	"fmt"
	"slices"
)

var ErrDuplicateBinding = errors.New("input: key already bound")

type binding struct {
	key        Key
	continuous bool
	fn         func()
	wasDown    bool
}

// Bindings maps keys to callbacks. Continuous bindings fire on every poll
// while the key is held; the others fire once per press. Nothing fires
// while the owning claim lacks focus.
type Bindings struct {
	claim *Claim
	list  []*binding
}

// NewBindings creates a binding set gated by claim. A nil claim is never
// gated.
func NewBindings(claim *Claim) *Bindings {
	return &Bindings{claim: claim}
}

// Claim returns the claim gating these bindings.
func (b *Bindings) Claim() *Claim { return b.claim }

// Bind attaches fn to k.
func (b *Bindings) Bind(k Key, continuous bool, fn func()) error {
	for _, x := range b.list {
		if x.key == k {
			return fmt.Errorf("%w: %v", ErrDuplicateBinding, k)
		}
	}
	b.list = append(b.list, &binding{key: k, continuous: continuous, fn: fn})
	return nil
}

// Unbind detaches k. Returns false if it was not bound.
func (b *Bindings) Unbind(k Key) bool {
	for i, x := range b.list {
		if x.key == k {
			b.list = slices.Delete(b.list, i, i+1)
			return true
		}
	}
	return false
}

// Len returns the number of bindings.
func (b *Bindings) Len() int { return len(b.list) }

// Poll samples src and fires due callbacks in bind order. Key history is
// tracked even without focus, so a key held across a focus change does not
// fire as a fresh press. Returns the number of callbacks fired.
func (b *Bindings) Poll(src Source) int {
	focused := b.claim.HasFocus()
	fired := 0
	for _, x := range slices.Clone(b.list) {
		down := src.IsDown(x.key)
		if focused && down && (x.continuous || !x.wasDown) {
			x.fn()
			fired++
		}
		x.wasDown = down
	}
	return fired
}
