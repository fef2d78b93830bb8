package task

import (
	"context"
	"fmt"

	"github.com/rhuanjl/SphereLibs-sub000/input"
)

// Co is the coroutine side of a Job. Its methods park the coroutine and
// return once the runner resumes it, or with the context error after
// cancellation.
type Co struct {
	job   *Job
	until func() bool
}

// Context returns the job's context.
func (c *Co) Context() context.Context { return c.job.ctx }

// ready is evaluated by the runner on the tick goroutine while the
// coroutine is parked.
func (c *Co) ready() bool {
	if c.until == nil {
		return true
	}
	if c.until() {
		c.until = nil
		return true
	}
	return false
}

func (c *Co) park(until func() bool) error {
	if err := c.job.ctx.Err(); err != nil {
		return err
	}
	c.until = until
	c.job.yield <- struct{}{}
	<-c.job.resume
	c.until = nil
	return c.job.ctx.Err()
}

// Frame waits for the next tick.
func (c *Co) Frame() error { return c.park(nil) }

// Wait waits n ticks.
func (c *Co) Wait(n int) error {
	for ; n > 0; n-- {
		if err := c.Frame(); err != nil {
			return err
		}
	}
	return c.job.ctx.Err()
}

// Until waits for the first tick at which cond holds.
func (c *Co) Until(cond func() bool) error {
	if cond() {
		return c.job.ctx.Err()
	}
	return c.park(cond)
}

// Focus requests input focus for the rest of the job, replacing any claim
// it already holds. The claim is released when the job ends or is
// cancelled.
func (c *Co) Focus(arb *input.Arbiter, priority int) *input.Claim {
	c.job.claim.Yield()
	c.job.claim = arb.Request(fmt.Sprintf("task-%d", c.job.ID), priority)
	return c.job.claim
}

// Unfocus releases the job's claim early.
func (c *Co) Unfocus() {
	c.job.claim.Yield()
	c.job.claim = nil
}

// AwaitKey waits for a full release, press, release cycle of key, so a
// press that began before the wait is not counted. Losing focus restarts
// the cycle. Without a claim the key is observed unconditionally.
func (c *Co) AwaitKey(src input.Source, key input.Key) error {
	const (
		wantUp = iota
		wantDown
		wantRelease
	)
	phase := wantUp
	return c.park(func() bool {
		if !c.job.claim.HasFocus() {
			phase = wantUp
			return false
		}
		down := src.IsDown(key)
		switch phase {
		case wantUp:
			if !down {
				phase = wantDown
			}
		case wantDown:
			if down {
				phase = wantRelease
			}
		case wantRelease:
			return !down
		}
		return false
	})
}
