// Package task runs cooperative coroutines keyed to the simulation tick.
//
// Each coroutine lives on its own goroutine but only executes while the
// runner has handed control to it, so at most one coroutine runs at a time
// and never concurrently with the tick that owns the runner.
package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rhuanjl/SphereLibs-sub000/input"
)

var ErrClosed = errors.New("task: runner closed")

// Runner owns a set of jobs and resumes them once per Tick.
type Runner struct {
	log    logrus.FieldLogger
	jobs   []*Job
	nextID uint64
	closed bool
}

// NewRunner creates a runner. A nil logger uses the logrus standard logger.
func NewRunner(log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{log: log.WithField("component", "task")}
}

// Job is a handle to a coroutine or a recurring hook.
type Job struct {
	ID uint64

	runner *Runner
	ctx    context.Context
	cancel context.CancelFunc

	// coroutine state
	co      *Co
	fn      func(*Co) error
	resume  chan struct{}
	yield   chan struct{}
	running bool
	panicV  any

	hook func()

	claim  *input.Claim
	err    error
	done   bool
	doneCh chan struct{}
}

// Go schedules fn as a coroutine. Its body starts on the next Tick.
func (r *Runner) Go(ctx context.Context, fn func(*Co) error) *Job {
	j := r.newJob(ctx)
	j.fn = fn
	j.co = &Co{job: j}
	j.resume = make(chan struct{})
	j.yield = make(chan struct{})
	if r.closed {
		j.finish(ErrClosed)
		return j
	}
	go j.main()
	r.jobs = append(r.jobs, j)
	return j
}

// Hook schedules fn to run once per Tick until cancelled.
func (r *Runner) Hook(fn func()) *Job {
	j := r.newJob(context.Background())
	j.hook = fn
	if r.closed {
		j.finish(ErrClosed)
		return j
	}
	r.jobs = append(r.jobs, j)
	return j
}

func (r *Runner) newJob(ctx context.Context) *Job {
	r.nextID++
	cctx, cancel := context.WithCancel(ctx)
	return &Job{
		ID:     r.nextID,
		runner: r,
		ctx:    cctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
}

// Len returns the number of live jobs.
func (r *Runner) Len() int { return len(r.jobs) }

// Tick resumes every live job once, in scheduling order. Jobs scheduled
// during the tick first run on the next one. A panic inside a coroutine is
// re-raised here.
func (r *Runner) Tick() {
	if len(r.jobs) == 0 {
		return
	}
	jobs := append([]*Job(nil), r.jobs...)
	for _, j := range jobs {
		if j.done {
			continue
		}
		if j.hook != nil {
			if j.ctx.Err() != nil {
				j.finish(j.ctx.Err())
				continue
			}
			j.hook()
			continue
		}
		if j.ctx.Err() == nil && !j.co.ready() {
			continue
		}
		j.step()
	}
	r.sweep()
}

// Close cancels every job and waits for coroutines to unwind.
func (r *Runner) Close() {
	r.closed = true
	for _, j := range r.jobs {
		j.Cancel()
	}
	r.jobs = nil
}

func (r *Runner) sweep() {
	live := r.jobs[:0]
	for _, j := range r.jobs {
		if !j.done {
			live = append(live, j)
		}
	}
	clear(r.jobs[len(live):])
	r.jobs = live
}

func (j *Job) main() {
	<-j.resume
	var err error
	func() {
		defer func() {
			if p := recover(); p != nil {
				j.panicV = p
				err = fmt.Errorf("task %d panicked: %v", j.ID, p)
			}
		}()
		if err = j.ctx.Err(); err == nil {
			err = j.fn(j.co)
		}
	}()
	j.finish(err)
	j.yield <- struct{}{}
}

// step hands control to the coroutine and blocks until it parks or ends.
func (j *Job) step() {
	j.running = true
	j.resume <- struct{}{}
	<-j.yield
	j.running = false
	if p := j.panicV; p != nil {
		j.panicV = nil
		panic(p)
	}
}

func (j *Job) finish(err error) {
	if j.done {
		return
	}
	j.done = true
	j.err = err
	j.claim.Yield()
	j.claim = nil
	j.cancel()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrClosed) {
		j.runner.log.WithError(err).WithField("job", j.ID).Warn("task failed")
	}
	close(j.doneCh)
}

// Cancel stops the job and releases any focus it holds. A parked coroutine
// unwinds before Cancel returns; a coroutine cancelling itself sees the
// cancellation at its next wait.
func (j *Job) Cancel() {
	if j.done {
		return
	}
	j.cancel()
	j.claim.Yield()
	j.claim = nil
	switch {
	case j.hook != nil:
		j.finish(context.Canceled)
	case !j.running:
		j.step()
	}
}

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} { return j.doneCh }

// Finished reports whether the job has ended.
func (j *Job) Finished() bool { return j.done }

// Err returns the coroutine's result once Done is closed. Cancelled jobs
// report context.Canceled.
func (j *Job) Err() error { return j.err }
