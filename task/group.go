// Package task runs a group of long-lived process tasks, such as servers
// and pipeline loops, which start together and stop together.
package task

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Group is a group of tasks which are executed concurrently and collectively
// waited upon. Tasks must return upon cancellation of the Group Context, and
// the first task to return a non-nil error cancels the Group. A Group is not
// itself safe for concurrent use.
type Group struct {
	// Context of the Group, which is cancelled by:
	//  * Any task of the Group returning a non-nil error,
	//  * An explicit call to Cancel, or
	//  * A cancellation of the parent Context of the Group.
	ctx      context.Context
	cancelFn context.CancelFunc

	tasks   []task
	eg      *errgroup.Group
	started bool
}

type task struct {
	desc string
	fn   func() error
}

// NewGroup returns a new, empty Group with the given parent Context.
func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	eg, ctx := errgroup.WithContext(ctx)
	return &Group{ctx: ctx, eg: eg, cancelFn: cancel}
}

// Context returns the Group Context.
func (g *Group) Context() context.Context { return g.ctx }

// Cancel the Group Context.
func (g *Group) Cancel() { g.cancelFn() }

// Queue a task |fn| described by |desc|. Queue panics if called after GoRun.
func (g *Group) Queue(desc string, fn func() error) {
	if g.started {
		panic("Queue called after GoRun")
	}
	g.tasks = append(g.tasks, task{desc: desc, fn: fn})
}

// GoRun all queued tasks. GoRun panics if called more than once.
func (g *Group) GoRun() {
	if g.started {
		panic("GoRun already called")
	}
	g.started = true

	for i := range g.tasks {
		var t = g.tasks[i]

		g.eg.Go(func() error {
			var started = time.Now()
			var err = t.fn()

			var entry = log.WithFields(log.Fields{"task": t.desc, "runtime": time.Since(started)})
			if err != nil && g.ctx.Err() == nil {
				entry.WithField("err", err).Error("task failed")
			} else {
				entry.Debug("task exited")
			}
			return errors.WithMessage(err, t.desc)
		})
	}
}

// Wait for all tasks to complete, returning the first non-nil error.
// Wait panics if GoRun hasn't been called.
func (g *Group) Wait() error {
	if !g.started {
		panic("Wait called before GoRun")
	}
	defer g.cancelFn()
	return g.eg.Wait()
}
