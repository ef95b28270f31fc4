// Package shutdownqueue runs named cleanup tasks in reverse order of
// registration. main owns one Queue and hands it to whatever opens
// resources:
//
//	q := shutdownqueue.New()
//	defer func() { retErr = errors.Join(retErr, q.Shutdown(ctx)) }()
//	q.AddCloser("postgres", db.Close)
package shutdownqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Task releases one resource. It should give up when ctx is done.
type Task func(ctx context.Context) error

type entry struct {
	name string
	run  Task
}

// Queue is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	entries []entry
	closed  bool
}

func New() *Queue {
	return &Queue{}
}

// Add registers t under name. Nil tasks and tasks added once Shutdown has
// started are dropped.
func (q *Queue) Add(name string, t Task) {
	if t == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		log.WithField("task", name).Warn("shutdown in progress, task dropped")
		return
	}
	q.entries = append(q.entries, entry{name: name, run: t})
}

// AddCloser registers a plain Close method such as (*sql.DB).Close.
func (q *Queue) AddCloser(name string, closeFn func() error) {
	q.Add(name, func(context.Context) error {
		return closeFn()
	})
}

// Shutdown runs every task once, newest first. A failing or panicking task
// does not stop the rest; a done ctx does. Errors are joined and each is
// prefixed with its task name. Later calls return nil.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	entries := q.entries
	q.entries = nil
	q.closed = true
	q.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		err := ctx.Err()
		if err != nil {
			errs = append(errs, fmt.Errorf("shutdown aborted before %q: %w", entries[i].name, err))
			break
		}

		err = entries[i].exec(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (e entry) exec(ctx context.Context) (err error) {
	l := log.WithField("task", e.name)
	start := time.Now()

	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("%s: panic: %v", e.name, r)
		}
		if err != nil {
			l.WithError(err).Error("shutdown task failed")
			return
		}
		l.WithField("took", time.Since(start)).Debug("shutdown task done")
	}()

	err = e.run(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", e.name, err)
	}

	return nil
}
