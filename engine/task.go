package engine

import (
	"fmt"

	"go.uber.org/zap"

	h2gis "github.com/h2gis/h2gis-go"
	"github.com/h2gis/h2gis-go/errors"
)

type result struct {
	value any
	err   error
}

// task is one deferred runtime call: the closure plus a one-shot
// completion channel. Exactly one writer (the worker) and one reader
// (the submitting caller); the buffered channel means the worker never
// blocks on completion.
type task struct {
	seq  uint64
	fn   func(h2gis.Runtime) (any, error)
	done chan result
}

func newTask(fn func(h2gis.Runtime) (any, error)) *task {
	return &task{fn: fn, done: make(chan result, 1)}
}

// execute runs the closure on the worker thread. A panic is captured
// and delivered to the awaiting caller as a task failure; it must not
// take down the worker loop.
func (t *task) execute(rt h2gis.Runtime) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Debug("task panicked on worker",
				zap.Uint64("seq", t.seq),
				zap.Any("panic", r))
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			t.done <- result{err: errors.TaskFailed(err)}
		}
	}()

	v, err := t.fn(rt)
	t.done <- result{value: v, err: err}
}

// fail completes the task without running it.
func (t *task) fail(err error) {
	t.done <- result{err: err}
}
