package monitor

import (
	"context"
	"sync"
)

// Task is a handle on one polling loop.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newTask(cancel context.CancelFunc) *Task {
	return &Task{cancel: cancel, done: make(chan struct{})}
}

// Cancel stops the loop. Safe to call any number of times.
func (t *Task) Cancel() {
	t.once.Do(t.cancel)
}

// Done is closed once the loop has exited, whatever the reason.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
