package prover

import (
	"context"
	"sync"
)

// Task is one in-flight job shared by every handle attached to it.
type Task struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu       sync.Mutex
	handles  int
	detached bool
	result   Result
	err      error
}

func newTask(cancel context.CancelFunc) *Task {
	return &Task{done: make(chan struct{}), cancel: cancel}
}

// attach returns a new handle, or nil once every earlier handle cancelled.
func (t *Task) attach() *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.detached {
		return nil
	}
	t.handles++
	return &Handle{task: t, cancelled: make(chan struct{})}
}

func (t *Task) detach() {
	t.mu.Lock()
	t.handles--
	last := t.handles == 0
	if last {
		t.detached = true
	}
	t.mu.Unlock()
	if last {
		t.cancel()
	}
}

func (t *Task) complete(res Result, err error) {
	t.mu.Lock()
	t.result, t.err = res, err
	t.mu.Unlock()
	close(t.done)
}

// Handle is a caller's view of a task: a future with cancellation.
type Handle struct {
	task      *Task
	once      sync.Once
	cancelled chan struct{}
}

// Await blocks until the result is ready, ctx ends, or the handle is cancelled.
func (h *Handle) Await(ctx context.Context) (Result, error) {
	select {
	case <-h.task.done:
		select {
		case <-h.cancelled:
			return Result{}, context.Canceled
		default:
		}
		h.task.mu.Lock()
		defer h.task.mu.Unlock()
		return h.task.result, h.task.err
	case <-h.cancelled:
		return Result{}, context.Canceled
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Done is closed when the task finishes.
func (h *Handle) Done() <-chan struct{} {
	return h.task.done
}

// Cancel withdraws this handle. The underlying job is cancelled once no
// handle is left waiting on it.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		close(h.cancelled)
		h.task.detach()
	})
}
