package xwebview

import (
	"context"
	"log"
	"sync"
	"time"
)

// Executor is the execution context a native instance's interactions are
// confined to. All method calls, property accesses, and construction for a
// bound instance execute on its executor; the executor is the
// synchronization mechanism, there is no additional locking. A scheduled
// task, once enqueued, runs to completion and cannot be retracted.
type Executor interface {
	// Perform schedules fn without waiting for it.
	Perform(fn func())

	// IsCurrent reports whether the calling goroutine is the one draining
	// this executor.
	IsCurrent() bool

	// join blocks until done is closed, or until the executor can no
	// longer complete the task, or the caller abandons the wait.
	join(ctx context.Context, done <-chan struct{}) error
}

// SerialQueue is an executor drained by a dedicated worker goroutine in
// submission order.
type SerialQueue struct {
	name   string
	tasks  chan func()
	closed chan struct{}
	once   sync.Once
}

func NewSerialQueue(name string) *SerialQueue {
	q := &SerialQueue{
		name:   name,
		tasks:  make(chan func(), 64),
		closed: make(chan struct{}),
	}
	go q.drain()
	return q
}

func (q *SerialQueue) drain() {
	defer executorScope(q)()

	for {
		select {
		case fn := <-q.tasks:
			fn()
		case <-q.closed:
			// Run out whatever was enqueued before the close.
			for {
				select {
				case fn := <-q.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

func (q *SerialQueue) Perform(fn func()) {
	select {
	case q.tasks <- fn:
	case <-q.closed:
		log.Printf("xwebview: task dropped, queue %q closed", q.name)
	}
}

func (q *SerialQueue) IsCurrent() bool {
	return currentExecutor() == Executor(q)
}

func (q *SerialQueue) join(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-q.closed:
		// The task may have finished in the same instant the queue closed.
		select {
		case <-done:
			return nil
		default:
		}
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker after draining tasks already enqueued.
func (q *SerialQueue) Close() {
	q.once.Do(func() {
		close(q.closed)
	})
}

// RunLoop is a pump-style executor: tasks are drained by whichever
// goroutine calls Run or RunOnce. It models a single-threaded event loop
// whose thread the bridge does not own.
type RunLoop struct {
	tasks   chan func()
	stopped chan struct{}
	once    sync.Once
}

func NewRunLoop() *RunLoop {
	return &RunLoop{
		tasks:   make(chan func(), 64),
		stopped: make(chan struct{}),
	}
}

func (l *RunLoop) Perform(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.stopped:
		log.Printf("xwebview: task dropped, run loop stopped")
	}
}

// Run drains the loop on the calling goroutine until Stop.
func (l *RunLoop) Run() {
	defer executorScope(l)()

	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.stopped:
			return
		}
	}
}

// RunOnce runs a single pending task, waiting up to timeout for one to
// arrive. It reports whether a task ran.
func (l *RunLoop) RunOnce(timeout time.Duration) bool {
	defer executorScope(l)()

	select {
	case fn := <-l.tasks:
		fn()
		return true
	case <-l.stopped:
		return false
	case <-time.After(timeout):
		return false
	}
}

func (l *RunLoop) IsCurrent() bool {
	return currentExecutor() == Executor(l)
}

func (l *RunLoop) join(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-l.stopped:
		// The task may have finished in the same instant the loop stopped.
		select {
		case <-done:
			return nil
		default:
		}
		return ErrRunLoopDone
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *RunLoop) Stop() {
	l.once.Do(func() {
		close(l.stopped)
	})
}
