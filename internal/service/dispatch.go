package service

import "sync"

// taskQueue runs deferred work on one goroutine, in submission order.
// Work posted from inside a state mutation runs only after the poster has
// returned, so a task never observes a half-applied update.
type taskQueue struct {
	mu      sync.Mutex
	tasks   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// post enqueues fn. It reports false once the queue has been stopped.
func (q *taskQueue) post(fn func()) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
	q.signal()
	return true
}

func (q *taskQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *taskQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			stopped := q.stopped
			q.mu.Unlock()
			if stopped {
				return
			}
			<-q.wake
			continue
		}
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		fn()
	}
}

// stop drops pending tasks, rejects new ones and waits for the running task to return.
// It must not be called from inside a task.
func (q *taskQueue) stop() {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		q.tasks = nil
	}
	q.mu.Unlock()
	q.signal()
	<-q.done
}
