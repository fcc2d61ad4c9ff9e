// Package worker runs fire-and-forget tasks off the owner goroutine.
package worker

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

type task struct {
	id   string
	name string
	fn   func()
}

// Queue runs submitted tasks one at a time, in submission order. Submit
// never blocks. There is no cancellation and no timeout.
type Queue struct {
	log *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []task
	running bool
	closed  bool
	done    chan struct{}
}

func New(log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	q := &Queue{
		log:  log,
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Submit queues fn. It returns false once the queue is closed.
func (q *Queue) Submit(name string, fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.log.Warn("Dropping task on closed queue", zap.String("task", name))
		return false
	}
	t := task{id: uuid.NewString(), name: name, fn: fn}
	q.tasks = append(q.tasks, t)
	q.log.Debug("Task queued", zap.String("task", name), zap.String("id", t.id))
	q.cond.Broadcast()
	return true
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		t := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.running = true
		q.mu.Unlock()

		q.exec(t)

		q.mu.Lock()
		q.running = false
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (q *Queue) exec(t task) {
	var pc panics.Catcher
	pc.Try(t.fn)
	if r := pc.Recovered(); r != nil {
		q.log.Error("Task panicked",
			zap.String("task", t.name),
			zap.String("id", t.id),
			zap.Any("panic", r.Value),
			zap.ByteString("stack", r.Stack),
		)
		return
	}
	q.log.Debug("Task done", zap.String("task", t.name), zap.String("id", t.id))
}

// Flush waits until every task submitted so far has run.
func (q *Queue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.tasks) > 0 || q.running {
		q.cond.Wait()
	}
}

// Pending counts queued and running tasks.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.tasks)
	if q.running {
		n++
	}
	return n
}

// Close runs what is queued, then stops the worker.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}
