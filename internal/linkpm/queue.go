package linkpm

import (
	"container/heap"
	"sync"
	"time"

	"github.com/LeoCommon/linkpm/pkg/log"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// task is a unit of work for the serialized queue
type task struct {
	id    string
	name  string
	due   time.Time
	seq   uint64
	fn    func()
	index int
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	item := x.(*task)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	item.index = -1
	*q = old[0 : n-1]
	return item
}

// workQueue runs tasks one at a time on a single goroutine, ordered by due time.
// It is the only place where manager state is touched.
type workQueue struct {
	lock   sync.Mutex
	queue  taskQueue
	seq    uint64
	closed bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newWorkQueue() *workQueue {
	q := &workQueue{
		queue: make(taskQueue, 0),
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	go q.run()
	return q
}

// post runs fn as soon as the tasks before it are done
func (q *workQueue) post(name string, fn func()) error {
	_, err := q.after(name, 0, fn)
	return err
}

// after runs fn once delay has passed
func (q *workQueue) after(name string, delay time.Duration, fn func()) (*task, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed {
		return nil, ErrClosed
	}

	q.seq++
	t := &task{
		id:   uuid.NewString(),
		name: name,
		due:  time.Now().Add(delay),
		seq:  q.seq,
		fn:   fn,
	}
	heap.Push(&q.queue, t)

	// Nudge the runner, it might sleep on a later deadline
	select {
	case q.wake <- struct{}{}:
	default:
	}

	return t, nil
}

// cancel removes a task that did not run yet
func (q *workQueue) cancel(t *task) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	if t == nil || t.index < 0 || t.index >= len(q.queue) || q.queue[t.index] != t {
		return false
	}

	heap.Remove(&q.queue, t.index)
	return true
}

// close stops the runner and drops every pending task, it blocks until the
// task in flight returned. Never call this from within a task.
func (q *workQueue) close() {
	q.lock.Lock()
	if q.closed {
		q.lock.Unlock()
		<-q.done
		return
	}

	q.closed = true
	dropped := len(q.queue)
	q.queue = nil
	close(q.stop)
	q.lock.Unlock()

	<-q.done
	if dropped > 0 {
		log.Debug("work queue closed with pending tasks", zap.Int("dropped", dropped))
	}
}

func (q *workQueue) run() {
	defer close(q.done)

	for {
		q.lock.Lock()
		if q.closed {
			q.lock.Unlock()
			return
		}

		wait := time.Duration(-1)
		if len(q.queue) > 0 {
			next := q.queue[0]
			if d := time.Until(next.due); d > 0 {
				wait = d
			} else {
				heap.Pop(&q.queue)
				q.lock.Unlock()

				next.fn()
				continue
			}
		}
		q.lock.Unlock()

		if wait < 0 {
			select {
			case <-q.wake:
			case <-q.stop:
				return
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-q.wake:
		case <-q.stop:
			timer.Stop()
			return
		}
		timer.Stop()
	}
}
