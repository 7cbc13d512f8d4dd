package events

import (
	"sync"
	"sync/atomic"

	"github.com/brilliox/brilliox/pkg/logger"
)

// task is one async listener invocation.
type task func()

// dispatcher runs async listener invocations on a fixed set of workers.
// Submit never blocks the publisher: when the queue is full, or the pool is
// not running, the task runs on its own goroutine instead.
type dispatcher struct {
	workers    int
	taskCh     chan task
	log        logger.Logger
	onOverflow func()

	mu       sync.RWMutex
	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	overflow sync.WaitGroup
}

func newDispatcher(workers, queueSize int, log logger.Logger) *dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &dispatcher{
		workers:    workers,
		taskCh:     make(chan task, queueSize),
		log:        log,
		onOverflow: func() {},
		stopCh:     make(chan struct{}),
	}
}

func (d *dispatcher) start() {
	if d.running.Swap(true) {
		return
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// stop waits for queued and overflow tasks to finish. Tasks submitted
// afterwards are detached and not waited for.
func (d *dispatcher) stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.running.Store(false)
		close(d.stopCh)
		d.mu.Unlock()
		d.wg.Wait()
		d.overflow.Wait()
	})
}

func (d *dispatcher) submit(t task) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running.Load() {
		d.log.Debug("async dispatcher stopped, running listener detached")
		go d.run(t)
		return
	}
	select {
	case d.taskCh <- t:
	default:
		d.onOverflow()
		d.overflow.Add(1)
		go func() {
			defer d.overflow.Done()
			d.run(t)
		}()
	}
}

func (d *dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case t := <-d.taskCh:
			d.run(t)
		case <-d.stopCh:
			for {
				select {
				case t := <-d.taskCh:
					d.run(t)
				default:
					return
				}
			}
		}
	}
}

// run keeps a worker alive if a task panics outside the listener guard.
func (d *dispatcher) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("async task panicked", "panic", r)
		}
	}()
	t()
}
