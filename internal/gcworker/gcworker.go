// Package gcworker implements the fixed-size worker pool that drains
// released MemoryBlocks and other disposal work off the hot write path
// (spec §4.9 "Garbage collector"), grounded on original_source's
// GarbageCollector.h.
package gcworker

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Task is a disposal closure: release a MemoryBlock, free an embedded
// buffer, or any other cleanup a consumer wants to run off its own
// goroutine after a write completes (spec §4.9 "dispose(payload)").
type Task func()

// Pool is a fixed-size pool of worker goroutines draining a bounded channel
// of Tasks (spec §4.9). The zero value is not usable; construct with New.
type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup

	stop     chan struct{}
	stopOnce sync.Once
}

// New starts numWorkers goroutines servicing a bounded queue of capacity
// queueCapacity. numWorkers must be at least 1, mirroring
// GarbageCollector's constructor rejecting zero worker counts.
func New(numWorkers, queueCapacity int) (*Pool, error) {
	if numWorkers < 1 {
		return nil, errors.New("gcworker: numWorkers must be at least 1")
	}
	p := &Pool{
		tasks: make(chan Task, queueCapacity),
		stop:  make(chan struct{}),
	}
	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.worker()
	}
	return p, nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.stop:
			p.drain()
			return
		}
	}
}

// drain runs every task still queued at shutdown, non-blocking, so no
// disposal work is silently dropped (spec §4.9 "each worker exits only
// after the queue is empty").
func (p *Pool) drain() {
	for {
		select {
		case task := <-p.tasks:
			task()
		default:
			return
		}
	}
}

// Dispose enqueues task for asynchronous execution by a worker goroutine.
// It is a no-op once Terminate has been called, so a consumer racing
// shutdown never blocks trying to enqueue into a pool that will never run
// it (spec §4.9).
func (p *Pool) Dispose(task Task) {
	select {
	case <-p.stop:
		return
	default:
	}
	select {
	case p.tasks <- task:
	case <-p.stop:
	}
}

// Terminate signals every worker to drain the remaining queue and exit,
// then blocks until all of them have (spec §4.9 "terminate()").
func (p *Pool) Terminate() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}
