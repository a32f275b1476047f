// Package parallel provides the work-stealing goroutine pool used to
// execute compute workgroups on the CPU.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool is a fixed set of goroutines executing submitted jobs.
//
// Each worker owns a queue and steals from its siblings when the queue is
// empty, which evens out load when some workgroups iterate far longer than
// others (interior points run to the iteration bound).
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan func()
	done       chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	own := p.workQueues[id]
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case job := <-own:
			job()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case job := <-own:
				job()
			}
		}
	}
}

func (p *WorkerPool) drain(queue chan func()) {
	for {
		select {
		case job := <-queue:
			job()
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(self int) func() {
	for i := range p.workers {
		if i == self {
			continue
		}
		select {
		case job := <-p.workQueues[i]:
			return job
		default:
		}
	}
	return nil
}

// ExecuteAll runs every job and waits for all of them to finish.
// Jobs are distributed round-robin. If the pool is closed, ExecuteAll
// returns without running anything and reports false.
func (p *WorkerPool) ExecuteAll(jobs []func()) bool {
	if !p.running.Load() {
		return false
	}
	if len(jobs) == 0 {
		return true
	}

	var pending sync.WaitGroup
	pending.Add(len(jobs))
	complete := true
	for i, fn := range jobs {
		wrapped := func() {
			defer pending.Done()
			fn()
		}
		select {
		case p.workQueues[i%p.workers] <- wrapped:
		case <-p.done:
			pending.Done()
			complete = false
		}
	}
	pending.Wait()
	return complete
}

// ForEach calls fn(i) for every i in [0, n) across the pool and waits.
// Indices are grouped into contiguous batches so that very large n does
// not allocate one closure per index.
func (p *WorkerPool) ForEach(n int, fn func(i int)) bool {
	if n <= 0 {
		return p.running.Load()
	}
	batches := min(n, p.workers*8)
	per := (n + batches - 1) / batches

	jobs := make([]func(), 0, batches)
	for start := 0; start < n; start += per {
		lo, hi := start, min(start+per, n)
		jobs = append(jobs, func() {
			for i := lo; i < hi; i++ {
				fn(i)
			}
		})
	}
	return p.ExecuteAll(jobs)
}

// Close stops accepting work, drains the queues and stops all workers.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool still accepts work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
