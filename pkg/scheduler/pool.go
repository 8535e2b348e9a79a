package scheduler

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// pool runs work items on a fixed set of goroutines. Each worker owns a
// buffered queue and steals from its peers when idle. Submission never
// blocks: items that do not fit in any queue go to a shared overflow list
// that workers drain before sleeping. Dependency callbacks submit from
// worker goroutines, so a blocking send could deadlock the pool.
type pool struct {
	workers int
	queues  []chan func()
	busy    []atomic.Int32
	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	mu       sync.Mutex
	overflow []func()
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		busy:    make([]atomic.Int32, workers),
		wake:    make(chan struct{}, workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *pool) worker(id int) {
	defer p.wg.Done()
	mine := p.queues[id]

	for {
		select {
		case work := <-mine:
			p.exec(id, work)
			continue
		default:
		}
		if work := p.steal(id); work != nil {
			p.exec(id, work)
			continue
		}
		if work := p.popOverflow(); work != nil {
			p.exec(id, work)
			continue
		}

		select {
		case <-p.done:
			p.drain(mine)
			return
		case work := <-mine:
			p.exec(id, work)
		case <-p.wake:
		}
	}
}

// exec runs work on worker id, marking the worker busy meanwhile.
func (p *pool) exec(id int, work func()) {
	p.busy[id].Add(1)
	defer p.busy[id].Add(-1)
	run(work)
}

func run(work func()) {
	if work != nil {
		work()
	}
}

func (p *pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case work := <-p.queues[i]:
			return work
		default:
		}
	}
	return nil
}

func (p *pool) popOverflow() func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.overflow) == 0 {
		return nil
	}
	work := p.overflow[0]
	p.overflow = p.overflow[1:]
	return work
}

// drain runs whatever is left in a queue and the overflow list.
func (p *pool) drain(queue chan func()) {
	for {
		select {
		case work := <-queue:
			run(work)
			continue
		default:
		}
		work := p.popOverflow()
		if work == nil {
			return
		}
		run(work)
	}
}

// load counts queued plus running items on worker i.
func (p *pool) load(i int) int {
	return len(p.queues[i]) + int(p.busy[i].Load())
}

// submit queues fn on the least loaded worker and wakes one sleeper, which
// steals it if the chosen worker is still busy. It reports false once the
// pool is closed.
func (p *pool) submit(fn func()) bool {
	if fn == nil || !p.running.Load() {
		return false
	}

	minIdx, minLoad := 0, p.load(0)
	for i := 1; i < p.workers && minLoad > 0; i++ {
		if n := p.load(i); n < minLoad {
			minIdx, minLoad = i, n
		}
	}

	select {
	case p.queues[minIdx] <- fn:
	default:
		p.mu.Lock()
		p.overflow = append(p.overflow, fn)
		p.mu.Unlock()
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

// close stops accepting work, runs what is queued and waits for workers.
func (p *pool) close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}
