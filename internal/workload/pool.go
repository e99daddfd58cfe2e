package workload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Do after Close.
var ErrPoolClosed = errors.New("workload: pool is closed")

// PoolStats is a point-in-time view of the worker pool.
type PoolStats struct {
	Workers   int   `json:"workers"`
	Busy      int64 `json:"busy"`
	Queued    int64 `json:"queued"`
	Completed int64 `json:"completed"`
	Expired   int64 `json:"expired"`
}

type job struct {
	ctx  context.Context
	fn   func(context.Context)
	done chan struct{}
	err  error
}

// Pool runs CPU-bound functions on a fixed set of goroutines so busy work cannot crowd out
// request handling. Submitters wait for a free worker; the wait honours their context.
type Pool struct {
	jobs      chan *job
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
	workers   int

	busy      atomic.Int64
	queued    atomic.Int64
	completed atomic.Int64
	expired   atomic.Int64

	onBusy func(busy int64)
}

// NewPool starts workers goroutines. onBusy, if set, is called whenever the busy count changes.
func NewPool(workers int, onBusy func(busy int64)) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{
		jobs:    make(chan *job),
		quit:    make(chan struct{}),
		workers: workers,
		onBusy:  onBusy,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case j := <-p.jobs:
			p.run(j)
		}
	}
}

func (p *Pool) run(j *job) {
	p.setBusy(p.busy.Add(1))
	defer func() {
		if r := recover(); r != nil {
			j.err = fmt.Errorf("workload: job panicked: %v", r)
		}
		p.setBusy(p.busy.Add(-1))
		p.completed.Add(1)
		close(j.done)
	}()
	j.fn(j.ctx)
}

func (p *Pool) setBusy(n int64) {
	if p.onBusy != nil {
		p.onBusy(n)
	}
}

// Do runs fn on a worker and waits for it to return. If ctx ends before a worker picks the
// job up, fn never runs and ctx.Err() is returned. fn must itself honour ctx.
func (p *Pool) Do(ctx context.Context, fn func(context.Context)) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	j := &job{ctx: ctx, fn: fn, done: make(chan struct{})}

	p.queued.Add(1)
	select {
	case p.jobs <- j:
		p.queued.Add(-1)
	case <-ctx.Done():
		p.queued.Add(-1)
		p.expired.Add(1)
		return ctx.Err()
	case <-p.quit:
		p.queued.Add(-1)
		return ErrPoolClosed
	}

	<-j.done
	return j.err
}

// Running reports whether the pool still accepts work.
func (p *Pool) Running() bool {
	return !p.closed.Load()
}

// Stats returns current counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:   p.workers,
		Busy:      p.busy.Load(),
		Queued:    p.queued.Load(),
		Completed: p.completed.Load(),
		Expired:   p.expired.Load(),
	}
}

// Close stops the workers after their current job. It is safe to call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.quit)
		p.wg.Wait()
	})
}
