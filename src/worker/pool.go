package worker

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
)

// Job runs on a worker goroutine. It owns its ctx and must report its own
// result; the pool does not collect return values.
type Job func(ctx context.Context)

// Pool is a fixed-size worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	jobs   chan job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

type job struct {
	ctx context.Context
	run Job
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{jobs: make(chan job, 1), logger: logger}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for j := range p.jobs {
				p.runJob(id, j)
			}
		}(i)
	}
}

func (p *Pool) runJob(id int, j job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker panic", "worker", id, "error", r, "stack", string(debug.Stack()))
		}
	}()
	p.logger.Debug("worker: job started", "worker", id)
	j.run(j.ctx)
	p.logger.Debug("worker: job finished", "worker", id)
}

// Submit enqueues a job if the single-slot queue is free. Returns false if
// dropped or if the pool is closed.
func (p *Pool) Submit(ctx context.Context, run Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job{ctx: ctx, run: run}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
