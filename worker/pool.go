package worker

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool owns one named Worker per kind (search, analyzer, checksum,
// detect_database, import_folder, and any on-demand generic workers) and
// coordinates their lifetime against the context given to NewPool via an
// errgroup.Group.
type Pool struct {
	mu      sync.Mutex
	workers map[string]*Worker
	group   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPool returns a Pool whose workers are bound to a context derived
// from parent; Shutdown cancels that context and waits for every
// in-flight task to observe it and return.
func NewPool(parent context.Context) *Pool {
	ctx, cancel := context.WithCancel(parent)
	group, gctx := errgroup.WithContext(ctx)
	return &Pool{
		workers: map[string]*Worker{},
		group:   group,
		ctx:     gctx,
		cancel:  cancel,
	}
}

// Worker returns the named worker, creating it on first use. Names are
// caller-chosen; the concrete worker kinds in this package use "search",
// "analyzer", "checksum", "detect_database", "import_folder".
func (p *Pool) Worker(name string) *Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[name]
	if !ok {
		w = New()
		p.workers[name] = w
	}
	return w
}

// Submit runs task on the named worker, tracked by the pool's errgroup so
// Shutdown can wait for it.
func (p *Pool) Submit(name string, task Task, emit ResultFunc) {
	w := p.Worker(name)
	done := make(chan struct{})
	p.group.Go(func() error {
		<-done
		return nil
	})
	w.Submit(p.ctx, task, func(r Result) {
		emit(r)
		if r.Done {
			close(done)
		}
	})
}

// Shutdown cancels every worker's context and blocks until all
// outstanding tasks have returned.
func (p *Pool) Shutdown() error {
	p.cancel()
	return p.group.Wait()
}
