package crawler

import (
	"context"
	"errors"
	"sync"

	"github.com/carolinuci/spacetime-crawler/pkg/types"
)

type handler func(ctx context.Context, req types.CrawlRequest)

// WorkerPool runs a fixed number of workers over a Queue.
type WorkerPool struct {
	concurrency int
	queue       *Queue
}

// NewWorkerPool creates a pool with the given concurrency.
func NewWorkerPool(concurrency int, queue *Queue) (*WorkerPool, error) {
	if concurrency <= 0 {
		return nil, errors.New("worker pool requires positive concurrency")
	}
	if queue == nil {
		return nil, errors.New("worker pool requires a queue")
	}
	return &WorkerPool{concurrency: concurrency, queue: queue}, nil
}

// Run blocks until the queue drains or ctx is cancelled. Requests already
// being handled are allowed to finish.
func (p *WorkerPool) Run(ctx context.Context, handle handler) {
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				req, ok := p.queue.Pop(ctx)
				if !ok {
					return
				}
				handle(ctx, req)
				p.queue.Done()
			}
		}()
	}
	wg.Wait()
}
