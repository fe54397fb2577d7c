package crawler

import (
	"context"
	"errors"
	"sync"

	"github.com/carolinuci/spacetime-crawler/pkg/types"
)

var (
	// ErrQueueFull is returned by Push when the queue is at capacity.
	ErrQueueFull = errors.New("crawl queue full")
	// ErrQueueClosed is returned by Push after the queue drained or closed.
	ErrQueueClosed = errors.New("crawl queue closed")
)

// Queue is the FIFO frontier of the host loop. It drains itself once it is
// empty and no popped request is still being handled, since only handlers
// can add more work.
type Queue struct {
	mu       sync.Mutex
	items    []types.CrawlRequest
	capacity int
	active   int
	closed   bool
	wake     chan struct{}
}

// NewQueue returns an empty queue holding at most capacity waiting requests.
// A capacity <= 0 means unbounded.
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity, wake: make(chan struct{})}
}

// Push appends req.
func (q *Queue) Push(req types.CrawlRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.capacity > 0 && len(q.items) >= q.capacity {
		return ErrQueueFull
	}
	q.items = append(q.items, req)
	q.broadcastLocked()
	return nil
}

// Pop blocks until a request is available. It reports false when the queue
// is drained, closed, or ctx is done. Every successful Pop must be paired
// with Done.
func (q *Queue) Pop(ctx context.Context) (types.CrawlRequest, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			req := q.items[0]
			q.items[0] = types.CrawlRequest{}
			q.items = q.items[1:]
			q.active++
			q.mu.Unlock()
			return req, true
		}
		if q.closed || q.active == 0 {
			q.closeLocked()
			q.mu.Unlock()
			return types.CrawlRequest{}, false
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return types.CrawlRequest{}, false
		}
	}
}

// Done marks a popped request as handled.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active > 0 {
		q.active--
	}
	if q.active == 0 && len(q.items) == 0 {
		q.closeLocked()
	}
}

// Close stops the queue; pending requests are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.closeLocked()
}

// Len reports how many requests are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) closeLocked() {
	if q.closed {
		return
	}
	q.closed = true
	q.broadcastLocked()
}

func (q *Queue) broadcastLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}
