package crawler

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carolinuci/spacetime-crawler/pkg/types"
)

func request(t *testing.T, raw string, depth int) types.CrawlRequest {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return types.CrawlRequest{URL: u, Depth: depth, MaxDepth: 3}
}

func TestQueueFIFOAndDrain(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.Push(request(t, "https://a.edu/1", 0)))
	require.NoError(t, q.Push(request(t, "https://a.edu/2", 0)))
	assert.Equal(t, 2, q.Len())

	ctx := context.Background()
	first, ok := q.Pop(ctx)
	require.True(t, ok)
	assert.Equal(t, "https://a.edu/1", first.URL.String())
	q.Done()

	second, ok := q.Pop(ctx)
	require.True(t, ok)
	assert.Equal(t, "https://a.edu/2", second.URL.String())
	q.Done()

	_, ok = q.Pop(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, q.Push(request(t, "https://a.edu/3", 0)), ErrQueueClosed)
}

func TestQueueCapacity(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Push(request(t, "https://a.edu/1", 0)))
	assert.ErrorIs(t, q.Push(request(t, "https://a.edu/2", 0)), ErrQueueFull)
}

func TestQueuePopWaitsForActiveHandlers(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.Push(request(t, "https://a.edu/1", 0)))
	_, ok := q.Pop(context.Background())
	require.True(t, ok)

	got := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(context.Background())
		got <- ok
	}()

	select {
	case <-got:
		t.Fatal("pop returned while a handler was still active")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Push(request(t, "https://a.edu/2", 1)))
	q.Done()
	assert.True(t, <-got)
}

func TestQueuePopHonoursContext(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.Push(request(t, "https://a.edu/1", 0)))
	_, ok := q.Pop(context.Background())
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok = q.Pop(ctx)
	assert.False(t, ok)
}

func TestQueueCloseDropsPending(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.Push(request(t, "https://a.edu/1", 0)))
	q.Close()
	assert.Equal(t, 0, q.Len())
	_, ok := q.Pop(context.Background())
	assert.False(t, ok)
}

func TestWorkerPoolProcessesGeneratedWork(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.Push(request(t, "https://a.edu/0", 0)))
	pool, err := NewWorkerPool(3, q)
	require.NoError(t, err)

	var handled atomic.Int64
	var mu sync.Mutex
	seen := map[string]bool{}
	pool.Run(context.Background(), func(_ context.Context, req types.CrawlRequest) {
		handled.Add(1)
		mu.Lock()
		seen[req.URL.String()] = true
		mu.Unlock()
		if req.Depth < 2 {
			for i := 0; i < 2; i++ {
				child := request(t, req.URL.String()+"/"+string(rune('a'+i)), req.Depth+1)
				assert.NoError(t, q.Push(child))
			}
		}
	})

	assert.EqualValues(t, 7, handled.Load())
	assert.Len(t, seen, 7)
}

func TestNewWorkerPoolValidates(t *testing.T) {
	_, err := NewWorkerPool(0, NewQueue(0))
	assert.Error(t, err)
	_, err = NewWorkerPool(1, nil)
	assert.Error(t, err)
}

func TestFootprint(t *testing.T) {
	f := NewFootprint()
	assert.True(t, f.Claim("https://a.edu/"))
	assert.False(t, f.Claim("https://a.edu/"))
	assert.True(t, f.Claim("https://a.edu/b"))
	assert.Equal(t, 2, f.Len())

	f.Release("https://a.edu/")
	assert.Equal(t, 1, f.Len())
	assert.True(t, f.Claim("https://a.edu/"))
}
