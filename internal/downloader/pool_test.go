package downloader

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"rednote/pkg/logger"
	"rednote/pkg/ratelimit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// MockClient is a scripted Fetcher
type MockClient struct {
	delay   time.Duration
	fail    func(url string) bool
	counter int32
	active  int32
	peak    int32
}

func (m *MockClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	atomic.AddInt32(&m.counter, 1)
	n := atomic.AddInt32(&m.active, 1)
	defer atomic.AddInt32(&m.active, -1)
	for {
		p := atomic.LoadInt32(&m.peak)
		if n <= p || atomic.CompareAndSwapInt32(&m.peak, p, n) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.fail != nil && m.fail(url) {
		return nil, fmt.Errorf("status 404 for %s", url)
	}
	return []byte("data:" + url), nil
}

func (m *MockClient) Count() int {
	return int(atomic.LoadInt32(&m.counter))
}

func urls(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://sns-img.example/%d.jpg", i)
	}
	return out
}

func TestWorkerPoolBasicFunctionality(t *testing.T) {
	client := &MockClient{delay: 5 * time.Millisecond}
	pool := NewWorkerPool(context.Background(), 3, client, ratelimit.NewTokenBucket(100, time.Second), logger.NewNopLogger())
	pool.Start()

	var results []FetchResult
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			results = append(results, result)
		}
	}()

	for i, u := range urls(10) {
		require.NoError(t, pool.Submit(FetchJob{Index: i, URL: u}))
	}

	pool.Stop()
	wg.Wait()

	require.Len(t, results, 10)
	for _, r := range results {
		assert.True(t, r.Success)
		assert.Equal(t, len(r.Data), r.Size)
	}
	assert.Equal(t, 10, client.Count())
}

func TestFetchAllPreservesOrder(t *testing.T) {
	client := &MockClient{
		delay: 2 * time.Millisecond,
		fail:  func(url string) bool { return strings.HasSuffix(url, "/3.jpg") },
	}
	in := urls(8)

	results := FetchAll(context.Background(), 4, client, nil, logger.NewNopLogger(), in)

	require.Len(t, results, len(in))
	for i, r := range results {
		assert.Equal(t, i, r.Job.Index)
		assert.Equal(t, in[i], r.Job.URL)
		if i == 3 {
			assert.False(t, r.Success)
			assert.Error(t, r.Error)
			continue
		}
		assert.True(t, r.Success)
		assert.Equal(t, "data:"+in[i], string(r.Data))
	}
}

func TestFetchAllBoundsConcurrency(t *testing.T) {
	client := &MockClient{delay: 20 * time.Millisecond}
	FetchAll(context.Background(), 2, client, nil, logger.NewNopLogger(), urls(6))
	assert.LessOrEqual(t, atomic.LoadInt32(&client.peak), int32(2))
}

func TestFetchAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &MockClient{}
	results := FetchAll(ctx, 2, client, nil, logger.NewNopLogger(), urls(5))

	require.Len(t, results, 5)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.Error(t, r.Error)
	}
	assert.Equal(t, 0, client.Count())
}

func TestFetchAllEmpty(t *testing.T) {
	assert.Empty(t, FetchAll(context.Background(), 3, &MockClient{}, nil, nil, nil))
}
