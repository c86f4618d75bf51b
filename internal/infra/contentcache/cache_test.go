package contentcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nftcate/internal/domain"
	"nftcate/internal/infra/contentmem"

	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*contentmem.Store
	resolves atomic.Int32
	gate     chan struct{}
}

func (s *countingStore) Resolve(ctx context.Context, locator domain.Locator) ([]byte, error) {
	s.resolves.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return s.Store.Resolve(ctx, locator)
}

func TestResolveIsCached(t *testing.T) {
	backing := &countingStore{Store: contentmem.New()}
	loc := backing.Put([]byte("metadata"))
	mem := NewMemory(time.Minute)
	store := New(backing, mem, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		data, err := store.Resolve(ctx, loc)
		require.NoError(t, err)
		require.Equal(t, "metadata", string(data))
	}
	require.EqualValues(t, 1, backing.resolves.Load())
	require.Equal(t, 1, mem.Len())
}

func TestResolveMissesAreNotCached(t *testing.T) {
	backing := &countingStore{Store: contentmem.New()}
	mem := NewMemory(time.Minute)
	store := New(backing, mem, time.Minute)

	_, err := store.Resolve(context.Background(), "bafkreimissing")
	require.True(t, errors.Is(err, domain.ErrContentNotFound))
	_, err = store.Resolve(context.Background(), "bafkreimissing")
	require.Error(t, err)
	require.EqualValues(t, 2, backing.resolves.Load())
	require.Zero(t, mem.Len())
}

func TestConcurrentResolvesCollapse(t *testing.T) {
	backing := &countingStore{Store: contentmem.New(), gate: make(chan struct{})}
	loc := backing.Put([]byte("artifact"))
	store := New(backing, NewMemory(time.Minute), time.Minute)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := store.Resolve(context.Background(), loc)
			if err == nil {
				results <- string(data)
			}
		}()
	}
	require.Eventually(t, func() bool { return backing.resolves.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(backing.gate)
	wg.Wait()
	close(results)

	count := 0
	for r := range results {
		require.Equal(t, "artifact", r)
		count++
	}
	require.Equal(t, callers, count)
	require.Less(t, backing.resolves.Load(), int32(callers))
}

func TestCancelledCallerDoesNotFailSharedResolve(t *testing.T) {
	backing := &countingStore{Store: contentmem.New(), gate: make(chan struct{})}
	loc := backing.Put([]byte("artifact"))
	store := New(backing, NewMemory(time.Minute), time.Minute)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := store.Resolve(firstCtx, loc)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return backing.resolves.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		data []byte
		err  error
	}
	second := make(chan result, 1)
	go func() {
		data, err := store.Resolve(context.Background(), loc)
		second <- result{data: data, err: err}
	}()

	cancelFirst()
	select {
	case err := <-firstErr:
		require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(backing.gate)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		require.Equal(t, "artifact", string(res.data))
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	require.EqualValues(t, 1, backing.resolves.Load())
}

func TestUploadsPassThrough(t *testing.T) {
	backing := &countingStore{Store: contentmem.New()}
	store := New(backing, NewMemory(time.Minute), time.Minute)

	loc, err := store.UploadArtifact(context.Background(), []byte("x"), "x", nil)
	require.NoError(t, err)
	require.Equal(t, 1, backing.Uploads())
	data, err := store.Resolve(context.Background(), loc)
	require.NoError(t, err)
	require.Equal(t, "x", string(data))
}
