package contentcache

import (
	"context"
	"fmt"
	"time"

	"nftcate/internal/domain"
	"nftcate/internal/observability/logger"
	"nftcate/internal/usecase"

	"golang.org/x/sync/singleflight"
)

// Cache stores resolved bytes. Implementations treat failures as misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Store caches successful resolves in front of another content store. Content is
// addressed by hash, so an entry never goes stale; TTL only bounds memory.
type Store struct {
	usecase.ContentStore

	cache Cache
	ttl   time.Duration
	group singleflight.Group

	// FetchTimeout bounds a shared fetch once it is detached from the caller
	// that started it.
	FetchTimeout time.Duration
}

var _ usecase.ContentStore = (*Store)(nil)

const defaultFetchTimeout = 30 * time.Second

func New(next usecase.ContentStore, cache Cache, ttl time.Duration) *Store {
	return &Store{ContentStore: next, cache: cache, ttl: ttl, FetchTimeout: defaultFetchTimeout}
}

// Resolve returns cached bytes or fetches them once for all concurrent callers.
// The shared fetch does not inherit any one caller's cancellation; each caller
// stops waiting when its own context ends.
func (s *Store) Resolve(ctx context.Context, locator domain.Locator) ([]byte, error) {
	key := cacheKey(locator)
	if data, ok := s.cache.Get(ctx, key); ok {
		return data, nil
	}
	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout())
		defer cancel()
		data, err := s.ContentStore.Resolve(fetchCtx, locator)
		if err != nil {
			return nil, err
		}
		s.cache.Set(fetchCtx, key, data, s.ttl)
		return data, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: resolve %s: %v", domain.ErrStoreUnavailable, locator, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.From(ctx).Debug("resolve shared", logger.CID(locator.String()))
		}
		data := res.Val.([]byte)
		return append([]byte(nil), data...), nil
	}
}

func (s *Store) fetchTimeout() time.Duration {
	if s.FetchTimeout <= 0 {
		return defaultFetchTimeout
	}
	return s.FetchTimeout
}

func cacheKey(locator domain.Locator) string {
	return "nftcate:content:" + locator.String()
}
