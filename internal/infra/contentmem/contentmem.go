package contentmem

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"nftcate/internal/domain"
	"nftcate/internal/infra/cidutil"
	"nftcate/internal/infra/resolveretry"
)

// Store is a process-local content store addressing bytes by CIDv1 (raw, sha2-256).
type Store struct {
	mu       sync.RWMutex
	objects  map[domain.Locator][]byte
	tags     map[domain.Locator]map[string]string
	hidden   map[domain.Locator]int
	uploads  int
	maxBytes int64
	retry    resolveretry.Policy
}

type Option func(*Store)

// WithResolveRetry keeps resolving a not-yet-visible locator within policy.
func WithResolveRetry(policy resolveretry.Policy) Option {
	return func(s *Store) { s.retry = policy }
}

func New(opts ...Option) *Store {
	return NewWithLimit(0, opts...)
}

// NewWithLimit rejects uploads larger than maxBytes; zero means unlimited.
func NewWithLimit(maxBytes int64, opts ...Option) *Store {
	s := &Store{
		objects:  make(map[domain.Locator][]byte),
		tags:     make(map[domain.Locator]map[string]string),
		hidden:   make(map[domain.Locator]int),
		maxBytes: maxBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) UploadArtifact(ctx context.Context, data []byte, name string, tags map[string]string) (domain.Locator, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", domain.ErrStoreRejected)
	}
	merged := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		merged[k] = v
	}
	if name != "" {
		merged["name"] = name
	}
	return s.put(data, merged)
}

func (s *Store) UploadMetadata(ctx context.Context, doc domain.CertificateMetadata) (domain.Locator, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if doc.Artifact.IsZero() {
		return "", fmt.Errorf("%w: metadata without artifact", domain.ErrStoreRejected)
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStoreRejected, err)
	}
	return s.put(payload, map[string]string{"kind": "metadata"})
}

// Resolve returns the pinned bytes, retrying within the configured policy while
// the locator is hidden.
func (s *Store) Resolve(ctx context.Context, locator domain.Locator) ([]byte, error) {
	return s.retry.Resolve(ctx, func(ctx context.Context) ([]byte, error) {
		return s.resolveOnce(ctx, locator)
	})
}

func (s *Store) resolveOnce(ctx context.Context, locator domain.Locator) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[locator]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrContentNotFound, locator)
	}
	if s.hidden[locator] > 0 {
		s.hidden[locator]--
		return nil, fmt.Errorf("%w: %s not yet propagated", domain.ErrContentNotFound, locator)
	}
	return append([]byte(nil), data...), nil
}

// HideFor makes the next n resolves of locator report not found, as a gateway does
// before a fresh pin has propagated.
func (s *Store) HideFor(locator domain.Locator, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden[locator] = n
}

// Put pins raw bytes, bypassing upload validation.
func (s *Store) Put(data []byte) domain.Locator {
	loc, _ := s.put(data, nil)
	return loc
}

// Uploads counts accepted uploads, including repeats of identical bytes.
func (s *Store) Uploads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploads
}

func (s *Store) Tags(locator domain.Locator) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.tags[locator]))
	for k, v := range s.tags[locator] {
		out[k] = v
	}
	return out
}

func (s *Store) put(data []byte, tags map[string]string) (domain.Locator, error) {
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds limit", domain.ErrStoreRejected, len(data))
	}
	loc, err := cidutil.ForBytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[loc]; !ok {
		s.objects[loc] = append([]byte(nil), data...)
	}
	if len(tags) > 0 {
		s.tags[loc] = tags
	}
	s.uploads++
	return loc, nil
}
