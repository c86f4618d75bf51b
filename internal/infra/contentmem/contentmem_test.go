package contentmem

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"nftcate/internal/domain"
	"nftcate/internal/infra/resolveretry"
)

func TestUploadArtifactIdempotent(t *testing.T) {
	store := New()
	ctx := context.Background()

	first, err := store.UploadArtifact(ctx, []byte("png-bytes"), "cert.png", nil)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	second, err := store.UploadArtifact(ctx, []byte("png-bytes"), "other-name.png", map[string]string{"issuer": "inst-1"})
	if err != nil {
		t.Fatalf("upload again: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical locators, got %s and %s", first, second)
	}
	if store.Uploads() != 2 {
		t.Fatalf("expected 2 uploads, got %d", store.Uploads())
	}
}

func TestUploadMetadataResolves(t *testing.T) {
	store := New()
	ctx := context.Background()

	artifact := store.Put([]byte("artifact"))
	doc := domain.NewCertificateMetadata("Intro to Systems", "Completion", artifact)
	loc, err := store.UploadMetadata(ctx, doc)
	if err != nil {
		t.Fatalf("upload metadata: %v", err)
	}
	raw, err := store.Resolve(ctx, loc)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var got domain.CertificateMetadata
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Artifact != artifact || got.Image != artifact.URI() {
		t.Fatalf("unexpected metadata: %+v", got)
	}
}

func TestUploadRejectsOversize(t *testing.T) {
	store := NewWithLimit(4)
	_, err := store.UploadArtifact(context.Background(), []byte("too large"), "", nil)
	if !errors.Is(err, domain.ErrStoreRejected) {
		t.Fatalf("expected rejected, got %v", err)
	}
}

func TestResolveUnknown(t *testing.T) {
	store := New()
	_, err := store.Resolve(context.Background(), "bafkreiunknown")
	if !errors.Is(err, domain.ErrContentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHideForDelaysVisibility(t *testing.T) {
	store := New()
	ctx := context.Background()
	loc := store.Put([]byte("fresh pin"))
	store.HideFor(loc, 2)

	for i := 0; i < 2; i++ {
		if _, err := store.Resolve(ctx, loc); !errors.Is(err, domain.ErrContentNotFound) {
			t.Fatalf("resolve %d: expected content not found, got %v", i, err)
		}
	}
	data, err := store.Resolve(ctx, loc)
	if err != nil {
		t.Fatalf("resolve after propagation: %v", err)
	}
	if string(data) != "fresh pin" {
		t.Fatalf("unexpected bytes %q", data)
	}
}

func TestResolveRetriesWhilePropagating(t *testing.T) {
	store := New(WithResolveRetry(resolveretry.Policy{MaxTries: 3, InitialDelay: time.Millisecond}))
	loc := store.Put([]byte("fresh pin"))
	store.HideFor(loc, 2)

	data, err := store.Resolve(context.Background(), loc)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if string(data) != "fresh pin" {
		t.Fatalf("unexpected bytes %q", data)
	}
}

func TestResolveRetryBudgetIsBounded(t *testing.T) {
	store := New(WithResolveRetry(resolveretry.Policy{MaxTries: 2, InitialDelay: time.Millisecond}))
	loc := store.Put([]byte("slow pin"))
	store.HideFor(loc, 3)

	if _, err := store.Resolve(context.Background(), loc); !errors.Is(err, domain.ErrContentNotFound) {
		t.Fatalf("expected content not found after budget, got %v", err)
	}
	if _, err := store.Resolve(context.Background(), loc); err != nil {
		t.Fatalf("expected visible after 3 misses: %v", err)
	}
}
