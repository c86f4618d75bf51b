package recordmem

import (
	"context"
	"errors"
	"testing"
	"time"

	"nftcate/internal/domain"
)

func TestInsertRejectsDuplicateTransaction(t *testing.T) {
	store := New()
	ctx := context.Background()
	record := domain.CertificateRecord{
		Transaction:     "0xabc",
		ImageLocator:    "bafkimage",
		MetadataLocator: "bafkmeta",
		OwnerID:         "student-1",
		IssuerID:        "inst-1",
		CreatedAt:       time.Now().UTC(),
	}
	stored, err := store.Insert(ctx, record)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	if _, err := store.Insert(ctx, record); !errors.Is(err, domain.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate transaction, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", store.Len())
	}
}

func TestQueries(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, tx := range []string{"0x1", "0x2", "0x3"} {
		owner := "student-1"
		if i == 2 {
			owner = "student-2"
		}
		if _, err := store.Insert(ctx, domain.CertificateRecord{
			Transaction:     tx,
			MetadataLocator: domain.Locator("meta-" + tx),
			OwnerID:         owner,
			IssuerID:        "inst-1",
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("insert %s: %v", tx, err)
		}
	}

	owned, err := store.ListByOwner(ctx, "student-1")
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(owned) != 2 || owned[0].Transaction != "0x1" || owned[1].Transaction != "0x2" {
		t.Fatalf("unexpected owner listing: %+v", owned)
	}
	issued, err := store.ListByIssuer(ctx, "inst-1")
	if err != nil {
		t.Fatalf("list by issuer: %v", err)
	}
	if len(issued) != 3 {
		t.Fatalf("expected 3 issued, got %d", len(issued))
	}
	got, err := store.GetByMetadataLocator(ctx, "meta-0x3")
	if err != nil {
		t.Fatalf("get by metadata: %v", err)
	}
	if got.OwnerID != "student-2" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if _, err := store.GetByTransaction(ctx, "0x9"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
