package usecase

import (
	"context"
	"errors"
	"testing"

	"nftcate/internal/domain"
)

func TestCertificateQuery_ListsByOwnerAndIssuer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.issue.Execute(ctx, baseRequest())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := baseRequest()
	req.Name = "Advanced Systems"
	if _, err := f.issue.Execute(ctx, req); err != nil {
		t.Fatalf("issue second: %v", err)
	}

	q := &CertificateQuery{Records: f.records}
	owned, err := q.ByOwner(ctx, recipientID)
	if err != nil {
		t.Fatalf("by owner: %v", err)
	}
	if len(owned) != 2 {
		t.Fatalf("expected 2 owned certificates, got %d", len(owned))
	}
	issued, err := q.ByIssuer(ctx, issuerID)
	if err != nil || len(issued) != 2 {
		t.Fatalf("by issuer: %v (%d)", err, len(issued))
	}
	none, err := q.ByIssuer(ctx, "inst-2")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no certificates for inst-2, got %v (%d)", err, len(none))
	}

	byTx, err := q.ByTransaction(ctx, first.Transaction.Hash)
	if err != nil {
		t.Fatalf("by transaction: %v", err)
	}
	if byTx.MetadataLocator != first.Record.MetadataLocator {
		t.Fatalf("unexpected record: %+v", byTx)
	}
	if _, err := q.ByTransaction(ctx, "0xmissing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCertificateQuery_RequiresIdentifier(t *testing.T) {
	q := &CertificateQuery{Records: newFixture(t).records}
	ctx := context.Background()
	if _, err := q.ByOwner(ctx, " "); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("owner: expected missing field, got %v", err)
	}
	if _, err := q.ByIssuer(ctx, ""); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("issuer: expected missing field, got %v", err)
	}
	if _, err := q.ByTransaction(ctx, ""); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("transaction: expected missing field, got %v", err)
	}
	var unset *CertificateQuery
	if _, err := unset.ByOwner(ctx, recipientID); err == nil {
		t.Fatal("expected error from unconfigured query")
	}
}
