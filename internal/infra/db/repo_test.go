package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"nftcate/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestRepositoriesWithoutDB(t *testing.T) {
	ctx := context.Background()
	certs := NewCertificateRepository(nil)
	if _, err := certs.Insert(ctx, domain.CertificateRecord{Transaction: "0x1"}); !errors.Is(err, domain.ErrRecordStoreUnavailable) {
		t.Fatalf("expected record store unavailable, got %v", err)
	}
	if _, err := certs.GetByTransaction(ctx, "0x1"); !errors.Is(err, domain.ErrRecordStoreUnavailable) {
		t.Fatalf("expected record store unavailable, got %v", err)
	}
	directory := NewIdentityDirectory(nil)
	if _, err := directory.FindIssuer(ctx, "inst-1"); !errors.Is(err, domain.ErrRecordStoreUnavailable) {
		t.Fatalf("expected record store unavailable, got %v", err)
	}
	if domain.Classify(errDBUnavailable) != domain.ErrorClassTransient {
		t.Fatal("db unavailable must be transient")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(gorm.ErrDuplicatedKey) {
		t.Fatal("expected gorm duplicated key to be a unique violation")
	}
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !isUniqueViolation(wrapped) {
		t.Fatal("expected SQLSTATE 23505 to be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign key violation is not a unique violation")
	}
}

func TestStoreErrorMapping(t *testing.T) {
	if !errors.Is(storeError(gorm.ErrRecordNotFound), domain.ErrNotFound) {
		t.Fatal("expected not found")
	}
	if !errors.Is(storeError(errors.New("conn reset")), domain.ErrRecordStoreUnavailable) {
		t.Fatal("expected record store unavailable")
	}
}
