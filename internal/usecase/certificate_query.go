package usecase

import (
	"context"
	"errors"
	"strings"

	"nftcate/internal/domain"
)

type CertificateQuery struct {
	Records CertificateRepository
}

func (q *CertificateQuery) ByOwner(ctx context.Context, ownerID string) ([]domain.CertificateRecord, error) {
	if q == nil || q.Records == nil {
		return nil, errors.New("certificate query not configured")
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.ErrMissingField
	}
	return q.Records.ListByOwner(ctx, ownerID)
}

func (q *CertificateQuery) ByIssuer(ctx context.Context, issuerID string) ([]domain.CertificateRecord, error) {
	if q == nil || q.Records == nil {
		return nil, errors.New("certificate query not configured")
	}
	if strings.TrimSpace(issuerID) == "" {
		return nil, domain.ErrMissingField
	}
	return q.Records.ListByIssuer(ctx, issuerID)
}

func (q *CertificateQuery) ByTransaction(ctx context.Context, txHash string) (*domain.CertificateRecord, error) {
	if q == nil || q.Records == nil {
		return nil, errors.New("certificate query not configured")
	}
	if strings.TrimSpace(txHash) == "" {
		return nil, domain.ErrMissingField
	}
	return q.Records.GetByTransaction(ctx, txHash)
}
