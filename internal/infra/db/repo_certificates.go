package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nftcate/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CertificateRepository persists certificate records. The unique index on tx_hash
// is what makes a transaction recordable at most once.
type CertificateRepository struct {
	db *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) Insert(ctx context.Context, record domain.CertificateRecord) (domain.CertificateRecord, error) {
	if r.db == nil {
		return domain.CertificateRecord{}, errDBUnavailable
	}
	if record.Transaction == "" {
		return domain.CertificateRecord{}, fmt.Errorf("%w: transaction", domain.ErrMissingField)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	model := certificateToModel(record)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.CertificateRecord{}, fmt.Errorf("%w: %s", domain.ErrDuplicateTransaction, record.Transaction)
		}
		return domain.CertificateRecord{}, storeError(err)
	}
	return certificateFromModel(model), nil
}

func (r *CertificateRepository) GetByTransaction(ctx context.Context, txHash string) (*domain.CertificateRecord, error) {
	return r.first(ctx, "tx_hash = ?", txHash)
}

func (r *CertificateRepository) GetByMetadataLocator(ctx context.Context, locator domain.Locator) (*domain.CertificateRecord, error) {
	return r.first(ctx, "metadata_cid = ?", locator.String())
}

func (r *CertificateRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.CertificateRecord, error) {
	return r.list(ctx, "owner_id = ?", ownerID)
}

func (r *CertificateRepository) ListByIssuer(ctx context.Context, issuerID string) ([]domain.CertificateRecord, error) {
	return r.list(ctx, "issuer_id = ?", issuerID)
}

func (r *CertificateRepository) first(ctx context.Context, query string, arg any) (*domain.CertificateRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model CertificateModel
	err := r.db.WithContext(ctx).Order("created_at ASC").First(&model, query, arg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, storeError(err)
	}
	record := certificateFromModel(model)
	return &record, nil
}

func (r *CertificateRepository) list(ctx context.Context, query string, arg any) ([]domain.CertificateRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []CertificateModel
	if err := r.db.WithContext(ctx).Where(query, arg).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, storeError(err)
	}
	records := make([]domain.CertificateRecord, 0, len(models))
	for _, model := range models {
		records = append(records, certificateFromModel(model))
	}
	return records, nil
}

func certificateToModel(record domain.CertificateRecord) CertificateModel {
	return CertificateModel{
		ID:          record.ID,
		TxHash:      record.Transaction,
		Receipt:     copyBytes(record.Receipt),
		ImageCID:    record.ImageLocator.String(),
		MetadataCID: record.MetadataLocator.String(),
		OwnerID:     record.OwnerID,
		IssuerID:    record.IssuerID,
		Name:        record.Name,
		Description: record.Description,
		CreatedAt:   record.CreatedAt,
	}
}

func certificateFromModel(model CertificateModel) domain.CertificateRecord {
	return domain.CertificateRecord{
		ID:              model.ID,
		Transaction:     model.TxHash,
		Receipt:         copyBytes(model.Receipt),
		ImageLocator:    domain.Locator(model.ImageCID),
		MetadataLocator: domain.Locator(model.MetadataCID),
		OwnerID:         model.OwnerID,
		IssuerID:        model.IssuerID,
		Name:            model.Name,
		Description:     model.Description,
		CreatedAt:       model.CreatedAt,
	}
}
