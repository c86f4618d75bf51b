package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nftcate/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IssuerRepository struct {
	db *gorm.DB
}

func NewIssuerRepository(db *gorm.DB) *IssuerRepository {
	return &IssuerRepository{db: db}
}

// Upsert creates an issuer or replaces every column of an existing one.
func (r *IssuerRepository) Upsert(ctx context.Context, issuer domain.Issuer) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if !issuer.Type.Valid() {
		return fmt.Errorf("%w: issuer type %q", domain.ErrMissingField, issuer.Type)
	}
	model := issuerToModel(issuer)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model).Error
	return storeError(err)
}

func (r *IssuerRepository) GetByID(ctx context.Context, issuerID string) (*domain.Issuer, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model IssuerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", issuerID).Error; err != nil {
		return nil, storeError(err)
	}
	issuer := issuerFromModel(model)
	return &issuer, nil
}

// GetByAddress finds the issuer owning a ledger address, compared case-insensitively.
func (r *IssuerRepository) GetByAddress(ctx context.Context, address string) (*domain.Issuer, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model IssuerModel
	if err := r.db.WithContext(ctx).First(&model, "lower(address) = ?", strings.ToLower(address)).Error; err != nil {
		return nil, storeError(err)
	}
	issuer := issuerFromModel(model)
	return &issuer, nil
}

type RecipientRepository struct {
	db *gorm.DB
}

func NewRecipientRepository(db *gorm.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

func (r *RecipientRepository) Upsert(ctx context.Context, recipient domain.Recipient) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := RecipientModel{
		ID:            recipient.ID,
		FirstName:     recipient.FirstName,
		MiddleName:    recipient.MiddleName,
		LastName:      recipient.LastName,
		Email:         recipient.Email,
		Address:       recipient.Address,
		InstitutionID: recipient.InstitutionID,
		CreatedAt:     recipient.CreatedAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model).Error
	return storeError(err)
}

func (r *RecipientRepository) GetByID(ctx context.Context, recipientID string) (*domain.Recipient, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model RecipientModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", recipientID).Error; err != nil {
		return nil, storeError(err)
	}
	return &domain.Recipient{
		ID:            model.ID,
		FirstName:     model.FirstName,
		MiddleName:    model.MiddleName,
		LastName:      model.LastName,
		Email:         model.Email,
		Address:       model.Address,
		InstitutionID: model.InstitutionID,
		CreatedAt:     model.CreatedAt,
	}, nil
}

// IdentityDirectory answers issuer and recipient lookups from Postgres.
type IdentityDirectory struct {
	Issuers    *IssuerRepository
	Recipients *RecipientRepository
}

func NewIdentityDirectory(db *gorm.DB) *IdentityDirectory {
	return &IdentityDirectory{
		Issuers:    NewIssuerRepository(db),
		Recipients: NewRecipientRepository(db),
	}
}

func (d *IdentityDirectory) FindIssuer(ctx context.Context, issuerID string) (*domain.Issuer, error) {
	return d.Issuers.GetByID(ctx, issuerID)
}

func (d *IdentityDirectory) FindRecipient(ctx context.Context, recipientID string) (*domain.Recipient, error) {
	return d.Recipients.GetByID(ctx, recipientID)
}

func issuerToModel(issuer domain.Issuer) IssuerModel {
	return IssuerModel{
		ID:        issuer.ID,
		Name:      issuer.Name,
		Type:      string(issuer.Type),
		Email:     issuer.Email,
		Website:   issuer.Website,
		Country:   issuer.Country,
		Verified:  issuer.Verified,
		Address:   issuer.Address,
		KeyOwner:  issuer.SigningKey.Owner,
		KeyID:     issuer.SigningKey.KID,
		CreatedAt: issuer.CreatedAt,
	}
}

func issuerFromModel(model IssuerModel) domain.Issuer {
	return domain.Issuer{
		ID:         model.ID,
		Name:       model.Name,
		Type:       domain.IssuerType(model.Type),
		Email:      model.Email,
		Website:    model.Website,
		Country:    model.Country,
		Verified:   model.Verified,
		Address:    model.Address,
		SigningKey: domain.KeyRef{Owner: model.KeyOwner, KID: model.KeyID},
		CreatedAt:  model.CreatedAt,
	}
}
