package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nftcate/internal/domain"
	"nftcate/internal/observability/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ResumeCertificateRequest names a transaction whose issuance stopped after submit,
// together with the content it minted.
type ResumeCertificateRequest struct {
	IssuerID        string
	RecipientID     string
	TxHash          string
	ArtifactLocator domain.Locator
	MetadataLocator domain.Locator
}

type ResumeCertificateResponse struct {
	Record      domain.CertificateRecord
	Transaction domain.LedgerTransaction
}

// ResumeCertificate re-runs only the persistence stage for an already submitted mint.
// It never submits a transaction. A hash that is already recorded yields
// domain.ErrDuplicateTransaction.
type ResumeCertificate struct {
	Identities IdentityDirectory
	Content    ContentStore
	Ledger     Ledger
	Records    CertificateRepository
	Locators   LocatorService

	ConfirmationTimeout time.Duration
	Now                 func() time.Time
}

func (uc *ResumeCertificate) Execute(ctx context.Context, req ResumeCertificateRequest) (*ResumeCertificateResponse, error) {
	ctx, span := tracer.Start(ctx, "ResumeCertificate")
	defer span.End()
	span.SetAttributes(attribute.String("tx.hash", req.TxHash))

	resp, err := uc.execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resp, nil
}

func (uc *ResumeCertificate) execute(ctx context.Context, req ResumeCertificateRequest) (*ResumeCertificateResponse, error) {
	if err := requireFields(map[string]string{
		"institution": req.IssuerID,
		"student":     req.RecipientID,
		"transaction": req.TxHash,
		"imageCid":    req.ArtifactLocator.String(),
		"metadataCid": req.MetadataLocator.String(),
	}); err != nil {
		return nil, err
	}
	if uc.Content == nil || uc.Records == nil || uc.Locators == nil {
		return nil, errors.New("resume dependencies not configured")
	}
	if !uc.Locators.Valid(req.ArtifactLocator.String()) || !uc.Locators.Valid(req.MetadataLocator.String()) {
		return nil, fmt.Errorf("%w: locators must be content identifiers", domain.ErrMissingField)
	}
	parties, err := resolveParties(ctx, uc.Identities, uc.Ledger, req.IssuerID, req.RecipientID)
	if err != nil {
		return nil, err
	}
	log := logger.From(ctx).With(logger.Component("resume"), logger.TxHash(req.TxHash))

	progress := domain.Progress{
		ArtifactLocator: req.ArtifactLocator,
		MetadataLocator: req.MetadataLocator,
		TxHash:          req.TxHash,
	}
	fail := func(stage domain.Stage, err error) error {
		log.Warn("resume failed", logger.Stage(string(stage)), logger.Err(err))
		return domain.NewStageError(stage, progress, err)
	}

	if existing, err := uc.Records.GetByTransaction(ctx, req.TxHash); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: %s already recorded as %s", domain.ErrDuplicateTransaction, req.TxHash, existing.ID)
	}

	tx, err := uc.Ledger.Lookup(ctx, req.TxHash)
	if err != nil {
		return nil, fail(domain.StageConfirm, err)
	}
	if !strings.EqualFold(tx.Recipient, parties.RecipientAddress) || tx.TokenURI != req.MetadataLocator.URI() {
		return nil, fail(domain.StageConfirm, fmt.Errorf("%w: transaction mints %s to %s", domain.ErrTransactionMismatch, tx.TokenURI, tx.Recipient))
	}

	if !tx.Final() {
		confirmCtx, cancel := context.WithTimeout(ctx, uc.confirmationTimeout())
		confirmed, err := uc.Ledger.AwaitConfirmation(confirmCtx, tx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %v", domain.ErrConfirmationTimeout, err)
			}
			return nil, fail(domain.StageConfirm, err)
		}
		tx = confirmed
	}
	switch tx.Status {
	case domain.TxStatusConfirmed:
	case domain.TxStatusFailed:
		return nil, fail(domain.StageConfirm, domain.ErrTransactionFailed)
	default:
		return nil, fail(domain.StageConfirm, domain.ErrConfirmationTimeout)
	}

	raw, err := uc.Content.Resolve(ctx, req.MetadataLocator)
	if err != nil {
		return nil, fail(domain.StagePersist, err)
	}
	var metadata domain.CertificateMetadata
	if err := json.Unmarshal(raw, &metadata); err != nil || !metadata.Complete() {
		return nil, fail(domain.StagePersist, fmt.Errorf("%w: metadata document is malformed", domain.ErrTransactionMismatch))
	}
	if metadata.ArtifactReference() != req.ArtifactLocator.String() {
		return nil, fail(domain.StagePersist, fmt.Errorf("%w: metadata references %s", domain.ErrTransactionMismatch, metadata.ArtifactReference()))
	}

	record := domain.CertificateRecord{
		Transaction:     tx.Hash,
		Receipt:         tx.Receipt,
		ImageLocator:    req.ArtifactLocator,
		MetadataLocator: req.MetadataLocator,
		OwnerID:         parties.Recipient.ID,
		IssuerID:        parties.Issuer.ID,
		Name:            metadata.Name,
		Description:     metadata.Description,
		CreatedAt:       uc.now(),
	}
	stored, err := uc.Records.Insert(ctx, record)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			return nil, err
		}
		if domain.Classify(err) == domain.ErrorClassInternal {
			err = fmt.Errorf("%w: %v", domain.ErrRecordStoreUnavailable, err)
		}
		return nil, fail(domain.StagePersist, err)
	}
	log.Info("certificate recorded on resume", logger.CID(req.MetadataLocator.String()))
	return &ResumeCertificateResponse{Record: stored, Transaction: tx}, nil
}

func (uc *ResumeCertificate) confirmationTimeout() time.Duration {
	if uc.ConfirmationTimeout > 0 {
		return uc.ConfirmationTimeout
	}
	return defaultConfirmationTimeout
}

func (uc *ResumeCertificate) now() time.Time {
	if uc.Now != nil {
		return uc.Now().UTC()
	}
	return time.Now().UTC()
}
