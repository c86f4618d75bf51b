package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"nftcate/internal/domain"
	"nftcate/internal/observability/logger"
)

type VerifyCertificateRequest struct {
	Link string
}

// VerifyCertificate checks that a metadata locator resolves to a well-formed
// certificate document. It is read-only; Records is consulted when set but a
// certificate does not need a record to verify.
type VerifyCertificate struct {
	Content  ContentStore
	Records  CertificateRepository
	Locators LocatorService
	Metrics  IssuanceMetrics
}

func (uc *VerifyCertificate) Execute(ctx context.Context, req VerifyCertificateRequest) (*domain.VerificationResult, error) {
	ctx, span := tracer.Start(ctx, "VerifyCertificate")
	defer span.End()
	metrics := metricsOrNoop(uc.Metrics)

	if uc.Content == nil || uc.Locators == nil {
		return nil, errors.New("verification dependencies not configured")
	}
	locator, err := uc.Locators.ParseLink(req.Link)
	if err != nil {
		metrics.VerificationFinished("invalid_link")
		return nil, err
	}
	log := logger.From(ctx).With(logger.Component("verify"), logger.CID(locator.String()))

	raw, err := uc.Content.Resolve(ctx, locator)
	if err != nil {
		if errors.Is(err, domain.ErrContentNotFound) {
			metrics.VerificationFinished(string(domain.VerificationReasonNotPinned))
			return &domain.VerificationResult{
				Valid:   false,
				Reason:  domain.VerificationReasonNotPinned,
				Locator: locator,
			}, nil
		}
		metrics.VerificationFinished("error")
		return nil, err
	}

	var metadata domain.CertificateMetadata
	if err := json.Unmarshal(raw, &metadata); err != nil || !metadata.Complete() {
		metrics.VerificationFinished(string(domain.VerificationReasonMalformedMetadata))
		return &domain.VerificationResult{
			Valid:   false,
			Reason:  domain.VerificationReasonMalformedMetadata,
			Locator: locator,
		}, nil
	}
	if !uc.Locators.Valid(string(metadata.Artifact)) {
		metrics.VerificationFinished(string(domain.VerificationReasonInvalidArtifact))
		return &domain.VerificationResult{
			Valid:    false,
			Reason:   domain.VerificationReasonInvalidArtifact,
			Locator:  locator,
			Metadata: &metadata,
		}, nil
	}

	result := &domain.VerificationResult{
		Valid:    true,
		Locator:  locator,
		Metadata: &metadata,
	}
	if uc.Records != nil {
		record, err := uc.Records.GetByMetadataLocator(ctx, locator)
		switch {
		case err == nil:
			result.Record = record
		case errors.Is(err, domain.ErrNotFound):
		default:
			log.Warn("record lookup failed", logger.Err(err))
		}
	}
	metrics.VerificationFinished("valid")
	return result, nil
}
