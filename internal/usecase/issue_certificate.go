package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nftcate/internal/domain"
	"nftcate/internal/observability/logger"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	OutcomeIssued  = "issued"
	OutcomeFailed  = "failed"
	OutcomeUnknown = "unknown"

	defaultConfirmationTimeout = 2 * time.Minute
)

var tracer = otel.Tracer("nftcate/usecase")

type IssueCertificateRequest struct {
	IssuerID     string
	RecipientID  string
	Name         string
	Description  string
	Artifact     []byte
	ArtifactName string
}

type IssueCertificateResponse struct {
	Record      domain.CertificateRecord
	Transaction domain.LedgerTransaction
	Metadata    domain.CertificateMetadata
	// AlreadyRecorded is set when the record store already held this transaction.
	AlreadyRecorded bool
}

// IssueCertificate runs the issuance pipeline: upload artifact, upload metadata,
// submit the mint, await confirmation, persist the record. Stages run strictly in
// order and every failure after the first side effect is a *domain.StageError.
type IssueCertificate struct {
	Identities IdentityDirectory
	Content    ContentStore
	Ledger     Ledger
	Records    CertificateRepository
	Policy     IssuancePolicy
	Metrics    IssuanceMetrics

	ConfirmationTimeout  time.Duration
	RequireOnChainIssuer bool
	MaxArtifactBytes     int64
	AllowedMediaTypes    []string
	// RequireSameInstitution asks the policy to refuse recipients enrolled elsewhere.
	RequireSameInstitution bool

	Now func() time.Time
}

func (uc *IssueCertificate) Execute(ctx context.Context, req IssueCertificateRequest) (*IssueCertificateResponse, error) {
	ctx, span := tracer.Start(ctx, "IssueCertificate")
	defer span.End()
	span.SetAttributes(
		attribute.String("issuer.id", req.IssuerID),
		attribute.String("recipient.id", req.RecipientID),
	)
	metrics := metricsOrNoop(uc.Metrics)
	log := logger.From(ctx).With(logger.Component("issuance"), logger.IssuerID(req.IssuerID), logger.RecipientID(req.RecipientID))

	parties, mediaType, err := uc.preconditions(ctx, req)
	if err != nil {
		log.Info("issuance refused", logger.Err(err))
		span.SetStatus(codes.Error, err.Error())
		metrics.IssuanceFinished(OutcomeFailed, "")
		return nil, err
	}

	resp, err := uc.run(ctx, req, parties, mediaType, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		stage := domain.Stage("")
		if stageErr, ok := domain.AsStageError(err); ok {
			stage = stageErr.Stage
			span.SetAttributes(
				attribute.String("stage", string(stageErr.Stage)),
				attribute.String("progress.artifact", stageErr.Progress.ArtifactLocator.String()),
				attribute.String("progress.metadata", stageErr.Progress.MetadataLocator.String()),
				attribute.String("progress.tx", stageErr.Progress.TxHash),
			)
		}
		outcome := OutcomeFailed
		if errors.Is(err, domain.ErrConfirmationTimeout) {
			outcome = OutcomeUnknown
		}
		metrics.IssuanceFinished(outcome, stage)
		return nil, err
	}
	metrics.IssuanceFinished(OutcomeIssued, domain.StagePersist)
	span.SetAttributes(attribute.String("tx.hash", resp.Transaction.Hash))
	return resp, nil
}

func (uc *IssueCertificate) preconditions(ctx context.Context, req IssueCertificateRequest) (issuanceParties, string, error) {
	if err := requireFields(map[string]string{
		"name":        req.Name,
		"description": req.Description,
		"institution": req.IssuerID,
		"student":     req.RecipientID,
	}); err != nil {
		return issuanceParties{}, "", err
	}
	if len(req.Artifact) == 0 {
		return issuanceParties{}, "", domain.ErrMissingArtifact
	}
	if uc.Content == nil || uc.Records == nil {
		return issuanceParties{}, "", errors.New("issuance dependencies not configured")
	}

	parties, err := resolveParties(ctx, uc.Identities, uc.Ledger, req.IssuerID, req.RecipientID)
	if err != nil {
		return issuanceParties{}, "", err
	}

	mediaType := detectMediaType(req.Artifact)
	if uc.Policy != nil {
		result, err := uc.Policy.Evaluate(ctx, domain.IssuancePolicyInput{
			Issuer: domain.PolicyIssuer{
				ID:       parties.Issuer.ID,
				Type:     string(parties.Issuer.Type),
				Verified: parties.Issuer.Verified,
			},
			Recipient: domain.PolicyRecipient{
				ID:            parties.Recipient.ID,
				InstitutionID: parties.Recipient.InstitutionID,
			},
			Artifact: domain.PolicyArtifact{
				Name:      req.ArtifactName,
				MediaType: mediaType,
				SizeBytes: int64(len(req.Artifact)),
			},
			Certificate: domain.PolicyCertificate{
				Name:        req.Name,
				Description: req.Description,
			},
			Limits: domain.PolicyLimits{
				MaxArtifactBytes:  uc.MaxArtifactBytes,
				AllowedMediaTypes: uc.AllowedMediaTypes,
				SameInstitution:   uc.RequireSameInstitution,
			},
		})
		if err != nil {
			return issuanceParties{}, "", fmt.Errorf("evaluate issuance policy: %w", err)
		}
		if !result.Allow {
			return issuanceParties{}, "", &domain.PolicyDenial{Deny: result.Deny}
		}
	}

	if uc.RequireOnChainIssuer {
		registered, err := uc.Ledger.IsRegisteredIssuer(ctx, parties.Issuer.Address)
		if err != nil {
			return issuanceParties{}, "", err
		}
		if !registered {
			return issuanceParties{}, "", fmt.Errorf("%w: %s is not registered on-chain", domain.ErrUnauthorizedIssuer, parties.Issuer.Address)
		}
	}
	return parties, mediaType, nil
}

func (uc *IssueCertificate) run(ctx context.Context, req IssueCertificateRequest, parties issuanceParties, mediaType string, log *zap.Logger) (*IssueCertificateResponse, error) {
	var progress domain.Progress

	err := uc.stage(ctx, domain.StageUploadArtifact, &progress, func(ctx context.Context) error {
		loc, err := uc.Content.UploadArtifact(ctx, req.Artifact, artifactName(req), map[string]string{
			"issuer":     parties.Issuer.ID,
			"recipient":  parties.Recipient.ID,
			"media_type": mediaType,
		})
		progress.ArtifactLocator = loc
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("artifact pinned", logger.CID(progress.ArtifactLocator.String()))

	metadata := domain.NewCertificateMetadata(req.Name, req.Description, progress.ArtifactLocator)
	err = uc.stage(ctx, domain.StageUploadMetadata, &progress, func(ctx context.Context) error {
		loc, err := uc.Content.UploadMetadata(ctx, metadata)
		progress.MetadataLocator = loc
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("metadata pinned", logger.CID(progress.MetadataLocator.String()))

	var tx domain.LedgerTransaction
	err = uc.stage(ctx, domain.StageSubmit, &progress, func(ctx context.Context) error {
		submitted, err := uc.Ledger.Submit(ctx, domain.MintCall(parties.RecipientAddress, progress.MetadataLocator), parties.Issuer.SigningKey)
		tx = submitted
		progress.TxHash = submitted.Hash
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("mint submitted", logger.TxHash(tx.Hash))

	// The transaction is on the wire; a caller disconnect must not abandon it
	// before its outcome is observed and recorded.
	durable := context.WithoutCancel(ctx)

	err = uc.stage(durable, domain.StageConfirm, &progress, func(ctx context.Context) error {
		confirmCtx, cancel := context.WithTimeout(ctx, uc.confirmationTimeout())
		defer cancel()
		confirmed, err := uc.Ledger.AwaitConfirmation(confirmCtx, tx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w: %v", domain.ErrConfirmationTimeout, err)
			}
			return err
		}
		tx = confirmed
		switch tx.Status {
		case domain.TxStatusConfirmed:
			return nil
		case domain.TxStatusFailed:
			return domain.ErrTransactionFailed
		default:
			return fmt.Errorf("%w: status %s", domain.ErrConfirmationTimeout, tx.Status)
		}
	})
	if err != nil {
		if errors.Is(err, domain.ErrConfirmationTimeout) {
			log.Warn("mint outcome unknown; resume with the transaction hash", logger.TxHash(tx.Hash))
		}
		return nil, err
	}

	record := domain.CertificateRecord{
		Transaction:     tx.Hash,
		Receipt:         tx.Receipt,
		ImageLocator:    progress.ArtifactLocator,
		MetadataLocator: progress.MetadataLocator,
		OwnerID:         parties.Recipient.ID,
		IssuerID:        parties.Issuer.ID,
		Name:            req.Name,
		Description:     req.Description,
		CreatedAt:       uc.now(),
	}
	var duplicate bool
	err = uc.stage(durable, domain.StagePersist, &progress, func(ctx context.Context) error {
		stored, dup, err := persistRecord(ctx, uc.Records, record)
		record, duplicate = stored, dup
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("certificate recorded", logger.TxHash(tx.Hash), zap.String("record_id", record.ID), zap.Bool("already_recorded", duplicate))

	return &IssueCertificateResponse{
		Record:          record,
		Transaction:     tx,
		Metadata:        metadata,
		AlreadyRecorded: duplicate,
	}, nil
}

// stage runs one pipeline step and attaches the progress reached so far to any
// failure. fn records what it made visible in progress, even when it fails.
func (uc *IssueCertificate) stage(ctx context.Context, stage domain.Stage, progress *domain.Progress, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, string(stage))
	defer span.End()
	started := time.Now()
	err := fn(ctx)
	metricsOrNoop(uc.Metrics).ObserveStage(stage, time.Since(started), err)
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.From(ctx).Warn("issuance stage failed",
		logger.Stage(string(stage)),
		logger.Err(err),
		zap.String("class", string(domain.Classify(err))),
	)
	return domain.NewStageError(stage, *progress, err)
}

// persistRecord inserts a record; an existing record for the same transaction is
// returned as success.
func persistRecord(ctx context.Context, records CertificateRepository, record domain.CertificateRecord) (domain.CertificateRecord, bool, error) {
	stored, err := records.Insert(ctx, record)
	if err == nil {
		return stored, false, nil
	}
	if !errors.Is(err, domain.ErrDuplicateTransaction) {
		if domain.Classify(err) == domain.ErrorClassInternal {
			err = fmt.Errorf("%w: %v", domain.ErrRecordStoreUnavailable, err)
		}
		return domain.CertificateRecord{}, false, err
	}
	existing, getErr := records.GetByTransaction(ctx, record.Transaction)
	if getErr != nil {
		return record, true, nil
	}
	return *existing, true, nil
}

func (uc *IssueCertificate) confirmationTimeout() time.Duration {
	if uc.ConfirmationTimeout > 0 {
		return uc.ConfirmationTimeout
	}
	return defaultConfirmationTimeout
}

func (uc *IssueCertificate) now() time.Time {
	if uc.Now != nil {
		return uc.Now().UTC()
	}
	return time.Now().UTC()
}

func artifactName(req IssueCertificateRequest) string {
	if name := strings.TrimSpace(req.ArtifactName); name != "" {
		return name
	}
	return "certificate"
}

func detectMediaType(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
