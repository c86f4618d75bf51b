package usecase

import (
	"context"
	"time"

	"nftcate/internal/domain"
)

// ContentStore pins and resolves immutable content. Uploads are publicly visible and
// cannot be revoked; identical bytes yield identical locators.
type ContentStore interface {
	UploadArtifact(ctx context.Context, data []byte, name string, tags map[string]string) (domain.Locator, error)
	UploadMetadata(ctx context.Context, doc domain.CertificateMetadata) (domain.Locator, error)
	Resolve(ctx context.Context, locator domain.Locator) ([]byte, error)
}

// Ledger submits signed contract calls and observes their outcome. AwaitConfirmation
// honours the context deadline and never cancels the transaction itself.
type Ledger interface {
	Submit(ctx context.Context, call domain.ContractCall, key domain.KeyRef) (domain.LedgerTransaction, error)
	AwaitConfirmation(ctx context.Context, tx domain.LedgerTransaction) (domain.LedgerTransaction, error)
	Lookup(ctx context.Context, txHash string) (domain.LedgerTransaction, error)
	IsRegisteredIssuer(ctx context.Context, address string) (bool, error)
	NormalizeAddress(address string) (string, bool)
}

type IdentityDirectory interface {
	FindIssuer(ctx context.Context, issuerID string) (*domain.Issuer, error)
	FindRecipient(ctx context.Context, recipientID string) (*domain.Recipient, error)
}

// CertificateRepository stores certificate records keyed by transaction hash. Insert
// returns domain.ErrDuplicateTransaction when the hash is already recorded.
type CertificateRepository interface {
	Insert(ctx context.Context, record domain.CertificateRecord) (domain.CertificateRecord, error)
	GetByTransaction(ctx context.Context, txHash string) (*domain.CertificateRecord, error)
	GetByMetadataLocator(ctx context.Context, locator domain.Locator) (*domain.CertificateRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.CertificateRecord, error)
	ListByIssuer(ctx context.Context, issuerID string) ([]domain.CertificateRecord, error)
}

type IssuancePolicy interface {
	Evaluate(ctx context.Context, input domain.IssuancePolicyInput) (domain.PolicyResult, error)
}

type LocatorService interface {
	ParseLink(link string) (domain.Locator, error)
	Valid(value string) bool
}

// IssuanceMetrics observes pipeline progress. Implementations must be safe for
// concurrent use.
type IssuanceMetrics interface {
	ObserveStage(stage domain.Stage, elapsed time.Duration, err error)
	IssuanceFinished(outcome string, stage domain.Stage)
	VerificationFinished(result string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveStage(domain.Stage, time.Duration, error) {}
func (noopMetrics) IssuanceFinished(string, domain.Stage)           {}
func (noopMetrics) VerificationFinished(string)                     {}

func metricsOrNoop(m IssuanceMetrics) IssuanceMetrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
