package recordmem

import (
	"context"
	"sort"
	"sync"

	"nftcate/internal/domain"

	"github.com/google/uuid"
)

// Store keeps identities and certificate records in memory. It backs the server in
// no-db mode.
type Store struct {
	mu         sync.RWMutex
	issuers    map[string]domain.Issuer
	recipients map[string]domain.Recipient
	records    map[string]domain.CertificateRecord
}

func New() *Store {
	return &Store{
		issuers:    make(map[string]domain.Issuer),
		recipients: make(map[string]domain.Recipient),
		records:    make(map[string]domain.CertificateRecord),
	}
}

func (s *Store) PutIssuer(issuer domain.Issuer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issuers[issuer.ID] = issuer
}

func (s *Store) PutRecipient(recipient domain.Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients[recipient.ID] = recipient
}

func (s *Store) FindIssuer(_ context.Context, issuerID string) (*domain.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issuer, ok := s.issuers[issuerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &issuer, nil
}

func (s *Store) FindRecipient(_ context.Context, recipientID string) (*domain.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recipient, ok := s.recipients[recipientID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &recipient, nil
}

func (s *Store) Insert(_ context.Context, record domain.CertificateRecord) (domain.CertificateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.Transaction]; ok {
		return domain.CertificateRecord{}, domain.ErrDuplicateTransaction
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Receipt = append([]byte(nil), record.Receipt...)
	s.records[record.Transaction] = record
	return record, nil
}

func (s *Store) GetByTransaction(_ context.Context, txHash string) (*domain.CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[txHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}

func (s *Store) GetByMetadataLocator(_ context.Context, locator domain.Locator) (*domain.CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records {
		if record.MetadataLocator == locator {
			return &record, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListByOwner(_ context.Context, ownerID string) ([]domain.CertificateRecord, error) {
	return s.filter(func(r domain.CertificateRecord) bool { return r.OwnerID == ownerID }), nil
}

func (s *Store) ListByIssuer(_ context.Context, issuerID string) ([]domain.CertificateRecord, error) {
	return s.filter(func(r domain.CertificateRecord) bool { return r.IssuerID == issuerID }), nil
}

// Len reports how many records are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) filter(keep func(domain.CertificateRecord) bool) []domain.CertificateRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CertificateRecord, 0)
	for _, record := range s.records {
		if keep(record) {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Transaction < out[j].Transaction
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
