package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"nftcate/internal/domain"
)

// issuanceParties are the resolved issuer and recipient of a certificate, with the
// recipient's normalized receiving address.
type issuanceParties struct {
	Issuer           domain.Issuer
	Recipient        domain.Recipient
	RecipientAddress string
}

func resolveParties(ctx context.Context, identities IdentityDirectory, ledger Ledger, issuerID, recipientID string) (issuanceParties, error) {
	if identities == nil || ledger == nil {
		return issuanceParties{}, errors.New("issuance dependencies not configured")
	}
	issuer, err := identities.FindIssuer(ctx, issuerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return issuanceParties{}, fmt.Errorf("%w: issuer %s not found", domain.ErrUnauthorizedIssuer, issuerID)
		}
		return issuanceParties{}, err
	}
	if !issuer.Verified {
		return issuanceParties{}, fmt.Errorf("%w: issuer %s is not verified", domain.ErrUnauthorizedIssuer, issuerID)
	}
	if issuer.SigningKey.IsZero() {
		return issuanceParties{}, fmt.Errorf("%w: issuer %s has no signing key", domain.ErrUnauthorizedIssuer, issuerID)
	}

	recipient, err := identities.FindRecipient(ctx, recipientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return issuanceParties{}, fmt.Errorf("%w: %s", domain.ErrRecipientNotFound, recipientID)
		}
		return issuanceParties{}, err
	}
	if strings.TrimSpace(recipient.Address) == "" {
		return issuanceParties{}, fmt.Errorf("%w: %s", domain.ErrRecipientHasNoWallet, recipientID)
	}
	address, ok := ledger.NormalizeAddress(recipient.Address)
	if !ok {
		return issuanceParties{}, fmt.Errorf("%w: %s has malformed address", domain.ErrRecipientHasNoWallet, recipientID)
	}

	return issuanceParties{
		Issuer:           *issuer,
		Recipient:        *recipient,
		RecipientAddress: address,
	}, nil
}

func requireFields(fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", domain.ErrMissingField, strings.Join(missing, ", "))
}
