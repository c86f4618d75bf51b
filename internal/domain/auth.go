package domain

import "context"

type PrincipalKind string

const (
	PrincipalIssuer    PrincipalKind = "issuer"
	PrincipalRecipient PrincipalKind = "recipient"
)

// Principal is the authenticated caller, resolved once at the boundary. Exactly one
// of Issuer or Recipient is set, matching Kind.
type Principal struct {
	Subject   string
	Kind      PrincipalKind
	Issuer    *Issuer
	Recipient *Recipient
	RawClaims map[string]any
}

func (p Principal) IsIssuer(issuerID string) bool {
	return p.Kind == PrincipalIssuer && p.Issuer != nil && p.Issuer.ID == issuerID
}

func (p Principal) IsRecipient(recipientID string) bool {
	return p.Kind == PrincipalRecipient && p.Recipient != nil && p.Recipient.ID == recipientID
}

type Authenticator interface {
	Authenticate(ctx context.Context, bearerToken string) (Principal, error)
}
