package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nftcate/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Directory resolves a token subject to the identity it names.
type Directory interface {
	FindIssuer(ctx context.Context, issuerID string) (*domain.Issuer, error)
	FindRecipient(ctx context.Context, recipientID string) (*domain.Recipient, error)
}

type Config struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// Authenticator verifies HS256 bearer tokens and resolves the caller once: the
// `role` claim picks the identity kind and `sub` names it.
type Authenticator struct {
	secret    []byte
	parser    *jwt.Parser
	directory Directory
}

func NewAuthenticator(cfg Config, directory Directory) (*Authenticator, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if directory == nil {
		return nil, errors.New("identity directory is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.ClockSkew),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Authenticator{
		secret:    []byte(cfg.Secret),
		parser:    jwt.NewParser(opts...),
		directory: directory,
	}, nil
}

func (a *Authenticator) Authenticate(ctx context.Context, bearerToken string) (domain.Principal, error) {
	if a == nil {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	tokenString := strings.TrimSpace(bearerToken)
	if tokenString == "" {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return domain.Principal{}, fmt.Errorf("%w: sub claim required", domain.ErrUnauthorized)
	}
	role, _ := claims["role"].(string)
	return a.resolve(ctx, subject, role, claims)
}

func (a *Authenticator) resolve(ctx context.Context, subject, role string, claims jwt.MapClaims) (domain.Principal, error) {
	principal := domain.Principal{Subject: subject, RawClaims: claims}
	switch kind, ok := principalKind(role); {
	case !ok:
		return domain.Principal{}, fmt.Errorf("%w: unknown role %q", domain.ErrUnauthorized, role)
	case kind == domain.PrincipalIssuer:
		issuer, err := a.directory.FindIssuer(ctx, subject)
		if err != nil {
			return domain.Principal{}, lookupError(err)
		}
		principal.Kind = kind
		principal.Issuer = issuer
	default:
		recipient, err := a.directory.FindRecipient(ctx, subject)
		if err != nil {
			return domain.Principal{}, lookupError(err)
		}
		principal.Kind = kind
		principal.Recipient = recipient
	}
	return principal, nil
}

func principalKind(role string) (domain.PrincipalKind, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "issuer", "institution":
		return domain.PrincipalIssuer, true
	case "recipient", "student":
		return domain.PrincipalRecipient, true
	default:
		return "", false
	}
}

// lookupError keeps store outages distinguishable from unknown subjects.
func lookupError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: unknown subject", domain.ErrUnauthorized)
	}
	return err
}
