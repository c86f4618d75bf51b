package rbac

import (
	"errors"

	"nftcate/internal/domain"
)

const (
	PermissionMint       = "certificates:mint"
	PermissionResume     = "certificates:resume"
	PermissionListOwned  = "certificates:list_owned"
	PermissionListIssued = "certificates:list_issued"
)

type AuthzError struct {
	Code string
	Err  error
}

func (e *AuthzError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code
}

func (e *AuthzError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Authorizer decides whether a principal may act on a resource owned by resourceID:
// an institution id for mint, resume and issued listings, a student id for owned
// listings.
type Authorizer struct{}

func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

func (a *Authorizer) Require(principal domain.Principal, permission string, resourceID string) error {
	if principal.Subject == "" {
		return domain.ErrUnauthorized
	}
	switch permission {
	case "":
		return nil
	case PermissionMint, PermissionResume, PermissionListIssued:
		if principal.Kind != domain.PrincipalIssuer {
			return &AuthzError{Code: "ISSUER_REQUIRED", Err: domain.ErrForbidden}
		}
		if !principal.IsIssuer(resourceID) {
			return &AuthzError{Code: "INSTITUTION_MISMATCH", Err: domain.ErrForbidden}
		}
		return nil
	case PermissionListOwned:
		if principal.IsRecipient(resourceID) {
			return nil
		}
		return &AuthzError{Code: "OWNER_MISMATCH", Err: domain.ErrForbidden}
	default:
		return &AuthzError{Code: "UNKNOWN_PERMISSION", Err: domain.ErrForbidden}
	}
}

func IsAuthzError(err error) (*AuthzError, bool) {
	var authz *AuthzError
	if errors.As(err, &authz) {
		return authz, true
	}
	return nil, false
}
