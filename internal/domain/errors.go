package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")

	ErrMissingField    = errors.New("missing required field")
	ErrMissingArtifact = errors.New("missing certificate artifact")
	ErrInvalidLink     = errors.New("invalid content link")

	ErrUnauthorizedIssuer   = errors.New("issuer not authorized")
	ErrRecipientNotFound    = errors.New("recipient not found")
	ErrRecipientHasNoWallet = errors.New("recipient has no wallet address")
	ErrPolicyDenied         = errors.New("issuance denied by policy")

	ErrStoreUnavailable = errors.New("content store unavailable")
	ErrStoreRejected    = errors.New("content store rejected payload")
	ErrContentNotFound  = errors.New("content not found")

	ErrSigning             = errors.New("transaction signing failed")
	ErrRPCUnavailable      = errors.New("ledger rpc unavailable")
	ErrRejected            = errors.New("ledger rejected call")
	ErrTransactionFailed   = errors.New("ledger transaction failed")
	ErrConfirmationTimeout = errors.New("ledger confirmation timed out")
	ErrTransactionMismatch = errors.New("ledger transaction does not match certificate")

	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrRecordStoreUnavailable = errors.New("record store unavailable")
)

// ErrorClass groups errors by how a caller may react to them.
type ErrorClass string

const (
	ErrorClassValidation     ErrorClass = "validation"
	ErrorClassAuthorization  ErrorClass = "authorization"
	ErrorClassTransient      ErrorClass = "transient"
	ErrorClassRejected       ErrorClass = "rejected"
	ErrorClassUnknownOutcome ErrorClass = "unknown_outcome"
	ErrorClassConflict       ErrorClass = "conflict"
	ErrorClassNotFound       ErrorClass = "not_found"
	ErrorClassInternal       ErrorClass = "internal"
)

func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrMissingArtifact), errors.Is(err, ErrInvalidLink):
		return ErrorClassValidation
	case errors.Is(err, ErrUnauthorizedIssuer), errors.Is(err, ErrRecipientNotFound),
		errors.Is(err, ErrRecipientHasNoWallet), errors.Is(err, ErrPolicyDenied),
		errors.Is(err, ErrUnauthorized), errors.Is(err, ErrForbidden):
		return ErrorClassAuthorization
	case errors.Is(err, ErrConfirmationTimeout):
		return ErrorClassUnknownOutcome
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrRPCUnavailable), errors.Is(err, ErrRecordStoreUnavailable):
		return ErrorClassTransient
	case errors.Is(err, ErrStoreRejected), errors.Is(err, ErrRejected), errors.Is(err, ErrSigning),
		errors.Is(err, ErrTransactionFailed), errors.Is(err, ErrTransactionMismatch):
		return ErrorClassRejected
	case errors.Is(err, ErrDuplicateTransaction):
		return ErrorClassConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrContentNotFound):
		return ErrorClassNotFound
	default:
		return ErrorClassInternal
	}
}

// Retryable reports whether repeating the failed stage with the same inputs is safe.
func Retryable(err error) bool {
	return Classify(err) == ErrorClassTransient
}

// PolicyDenial carries the deny codes produced by the issuance policy.
type PolicyDenial struct {
	Deny []PolicyDeny
}

func (e *PolicyDenial) Error() string {
	if e == nil || len(e.Deny) == 0 {
		return ErrPolicyDenied.Error()
	}
	codes := make([]string, 0, len(e.Deny))
	for _, d := range e.Deny {
		codes = append(codes, d.Code)
	}
	return fmt.Sprintf("%s: %s", ErrPolicyDenied.Error(), strings.Join(codes, ", "))
}

func (e *PolicyDenial) Unwrap() error {
	return ErrPolicyDenied
}
