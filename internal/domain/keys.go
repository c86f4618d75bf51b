package domain

import "context"

// KeyRef names a signing key held in custody.
type KeyRef struct {
	Owner string
	KID   string
}

func (r KeyRef) IsZero() bool {
	return r.Owner == "" || r.KID == ""
}

// KeyCustody signs on behalf of issuers without exposing private keys. Digests are
// 32-byte transaction hashes; signatures are 65-byte [R || S || V] secp256k1.
type KeyCustody interface {
	Address(ctx context.Context, ref KeyRef) (string, error)
	SignDigest(ctx context.Context, ref KeyRef, digest []byte) ([]byte, error)
}
