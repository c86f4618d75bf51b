package cidutil

import (
	"fmt"

	"nftcate/internal/domain"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Service parses and validates content locators.
type Service struct{}

// ParseLink extracts the locator from an ipfs:// URI, a gateway URL or a bare CID.
// The final path segment must decode as a CID.
func (Service) ParseLink(link string) (domain.Locator, error) {
	segment := domain.LastPathSegment(link)
	if segment == "" {
		return "", fmt.Errorf("%w: empty identifier", domain.ErrInvalidLink)
	}
	locator, err := Normalize(segment)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidLink, err)
	}
	return locator, nil
}

// Valid reports whether value is itself a CID. Links and surrounding
// whitespace are rejected.
func (Service) Valid(value string) bool {
	_, err := Normalize(value)
	return err == nil
}

// ForBytes derives the CIDv1 (raw codec, sha2-256) addressing data.
func ForBytes(data []byte) (domain.Locator, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return domain.Locator(cid.NewCidV1(cid.Raw, sum).String()), nil
}

// Normalize returns the canonical string form of a CID.
func Normalize(value string) (domain.Locator, error) {
	c, err := cid.Decode(value)
	if err != nil {
		return "", err
	}
	if !c.Defined() {
		return "", fmt.Errorf("undefined cid")
	}
	return domain.Locator(c.String()), nil
}
