package domain

import "time"

// CertificateRecord reconciles a confirmed mint with its pinned content. It is written
// once, after confirmation, and keyed by transaction hash.
type CertificateRecord struct {
	ID              string    `json:"id"`
	Transaction     string    `json:"transaction"`
	Receipt         []byte    `json:"-"`
	ImageLocator    Locator   `json:"image_cid"`
	MetadataLocator Locator   `json:"metadata_cid"`
	OwnerID         string    `json:"owner_id"`
	IssuerID        string    `json:"issuer_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
}
