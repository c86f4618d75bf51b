package domain

type VerificationReason string

const (
	VerificationReasonNotPinned         VerificationReason = "NOT_PINNED"
	VerificationReasonMalformedMetadata VerificationReason = "MALFORMED_METADATA"
	VerificationReasonInvalidArtifact   VerificationReason = "INVALID_ARTIFACT_REFERENCE"
)

// VerificationResult is the verdict on a metadata locator. Record is set only when
// the locator belongs to a certificate minted through this service.
type VerificationResult struct {
	Valid    bool                 `json:"valid"`
	Reason   VerificationReason   `json:"reason,omitempty"`
	Locator  Locator              `json:"cid"`
	Metadata *CertificateMetadata `json:"metadata,omitempty"`
	Record   *CertificateRecord   `json:"record,omitempty"`
}
