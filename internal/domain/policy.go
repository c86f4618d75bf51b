package domain

// IssuancePolicyInput is evaluated before any issuance side effect.
type IssuancePolicyInput struct {
	Issuer      PolicyIssuer      `json:"issuer"`
	Recipient   PolicyRecipient   `json:"recipient"`
	Artifact    PolicyArtifact    `json:"artifact"`
	Certificate PolicyCertificate `json:"certificate"`
	Limits      PolicyLimits      `json:"limits"`
}

type PolicyIssuer struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Verified bool   `json:"verified"`
}

type PolicyRecipient struct {
	ID            string `json:"id"`
	InstitutionID string `json:"institution_id,omitempty"`
}

type PolicyArtifact struct {
	Name      string `json:"name,omitempty"`
	MediaType string `json:"media_type"`
	SizeBytes int64  `json:"size_bytes"`
}

type PolicyCertificate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type PolicyLimits struct {
	MaxArtifactBytes  int64    `json:"max_artifact_bytes"`
	AllowedMediaTypes []string `json:"allowed_media_types"`
	SameInstitution   bool     `json:"same_institution"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}
