package domain

import (
	"strings"
)

// Locator is a content identifier (CID) addressing immutable bytes in the content network.
type Locator string

const ipfsScheme = "ipfs://"

func (l Locator) String() string {
	return string(l)
}

func (l Locator) IsZero() bool {
	return strings.TrimSpace(string(l)) == ""
}

// URI renders the locator as an ipfs:// URI, the form recorded on-chain.
func (l Locator) URI() string {
	if l.IsZero() {
		return ""
	}
	return ipfsScheme + string(l)
}

// GatewayURL renders the locator under an HTTP gateway base such as https://ipfs.io.
func (l Locator) GatewayURL(base string) string {
	if l.IsZero() {
		return ""
	}
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return l.URI()
	}
	if strings.HasSuffix(base, "/ipfs") {
		return base + "/" + string(l)
	}
	return base + "/ipfs/" + string(l)
}

// LastPathSegment returns the final non-empty path segment of a link, ignoring
// query strings and fragments. A bare identifier is returned unchanged.
func LastPathSegment(link string) string {
	link = strings.TrimSpace(link)
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	link = strings.TrimRight(link, "/")
	if i := strings.LastIndex(link, "/"); i >= 0 {
		link = link[i+1:]
	}
	return strings.TrimSpace(link)
}

// CertificateMetadata is the JSON document pinned alongside the artifact. Artifact
// holds the artifact CID; Image mirrors it as an ipfs:// URI for wallet displays.
type CertificateMetadata struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Artifact    Locator `json:"artifact"`
	Image       string  `json:"image,omitempty"`
}

func NewCertificateMetadata(name, description string, artifact Locator) CertificateMetadata {
	return CertificateMetadata{
		Name:        name,
		Description: description,
		Artifact:    artifact,
		Image:       artifact.URI(),
	}
}

// ArtifactReference returns the artifact field as written. It must itself be a
// CID; links and the display-only Image field are never consulted.
func (m CertificateMetadata) ArtifactReference() string {
	return strings.TrimSpace(string(m.Artifact))
}

// Complete reports whether name, description and artifact are all present.
func (m CertificateMetadata) Complete() bool {
	return strings.TrimSpace(m.Name) != "" &&
		strings.TrimSpace(m.Description) != "" &&
		m.ArtifactReference() != ""
}
