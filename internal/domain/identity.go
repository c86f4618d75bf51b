package domain

import (
	"strings"
	"time"
)

type IssuerType string

const (
	IssuerTypeUniversity IssuerType = "university"
	IssuerTypeCollege    IssuerType = "college"
	IssuerTypeTechnical  IssuerType = "technical"
)

func (t IssuerType) Valid() bool {
	switch t {
	case IssuerTypeUniversity, IssuerTypeCollege, IssuerTypeTechnical:
		return true
	default:
		return false
	}
}

// Issuer is an institution allowed to mint certificates once verified. Key material
// stays in custody; only a reference is held here.
type Issuer struct {
	ID         string
	Name       string
	Type       IssuerType
	Email      string
	Website    string
	Country    string
	Verified   bool
	Address    string
	SigningKey KeyRef
	CreatedAt  time.Time
}

type Recipient struct {
	ID            string
	FirstName     string
	MiddleName    string
	LastName      string
	Email         string
	Address       string
	InstitutionID string
	CreatedAt     time.Time
}

func (r Recipient) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.FirstName, r.MiddleName, r.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
