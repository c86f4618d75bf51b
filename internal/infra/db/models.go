package db

import "time"

type IssuerModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Type      string `gorm:"not null"`
	Email     string `gorm:"uniqueIndex;not null"`
	Website   string
	Country   string
	Verified  bool   `gorm:"not null;default:false"`
	Address   string `gorm:"index"`
	KeyOwner  string
	KeyID     string
	CreatedAt time.Time `gorm:"not null"`
}

func (IssuerModel) TableName() string { return "issuers" }

type RecipientModel struct {
	ID            string `gorm:"primaryKey"`
	FirstName     string `gorm:"not null"`
	MiddleName    string
	LastName      string `gorm:"not null"`
	Email         string `gorm:"uniqueIndex;not null"`
	Address       string
	InstitutionID string    `gorm:"index"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (RecipientModel) TableName() string { return "recipients" }

type CertificateModel struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	TxHash      string    `gorm:"uniqueIndex;not null"`
	Receipt     []byte    `gorm:"type:bytea"`
	ImageCID    string    `gorm:"not null"`
	MetadataCID string    `gorm:"index;not null"`
	OwnerID     string    `gorm:"index;not null"`
	IssuerID    string    `gorm:"index;not null"`
	Name        string    `gorm:"not null"`
	Description string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (CertificateModel) TableName() string { return "certificates" }
