package domain

import "time"

type TxStatus string

const (
	TxStatusSubmitted TxStatus = "submitted"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// MethodMintCertificate is the certificate contract's mint entry point.
const MethodMintCertificate = "mintNFT"

// ContractCall is a state-changing call against the certificate contract.
type ContractCall struct {
	Method    string
	Recipient string
	TokenURI  string
}

func MintCall(recipient string, metadata Locator) ContractCall {
	return ContractCall{
		Method:    MethodMintCertificate,
		Recipient: recipient,
		TokenURI:  metadata.URI(),
	}
}

// LedgerTransaction is a signed contract call broadcast to the ledger. It is
// immutable once Status is confirmed or failed.
type LedgerTransaction struct {
	Hash        string
	Status      TxStatus
	From        string
	Recipient   string
	TokenURI    string
	TokenID     string
	BlockNumber uint64
	SubmittedAt time.Time
	FinalizedAt time.Time
	Receipt     []byte
}

func (t LedgerTransaction) Final() bool {
	return t.Status == TxStatusConfirmed || t.Status == TxStatusFailed
}
