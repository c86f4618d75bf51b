package ledgermem

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"nftcate/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

// Outcome scripts how a submitted call behaves. A zero Outcome confirms immediately.
type Outcome struct {
	SubmitErr error
	Status    domain.TxStatus
	// Pending keeps the transaction unconfirmed until Settle is called.
	Pending bool
}

// Ledger is an in-process ledger for development and tests.
type Ledger struct {
	mu         sync.Mutex
	custody    domain.KeyCustody
	clock      func() time.Time
	script     func(call domain.ContractCall) Outcome
	txs        map[string]*entry
	registered map[string]bool
	attempts   int
	block      uint64
	settled    chan struct{}
}

type entry struct {
	tx      domain.LedgerTransaction
	outcome Outcome
}

func New(custody domain.KeyCustody) *Ledger {
	return &Ledger{
		custody:    custody,
		clock:      time.Now,
		txs:        make(map[string]*entry),
		registered: make(map[string]bool),
		settled:    make(chan struct{}),
	}
}

// Script installs the outcome function consulted on every Submit.
func (l *Ledger) Script(fn func(call domain.ContractCall) Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.script = fn
}

func (l *Ledger) RegisterIssuer(address string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registered[strings.ToLower(address)] = true
}

// Attempts counts Submit calls, successful or not.
func (l *Ledger) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

func (l *Ledger) Submit(ctx context.Context, call domain.ContractCall, key domain.KeyRef) (domain.LedgerTransaction, error) {
	l.mu.Lock()
	l.attempts++
	script := l.script
	nonce := uint64(l.attempts)
	l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.LedgerTransaction{}, fmt.Errorf("%w: %v", domain.ErrRPCUnavailable, err)
	}
	if call.Method != domain.MethodMintCertificate {
		return domain.LedgerTransaction{}, fmt.Errorf("%w: unknown method %s", domain.ErrRejected, call.Method)
	}
	if _, ok := l.NormalizeAddress(call.Recipient); !ok {
		return domain.LedgerTransaction{}, fmt.Errorf("%w: invalid recipient", domain.ErrRejected)
	}
	if key.IsZero() {
		return domain.LedgerTransaction{}, fmt.Errorf("%w: key ref is required", domain.ErrSigning)
	}
	from := ""
	if l.custody != nil {
		addr, err := l.custody.Address(ctx, key)
		if err != nil {
			return domain.LedgerTransaction{}, fmt.Errorf("%w: %v", domain.ErrSigning, err)
		}
		from = addr
	}

	var outcome Outcome
	if script != nil {
		outcome = script(call)
	}
	if outcome.Status == "" {
		outcome.Status = domain.TxStatusConfirmed
	}
	tx := domain.LedgerTransaction{
		Hash:        txHash(nonce, from, call),
		Status:      domain.TxStatusSubmitted,
		From:        from,
		Recipient:   call.Recipient,
		TokenURI:    call.TokenURI,
		SubmittedAt: l.clock().UTC(),
	}
	if outcome.SubmitErr != nil {
		// An unknown-outcome failure still puts the transaction on the ledger,
		// the way a broadcast that timed out may still be mined.
		if domain.Classify(outcome.SubmitErr) != domain.ErrorClassUnknownOutcome {
			return domain.LedgerTransaction{}, outcome.SubmitErr
		}
		l.mu.Lock()
		l.txs[tx.Hash] = &entry{tx: tx, outcome: outcome}
		l.mu.Unlock()
		return tx, outcome.SubmitErr
	}

	l.mu.Lock()
	l.txs[tx.Hash] = &entry{tx: tx, outcome: outcome}
	l.mu.Unlock()
	return tx, nil
}

func (l *Ledger) AwaitConfirmation(ctx context.Context, tx domain.LedgerTransaction) (domain.LedgerTransaction, error) {
	for {
		l.mu.Lock()
		e, ok := l.txs[tx.Hash]
		if !ok {
			l.mu.Unlock()
			return domain.LedgerTransaction{}, fmt.Errorf("%w: unknown transaction %s", domain.ErrNotFound, tx.Hash)
		}
		if !e.outcome.Pending {
			l.finalizeLocked(e)
			out := e.tx
			l.mu.Unlock()
			return out, nil
		}
		settled := l.settled
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return tx, fmt.Errorf("%w: %v", domain.ErrConfirmationTimeout, ctx.Err())
		case <-settled:
		}
	}
}

// Settle finalizes a pending transaction with the given status.
func (l *Ledger) Settle(txHash string, status domain.TxStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.txs[txHash]
	if !ok {
		return domain.ErrNotFound
	}
	e.outcome.Pending = false
	e.outcome.Status = status
	l.finalizeLocked(e)
	close(l.settled)
	l.settled = make(chan struct{})
	return nil
}

func (l *Ledger) Lookup(_ context.Context, txHash string) (domain.LedgerTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.txs[txHash]
	if !ok {
		return domain.LedgerTransaction{}, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, txHash)
	}
	return e.tx, nil
}

func (l *Ledger) IsRegisteredIssuer(_ context.Context, address string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.registered[strings.ToLower(address)], nil
}

func (l *Ledger) NormalizeAddress(address string) (string, bool) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", false
	}
	return common.HexToAddress(address).Hex(), true
}

func (l *Ledger) finalizeLocked(e *entry) {
	if e.tx.Final() {
		return
	}
	l.block++
	e.tx.Status = e.outcome.Status
	e.tx.BlockNumber = l.block
	e.tx.FinalizedAt = l.clock().UTC()
	if e.tx.Status == domain.TxStatusConfirmed {
		e.tx.TokenID = fmt.Sprintf("%d", l.block)
	}
	receipt, _ := json.Marshal(map[string]any{
		"transactionHash": e.tx.Hash,
		"blockNumber":     e.tx.BlockNumber,
		"status":          e.tx.Status,
		"tokenId":         e.tx.TokenID,
	})
	e.tx.Receipt = receipt
}

func txHash(nonce uint64, from string, call domain.ContractCall) string {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	h.Write(buf[:])
	h.Write([]byte(from))
	h.Write([]byte(call.Method))
	h.Write([]byte(call.Recipient))
	h.Write([]byte(call.TokenURI))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
