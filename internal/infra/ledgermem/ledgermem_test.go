package ledgermem

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"nftcate/internal/domain"
)

const recipient = "0x00000000000000000000000000000000000000ab"

func TestSubmitAndConfirm(t *testing.T) {
	ledger := New(nil)
	ctx := context.Background()

	tx, err := ledger.Submit(ctx, domain.MintCall(recipient, "bafkmeta"), domain.KeyRef{Owner: "inst-1", KID: "k1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if tx.Status != domain.TxStatusSubmitted || tx.Hash == "" {
		t.Fatalf("unexpected submitted tx: %+v", tx)
	}
	confirmed, err := ledger.AwaitConfirmation(ctx, tx)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if confirmed.Status != domain.TxStatusConfirmed || len(confirmed.Receipt) == 0 {
		t.Fatalf("unexpected confirmed tx: %+v", confirmed)
	}
	if confirmed.TokenURI != "ipfs://bafkmeta" {
		t.Fatalf("unexpected token uri: %s", confirmed.TokenURI)
	}
}

func TestPendingTimesOutThenSettles(t *testing.T) {
	ledger := New(nil)
	ledger.Script(func(domain.ContractCall) Outcome { return Outcome{Pending: true} })
	ctx := context.Background()

	tx, err := ledger.Submit(ctx, domain.MintCall(recipient, "bafkmeta"), domain.KeyRef{Owner: "inst-1", KID: "k1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := ledger.AwaitConfirmation(waitCtx, tx); !errors.Is(err, domain.ErrConfirmationTimeout) {
		t.Fatalf("expected confirmation timeout, got %v", err)
	}

	if err := ledger.Settle(tx.Hash, domain.TxStatusConfirmed); err != nil {
		t.Fatalf("settle: %v", err)
	}
	got, err := ledger.Lookup(ctx, tx.Hash)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Status != domain.TxStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got.Status)
	}
}

func TestSubmitScriptedRejection(t *testing.T) {
	ledger := New(nil)
	ledger.Script(func(domain.ContractCall) Outcome { return Outcome{SubmitErr: domain.ErrRejected} })

	_, err := ledger.Submit(context.Background(), domain.MintCall(recipient, "bafkmeta"), domain.KeyRef{Owner: "inst-1", KID: "k1"})
	if !errors.Is(err, domain.ErrRejected) {
		t.Fatalf("expected rejected, got %v", err)
	}
	if ledger.Attempts() != 1 {
		t.Fatalf("expected 1 attempt, got %d", ledger.Attempts())
	}
}

func TestNormalizeAddress(t *testing.T) {
	ledger := New(nil)
	if _, ok := ledger.NormalizeAddress("0xABC"); ok {
		t.Fatal("expected short address to be rejected")
	}
	got, ok := ledger.NormalizeAddress(" 0x00000000000000000000000000000000000000ab ")
	if !ok || !strings.EqualFold(got, "0x00000000000000000000000000000000000000ab") {
		t.Fatalf("unexpected normalized address: %q %v", got, ok)
	}
}
