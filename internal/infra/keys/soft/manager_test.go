package soft

import (
	"context"
	"errors"
	"testing"

	"nftcate/internal/config"
	"nftcate/internal/domain"

	"github.com/ethereum/go-ethereum/crypto"
)

// Well-known development key (hardhat account #0).
const devKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestManager_SignDigestRecoversAddress(t *testing.T) {
	manager, err := NewManagerFromConfig(config.Config{IssuerKeys: map[string]string{"inst-1": "0x" + devKeyHex}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ref := domain.KeyRef{Owner: "inst-1", KID: "primary"}
	ctx := context.Background()

	addr, err := manager.Address(ctx, ref)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	if addr != "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266" {
		t.Fatalf("unexpected address: %s", addr)
	}

	digest := crypto.Keccak256([]byte("mint"))
	sig, err := manager.SignDigest(ctx, ref, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("unexpected signature length: %d", len(sig))
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if crypto.PubkeyToAddress(*pub).Hex() != addr {
		t.Fatal("recovered address does not match")
	}
}

func TestManager_ExactRefWinsOverSeed(t *testing.T) {
	manager, err := NewManagerFromConfig(config.Config{IssuerKeys: map[string]string{"inst-1": devKeyHex}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	other, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	ref := domain.KeyRef{Owner: "inst-1", KID: "rotated"}
	if err := manager.Put(ref, other); err != nil {
		t.Fatalf("put: %v", err)
	}
	addr, err := manager.Address(context.Background(), ref)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	if addr != crypto.PubkeyToAddress(other.PublicKey).Hex() {
		t.Fatalf("expected rotated key address, got %s", addr)
	}
}

func TestManager_SignRejectsMissingRef(t *testing.T) {
	manager := NewManager(nil)
	_, err := manager.SignDigest(context.Background(), domain.KeyRef{Owner: "inst-1"}, make([]byte, 32))
	if !errors.Is(err, domain.ErrSigning) {
		t.Fatalf("expected signing error, got %v", err)
	}
}

func TestManager_SignRejectsUnknownKey(t *testing.T) {
	manager := NewManager(nil)
	_, err := manager.SignDigest(context.Background(), domain.KeyRef{Owner: "inst-9", KID: "k"}, make([]byte, 32))
	if !errors.Is(err, domain.ErrSigning) {
		t.Fatalf("expected signing error, got %v", err)
	}
}

func TestManager_SignRejectsShortDigest(t *testing.T) {
	manager, err := NewManagerFromConfig(config.Config{IssuerKeys: map[string]string{"inst-1": devKeyHex}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := manager.SignDigest(context.Background(), domain.KeyRef{Owner: "inst-1", KID: "k"}, []byte("short")); err == nil {
		t.Fatal("expected error for short digest")
	}
}

func TestNewManagerFromConfigRejectsBadHex(t *testing.T) {
	if _, err := NewManagerFromConfig(config.Config{IssuerKeys: map[string]string{"inst-1": "zz"}}); err == nil {
		t.Fatal("expected error for malformed key")
	}
}
