package soft

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"

	"nftcate/internal/config"
	"nftcate/internal/domain"

	"github.com/ethereum/go-ethereum/crypto"
)

// Manager holds secp256k1 issuer keys in process memory. Keys registered for an
// exact KeyRef win; config seeds are keyed by owner only and serve any KID.
type Manager struct {
	mu    sync.RWMutex
	keys  map[string]*ecdsa.PrivateKey
	seeds map[string]*ecdsa.PrivateKey
}

func NewManager(keys map[domain.KeyRef]*ecdsa.PrivateKey) *Manager {
	keyMap := make(map[string]*ecdsa.PrivateKey, len(keys))
	for ref, key := range keys {
		keyMap[keyRefKey(ref)] = key
	}
	return &Manager{keys: keyMap, seeds: make(map[string]*ecdsa.PrivateKey)}
}

// NewManagerFromConfig seeds keys from ISSUER_KEYS (owner=hex private key).
func NewManagerFromConfig(cfg config.Config) (*Manager, error) {
	m := NewManager(nil)
	for owner, hexKey := range cfg.IssuerKeys {
		key, err := parsePrivateKeyHex(hexKey)
		if err != nil {
			return nil, fmt.Errorf("issuer key for %s: %w", owner, err)
		}
		m.seeds[strings.TrimSpace(owner)] = key
	}
	return m, nil
}

// Put registers a key for ref, replacing any previous one.
func (m *Manager) Put(ref domain.KeyRef, key *ecdsa.PrivateKey) error {
	if err := validateKeyRef(ref); err != nil {
		return err
	}
	if key == nil {
		return errors.New("private key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[keyRefKey(ref)] = key
	return nil
}

func (m *Manager) Address(_ context.Context, ref domain.KeyRef) (string, error) {
	key, err := m.lookup(ref)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func (m *Manager) SignDigest(_ context.Context, ref domain.KeyRef, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("%w: digest must be 32 bytes, got %d", domain.ErrSigning, len(digest))
	}
	key, err := m.lookup(ref)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSigning, err)
	}
	return sig, nil
}

func (m *Manager) lookup(ref domain.KeyRef) (*ecdsa.PrivateKey, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: soft key manager not configured", domain.ErrSigning)
	}
	if err := validateKeyRef(ref); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSigning, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if key, ok := m.keys[keyRefKey(ref)]; ok {
		return key, nil
	}
	if key, ok := m.seeds[ref.Owner]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: private key not found", domain.ErrSigning)
}

func keyRefKey(ref domain.KeyRef) string {
	return ref.Owner + "|" + ref.KID
}

func parsePrivateKeyHex(value string) (*ecdsa.PrivateKey, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if value == "" {
		return nil, errors.New("private key is required")
	}
	return crypto.HexToECDSA(value)
}

func validateKeyRef(ref domain.KeyRef) error {
	if ref.IsZero() {
		return errors.New("key ref is required")
	}
	return nil
}
