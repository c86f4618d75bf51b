package vault

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"nftcate/internal/config"
	"nftcate/internal/domain"
	"nftcate/internal/infra/vaultclient"

	"github.com/ethereum/go-ethereum/crypto"
)

const algSecp256k1 = "secp256k1"

// Manager reads issuer keys from Vault on every use; nothing is cached in process.
type Manager struct {
	client *vaultclient.Client
	env    string
}

type storedKey struct {
	Alg           string `json:"alg"`
	KID           string `json:"kid"`
	PrivateKeyHex string `json:"private_key_hex"`
	Address       string `json:"address,omitempty"`
}

func NewManager(client *vaultclient.Client, env string) (*Manager, error) {
	if env == "" {
		return nil, errors.New("NFTCATE_ENV is required")
	}
	return &Manager{client: client, env: env}, nil
}

func NewManagerFromConfig(cfg config.Config) (*Manager, error) {
	if cfg.NFTCateEnv == "" {
		return nil, errors.New("NFTCATE_ENV is required")
	}
	if cfg.VaultAddr == "" || cfg.VaultToken == "" {
		return nil, errors.New("VAULT_ADDR and VAULT_TOKEN are required")
	}
	return NewManager(vaultclient.New(cfg.VaultAddr, cfg.VaultToken), cfg.NFTCateEnv)
}

func (m *Manager) Address(ctx context.Context, ref domain.KeyRef) (string, error) {
	key, err := m.load(ctx, ref)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func (m *Manager) SignDigest(ctx context.Context, ref domain.KeyRef, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("%w: digest must be 32 bytes, got %d", domain.ErrSigning, len(digest))
	}
	key, err := m.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSigning, err)
	}
	return sig, nil
}

// Put provisions a key under ref.
func (m *Manager) Put(ctx context.Context, ref domain.KeyRef, key *ecdsa.PrivateKey) error {
	if m == nil || m.client == nil {
		return errors.New("vault manager not configured")
	}
	if key == nil {
		return errors.New("private key is required")
	}
	path, err := vaultPath(m.env, ref)
	if err != nil {
		return err
	}
	return m.client.WriteKV(ctx, path, storedKey{
		Alg:           algSecp256k1,
		KID:           ref.KID,
		PrivateKeyHex: fmt.Sprintf("%x", crypto.FromECDSA(key)),
		Address:       crypto.PubkeyToAddress(key.PublicKey).Hex(),
	})
}

func (m *Manager) Delete(ctx context.Context, ref domain.KeyRef) error {
	if m == nil || m.client == nil {
		return errors.New("vault manager not configured")
	}
	path, err := vaultPath(m.env, ref)
	if err != nil {
		return err
	}
	return m.client.DeleteKV(ctx, path)
}

func (m *Manager) load(ctx context.Context, ref domain.KeyRef) (*ecdsa.PrivateKey, error) {
	if m == nil || m.client == nil {
		return nil, fmt.Errorf("%w: vault manager not configured", domain.ErrSigning)
	}
	path, err := vaultPath(m.env, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSigning, err)
	}
	var stored storedKey
	if err := m.client.ReadKV(ctx, path, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSigning, err)
	}
	if stored.Alg != "" && !strings.EqualFold(stored.Alg, algSecp256k1) {
		return nil, fmt.Errorf("%w: unsupported key algorithm %s", domain.ErrSigning, stored.Alg)
	}
	if stored.KID != "" && stored.KID != ref.KID {
		return nil, fmt.Errorf("%w: kid mismatch", domain.ErrSigning)
	}
	if stored.PrivateKeyHex == "" {
		return nil, fmt.Errorf("%w: private_key_hex is required", domain.ErrSigning)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(stored.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSigning, err)
	}
	return key, nil
}
