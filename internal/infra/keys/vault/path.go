package vault

import (
	"errors"
	"fmt"
	"strings"

	"nftcate/internal/domain"
)

// Vault KV v2 path format (env-scoped, issuer-scoped):
// secret/data/nftcate/{env}/issuers/{owner}/keys/{kid}
// Stored fields: alg, kid, private_key_hex, address.
const vaultKVPathFormat = "secret/data/nftcate/%s/issuers/%s/keys/%s"

func vaultPath(env string, ref domain.KeyRef) (string, error) {
	if env == "" {
		return "", errors.New("NFTCATE_ENV is required")
	}
	if err := validateKeyRef(ref); err != nil {
		return "", err
	}
	return fmt.Sprintf(vaultKVPathFormat, env, ref.Owner, ref.KID), nil
}

func validateKeyRef(ref domain.KeyRef) error {
	if ref.IsZero() {
		return errors.New("key ref is required")
	}
	if strings.ContainsAny(ref.Owner+ref.KID, "/.") {
		return errors.New("key ref must not contain path separators")
	}
	return nil
}
