package gpg

import (
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// SignatureSuffix is appended to a file name to name its detached signature
const SignatureSuffix = ".asc"

// Signer produces armored detached signatures with a private key
type Signer struct {
	entity *openpgp.Entity
}

// NewSignerFromFile loads the first private key from an armored key file,
// decrypting it with passphrase when it is protected
func NewSignerFromFile(keyPath string, passphrase []byte) (*Signer, error) {
	//nolint:gosec // G304: keyPath is the operator's signing key
	f, err := os.Open(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open signing key: %w", err)
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	entities, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	for _, entity := range entities {
		if entity.PrivateKey == nil {
			continue
		}
		if err := decryptEntity(entity, passphrase); err != nil {
			return nil, err
		}
		return &Signer{entity: entity}, nil
	}

	return nil, fmt.Errorf("no private key found in %s", keyPath)
}

// decryptEntity unlocks the primary key and any signing subkeys
func decryptEntity(entity *openpgp.Entity, passphrase []byte) error {
	if entity.PrivateKey.Encrypted {
		if len(passphrase) == 0 {
			return fmt.Errorf("signing key is encrypted and no passphrase was given")
		}
		if err := entity.PrivateKey.Decrypt(passphrase); err != nil {
			return fmt.Errorf("failed to decrypt signing key: %w", err)
		}
	}

	for _, subkey := range entity.Subkeys {
		if subkey.PrivateKey != nil && subkey.PrivateKey.Encrypted {
			if err := subkey.PrivateKey.Decrypt(passphrase); err != nil {
				return fmt.Errorf("failed to decrypt signing subkey: %w", err)
			}
		}
	}
	return nil
}

// SignFile writes an armored detached signature for path to path+".asc"
// and returns the signature path
func (s *Signer) SignFile(path string) (string, error) {
	//nolint:gosec // G304: path is a release artifact
	data, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file to sign: %w", err)
	}
	//nolint:errcheck // Defer close
	defer data.Close()

	sigPath := path + SignatureSuffix
	//nolint:gosec // G304: signature is written next to the artifact
	out, err := os.Create(sigPath)
	if err != nil {
		return "", fmt.Errorf("failed to create signature file: %w", err)
	}

	if err := openpgp.ArmoredDetachSign(out, s.entity, data, nil); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("failed to sign %s: %w", path, err)
	}

	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to write signature: %w", err)
	}

	return sigPath, nil
}
