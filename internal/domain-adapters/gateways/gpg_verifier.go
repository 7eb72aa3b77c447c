package gateways

import (
	"fmt"

	"github.com/reviewboard/rbrelease/internal/external-adapters/gpg"
)

// SignatureVerifier checks detached manifest signatures against a set of
// trusted public keys
type SignatureVerifier struct {
	keyring *gpg.Keyring
}

// NewSignatureVerifier creates a verifier that trusts no keys yet
func NewSignatureVerifier() *SignatureVerifier {
	return &SignatureVerifier{keyring: gpg.NewKeyring()}
}

// Trust adds the public keys in each file to the trusted set
func (v *SignatureVerifier) Trust(keyPaths ...string) error {
	for _, path := range keyPaths {
		if err := v.keyring.ImportFile(path); err != nil {
			return fmt.Errorf("failed to import trusted key: %w", err)
		}
	}
	return nil
}

// SignaturePath returns the conventional detached signature path for a file
func SignaturePath(filePath string) string {
	return filePath + gpg.SignatureSuffix
}

// VerifyDetached verifies sigPath as a detached signature of filePath and
// returns the signer. An empty sigPath means the file's .asc signature.
func (v *SignatureVerifier) VerifyDetached(filePath, sigPath string) (string, error) {
	if sigPath == "" {
		sigPath = SignaturePath(filePath)
	}
	signer, err := v.keyring.VerifyFile(filePath, sigPath)
	if err != nil {
		return "", fmt.Errorf("manifest signature: %w", err)
	}
	return signer, nil
}

// KeyCount returns the number of trusted keys
func (v *SignatureVerifier) KeyCount() int {
	return v.keyring.Len()
}
