// Package gpg provides OpenPGP signing and signature verification for release
// manifests.
package gpg

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// armorHeader starts every ASCII-armored OpenPGP block
var armorHeader = []byte("-----BEGIN PGP ")

// Keyring holds the public keys trusted to sign release manifests
type Keyring struct {
	keys openpgp.EntityList
}

// NewKeyring creates an empty keyring
func NewKeyring() *Keyring {
	return &Keyring{}
}

// ImportFile adds the keys in keyPath, armored or binary
func (k *Keyring) ImportFile(keyPath string) error {
	//nolint:gosec // G304: keyPath is an operator-supplied trusted key
	f, err := os.Open(keyPath)
	if err != nil {
		return fmt.Errorf("failed to open key file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	r := bufio.NewReader(f)
	var keys openpgp.EntityList
	if isArmored(r) {
		keys, err = openpgp.ReadArmoredKeyRing(r)
	} else {
		keys, err = openpgp.ReadKeyRing(r)
	}
	if err != nil {
		return fmt.Errorf("failed to read key %s: %w", keyPath, err)
	}
	if len(keys) == 0 {
		return fmt.Errorf("no keys found in %s", keyPath)
	}

	k.keys = append(k.keys, keys...)
	return nil
}

// Len returns the number of trusted keys
func (k *Keyring) Len() int {
	return len(k.keys)
}

// VerifyFile checks sigPath as a detached signature of path and returns the
// identity of the key that made it
func (k *Keyring) VerifyFile(path, sigPath string) (string, error) {
	if len(k.keys) == 0 {
		return "", fmt.Errorf("keyring is empty")
	}

	//nolint:gosec // G304: sigPath is the manifest signature being checked
	sigFile, err := os.Open(sigPath)
	if err != nil {
		return "", fmt.Errorf("failed to open signature: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer sigFile.Close()

	//nolint:gosec // G304: path is the manifest being checked
	data, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer data.Close()

	sig := bufio.NewReader(sigFile)
	var signer *openpgp.Entity
	if isArmored(sig) {
		signer, err = openpgp.CheckArmoredDetachedSignature(k.keys, data, sig, nil)
	} else {
		signer, err = openpgp.CheckDetachedSignature(k.keys, data, sig, nil)
	}
	if err != nil {
		return "", fmt.Errorf("bad signature on %s: %w", path, err)
	}
	return identity(signer), nil
}

func isArmored(r *bufio.Reader) bool {
	head, _ := r.Peek(len(armorHeader))
	return bytes.Equal(head, armorHeader)
}

// identity names a key by its first user id, falling back to the key id
func identity(entity *openpgp.Entity) string {
	names := make([]string, 0, len(entity.Identities))
	for name := range entity.Identities {
		names = append(names, name)
	}
	if len(names) == 0 {
		return entity.PrimaryKey.KeyIdString()
	}
	sort.Strings(names)
	return names[0]
}
