package gateways

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/reviewboard/rbrelease/internal/external-adapters/gpg"
)

func writeKeyPair(t *testing.T, dir string) (privPath, pubPath string) {
	t.Helper()
	entity, err := openpgp.NewEntity("Release Manager", "", "release@example.com",
		&packet.Config{Algorithm: packet.PubKeyAlgoEdDSA})
	if err != nil {
		t.Fatal(err)
	}

	privPath = filepath.Join(dir, "release.key")
	pubPath = filepath.Join(dir, "release.pub")
	for path, private := range map[string]bool{privPath: true, pubPath: false} {
		var sb strings.Builder
		blockType := openpgp.PublicKeyType
		if private {
			blockType = openpgp.PrivateKeyType
		}
		w, err := armor.Encode(&sb, blockType, nil)
		if err != nil {
			t.Fatal(err)
		}
		if private {
			err = entity.SerializePrivate(w, nil)
		} else {
			err = entity.Serialize(w)
		}
		if err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return privPath, pubPath
}

func TestSignatureVerifier_VerifyDetached(t *testing.T) {
	dir := t.TempDir()
	privPath, pubPath := writeKeyPair(t, dir)

	manifest := filepath.Join(dir, "ReviewBoard-1.2.3.sha256sum")
	if err := os.WriteFile(manifest, []byte("abc  ReviewBoard-1.2.3.tar.gz\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	signer, err := gpg.NewSignerFromFile(privPath, nil)
	if err != nil {
		t.Fatalf("NewSignerFromFile() error = %v", err)
	}
	sigPath, err := signer.SignFile(manifest)
	if err != nil {
		t.Fatalf("SignFile() error = %v", err)
	}
	if sigPath != SignaturePath(manifest) {
		t.Errorf("signature path = %s, want %s", sigPath, SignaturePath(manifest))
	}

	verifier := NewSignatureVerifier()
	if _, err := verifier.VerifyDetached(manifest, ""); err == nil {
		t.Fatal("VerifyDetached() with no trusted keys should fail")
	}

	if err := verifier.Trust(pubPath); err != nil {
		t.Fatalf("Trust() error = %v", err)
	}
	if verifier.KeyCount() != 1 {
		t.Errorf("KeyCount() = %d, want 1", verifier.KeyCount())
	}
	signerID, err := verifier.VerifyDetached(manifest, "")
	if err != nil {
		t.Errorf("VerifyDetached() error = %v", err)
	}
	if !strings.Contains(signerID, "release@example.com") {
		t.Errorf("VerifyDetached() signer = %q", signerID)
	}

	if err := os.WriteFile(manifest, []byte("tampered\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.VerifyDetached(manifest, sigPath); err == nil {
		t.Error("VerifyDetached() should reject a modified manifest")
	}
}

func TestSignatureVerifier_TrustMissingKey(t *testing.T) {
	if err := NewSignatureVerifier().Trust(filepath.Join(t.TempDir(), "none.pub")); err == nil {
		t.Error("Trust() expected error for missing file")
	}
}
