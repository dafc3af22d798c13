package security

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// testBox derives a key with a low iteration count so the suite stays fast.
func testBox(t *testing.T) *SecretBox {
	t.Helper()
	box, err := NewSecretBoxFromSecret([]byte("test-server-secret"), []byte("test-salt"), 1000)
	if err != nil {
		t.Fatalf("NewSecretBoxFromSecret: %v", err)
	}
	return box
}

func TestSecretBox_RoundTrip(t *testing.T) {
	box := testBox(t)
	plaintext := []byte("JBSWY3DPEHPK3PXP")

	blob, err := box.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if strings.Contains(blob, string(plaintext)) {
		t.Error("sealed blob contains the plaintext")
	}

	got, err := box.Open(blob)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestSecretBox_BlobShape(t *testing.T) {
	box := testBox(t)
	blob, err := box.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		t.Fatalf("expected nonce:ciphertext:tag, got %d segments", len(parts))
	}
}

func TestSecretBox_FreshNoncePerSeal(t *testing.T) {
	box := testBox(t)
	a, err := box.Seal([]byte("same plaintext"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	b, err := box.Seal([]byte("same plaintext"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if a == b {
		t.Error("two seals of the same plaintext produced identical blobs")
	}
}

func TestSecretBox_TamperedCiphertext(t *testing.T) {
	box := testBox(t)
	blob, err := box.Seal([]byte("sensitive"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	parts := strings.Split(blob, ":")
	mid := []byte(parts[1])
	if mid[0] == 'A' {
		mid[0] = 'B'
	} else {
		mid[0] = 'A'
	}
	tampered := parts[0] + ":" + string(mid) + ":" + parts[2]

	if _, err := box.Open(tampered); !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("expected ErrDecryptFailed for tampered ciphertext, got %v", err)
	}
}

func TestSecretBox_MalformedBlob(t *testing.T) {
	box := testBox(t)
	for _, blob := range []string{
		"",
		"not-a-blob",
		"only:two",
		"a:b:c:d",
		"!!!:AAAA:AAAA",
	} {
		if _, err := box.Open(blob); !errors.Is(err, ErrDecryptFailed) {
			t.Errorf("Open(%q): expected ErrDecryptFailed, got %v", blob, err)
		}
	}
}

func TestSecretBox_WrongKey(t *testing.T) {
	box := testBox(t)
	blob, err := box.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	other, err := NewSecretBoxFromSecret([]byte("different-secret"), []byte("test-salt"), 1000)
	if err != nil {
		t.Fatalf("NewSecretBoxFromSecret: %v", err)
	}
	if _, err := other.Open(blob); !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("expected ErrDecryptFailed under wrong key, got %v", err)
	}
}

func TestNewSecretBox_RejectsShortKey(t *testing.T) {
	if _, err := NewSecretBox([]byte("short")); err == nil {
		t.Error("expected error for short key")
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	a := DeriveKey([]byte("secret"), []byte("salt"), 1000)
	b := DeriveKey([]byte("secret"), []byte("salt"), 1000)
	if !bytes.Equal(a, b) {
		t.Error("same inputs derived different keys")
	}
	c := DeriveKey([]byte("secret"), []byte("other-salt"), 1000)
	if bytes.Equal(a, c) {
		t.Error("different salts derived the same key")
	}
	if len(a) != KeySize {
		t.Errorf("expected %d-byte key, got %d", KeySize, len(a))
	}
}
