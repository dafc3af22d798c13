package mfa

import (
	"strings"
	"testing"
)

func TestGenerateBackupCodes_Format(t *testing.T) {
	codes, err := GenerateBackupCodes(DefaultBackupCodeCount)
	if err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}
	if len(codes) != DefaultBackupCodeCount {
		t.Fatalf("got %d codes", len(codes))
	}
	for _, code := range codes {
		groups := strings.Split(code, "-")
		if len(groups) != 2 {
			t.Fatalf("code %q should be two groups", code)
		}
		for _, g := range groups {
			if len(g) != 4 {
				t.Errorf("group %q should be 4 chars", g)
			}
		}
	}
}

func TestGenerateBackupCodes_AlphabetExcludesAmbiguous(t *testing.T) {
	for _, banned := range "0O1I" {
		if strings.ContainsRune(codeAlphabet, banned) {
			t.Errorf("alphabet contains ambiguous symbol %c", banned)
		}
	}
	if len(codeAlphabet) != 32 {
		t.Errorf("alphabet size = %d, want 32", len(codeAlphabet))
	}

	codes, err := GenerateBackupCodes(50)
	if err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}
	for _, code := range codes {
		for _, r := range strings.ReplaceAll(code, "-", "") {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Errorf("code %q contains %c outside the alphabet", code, r)
			}
		}
	}
}

func TestGenerateBackupCodes_Unique(t *testing.T) {
	codes, err := GenerateBackupCodes(100)
	if err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}
	seen := make(map[string]bool)
	for _, c := range codes {
		if seen[c] {
			t.Fatalf("duplicate code %q", c)
		}
		seen[c] = true
	}
}

func TestGenerateBackupCodes_DefaultCount(t *testing.T) {
	codes, err := GenerateBackupCodes(0)
	if err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}
	if len(codes) != DefaultBackupCodeCount {
		t.Errorf("zero count should fall back to default, got %d", len(codes))
	}
}

func TestGenerateRecoveryKey_Format(t *testing.T) {
	key, err := GenerateRecoveryKey()
	if err != nil {
		t.Fatalf("GenerateRecoveryKey: %v", err)
	}
	groups := strings.Split(key, "-")
	if len(groups) != 8 {
		t.Fatalf("key %q should be eight groups", key)
	}
	for _, g := range groups {
		if len(g) != 4 {
			t.Errorf("group %q should be 4 chars", g)
		}
	}

	other, err := GenerateRecoveryKey()
	if err != nil {
		t.Fatalf("GenerateRecoveryKey: %v", err)
	}
	if key == other {
		t.Error("two recovery keys collided")
	}
}

func TestNormalizeCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"AB12-CD34", "AB12CD34"},
		{"ab12 cd34", "AB12CD34"},
		{"  ab12-cd34  ", "AB12CD34"},
		{"a b 1 2 c d 3 4", "AB12CD34"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeCode(tc.in); got != tc.want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHashBackupCode(t *testing.T) {
	salt := []byte("salt-1")

	h := HashBackupCode("AB12-CD34", salt)
	if h != HashBackupCode("ab12cd34", salt) {
		t.Error("hash should be computed over the normalized code")
	}
	if h == HashBackupCode("AB12-CD34", []byte("salt-2")) {
		t.Error("different salts should produce different hashes")
	}
	if h == HashBackupCode("AB12-CD35", salt) {
		t.Error("different codes should produce different hashes")
	}

	if !BackupCodeEqual("ab12 cd34", salt, h) {
		t.Error("BackupCodeEqual rejected the matching code")
	}
	if BackupCodeEqual("ZZ99-ZZ99", salt, h) {
		t.Error("BackupCodeEqual accepted a different code")
	}
}

func TestNewBackupCodeSalt(t *testing.T) {
	a, err := NewBackupCodeSalt()
	if err != nil {
		t.Fatalf("NewBackupCodeSalt: %v", err)
	}
	b, err := NewBackupCodeSalt()
	if err != nil {
		t.Fatalf("NewBackupCodeSalt: %v", err)
	}
	if a == b {
		t.Error("salts should be unique per call")
	}
	if len(a) != 32 {
		t.Errorf("salt hex length = %d, want 32", len(a))
	}
}
