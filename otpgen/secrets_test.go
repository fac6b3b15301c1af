package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creachadair/otptools/otpauth"
	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(text), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadSecrets(t *testing.T) {
	t.Run("YAML", func(t *testing.T) {
		path := writeFile(t, "secrets.yaml", `
secrets:
  - name: github
    secret: jbsw y3dp ehpk 3pxp
    prefix: "12"
    suffix: "#"
  - name: bank
    secret: ABCDEFGH
    type: HOTP
    counter: 3
    digits: 8
`)
		secrets, err := loadSecrets(path)
		if err != nil {
			t.Fatalf("loadSecrets: unexpected error: %v", err)
		}
		if len(secrets) != 2 {
			t.Fatalf("loadSecrets: got %d entries, want 2", len(secrets))
		}

		got := findSecret(secrets, "bank").Account()
		want := &otpauth.Account{
			Name: "bank", Secret: "ABCDEFGH",
			Algorithm: otpauth.SHA1, Digits: 8, Type: otpauth.HOTP, Period: 30, Counter: 3,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Account: (-want, +got)\n%s", diff)
		}

		// Keys are cleaned the way a setup page presents them.
		if s := findSecret(secrets, "github").Account().Secret; s != "JBSWY3DPEHPK3PXP" {
			t.Errorf("Secret: got %q, want JBSWY3DPEHPK3PXP", s)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		path := writeFile(t, "secrets.json",
			`{"secrets": [{"name": "vpn", "secret": "ABCDEFGH", "algorithm": "sha256"}]}`)
		secrets, err := loadSecrets(path)
		if err != nil {
			t.Fatalf("loadSecrets: unexpected error: %v", err)
		}
		acct := findSecret(secrets, "vpn").Account()
		if acct.Algorithm != otpauth.SHA256 || acct.Digits != 6 || acct.Period != 30 {
			t.Errorf("Account: got %+v, want SHA256 with defaults", acct)
		}
	})

	t.Run("MissingName", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "secrets:\n  - secret: ABCDEFGH\n")
		if _, err := loadSecrets(path); err == nil {
			t.Error("loadSecrets: got nil error, want missing name")
		}
	})
	t.Run("MissingSecret", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "secrets:\n  - name: hollow\n")
		if _, err := loadSecrets(path); err == nil {
			t.Error("loadSecrets: got nil error, want missing secret")
		}
	})
	t.Run("NoSuchFile", func(t *testing.T) {
		if _, err := loadSecrets(filepath.Join(t.TempDir(), "nonesuch.yaml")); err == nil {
			t.Error("loadSecrets: got nil error, want not-exist")
		}
	})
}

func TestGenerateFromSecrets(t *testing.T) {
	// RFC 6238 test key; the expected value is the published vector for
	// T=59 with 8 digits.
	s := &Secret{
		Name:   "rfc",
		Secret: "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ",
		Prefix: "pin-",
		Digits: 8,
	}
	code, err := s.Account().Code(time.Unix(59, 0).UTC())
	if err != nil {
		t.Fatalf("Code: unexpected error: %v", err)
	}
	if got := s.Prefix + code + s.Suffix; got != "pin-94287082" {
		t.Errorf("Token: got %q, want pin-94287082", got)
	}
}
