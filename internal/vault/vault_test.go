package vault

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"watchvault/internal/shared"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New(testKey)
	if err != nil {
		t.Fatalf("failed to create vault: %v", err)
	}
	return v
}

func TestNew(t *testing.T) {
	t.Run("Valid Key", func(t *testing.T) {
		if _, err := New(testKey); err != nil {
			t.Fatalf("expected valid key to be accepted: %v", err)
		}
	})

	t.Run("Empty Key", func(t *testing.T) {
		if _, err := New(""); !errors.Is(err, shared.ErrKeyConfig) {
			t.Errorf("expected ErrKeyConfig, got %v", err)
		}
	})

	t.Run("Non Hex Key", func(t *testing.T) {
		key := strings.Repeat("zz", 32)
		if _, err := New(key); !errors.Is(err, shared.ErrKeyConfig) {
			t.Errorf("expected ErrKeyConfig, got %v", err)
		}
	})

	t.Run("Short Key", func(t *testing.T) {
		if _, err := New("abcd1234"); !errors.Is(err, shared.ErrKeyConfig) {
			t.Errorf("expected ErrKeyConfig, got %v", err)
		}
	})
}

func TestEncrypt(t *testing.T) {
	v := newTestVault(t)

	t.Run("Roundtrip", func(t *testing.T) {
		payload, err := v.Encrypt("SESSDATA=abc123; bili_jct=xyz")
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}

		plaintext, err := v.Decrypt(payload)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if plaintext != "SESSDATA=abc123; bili_jct=xyz" {
			t.Errorf("roundtrip mismatch: got %q", plaintext)
		}
	})

	t.Run("Wire Format", func(t *testing.T) {
		payload, err := v.Encrypt("secret")
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}

		parts := strings.Split(payload, ":")
		if len(parts) != 3 {
			t.Fatalf("expected 3 segments, got %d", len(parts))
		}

		iv, err := base64.StdEncoding.DecodeString(parts[0])
		if err != nil || len(iv) != 16 {
			t.Errorf("expected 16-byte base64 IV, got %d bytes (err %v)", len(iv), err)
		}
		tag, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil || len(tag) != 16 {
			t.Errorf("expected 16-byte base64 tag, got %d bytes (err %v)", len(tag), err)
		}
		if _, err := base64.StdEncoding.DecodeString(parts[2]); err != nil {
			t.Errorf("ciphertext segment is not base64: %v", err)
		}
	})

	t.Run("Fresh IV Per Call", func(t *testing.T) {
		first, err := v.Encrypt("same plaintext")
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		second, err := v.Encrypt("same plaintext")
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		if first == second {
			t.Error("two encryptions of the same plaintext produced identical output")
		}
	})

	t.Run("Empty Plaintext", func(t *testing.T) {
		if _, err := v.Encrypt(""); !errors.Is(err, shared.ErrEmptyInput) {
			t.Errorf("expected ErrEmptyInput, got %v", err)
		}
		if _, err := v.Encrypt("   \t\n"); !errors.Is(err, shared.ErrEmptyInput) {
			t.Errorf("expected ErrEmptyInput for whitespace, got %v", err)
		}
	})
}

func TestDecrypt(t *testing.T) {
	v := newTestVault(t)

	t.Run("Malformed Payload", func(t *testing.T) {
		cases := []string{
			"not-a-vault-value",
			"one:two",
			"a:b:c:d",
			"!!!:" + base64.StdEncoding.EncodeToString(make([]byte, 16)) + ":abcd",
		}
		for _, payload := range cases {
			if _, err := v.Decrypt(payload); !errors.Is(err, shared.ErrFormat) {
				t.Errorf("Decrypt(%q): expected ErrFormat, got %v", payload, err)
			}
		}
	})

	t.Run("Tampered Segments", func(t *testing.T) {
		payload, err := v.Encrypt("tamper me")
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		parts := strings.Split(payload, ":")

		for i := range parts {
			tampered := make([]string, 3)
			copy(tampered, parts)

			raw, err := base64.StdEncoding.DecodeString(tampered[i])
			if err != nil {
				t.Fatalf("failed to decode segment %d: %v", i, err)
			}
			raw[0] ^= 0xFF
			tampered[i] = base64.StdEncoding.EncodeToString(raw)

			if _, err := v.Decrypt(strings.Join(tampered, ":")); !errors.Is(err, shared.ErrCipherAuth) {
				t.Errorf("tampered segment %d: expected ErrCipherAuth, got %v", i, err)
			}
		}
	})

	t.Run("Wrong Key", func(t *testing.T) {
		payload, err := v.Encrypt("secret")
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}

		other, err := New(strings.Repeat("ff", 32))
		if err != nil {
			t.Fatalf("failed to create second vault: %v", err)
		}

		if _, err := other.Decrypt(payload); !errors.Is(err, shared.ErrCipherAuth) {
			t.Errorf("expected ErrCipherAuth with wrong key, got %v", err)
		}
	})
}

func TestIsEncrypted(t *testing.T) {
	v := newTestVault(t)

	t.Run("Vault Format", func(t *testing.T) {
		payload, err := v.Encrypt("secret")
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		if !v.IsEncrypted(payload) {
			t.Error("expected vault output to be recognized as encrypted")
		}
	})

	t.Run("Plaintext", func(t *testing.T) {
		for _, data := range []string{"plain-token", "a:b", "with:colons:but-not-base64!"} {
			if v.IsEncrypted(data) {
				t.Errorf("IsEncrypted(%q) = true, want false", data)
			}
		}
	})
}

func TestSafeEncrypt(t *testing.T) {
	v := newTestVault(t)

	t.Run("Encrypts Plaintext", func(t *testing.T) {
		payload, err := v.SafeEncrypt("legacy-token")
		if err != nil {
			t.Fatalf("SafeEncrypt failed: %v", err)
		}
		if !v.IsEncrypted(payload) {
			t.Error("expected SafeEncrypt output to be in vault format")
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		payload, err := v.SafeEncrypt("legacy-token")
		if err != nil {
			t.Fatalf("SafeEncrypt failed: %v", err)
		}

		again, err := v.SafeEncrypt(payload)
		if err != nil {
			t.Fatalf("second SafeEncrypt failed: %v", err)
		}
		if again != payload {
			t.Error("SafeEncrypt re-encrypted an already-encrypted value")
		}

		plaintext, err := v.Decrypt(again)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if plaintext != "legacy-token" {
			t.Errorf("roundtrip mismatch: got %q", plaintext)
		}
	})
}

func TestValidateEncryptionSetup(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		resolved := shared.Resolved{Source: "config", Value: testKey}
		if err := ValidateEncryptionSetup(resolved); err != nil {
			t.Errorf("expected valid setup, got %v", err)
		}
	})

	t.Run("Missing Key", func(t *testing.T) {
		if err := ValidateEncryptionSetup(shared.Resolved{}); !errors.Is(err, shared.ErrKeyConfig) {
			t.Errorf("expected ErrKeyConfig, got %v", err)
		}
	})

	t.Run("Malformed Key", func(t *testing.T) {
		resolved := shared.Resolved{Source: "environment", Value: "short"}
		if err := ValidateEncryptionSetup(resolved); !errors.Is(err, shared.ErrKeyConfig) {
			t.Errorf("expected ErrKeyConfig, got %v", err)
		}
	})
}
