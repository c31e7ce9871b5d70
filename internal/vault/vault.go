// package vault implements symmetric encryption for platform credentials.
//
// Secrets are stored in the wire format base64(iv):base64(tag):base64(ciphertext)
// produced by AES-256-GCM with a 16-byte IV and 16-byte authentication tag.
// The format is stable; any tampering with a stored value surfaces as an
// authentication failure on decrypt, never as corrupted plaintext.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"watchvault/internal/shared"
)

const (
	keyLen = 32 // AES-256
	ivLen  = 16
	tagLen = 16
)

// Vault encrypts and decrypts credential secrets with a fixed symmetric key.
// Construct once at startup and inject wherever secrets are handled.
type Vault struct {
	key []byte
}

// New creates a Vault from a 64-character hex key string.
func New(hexKey string) (*Vault, error) {
	key, err := parseKey(hexKey)
	if err != nil {
		return nil, err
	}
	return &Vault{key: key}, nil
}

// ValidateEncryptionSetup checks the resolved key material at startup so a
// misconfigured deployment fails before first use rather than on it.
func ValidateEncryptionSetup(resolved shared.Resolved) error {
	if resolved.Value == "" {
		return fmt.Errorf("%w: no key in config or %s", shared.ErrKeyConfig, shared.EnvVaultKey)
	}
	if _, err := parseKey(resolved.Value); err != nil {
		return err
	}
	return nil
}

func parseKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("%w: key is empty", shared.ErrKeyConfig)
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: key is not valid hex", shared.ErrKeyConfig)
	}
	if len(key) != keyLen {
		return nil, fmt.Errorf("%w: key is %d bytes, want %d", shared.ErrKeyConfig, len(key), keyLen)
	}
	return key, nil
}

// Encrypt encrypts plaintext and returns the vault wire format.
// A fresh random IV is generated per call, so two encryptions of the same
// plaintext never produce the same output.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if strings.TrimSpace(plaintext) == "" {
		return "", fmt.Errorf("%w: plaintext is empty", shared.ErrEmptyInput)
	}
	if v == nil || len(v.key) != keyLen {
		return "", fmt.Errorf("%w: vault not initialized", shared.ErrKeyConfig)
	}

	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	aead, err := v.aead()
	if err != nil {
		return "", err
	}

	// Seal appends the tag to the ciphertext; the wire format carries it
	// as a separate segment.
	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(tag),
		base64.StdEncoding.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt decrypts a value in the vault wire format.
// Returns ErrFormat when the payload does not split into three base64
// segments, and ErrCipherAuth when the authentication tag does not verify
// (wrong key, or any segment tampered with).
func (v *Vault) Decrypt(payload string) (string, error) {
	iv, tag, ciphertext, err := splitPayload(payload)
	if err != nil {
		return "", err
	}
	if v == nil || len(v.key) != keyLen {
		return "", fmt.Errorf("%w: vault not initialized", shared.ErrKeyConfig)
	}

	aead, err := v.aead()
	if err != nil {
		return "", err
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrCipherAuth, err)
	}

	return string(plaintext), nil
}

// IsEncrypted reports whether data is structurally in the vault wire format.
// It does not attempt decryption; the check distinguishes legacy plaintext
// credentials from vault-format ones during migration.
func (v *Vault) IsEncrypted(data string) bool {
	_, _, _, err := splitPayload(data)
	return err == nil
}

// SafeEncrypt encrypts data unless it is already in the vault wire format,
// in which case it is returned unchanged. Repeated application converges.
func (v *Vault) SafeEncrypt(data string) (string, error) {
	if v.IsEncrypted(data) {
		return data, nil
	}
	return v.Encrypt(data)
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

func splitPayload(payload string) (iv, tag, ciphertext []byte, err error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 {
		return nil, nil, nil, fmt.Errorf("%w: expected 3 segments, got %d", shared.ErrFormat, len(parts))
	}

	iv, err = base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(iv) != ivLen {
		return nil, nil, nil, fmt.Errorf("%w: bad IV segment", shared.ErrFormat)
	}
	tag, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(tag) != tagLen {
		return nil, nil, nil, fmt.Errorf("%w: bad tag segment", shared.ErrFormat)
	}
	ciphertext, err = base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: bad ciphertext segment", shared.ErrFormat)
	}

	return iv, tag, ciphertext, nil
}
