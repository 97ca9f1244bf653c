// Package secrets decrypts age encrypted configuration values such as the
// Koji password and the PNC token.
package secrets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

var (
	// ErrNoIdentity is returned when an encrypted value is found but no
	// identity is configured.
	ErrNoIdentity = errors.New("no age identity configured for decryption")
	// ErrDecryptionFailed is returned when decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrEncryptionFailed is returned when encryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")
	// ErrInvalidKey is returned when a key is invalid.
	ErrInvalidKey = errors.New("invalid key format")
)

// Resolver turns configuration values into plaintext. Values in the age
// armored format are decrypted, anything else is returned unchanged.
type Resolver struct {
	identity *age.X25519Identity
	logger   *slog.Logger
}

// NewResolver creates a resolver. An empty identity is allowed as long as
// no encrypted values are resolved.
func NewResolver(identity string, logger *slog.Logger) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{logger: logger}
	if identity == "" {
		return r, nil
	}
	id, err := age.ParseX25519Identity(strings.TrimSpace(identity))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid identity: %v", ErrInvalidKey, err)
	}
	r.identity = id
	return r, nil
}

// IsEncrypted reports whether value is age armored.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), armor.Header)
}

// Resolve returns the plaintext of value.
func (r *Resolver) Resolve(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if r.identity == nil {
		return "", ErrNoIdentity
	}

	ar := armor.NewReader(strings.NewReader(strings.TrimSpace(value)))
	dr, err := age.Decrypt(ar, r.identity)
	if err != nil {
		r.logger.Error("failed to create age decryptor", "error", err)
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	plaintext, err := io.ReadAll(dr)
	if err != nil {
		r.logger.Error("failed to read decrypted data", "error", err)
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

// ResolveAll resolves every value pointed to, stopping at the first failure.
func (r *Resolver) ResolveAll(values map[string]*string) error {
	for name, v := range values {
		if v == nil {
			continue
		}
		plain, err := r.Resolve(*v)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", name, err)
		}
		*v = plain
	}
	return nil
}

// Encrypt encrypts plaintext for recipient and returns it age armored.
func Encrypt(recipient string, plaintext []byte) (string, error) {
	rcpt, err := age.ParseX25519Recipient(strings.TrimSpace(recipient))
	if err != nil {
		return "", fmt.Errorf("%w: invalid recipient: %v", ErrInvalidKey, err)
	}

	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, rcpt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return buf.String(), nil
}

// GenerateKeyPair generates a new age key pair.
// Returns the recipient (for encryption) and identity (for decryption).
func GenerateKeyPair() (recipient, identity string, err error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate age key pair: %w", err)
	}
	return id.Recipient().String(), id.String(), nil
}
