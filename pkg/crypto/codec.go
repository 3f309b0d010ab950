package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize           = 32
	envelopeSeparator = ":"
	hkdfInfo          = "alo17 field encryption"
)

var (
	// ErrDecrypt marks envelopes that are malformed or fail authentication.
	ErrDecrypt = errors.New("decrypt failed")

	errEmptyKey       = errors.New("encryption key is empty")
	errEmptyPlaintext = errors.New("plaintext is empty")
)

// Codec encrypts sensitive fields into `IV:ciphertext:tag` envelopes using AES-256-GCM.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a codec from a raw 32-byte key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes", keySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

// NewCodecFromConfig accepts a 64 character hex key, a base64 encoded 32-byte key, or a
// passphrase which is stretched with HKDF-SHA256.
func NewCodecFromConfig(raw string) (*Codec, error) {
	key, err := ParseKey(raw)
	if err != nil {
		return nil, err
	}
	return NewCodec(key)
}

// ParseKey resolves configured key material into 32 raw bytes.
func ParseKey(raw string) ([]byte, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, errEmptyKey
	}
	if len(value) == hex.EncodedLen(keySize) {
		if key, err := hex.DecodeString(value); err == nil {
			return key, nil
		}
	}
	if key, err := base64.StdEncoding.DecodeString(value); err == nil && len(key) == keySize {
		return key, nil
	}

	key := make([]byte, keySize)
	reader := hkdf.New(sha256.New, []byte(value), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext with a fresh random IV.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errEmptyPlaintext
	}
	iv := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	split := len(sealed) - c.aead.Overhead()
	parts := []string{
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(sealed[:split]),
		base64.StdEncoding.EncodeToString(sealed[split:]),
	}
	return strings.Join(parts, envelopeSeparator), nil
}

// Decrypt opens an envelope produced by Encrypt. Every failure wraps ErrDecrypt.
func (c *Codec) Decrypt(envelope string) (string, error) {
	iv, ciphertext, tag, err := c.split(envelope)
	if err != nil {
		return "", err
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecrypt)
	}
	return string(plaintext), nil
}

// IsEnvelope reports whether value has the envelope shape: three non-empty colon
// separated components. Encoding and lengths are checked by Decrypt.
func (c *Codec) IsEnvelope(value string) bool {
	parts := strings.Split(strings.TrimSpace(value), envelopeSeparator)
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}

// Reveal returns value decrypted when it is envelope shaped and unchanged otherwise.
// An envelope that cannot be opened is an error, never plaintext.
func (c *Codec) Reveal(value string) (string, error) {
	if !c.IsEnvelope(value) {
		return value, nil
	}
	return c.Decrypt(value)
}

func (c *Codec) split(envelope string) ([]byte, []byte, []byte, error) {
	parts := strings.Split(strings.TrimSpace(envelope), envelopeSeparator)
	if len(parts) != 3 {
		return nil, nil, nil, fmt.Errorf("%w: expected 3 components, got %d", ErrDecrypt, len(parts))
	}
	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(iv) != c.aead.NonceSize() {
		return nil, nil, nil, fmt.Errorf("%w: invalid iv", ErrDecrypt)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(ciphertext) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: invalid ciphertext", ErrDecrypt)
	}
	tag, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(tag) != c.aead.Overhead() {
		return nil, nil, nil, fmt.Errorf("%w: invalid tag", ErrDecrypt)
	}
	return iv, ciphertext, tag, nil
}

// PhoneHash returns a stable lookup digest of the phone's digits.
func PhoneHash(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return ""
	}
	sum := sha256.Sum256([]byte(digits.String()))
	return hex.EncodeToString(sum[:])[:16]
}
