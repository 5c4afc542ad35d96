package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/subtexthq/powermap/pkg/model"
)

// Service encrypts and decrypts sensitive free-text fields with AES-256-GCM.
// It is stateless: the tenant key is supplied on every call and no key store
// is held here. Authorization of decrypt calls is the caller's concern; the
// API shape forces an explicit call to ever see plaintext.
type Service struct{}

// NewService creates a field encryption service.
func NewService() *Service {
	return &Service{}
}

// GenerateKey generates a cryptographically secure random tenant key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// GenerateSalt generates a cryptographically secure random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a tenant key from a passphrase using PBKDF2-SHA256.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes", SaltSize)
	}
	return pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New), nil
}

// KeyID returns the short fingerprint stored in tokens so a wrong-key decrypt
// can be rejected before touching the ciphertext.
func KeyID(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])[:KeyIDLength]
}

// Encrypt seals plaintext under the tenant key and returns an opaque token.
// The base64 payload is nonce + ciphertext + tag concatenated.
func (s *Service) Encrypt(tenantKey []byte, plaintext string) (*model.EncryptedField, error) {
	if len(tenantKey) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(tenantKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	payload := make([]byte, NonceSize+len(sealed))
	copy(payload[:NonceSize], nonce)
	copy(payload[NonceSize:], sealed)

	return &model.EncryptedField{
		Alg:        AlgID,
		KeyID:      KeyID(tenantKey),
		Ciphertext: base64.StdEncoding.EncodeToString(payload),
	}, nil
}

// Decrypt opens a token with the tenant key. A wrong key, a foreign key id,
// or a tampered payload all fail closed with ErrDecryptionFailed; partial
// plaintext is never returned.
func (s *Service) Decrypt(tenantKey []byte, field *model.EncryptedField) (string, error) {
	if len(tenantKey) != KeySize {
		return "", ErrInvalidKey
	}
	if field == nil {
		return "", ErrInvalidCiphertext
	}
	if field.Alg != AlgID {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlg, field.Alg)
	}
	if field.KeyID != KeyID(tenantKey) {
		return "", fmt.Errorf("%w: key id mismatch", ErrDecryptionFailed)
	}

	payload, err := base64.StdEncoding.DecodeString(field.Ciphertext)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(payload) < NonceSize+TagSize {
		return "", ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(tenantKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, payload[:NonceSize], payload[NonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
