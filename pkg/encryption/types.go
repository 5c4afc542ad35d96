package encryption

import "fmt"

const (
	KeySize          = 32     // AES-256
	NonceSize        = 12     // GCM standard nonce size
	TagSize          = 16     // GCM authentication tag size
	SaltSize         = 32     // Salt for PBKDF2
	PBKDF2Iterations = 600000 // OWASP recommended minimum

	// AlgID identifies the only scheme this engine emits. Tokens carrying a
	// different algorithm id fail closed.
	AlgID = "aes-256-gcm"

	// KeyIDLength is the hex length of the key fingerprint stored in tokens.
	KeyIDLength = 16
)

var (
	ErrInvalidKey        = fmt.Errorf("invalid encryption key")
	ErrInvalidCiphertext = fmt.Errorf("invalid ciphertext")
	ErrDecryptionFailed  = fmt.Errorf("decryption failed - wrong key or tampered data")
	ErrUnsupportedAlg    = fmt.Errorf("unsupported encryption algorithm")
)
