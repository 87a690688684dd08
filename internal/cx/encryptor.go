package cx

import "io"

// Encryptor handles encryption of artifacts and unlocking for decryption.
// Encryption uses the public key only, so exports never prompt. Decryption
// requires a passphrase to unlock the private key.
type Encryptor interface {
	// Setup performs one-time key generation. Called during `cx keys init`.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase.
	// Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool

	// Extension is appended to artifact names written through this encryptor.
	Extension() string
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
