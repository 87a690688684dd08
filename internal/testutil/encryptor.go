package testutil

import (
	"cx-go/internal/cx"
	"cx-go/internal/encryption"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() cx.Encryptor {
	return encryption.NewTestEncryptor()
}
