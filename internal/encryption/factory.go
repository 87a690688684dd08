package encryption

import (
	"fmt"

	"cx-go/internal/config"
	"cx-go/internal/cx"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// It does not check Enabled; callers decide whether artifacts are encrypted.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (cx.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
