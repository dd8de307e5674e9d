package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ShopKeyBytes is the entropy of a shop access key.
const ShopKeyBytes = 32

// NewShopAccessKey returns a hex encoded random key handed to a shop for API access.
func NewShopAccessKey() (string, error) {
	buf := make([]byte, ShopKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate shop access key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
