package store

import (
	"crypto/rand"
	"encoding/hex"
)

// newAPIKeyValue generates a 64-character hex API key.
func newAPIKeyValue() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
