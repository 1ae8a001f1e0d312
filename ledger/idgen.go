package ledger

import (
	"crypto/rand"
	"encoding/hex"
)

// txIDBytes of entropy give 32 hex characters; collision probability is
// negligible and ids cannot be guessed, so transaction references are not
// enumerable or forgeable.
const txIDBytes = 16

// IDGenerator mints transaction ids. It is injected into the ledger so
// tests can substitute a deterministic generator.
type IDGenerator interface {
	NewID() (string, error)
}

// CryptoIDGenerator produces fixed-width ids from crypto/rand.
type CryptoIDGenerator struct{}

// NewID returns a 32-character lowercase hex id.
func (CryptoIDGenerator) NewID() (string, error) {
	buf := make([]byte, txIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
