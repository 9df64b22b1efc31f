package keys

import (
	"crypto/rsa"

	"github.com/iho/interbank/internal/domain"
)

// Verifier adapts the package-level token functions to the shape the
// settlement engine depends on.
type Verifier struct{}

func NewVerifier() Verifier { return Verifier{} }

func (Verifier) ParseUnverified(token string) (domain.SettlementPayload, string, error) {
	return ParseUnverified(token)
}

func (Verifier) Verify(token string, key *rsa.PublicKey) (domain.SettlementPayload, error) {
	return Verify(token, key)
}
