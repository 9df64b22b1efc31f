package handler

import (
	"net/http"

	"github.com/iho/interbank/internal/keys"
)

// KeySetProvider exposes this institution's public signing keys.
type KeySetProvider interface {
	PublicKeySet() keys.KeySet
}

// JWKSHandler publishes the signing keys so peers can verify outbound
// settlement payloads.
type JWKSHandler struct {
	custodian KeySetProvider
}

// NewJWKSHandler creates a new JWKSHandler.
func NewJWKSHandler(custodian KeySetProvider) *JWKSHandler {
	return &JWKSHandler{custodian: custodian}
}

// KeySet serves the public key set in JWKS format.
func (h *JWKSHandler) KeySet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.custodian.PublicKeySet())
}
