package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/interbank/internal/adapter/http/dto"
	"github.com/iho/interbank/internal/usecase"
)

// PeerHandler exposes directory lookups for operators.
type PeerHandler struct {
	directory usecase.Directory
}

// NewPeerHandler creates a new PeerHandler.
func NewPeerHandler(directory usecase.Directory) *PeerHandler {
	return &PeerHandler{directory: directory}
}

// Resolve looks up a peer institution by routing prefix. Passing
// ?force=true bypasses the cache, for operators chasing a stale entry.
func (h *PeerHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	prefix := chi.URLParam(r, "prefix")
	if prefix == "" {
		writeError(w, http.StatusBadRequest, "validation_failure", "missing routing prefix", "")
		return
	}

	force := r.URL.Query().Get("force") == "true"

	peer, err := h.directory.Resolve(r.Context(), prefix, force)
	if err != nil {
		writeDomainError(w, err, "failed to resolve peer")
		return
	}

	writeJSON(w, http.StatusOK, dto.PeerFromDomain(peer))
}
