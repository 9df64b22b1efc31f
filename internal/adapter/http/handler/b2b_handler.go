package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/iho/interbank/internal/adapter/http/dto"
	"github.com/iho/interbank/internal/usecase"
)

// InboundService authenticates and settles inbound peer transfers.
type InboundService interface {
	AcceptInbound(ctx context.Context, token string) (*usecase.InboundResult, error)
}

// B2BHandler accepts signed settlement payloads from peer institutions.
type B2BHandler struct {
	settlementUC InboundService
}

// NewB2BHandler creates a new B2BHandler.
func NewB2BHandler(settlementUC InboundService) *B2BHandler {
	return &B2BHandler{settlementUC: settlementUC}
}

// AcceptTransfer receives an inbound transfer. The request body carries
// only the signed token; every business field is read from the verified
// claims, never from the envelope.
func (h *B2BHandler) AcceptTransfer(w http.ResponseWriter, r *http.Request) {
	var req dto.InboundTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failure", "invalid request body", err.Error())
		return
	}

	if req.JWT == "" {
		writeError(w, http.StatusBadRequest, "validation_failure", "missing jwt", "")
		return
	}

	result, err := h.settlementUC.AcceptInbound(r.Context(), req.JWT)
	if err != nil {
		writeDomainError(w, err, "transfer rejected")
		return
	}

	writeJSON(w, http.StatusOK, dto.InboundAckResponse{
		TransactionID: result.TransferID,
		ReceiverName:  result.ReceiverName,
	})
}
