package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/interbank/internal/adapter/http/dto"
	"github.com/iho/interbank/internal/domain"
	"github.com/iho/interbank/internal/usecase"
)

// SettlementService is the settlement surface the transfer handler needs.
type SettlementService interface {
	CreateTransfer(ctx context.Context, input usecase.CreateTransferInput) (*domain.Transfer, error)
	GetTransfer(ctx context.Context, id string) (*domain.Transfer, error)
	ListTransfersByAccount(ctx context.Context, input usecase.ListTransfersByAccountInput) ([]*domain.Transfer, error)
}

// TransferHandler handles customer-facing transfer requests.
type TransferHandler struct {
	settlementUC SettlementService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(settlementUC SettlementService) *TransferHandler {
	return &TransferHandler{settlementUC: settlementUC}
}

// Create creates a new transfer. The settlement engine routes it locally
// or to a peer institution based on the destination account prefix.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failure", "invalid request body", err.Error())
		return
	}

	transfer, err := h.settlementUC.CreateTransfer(r.Context(), req.ToUseCaseInput())
	if err != nil {
		// A failed transfer still has a persisted audit record; return it
		// alongside the error status so the caller can follow up.
		if transfer != nil {
			status, code := mapDomainError(err)
			writeJSON(w, status, map[string]any{
				"error":    err.Error(),
				"code":     code,
				"transfer": dto.TransferFromDomain(transfer),
			})

			return
		}

		writeDomainError(w, err, "failed to create transfer")

		return
	}

	writeJSON(w, http.StatusCreated, dto.TransferFromDomain(transfer))
}

// Get retrieves a transfer by ID.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "validation_failure", "missing transfer ID", "")
		return
	}

	transfer, err := h.settlementUC.GetTransfer(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get transfer")
		return
	}

	writeJSON(w, http.StatusOK, dto.TransferFromDomain(transfer))
}

// ListByAccount lists transfers touching an account.
func (h *TransferHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "validation_failure", "missing account ID", "")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	transfers, err := h.settlementUC.ListTransfersByAccount(r.Context(), usecase.ListTransfersByAccountInput{
		AccountID: accountID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list transfers", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransfersFromDomain(transfers))
}
