package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/interbank/internal/usecase"
)

// CreateAccountRequest represents a request to open an account.
type CreateAccountRequest struct {
	OwnerName      string          `json:"owner_name"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() usecase.CreateAccountInput {
	return usecase.CreateAccountInput{
		OwnerName:      r.OwnerName,
		Currency:       r.Currency,
		InitialBalance: r.InitialBalance,
	}
}

// CreateTransferRequest represents a request to create a transfer. The
// destination may belong to another institution; routing is decided by
// its account prefix.
type CreateTransferRequest struct {
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Explanation        string          `json:"explanation,omitempty"`
	Initiator          string          `json:"initiator,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateTransferRequest) ToUseCaseInput() usecase.CreateTransferInput {
	return usecase.CreateTransferInput{
		SourceAccount:      r.SourceAccount,
		DestinationAccount: r.DestinationAccount,
		Amount:             r.Amount,
		Currency:           r.Currency,
		Explanation:        r.Explanation,
		Initiator:          r.Initiator,
	}
}

// InboundTransferRequest is the business-to-business wire envelope: the
// settlement payload travels only inside the signed token.
type InboundTransferRequest struct {
	JWT string `json:"jwt"`
}
