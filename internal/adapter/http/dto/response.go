package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/interbank/internal/domain"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID        string          `json:"id"`
	OwnerName string          `json:"owner_name"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:        a.ID,
		OwnerName: a.OwnerName,
		Currency:  a.Currency,
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// TransferResponse represents a transfer in API responses.
type TransferResponse struct {
	ID                 string          `json:"id"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	SettledAmount      decimal.Decimal `json:"settled_amount"`
	SettledCurrency    string          `json:"settled_currency,omitempty"`
	ExchangeRate       decimal.Decimal `json:"exchange_rate"`
	Direction          string          `json:"direction"`
	State              string          `json:"state"`
	CounterpartyName   string          `json:"counterparty_name,omitempty"`
	Explanation        string          `json:"explanation,omitempty"`
	FailureReason      string          `json:"failure_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// TransferFromDomain converts domain transfer to response.
func TransferFromDomain(t *domain.Transfer) *TransferResponse {
	return &TransferResponse{
		ID:                 t.ID,
		SourceAccount:      t.SourceAccount,
		DestinationAccount: t.DestinationAccount,
		Amount:             t.RequestedAmount,
		Currency:           t.RequestedCurrency,
		SettledAmount:      t.SettledAmount,
		SettledCurrency:    t.SettledCurrency,
		ExchangeRate:       t.ExchangeRate,
		Direction:          string(t.Direction),
		State:              string(t.State),
		CounterpartyName:   t.CounterpartyName,
		Explanation:        t.Explanation,
		FailureReason:      t.FailureReason,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// TransfersFromDomain converts domain transfers to responses.
func TransfersFromDomain(transfers []*domain.Transfer) []*TransferResponse {
	result := make([]*TransferResponse, len(transfers))
	for i, t := range transfers {
		result[i] = TransferFromDomain(t)
	}
	return result
}

// InboundAckResponse acknowledges a settled inbound transfer to the
// sending institution.
type InboundAckResponse struct {
	TransactionID string `json:"transactionId"`
	ReceiverName  string `json:"receiverName"`
}

// PeerResponse represents a directory entry in API responses.
type PeerResponse struct {
	RoutingPrefix    string `json:"routing_prefix"`
	Name             string `json:"name"`
	TransferEndpoint string `json:"transfer_endpoint"`
	KeySetEndpoint   string `json:"key_set_endpoint"`
}

// PeerFromDomain converts a directory record to a response.
func PeerFromDomain(p *domain.PeerBank) *PeerResponse {
	return &PeerResponse{
		RoutingPrefix:    p.RoutingPrefix,
		Name:             p.Name,
		TransferEndpoint: p.TransferEndpoint,
		KeySetEndpoint:   p.KeySetEndpoint,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
