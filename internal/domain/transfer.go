package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction classifies a transfer relative to this institution.
type Direction string

const (
	DirectionLocal          Direction = "local"
	DirectionOutboundRemote Direction = "outbound_remote"
	DirectionInboundRemote  Direction = "inbound_remote"
)

// State is a transfer's position in the settlement state machine.
type State string

const (
	StatePending         State = "pending"
	StateSigningAwaiting State = "signing_awaiting"
	StateInFlight        State = "in_flight"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

// allowedTransitions holds the valid settlement state machine edges.
// completed and failed are terminal.
var allowedTransitions = map[State][]State{
	StatePending:         {StateSigningAwaiting, StateInFlight, StateCompleted, StateFailed},
	StateSigningAwaiting: {StateInFlight, StateFailed},
	StateInFlight:        {StateCompleted, StateFailed},
}

// Transfer is the unit of settlement between two accounts, possibly at
// different institutions.
type Transfer struct {
	ID                 string
	SourceAccount      string
	DestinationAccount string
	RequestedAmount    decimal.Decimal
	RequestedCurrency  string
	SettledAmount      decimal.Decimal
	SettledCurrency    string
	ExchangeRate       decimal.Decimal
	Direction          Direction
	State              State
	CounterpartyName   string
	Explanation        string
	FailureReason      string
	IsExternal         bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate validates a transfer request before any ledger effect.
func (t *Transfer) Validate() error {
	if t.SourceAccount == "" || t.DestinationAccount == "" {
		return ErrValidation
	}

	if t.SourceAccount == t.DestinationAccount {
		return ErrSameAccount
	}

	if t.RequestedAmount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if len(t.RequestedCurrency) != 3 {
		return ErrValidation
	}

	return nil
}

// TransitionTo moves the transfer to the given state, enforcing the state
// machine. Terminal states never transition out.
func (t *Transfer) TransitionTo(next State, now time.Time) error {
	for _, s := range allowedTransitions[t.State] {
		if s == next {
			t.State = next
			t.UpdatedAt = now

			return nil
		}
	}

	return ErrInvalidTransition
}

// Fail marks the transfer failed with the given reason.
func (t *Transfer) Fail(reason string, now time.Time) error {
	if err := t.TransitionTo(StateFailed, now); err != nil {
		return err
	}

	t.FailureReason = reason

	return nil
}

// Terminal reports whether the transfer reached a final state.
func (t *Transfer) Terminal() bool {
	return t.State == StateCompleted || t.State == StateFailed
}

// SettlementPayload is the canonical signed payload exchanged between
// institutions. The protocol carries no unique transfer identifier, so a
// re-delivered token is indistinguishable from a new one on the receiving
// side.
type SettlementPayload struct {
	SourceAccount      string
	DestinationAccount string
	Currency           string
	Amount             decimal.Decimal
	Explanation        string
	SenderName         string
}

// Validate checks structural requirements of an inbound payload before it
// is trusted.
func (p *SettlementPayload) Validate() error {
	if p.SourceAccount == "" || p.DestinationAccount == "" {
		return ErrValidation
	}

	if len(p.Currency) != 3 {
		return ErrValidation
	}

	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	return nil
}

// RoutingPrefix extracts the owning institution's routing prefix from an
// account identifier.
func RoutingPrefix(accountID string, length int) string {
	if len(accountID) < length {
		return ""
	}

	return strings.ToUpper(accountID[:length])
}
