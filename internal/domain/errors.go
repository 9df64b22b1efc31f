package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Transfer errors
	ErrSameAccount       = errors.New("cannot transfer to same account")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrCurrencyMismatch  = errors.New("requested currency does not match source account")
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrInvalidTransition = errors.New("invalid transfer state transition")
	ErrValidation        = errors.New("invalid request")
	ErrNotOwner          = errors.New("source account not owned by initiator")

	// Interbank errors
	ErrAuthenticationFailed = errors.New("signature verification failed")
	ErrPeerNotFound         = errors.New("destination institution unknown")
	ErrDirectoryUnavailable = errors.New("bank directory unavailable")
	ErrPeerTransport        = errors.New("peer transfer request failed")
	ErrKeyUnavailable       = errors.New("signing key unavailable")
	ErrKeyNotFound          = errors.New("no matching key in peer key set")
	ErrUnsupportedPair      = errors.New("unsupported currency pair")
)
