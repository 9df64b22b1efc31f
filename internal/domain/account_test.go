package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAccountValidateDebit(t *testing.T) {
	acc := &Account{Balance: decimal.NewFromInt(500)}

	if err := acc.ValidateDebit(decimal.NewFromInt(500)); err != nil {
		t.Errorf("debit to exactly zero should be allowed, got %v", err)
	}

	if err := acc.ValidateDebit(decimal.NewFromInt(501)); err != ErrInsufficientFunds {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestAccountApply(t *testing.T) {
	acc := &Account{Balance: decimal.RequireFromString("1000.00")}

	if got := acc.ApplyDebit(decimal.RequireFromString("150.00")); !got.Equal(decimal.RequireFromString("850.00")) {
		t.Errorf("expected 850.00, got %s", got)
	}

	if got := acc.ApplyCredit(decimal.RequireFromString("46.00")); !got.Equal(decimal.RequireFromString("1046.00")) {
		t.Errorf("expected 1046.00, got %s", got)
	}
}
