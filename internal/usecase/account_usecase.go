package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/interbank/internal/domain"
	"github.com/iho/interbank/internal/infrastructure/metrics"
)

// AccountUseCase handles account lifecycle. Accounts are thin collaborators
// of the settlement engine; their IDs carry this institution's routing
// prefix.
type AccountUseCase struct {
	accountRepo AccountRepository
	idGen       IDGenerator
	prefix      string
	metrics     *metrics.Metrics
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(accountRepo AccountRepository, idGen IDGenerator, routingPrefix string, m *metrics.Metrics) *AccountUseCase {
	return &AccountUseCase{
		accountRepo: accountRepo,
		idGen:       idGen,
		prefix:      strings.ToUpper(routingPrefix),
		metrics:     m,
	}
}

// CreateAccountInput represents input for opening an account.
type CreateAccountInput struct {
	OwnerName      string
	Currency       string
	InitialBalance decimal.Decimal
}

// CreateAccount opens a new routable account.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if input.OwnerName == "" || len(input.Currency) != 3 {
		return nil, domain.ErrValidation
	}

	if input.InitialBalance.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:        uc.prefix + uc.idGen.Generate(),
		OwnerName: input.OwnerName,
		Currency:  strings.ToUpper(input.Currency),
		Balance:   input.InitialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountsCreated.Inc()
	}

	return account, nil
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if limit <= 0 {
		limit = 20
	}

	if limit > 100 {
		limit = 100
	}

	return uc.accountRepo.List(ctx, limit, offset)
}
