package usecase

import (
	"context"
	"crypto/rsa"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/interbank/internal/domain"
)

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Account, error)
	GetByIDsForUpdate(ctx context.Context, tx Transaction, ids []string) ([]*domain.Account, error)
	UpdateBalance(ctx context.Context, tx Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// TransferRepository defines data access for transfers.
type TransferRepository interface {
	Create(ctx context.Context, tx Transaction, transfer *domain.Transfer) error
	Update(ctx context.Context, tx Transaction, transfer *domain.Transfer) error
	GetByID(ctx context.Context, id string) (*domain.Transfer, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transfer, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// TxRetrier reruns a transactional operation that lost a lock race.
type TxRetrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Signer produces signed settlement tokens for outbound transfers.
type Signer interface {
	Sign(payload domain.SettlementPayload) (string, error)
}

// TokenVerifier parses and authenticates inbound settlement tokens.
type TokenVerifier interface {
	ParseUnverified(token string) (domain.SettlementPayload, string, error)
	Verify(token string, key *rsa.PublicKey) (domain.SettlementPayload, error)
}

// Directory resolves routing prefixes to peer institutions.
type Directory interface {
	Resolve(ctx context.Context, prefix string, force bool) (*domain.PeerBank, error)
	FetchPeerKey(ctx context.Context, keySetURL, kid string) (*rsa.PublicKey, error)
	Invalidate(ctx context.Context, prefix string) error
}

// RateOracle supplies currency conversion rates.
type RateOracle interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (settled, rate decimal.Decimal, err error)
}

// PeerGateway dispatches signed tokens to peer transfer endpoints.
type PeerGateway interface {
	SendTransfer(ctx context.Context, endpoint, token string) (*domain.PeerAck, error)
}
