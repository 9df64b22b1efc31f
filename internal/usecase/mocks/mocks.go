package mocks

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/interbank/internal/domain"
	"github.com/iho/interbank/internal/usecase"
)

// MockAccountRepository is a mock implementation of AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	CreateFunc            func(ctx context.Context, account *domain.Account) error
	GetByIDFunc           func(ctx context.Context, id string) (*domain.Account, error)
	GetByIDForUpdateFunc  func(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error)
	GetByIDsForUpdateFunc func(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error)
	UpdateBalanceFunc     func(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error
	ListFunc              func(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

// Seed stores an account directly in the backing map.
func (m *MockAccountRepository) Seed(account *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
}

// Balance returns the current balance of a seeded account.
func (m *MockAccountRepository) Balance(id string) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[id]; ok {
		return acc.Balance
	}
	return decimal.Zero
}

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[id]; ok {
		copied := *acc
		return &copied, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockAccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	if m.GetByIDsForUpdateFunc != nil {
		return m.GetByIDsForUpdateFunc(ctx, tx, ids)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, id := range ids {
		if acc, ok := m.accounts[id]; ok {
			copied := *acc
			accounts = append(accounts, &copied)
		}
	}
	return accounts, nil
}

func (m *MockAccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error {
	if m.UpdateBalanceFunc != nil {
		return m.UpdateBalanceFunc(ctx, tx, id, balance, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[id]; ok {
		acc.Balance = balance
		acc.UpdatedAt = updatedAt
	}
	return nil
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, acc := range m.accounts {
		copied := *acc
		accounts = append(accounts, &copied)
	}
	return accounts, nil
}

// MockTransferRepository is a mock implementation of TransferRepository.
type MockTransferRepository struct {
	mu        sync.RWMutex
	transfers map[string]*domain.Transfer

	CreateFunc        func(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error
	UpdateFunc        func(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error
	GetByIDFunc       func(ctx context.Context, id string) (*domain.Transfer, error)
	ListByAccountFunc func(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transfer, error)
}

func NewMockTransferRepository() *MockTransferRepository {
	return &MockTransferRepository{
		transfers: make(map[string]*domain.Transfer),
	}
}

func (m *MockTransferRepository) Create(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, transfer)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *transfer
	m.transfers[transfer.ID] = &copied
	return nil
}

func (m *MockTransferRepository) Update(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, transfer)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *transfer
	m.transfers[transfer.ID] = &copied
	return nil
}

func (m *MockTransferRepository) GetByID(ctx context.Context, id string) (*domain.Transfer, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.transfers[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, domain.ErrTransferNotFound
}

func (m *MockTransferRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transfer, error) {
	if m.ListByAccountFunc != nil {
		return m.ListByAccountFunc(ctx, accountID, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var transfers []*domain.Transfer
	for _, t := range m.transfers {
		if t.SourceAccount == accountID || t.DestinationAccount == accountID {
			copied := *t
			transfers = append(transfers, &copied)
		}
	}
	return transfers, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error

	Committed  bool
	RolledBack bool
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	m.Committed = true
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	if !m.Committed {
		m.RolledBack = true
	}
	return nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	mu           sync.Mutex
	counter      int
	GenerateFunc func() string
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("generated-id-%d", m.counter)
}

// MockSigner is a mock implementation of Signer.
type MockSigner struct {
	SignFunc func(payload domain.SettlementPayload) (string, error)

	LastPayload domain.SettlementPayload
}

func (m *MockSigner) Sign(payload domain.SettlementPayload) (string, error) {
	m.LastPayload = payload
	if m.SignFunc != nil {
		return m.SignFunc(payload)
	}
	return "signed-token", nil
}

// MockVerifier is a mock implementation of TokenVerifier.
type MockVerifier struct {
	ParseUnverifiedFunc func(token string) (domain.SettlementPayload, string, error)
	VerifyFunc          func(token string, key *rsa.PublicKey) (domain.SettlementPayload, error)
}

func (m *MockVerifier) ParseUnverified(token string) (domain.SettlementPayload, string, error) {
	if m.ParseUnverifiedFunc != nil {
		return m.ParseUnverifiedFunc(token)
	}
	return domain.SettlementPayload{}, "", domain.ErrValidation
}

func (m *MockVerifier) Verify(token string, key *rsa.PublicKey) (domain.SettlementPayload, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(token, key)
	}
	return domain.SettlementPayload{}, domain.ErrAuthenticationFailed
}

// MockDirectory is a mock implementation of Directory.
type MockDirectory struct {
	ResolveFunc      func(ctx context.Context, prefix string, force bool) (*domain.PeerBank, error)
	FetchPeerKeyFunc func(ctx context.Context, keySetURL, kid string) (*rsa.PublicKey, error)
	InvalidateFunc   func(ctx context.Context, prefix string) error

	Invalidated []string
}

func (m *MockDirectory) Resolve(ctx context.Context, prefix string, force bool) (*domain.PeerBank, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, prefix, force)
	}
	return nil, domain.ErrPeerNotFound
}

func (m *MockDirectory) FetchPeerKey(ctx context.Context, keySetURL, kid string) (*rsa.PublicKey, error) {
	if m.FetchPeerKeyFunc != nil {
		return m.FetchPeerKeyFunc(ctx, keySetURL, kid)
	}
	return &rsa.PublicKey{}, nil
}

func (m *MockDirectory) Invalidate(ctx context.Context, prefix string) error {
	m.Invalidated = append(m.Invalidated, prefix)
	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(ctx, prefix)
	}
	return nil
}

// MockRateOracle is a mock implementation of RateOracle.
type MockRateOracle struct {
	RateFunc func(ctx context.Context, from, to string) (decimal.Decimal, error)
}

func (m *MockRateOracle) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if m.RateFunc != nil {
		return m.RateFunc(ctx, from, to)
	}
	return decimal.Zero, domain.ErrUnsupportedPair
}

func (m *MockRateOracle) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, decimal.Decimal, error) {
	rate, err := m.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return amount.Mul(rate).Round(2), rate, nil
}

// MockPeerGateway is a mock implementation of PeerGateway.
type MockPeerGateway struct {
	SendTransferFunc func(ctx context.Context, endpoint, token string) (*domain.PeerAck, error)

	Sent []string
}

func (m *MockPeerGateway) SendTransfer(ctx context.Context, endpoint, token string) (*domain.PeerAck, error) {
	m.Sent = append(m.Sent, token)
	if m.SendTransferFunc != nil {
		return m.SendTransferFunc(ctx, endpoint, token)
	}
	return &domain.PeerAck{}, nil
}
