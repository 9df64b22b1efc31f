package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/interbank/internal/domain"
	"github.com/iho/interbank/internal/infrastructure/metrics"
)

// SettlementConfig identifies this institution within the settlement
// network.
type SettlementConfig struct {
	BankName      string
	RoutingPrefix string
	PrefixLength  int
}

// SettlementUseCase is the transfer state machine: it creates outbound
// transfers, authenticates inbound ones, and finalizes ledger balances.
type SettlementUseCase struct {
	txManager    TransactionManager
	accountRepo  AccountRepository
	transferRepo TransferRepository
	directory    Directory
	signer       Signer
	verifier     TokenVerifier
	rates        RateOracle
	peers        PeerGateway
	idGen        IDGenerator
	retrier      TxRetrier
	cfg          SettlementConfig
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// NewSettlementUseCase creates a new SettlementUseCase.
func NewSettlementUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	transferRepo TransferRepository,
	directory Directory,
	signer Signer,
	verifier TokenVerifier,
	rates RateOracle,
	peers PeerGateway,
	idGen IDGenerator,
	retrier TxRetrier,
	cfg SettlementConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *SettlementUseCase {
	if cfg.PrefixLength <= 0 {
		cfg.PrefixLength = len(cfg.RoutingPrefix)
	}

	return &SettlementUseCase{
		txManager:    txManager,
		accountRepo:  accountRepo,
		transferRepo: transferRepo,
		directory:    directory,
		signer:       signer,
		verifier:     verifier,
		rates:        rates,
		peers:        peers,
		idGen:        idGen,
		retrier:      retrier,
		cfg:          cfg,
		metrics:      m,
		logger:       logger.With().Str("component", "settlement").Logger(),
	}
}

// CreateTransferInput represents a transfer request from a customer.
type CreateTransferInput struct {
	SourceAccount      string
	DestinationAccount string
	Amount             decimal.Decimal
	Currency           string
	Explanation        string
	// Initiator, when set, must match the source account owner.
	Initiator string
}

// CreateTransfer classifies the request as local or remote by the
// destination's routing prefix and runs the matching settlement path.
func (uc *SettlementUseCase) CreateTransfer(ctx context.Context, input CreateTransferInput) (*domain.Transfer, error) {
	transfer := &domain.Transfer{
		ID:                 uc.idGen.Generate(),
		SourceAccount:      input.SourceAccount,
		DestinationAccount: input.DestinationAccount,
		RequestedAmount:    input.Amount,
		RequestedCurrency:  strings.ToUpper(input.Currency),
		Explanation:        input.Explanation,
		State:              domain.StatePending,
		CreatedAt:          time.Now().UTC(),
		UpdatedAt:          time.Now().UTC(),
	}

	if err := transfer.Validate(); err != nil {
		return nil, err
	}

	destPrefix := domain.RoutingPrefix(input.DestinationAccount, uc.cfg.PrefixLength)
	if destPrefix == "" {
		return nil, domain.ErrValidation
	}

	if destPrefix == strings.ToUpper(uc.cfg.RoutingPrefix) {
		transfer.Direction = domain.DirectionLocal
		return uc.settleLocal(ctx, transfer, input.Initiator)
	}

	transfer.Direction = domain.DirectionOutboundRemote
	transfer.IsExternal = true

	return uc.settleRemote(ctx, transfer, input.Initiator, destPrefix)
}

// settleLocal settles a same-institution transfer on the single-process
// atomic path: debit, credit and the completed transfer row commit together
// or not at all.
func (uc *SettlementUseCase) settleLocal(ctx context.Context, transfer *domain.Transfer, initiator string) (*domain.Transfer, error) {
	// The rate lookup can suspend on the network, so it happens before any
	// row lock is taken.
	destination, err := uc.accountRepo.GetByID(ctx, transfer.DestinationAccount)
	if err != nil {
		return nil, err
	}

	settled, rate, err := uc.rates.Convert(ctx, transfer.RequestedAmount, transfer.RequestedCurrency, destination.Currency)
	if err != nil {
		return nil, err
	}

	err = uc.withRetry(ctx, func() error {
		return uc.settleLocalTx(ctx, transfer, initiator, settled, rate)
	})
	if err != nil {
		return nil, err
	}

	uc.recordSettled(transfer)

	uc.logger.Info().
		Str("transfer_id", transfer.ID).
		Str("amount", transfer.RequestedAmount.String()).
		Str("currency", transfer.RequestedCurrency).
		Msg("local transfer settled")

	return transfer, nil
}

// settleLocalTx is one attempt of the atomic local leg. It works on a copy
// of the transfer so a lock-conflict retry restarts from a clean state, and
// re-reads both balances under the row locks.
func (uc *SettlementUseCase) settleLocalTx(ctx context.Context, transfer *domain.Transfer, initiator string, settled, rate decimal.Decimal) error {
	attempt := *transfer

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Lock accounts in sorted order to avoid deadlocks between concurrent
	// transfers over the same pair.
	ids := []string{attempt.SourceAccount, attempt.DestinationAccount}
	sort.Strings(ids)

	accounts, err := uc.accountRepo.GetByIDsForUpdate(ctx, tx, ids)
	if err != nil {
		return err
	}

	if len(accounts) != len(ids) {
		return domain.ErrAccountNotFound
	}

	var source, dest *domain.Account
	for _, a := range accounts {
		switch a.ID {
		case attempt.SourceAccount:
			source = a
		case attempt.DestinationAccount:
			dest = a
		}
	}

	if source == nil || dest == nil {
		return domain.ErrAccountNotFound
	}

	if err := uc.validateSource(source, &attempt, initiator); err != nil {
		return err
	}

	now := time.Now().UTC()

	attempt.SettledAmount = settled
	attempt.SettledCurrency = dest.Currency
	attempt.ExchangeRate = rate

	if err := attempt.TransitionTo(domain.StateCompleted, now); err != nil {
		return err
	}

	if err := uc.transferRepo.Create(ctx, tx, &attempt); err != nil {
		return err
	}

	if err := uc.accountRepo.UpdateBalance(ctx, tx, source.ID, source.ApplyDebit(attempt.RequestedAmount), now); err != nil {
		return err
	}

	if err := uc.accountRepo.UpdateBalance(ctx, tx, dest.ID, dest.ApplyCredit(settled), now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	*transfer = attempt

	return nil
}

// settleRemote runs the outbound remote path. The source is debited only
// after peer acceptance: a rejected or lost transfer leaves the balance
// untouched, trading "money stuck" for never "money lost".
func (uc *SettlementUseCase) settleRemote(ctx context.Context, transfer *domain.Transfer, initiator, destPrefix string) (*domain.Transfer, error) {
	source, err := uc.accountRepo.GetByID(ctx, transfer.SourceAccount)
	if err != nil {
		return nil, err
	}

	if err := uc.validateSource(source, transfer, initiator); err != nil {
		return nil, err
	}

	// The pending row is persisted before any network call so a crash
	// mid-flight is auditable rather than silently lost.
	if err := uc.persistTransfer(ctx, transfer, uc.transferRepo.Create); err != nil {
		return nil, err
	}

	peer, err := uc.directory.Resolve(ctx, destPrefix, false)
	if err != nil {
		if errors.Is(err, domain.ErrPeerNotFound) {
			return uc.failTransfer(ctx, transfer, "destination institution unknown", err)
		}

		return uc.failTransfer(ctx, transfer, "bank directory unavailable", err)
	}

	if err := uc.transitionAndPersist(ctx, transfer, domain.StateSigningAwaiting); err != nil {
		return nil, err
	}

	token, err := uc.signer.Sign(domain.SettlementPayload{
		SourceAccount:      transfer.SourceAccount,
		DestinationAccount: transfer.DestinationAccount,
		Currency:           transfer.RequestedCurrency,
		Amount:             transfer.RequestedAmount,
		Explanation:        transfer.Explanation,
		SenderName:         uc.cfg.BankName,
	})
	if err != nil {
		// Never degrade to sending unsigned payloads.
		uc.logger.Error().Err(err).Str("transfer_id", transfer.ID).Msg("signing key unavailable")
		return uc.failTransfer(ctx, transfer, "signing key unavailable", err)
	}

	if err := uc.transitionAndPersist(ctx, transfer, domain.StateInFlight); err != nil {
		return nil, err
	}

	ack, err := uc.peers.SendTransfer(ctx, peer.TransferEndpoint, token)
	if err != nil {
		// No debit has happened for the remote leg, so no compensation is
		// needed. If the peer processed the transfer and only the response
		// was lost, the two ledgers now disagree; that is surfaced for
		// operator reconciliation rather than silently patched.
		uc.logger.Error().Err(err).
			Str("transfer_id", transfer.ID).
			Str("peer", peer.Name).
			Msg("peer dispatch failed")

		return uc.failTransfer(ctx, transfer, err.Error(), err)
	}

	return uc.finalizeRemote(ctx, transfer, peer, ack)
}

// finalizeRemote debits the source and completes the transfer after peer
// acceptance.
func (uc *SettlementUseCase) finalizeRemote(ctx context.Context, transfer *domain.Transfer, peer *domain.PeerBank, ack *domain.PeerAck) (*domain.Transfer, error) {
	err := uc.withRetry(ctx, func() error {
		return uc.finalizeRemoteTx(ctx, transfer, ack)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			// The peer already credited its side; never drive the local
			// balance negative to match. Flagged loudly for reconciliation.
			uc.logger.Error().
				Str("transfer_id", transfer.ID).
				Str("peer", peer.Name).
				Msg("peer accepted transfer but source can no longer cover it")

			return uc.failTransfer(ctx, transfer, "insufficient funds after peer acceptance", err)
		}

		return nil, err
	}

	uc.recordSettled(transfer)

	uc.logger.Info().
		Str("transfer_id", transfer.ID).
		Str("peer", peer.Name).
		Msg("remote transfer settled")

	return transfer, nil
}

// finalizeRemoteTx is one attempt of the post-acceptance debit.
func (uc *SettlementUseCase) finalizeRemoteTx(ctx context.Context, transfer *domain.Transfer, ack *domain.PeerAck) error {
	attempt := *transfer

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	source, err := uc.accountRepo.GetByIDForUpdate(ctx, tx, attempt.SourceAccount)
	if err != nil {
		return err
	}

	if err := source.ValidateDebit(attempt.RequestedAmount); err != nil {
		return err
	}

	now := time.Now().UTC()

	attempt.SettledAmount = attempt.RequestedAmount
	attempt.SettledCurrency = attempt.RequestedCurrency
	attempt.ExchangeRate = decimal.NewFromInt(1)
	if ack != nil {
		attempt.CounterpartyName = ack.ReceiverName
	}

	if err := attempt.TransitionTo(domain.StateCompleted, now); err != nil {
		return err
	}

	if err := uc.accountRepo.UpdateBalance(ctx, tx, source.ID, source.ApplyDebit(attempt.RequestedAmount), now); err != nil {
		return err
	}

	if err := uc.transferRepo.Update(ctx, tx, &attempt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	*transfer = attempt

	return nil
}

// InboundResult is returned to the sending institution.
type InboundResult struct {
	TransferID   string
	ReceiverName string
}

// AcceptInbound authenticates a signed arrival from a peer and, only after
// verification succeeds, credits the destination account.
func (uc *SettlementUseCase) AcceptInbound(ctx context.Context, token string) (*InboundResult, error) {
	payload, kid, err := uc.verifier.ParseUnverified(token)
	if err != nil {
		return nil, err
	}

	if err := payload.Validate(); err != nil {
		return nil, err
	}

	senderPrefix := domain.RoutingPrefix(payload.SourceAccount, uc.cfg.PrefixLength)
	if senderPrefix == "" {
		return nil, domain.ErrValidation
	}

	peer, err := uc.directory.Resolve(ctx, senderPrefix, false)
	if err != nil {
		return nil, err
	}

	key, err := uc.directory.FetchPeerKey(ctx, peer.KeySetEndpoint, kid)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			// The claimed key is not in the sender's published set; the
			// cached entry may be stale after a rotation.
			uc.invalidatePeer(ctx, senderPrefix)
			uc.recordAuthFailure()

			return nil, domain.ErrAuthenticationFailed
		}

		return nil, err
	}

	verified, err := uc.verifier.Verify(token, key)
	if err != nil {
		uc.invalidatePeer(ctx, senderPrefix)
		uc.recordAuthFailure()

		uc.logger.Warn().
			Str("sender_prefix", senderPrefix).
			Str("source_account", payload.SourceAccount).
			Msg("inbound transfer failed signature verification")

		return nil, domain.ErrAuthenticationFailed
	}

	return uc.creditInbound(ctx, verified, peer)
}

// creditInbound converts and applies a verified inbound payload. The
// protocol has no transfer-uniqueness token, so a re-delivered token
// credits again; deduplication is the sender's responsibility.
func (uc *SettlementUseCase) creditInbound(ctx context.Context, payload domain.SettlementPayload, peer *domain.PeerBank) (*InboundResult, error) {
	destination, err := uc.accountRepo.GetByID(ctx, payload.DestinationAccount)
	if err != nil {
		return nil, err
	}

	settled, rate, err := uc.rates.Convert(ctx, payload.Amount, payload.Currency, destination.Currency)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	transfer := &domain.Transfer{
		ID:                 uc.idGen.Generate(),
		SourceAccount:      payload.SourceAccount,
		DestinationAccount: payload.DestinationAccount,
		RequestedAmount:    payload.Amount,
		RequestedCurrency:  strings.ToUpper(payload.Currency),
		SettledAmount:      settled,
		SettledCurrency:    destination.Currency,
		ExchangeRate:       rate,
		Direction:          domain.DirectionInboundRemote,
		State:              domain.StatePending,
		CounterpartyName:   payload.SenderName,
		Explanation:        payload.Explanation,
		IsExternal:         true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var receiverName string
	err = uc.withRetry(ctx, func() error {
		attempt := *transfer

		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		dest, err := uc.accountRepo.GetByIDForUpdate(ctx, tx, payload.DestinationAccount)
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		if err := attempt.TransitionTo(domain.StateCompleted, now); err != nil {
			return err
		}

		if err := uc.transferRepo.Create(ctx, tx, &attempt); err != nil {
			return err
		}

		if err := uc.accountRepo.UpdateBalance(ctx, tx, dest.ID, dest.ApplyCredit(settled), now); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		*transfer = attempt
		receiverName = dest.OwnerName

		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.recordSettled(transfer)

	uc.logger.Info().
		Str("transfer_id", transfer.ID).
		Str("peer", peer.Name).
		Str("settled", settled.String()).
		Str("currency", transfer.SettledCurrency).
		Msg("inbound transfer settled")

	return &InboundResult{TransferID: transfer.ID, ReceiverName: receiverName}, nil
}

// withRetry reruns the transactional operation through the lock-conflict
// retrier when one is configured.
func (uc *SettlementUseCase) withRetry(ctx context.Context, op func() error) error {
	if uc.retrier == nil {
		return op()
	}

	return uc.retrier.Retry(ctx, op)
}

// GetTransfer retrieves a transfer by ID.
func (uc *SettlementUseCase) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	return uc.transferRepo.GetByID(ctx, id)
}

// ListTransfersByAccountInput represents input for listing transfers.
type ListTransfersByAccountInput struct {
	AccountID string
	Limit     int
	Offset    int
}

// ListTransfersByAccount lists transfers for an account.
func (uc *SettlementUseCase) ListTransfersByAccount(ctx context.Context, input ListTransfersByAccountInput) ([]*domain.Transfer, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}

	if input.Limit > 100 {
		input.Limit = 100
	}

	return uc.transferRepo.ListByAccount(ctx, input.AccountID, input.Limit, input.Offset)
}

// validateSource checks ownership, currency and funds against the local
// source account. The funds check uses the requested amount in the source
// currency, before any conversion.
func (uc *SettlementUseCase) validateSource(source *domain.Account, transfer *domain.Transfer, initiator string) error {
	if initiator != "" && source.OwnerName != initiator {
		return domain.ErrNotOwner
	}

	if source.Currency != transfer.RequestedCurrency {
		return domain.ErrCurrencyMismatch
	}

	return source.ValidateDebit(transfer.RequestedAmount)
}

// persistTransfer writes the transfer in its own committed transaction.
func (uc *SettlementUseCase) persistTransfer(ctx context.Context, transfer *domain.Transfer, op func(context.Context, Transaction, *domain.Transfer) error) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := op(ctx, tx, transfer); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (uc *SettlementUseCase) transitionAndPersist(ctx context.Context, transfer *domain.Transfer, state domain.State) error {
	if err := transfer.TransitionTo(state, time.Now().UTC()); err != nil {
		return err
	}

	return uc.persistTransfer(ctx, transfer, uc.transferRepo.Update)
}

// failTransfer marks the transfer failed with the reason and returns the
// causing error. A transfer is never left in flight.
func (uc *SettlementUseCase) failTransfer(ctx context.Context, transfer *domain.Transfer, reason string, cause error) (*domain.Transfer, error) {
	if err := transfer.Fail(reason, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := uc.persistTransfer(ctx, transfer, uc.transferRepo.Update); err != nil {
		uc.logger.Error().Err(err).Str("transfer_id", transfer.ID).Msg("failed to persist failure state")
	}

	if uc.metrics != nil {
		uc.metrics.TransfersFailed.WithLabelValues(string(transfer.Direction)).Inc()
	}

	return transfer, cause
}

func (uc *SettlementUseCase) recordSettled(transfer *domain.Transfer) {
	if uc.metrics == nil {
		return
	}

	direction := string(transfer.Direction)
	uc.metrics.TransfersSettled.WithLabelValues(direction).Inc()
	uc.metrics.SettlementDelay.WithLabelValues(direction).Observe(time.Since(transfer.CreatedAt).Seconds())

	amount, _ := transfer.RequestedAmount.Float64()
	uc.metrics.TransferAmount.Observe(amount)
}

func (uc *SettlementUseCase) recordAuthFailure() {
	if uc.metrics != nil {
		uc.metrics.InboundAuthFailures.Inc()
	}
}

func (uc *SettlementUseCase) invalidatePeer(ctx context.Context, prefix string) {
	if err := uc.directory.Invalidate(ctx, prefix); err != nil {
		uc.logger.Warn().Err(err).Str("prefix", prefix).Msg("failed to invalidate directory entry")
	}
}
