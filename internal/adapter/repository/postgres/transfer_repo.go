package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/interbank/internal/domain"
	"github.com/iho/interbank/internal/usecase"
)

// TransferRepository implements usecase.TransferRepository.
type TransferRepository struct {
	pool queryPool
}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return newTransferRepositoryWithPool(pool)
}

func newTransferRepositoryWithPool(pool queryPool) *TransferRepository {
	return &TransferRepository{pool: pool}
}

const transferColumns = `id, source_account, destination_account,
	requested_amount, requested_currency, settled_amount, settled_currency,
	exchange_rate, direction, state, counterparty_name, explanation,
	failure_reason, is_external, created_at, updated_at`

// Create persists a new transfer row.
func (r *TransferRepository) Create(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx,
		`INSERT INTO transfers (`+transferColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		transfer.ID,
		transfer.SourceAccount,
		transfer.DestinationAccount,
		decimalToNumeric(transfer.RequestedAmount),
		transfer.RequestedCurrency,
		decimalToNumeric(transfer.SettledAmount),
		transfer.SettledCurrency,
		decimalToNumeric(transfer.ExchangeRate),
		string(transfer.Direction),
		string(transfer.State),
		transfer.CounterpartyName,
		transfer.Explanation,
		transfer.FailureReason,
		transfer.IsExternal,
		timeToPgTimestamptz(transfer.CreatedAt),
		timeToPgTimestamptz(transfer.UpdatedAt),
	)

	return err
}

// Update rewrites the mutable fields of a transfer. State transitions are
// validated in the domain before reaching here.
func (r *TransferRepository) Update(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx,
		`UPDATE transfers
		 SET settled_amount = $2, settled_currency = $3, exchange_rate = $4,
		     state = $5, counterparty_name = $6, failure_reason = $7,
		     updated_at = $8
		 WHERE id = $1`,
		transfer.ID,
		decimalToNumeric(transfer.SettledAmount),
		transfer.SettledCurrency,
		decimalToNumeric(transfer.ExchangeRate),
		string(transfer.State),
		transfer.CounterpartyName,
		transfer.FailureReason,
		timeToPgTimestamptz(transfer.UpdatedAt),
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrTransferNotFound
	}

	return nil
}

// GetByID retrieves a transfer by ID.
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*domain.Transfer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id)

	return scanTransfer(row)
}

// ListByAccount lists transfers touching an account, newest first.
func (r *TransferRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transfer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transferColumns+` FROM transfers
		 WHERE source_account = $1 OR destination_account = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []*domain.Transfer
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, transfer)
	}

	return transfers, rows.Err()
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var (
		transfer  domain.Transfer
		requested pgtype.Numeric
		settled   pgtype.Numeric
		rate      pgtype.Numeric
		direction string
		state     string
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&transfer.ID,
		&transfer.SourceAccount,
		&transfer.DestinationAccount,
		&requested,
		&transfer.RequestedCurrency,
		&settled,
		&transfer.SettledCurrency,
		&rate,
		&direction,
		&state,
		&transfer.CounterpartyName,
		&transfer.Explanation,
		&transfer.FailureReason,
		&transfer.IsExternal,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}

		return nil, err
	}

	transfer.RequestedAmount = numericToDecimal(requested)
	transfer.SettledAmount = numericToDecimal(settled)
	transfer.ExchangeRate = numericToDecimal(rate)
	transfer.Direction = domain.Direction(direction)
	transfer.State = domain.State(state)
	transfer.CreatedAt = createdAt.Time
	transfer.UpdatedAt = updatedAt.Time

	return &transfer, nil
}
