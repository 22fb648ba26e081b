package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/GymLedgerService/internal/models"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const ledgerTracer = "ledger-repository"

type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

func (r *PostgresLedgerRepository) Post(ctx context.Context, entry *models.Transaction, allowNegative bool) (balance decimal.Decimal, err error) {
	ctx, span, done := instrument(ctx, ledgerTracer, "PostEntry")
	defer func() { done(err) }()

	if entry == nil {
		err = pkgerrors.ErrNilTransaction
		slog.Error("failed to post entry", "method", "Post", "error", err)
		return decimal.Zero, err
	}
	if entry.Type != models.TypeDeposit && entry.Type != models.TypeWithdrawal {
		err = pkgerrors.ErrInvalidTransactionType
		slog.Error("invalid transaction type", "method", "Post", "type", entry.Type, "error", err)
		return decimal.Zero, err
	}
	if !entry.Valid() {
		err = pkgerrors.ErrInvalidAmount
		slog.Error("amount sign does not match type", "method", "Post", "type", entry.Type, "amount", entry.Amount, "error", err)
		return decimal.Zero, err
	}

	span.SetAttributes(
		attribute.Int64("user_id", entry.UserID),
		attribute.String("amount", entry.Amount.String()),
		attribute.String("type", string(entry.Type)),
		attribute.Bool("allow_negative", allowNegative),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "Post", "error", err)
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { rollback(tx, "Post", err) }()

	current, err := lockBalance(ctx, tx, entry.UserID)
	if err != nil {
		slog.Error("failed to lock balance", "method", "Post", "user_id", entry.UserID, "error", err)
		return decimal.Zero, err
	}

	if !allowNegative && current.Add(entry.Amount).IsNegative() {
		err = pkgerrors.ErrInsufficientFunds
		slog.Warn("insufficient funds", "method", "Post", "user_id", entry.UserID, "balance", current, "amount", entry.Amount)
		return decimal.Zero, err
	}

	balance, err = postEntry(ctx, tx, entry)
	if err != nil {
		slog.Error("failed to post entry", "method", "Post", "user_id", entry.UserID, "error", err)
		return decimal.Zero, err
	}

	if err = tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "Post", "error", err)
		return decimal.Zero, fmt.Errorf("failed to commit transaction: %w", err)
	}

	countEntry(entry)
	slog.Info("ledger entry posted", "method", "Post", "id", entry.ID, "user_id", entry.UserID, "type", entry.Type, "amount", entry.Amount, "balance", balance)
	return balance, nil
}

func (r *PostgresLedgerRepository) GetBalance(ctx context.Context, userID int64) (b *models.Balance, err error) {
	ctx, span, done := instrument(ctx, ledgerTracer, "GetBalance")
	defer func() { done(err) }()
	span.SetAttributes(attribute.Int64("user_id", userID))

	balance := models.Balance{UserID: userID}
	query := `SELECT amount, updated_at FROM balance WHERE user_id = $1`
	err = r.db.QueryRowContext(ctx, query, userID).Scan(&balance.Amount, &balance.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		// Строка баланса создаётся лениво, её отсутствие означает ноль.
		err = nil
		balance.Amount = decimal.Zero
		return &balance, nil
	}
	if err != nil {
		slog.Error("failed to get balance", "method", "GetBalance", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &balance, nil
}

func (r *PostgresLedgerRepository) ListBalances(ctx context.Context, filter models.BalanceFilter) (balances []models.Balance, err error) {
	ctx, _, done := instrument(ctx, ledgerTracer, "ListBalances")
	defer func() { done(err) }()

	query := `
		SELECT b.user_id, b.amount, b.updated_at, ` + userColumnsPrefixed + `
		FROM balance b
		JOIN users u ON u.id = b.user_id
		WHERE ($1 = false OR b.amount < 0)
		  AND ($2::bigint IS NULL OR u.telegram_id = $2)
		ORDER BY b.user_id`
	rows, err := r.db.QueryContext(ctx, query, filter.NegativeOnly, filter.TelegramID)
	if err != nil {
		slog.Error("failed to list balances", "method", "ListBalances", "error", err)
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	balances = []models.Balance{}
	for rows.Next() {
		var b models.Balance
		var u models.User
		dest := append([]any{&b.UserID, &b.Amount, &b.UpdatedAt}, userDest(&u)...)
		if err = rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		b.User = &u
		balances = append(balances, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}
	return balances, nil
}

func (r *PostgresLedgerRepository) ListTransactions(ctx context.Context, userID int64) (txs []models.Transaction, err error) {
	ctx, span, done := instrument(ctx, ledgerTracer, "ListTransactions")
	defer func() { done(err) }()
	span.SetAttributes(attribute.Int64("user_id", userID))

	query := `SELECT id, user_id, amount, type, created_at FROM transactions WHERE user_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Error("failed to list transactions", "method", "ListTransactions", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs = []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err = rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}
