package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/GymLedgerService/internal/infrastructure/observability"
	"github.com/honeynil/GymLedgerService/internal/models"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// instrument starts a span and returns a finisher that records the call
// outcome in the repository metrics.
func instrument(ctx context.Context, tracerName, method string) (context.Context, trace.Span, func(error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, method)
	start := time.Now()
	return ctx, span, func(err error) {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues(method, status).Inc()
		observability.RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		span.End()
	}
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// rollback is deferred by every write path; it only acts when err is set.
func rollback(tx *sql.Tx, method string, err error) {
	if err == nil {
		return
	}
	if rbErr := tx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
		slog.Error("rollback failed", "method", method, "error", rbErr, "original_error", err)
	}
}

// lockBalance creates the balance row when absent and locks it until the
// surrounding transaction ends. Every mutation of a user's money goes through
// this lock, so concurrent workflows for one user are serialised here.
func lockBalance(ctx context.Context, tx *sql.Tx, userID int64) (decimal.Decimal, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO balance (user_id, amount) VALUES ($1, 0) ON CONFLICT (user_id) DO NOTHING`,
		userID)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return decimal.Zero, pkgerrors.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to ensure balance row: %w", err)
	}

	var amount decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`SELECT amount FROM balance WHERE user_id = $1 FOR UPDATE`,
		userID).Scan(&amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to lock balance: %w", err)
	}
	return amount, nil
}

// postEntry appends entry to the transaction log and applies its signed
// amount to the (already locked) balance row.
func postEntry(ctx context.Context, tx *sql.Tx, entry *models.Transaction) (decimal.Decimal, error) {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO transactions (user_id, amount, type) VALUES ($1, $2, $3) RETURNING id, created_at`,
		entry.UserID, entry.Amount, entry.Type).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to insert transaction: %w", err)
	}

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`UPDATE balance SET amount = amount + $1, updated_at = now() WHERE user_id = $2 RETURNING amount`,
		entry.Amount, entry.UserID).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}
	return balance, nil
}

func countEntry(entry *models.Transaction) {
	observability.LedgerEntries.WithLabelValues(string(entry.Type)).Inc()
}
