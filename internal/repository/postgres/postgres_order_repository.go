package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/GymLedgerService/internal/models"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const orderTracer = "order-repository"

const orderColumns = `number, user_id, amount, status, created_at`

func orderDest(o *models.Order) []any {
	return []any{&o.Number, &o.UserID, &o.Amount, &o.Status, &o.CreatedAt}
}

type PostgresOrderRepository struct {
	db *sql.DB
}

func NewPostgresOrderRepository(db *sql.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

func (r *PostgresOrderRepository) Create(ctx context.Context, order *models.Order) (err error) {
	ctx, _, done := instrument(ctx, orderTracer, "CreateOrder")
	defer func() { done(err) }()

	if order == nil {
		err = fmt.Errorf("%w: order is nil", pkgerrors.ErrInvalidInput)
		return err
	}
	if !order.Amount.IsPositive() {
		err = pkgerrors.ErrInvalidAmount
		return err
	}

	query := `INSERT INTO orders (user_id, amount, status) VALUES ($1, $2, $3) RETURNING number, status, created_at`
	err = r.db.QueryRowContext(ctx, query, order.UserID, order.Amount, models.OrderNew).
		Scan(&order.Number, &order.Status, &order.CreatedAt)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			err = pkgerrors.ErrUserNotFound
			return err
		}
		slog.Error("failed to create order", "method", "Create", "user_id", order.UserID, "error", err)
		return fmt.Errorf("failed to create order: %w", err)
	}
	slog.Info("order created", "method", "Create", "number", order.Number, "user_id", order.UserID, "amount", order.Amount)
	return nil
}

func (r *PostgresOrderRepository) GetByNumber(ctx context.Context, number int64) (order *models.Order, err error) {
	ctx, _, done := instrument(ctx, orderTracer, "GetOrderByNumber")
	defer func() { done(err) }()

	var o models.Order
	err = r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE number = $1`, number).Scan(orderDest(&o)...)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrOrderNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to get order", "method", "GetByNumber", "number", number, "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &o, nil
}

func (r *PostgresOrderRepository) ListByUser(ctx context.Context, userID int64) (orders []models.Order, err error) {
	ctx, _, done := instrument(ctx, orderTracer, "ListOrders")
	defer func() { done(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, number DESC`, userID)
	if err != nil {
		slog.Error("failed to list orders", "method", "ListByUser", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders = []models.Order{}
	for rows.Next() {
		var o models.Order
		if err = rows.Scan(orderDest(&o)...); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

func (r *PostgresOrderRepository) MarkPending(ctx context.Context, number int64) (order *models.Order, err error) {
	ctx, _, done := instrument(ctx, orderTracer, "MarkOrderPending")
	defer func() { done(err) }()

	query := `
		UPDATE orders SET status = $1
		WHERE number = $2 AND status IN ($3, $1)
		RETURNING ` + orderColumns
	var o models.Order
	err = r.db.QueryRowContext(ctx, query, models.OrderPending, number, models.OrderNew).Scan(orderDest(&o)...)
	if stderrors.Is(err, sql.ErrNoRows) {
		// Либо заказа нет, либо он уже оплачен.
		if _, err = r.GetByNumber(ctx, number); err != nil {
			return nil, err
		}
		err = pkgerrors.ErrInvalidOrderStatus
		return nil, err
	}
	if err != nil {
		slog.Error("failed to mark order pending", "method", "MarkPending", "number", number, "error", err)
		return nil, fmt.Errorf("failed to mark order pending: %w", err)
	}
	return &o, nil
}

// Complete performs the single allowed transition to COMPLETE and credits the
// order amount to its owner in the same transaction.
func (r *PostgresOrderRepository) Complete(ctx context.Context, number int64) (c *models.OrderCompletion, err error) {
	ctx, span, done := instrument(ctx, orderTracer, "CompleteOrder")
	defer func() { done(err) }()
	span.SetAttributes(attribute.Int64("order_number", number))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { rollback(tx, "Complete", err) }()

	query := `
		UPDATE orders SET status = $1
		WHERE number = $2 AND status <> $1
		RETURNING ` + orderColumns
	c = &models.OrderCompletion{}
	err = tx.QueryRowContext(ctx, query, models.OrderComplete, number).Scan(orderDest(&c.Order)...)
	if stderrors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE number = $1)`, number).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check order: %w", err)
		}
		err = pkgerrors.ErrOrderNotFound
		if exists {
			err = pkgerrors.ErrOrderAlreadyCompleted
		}
		return nil, err
	}
	if err != nil {
		slog.Error("failed to complete order", "method", "Complete", "number", number, "error", err)
		return nil, fmt.Errorf("failed to complete order: %w", err)
	}

	if _, err = lockBalance(ctx, tx, c.Order.UserID); err != nil {
		return nil, err
	}
	entry := models.NewDeposit(c.Order.UserID, c.Order.Amount)
	if c.Balance, err = postEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	c.Entry = *entry

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	countEntry(entry)
	slog.Info("order completed", "method", "Complete", "number", number, "user_id", c.Order.UserID, "amount", c.Order.Amount, "balance", c.Balance)
	return c, nil
}
