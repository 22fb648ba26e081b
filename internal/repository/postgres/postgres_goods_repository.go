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

const goodsTracer = "goods-repository"

const goodsColumns = `id, name, description, price, type, stock, deleted`

func goodDest(g *models.Good) []any {
	return []any{&g.ID, &g.Name, &g.Description, &g.Price, &g.Type, &g.Stock, &g.Deleted}
}

type PostgresGoodsRepository struct {
	db *sql.DB
}

func NewPostgresGoodsRepository(db *sql.DB) *PostgresGoodsRepository {
	return &PostgresGoodsRepository{db: db}
}

func (r *PostgresGoodsRepository) List(ctx context.Context) (goods []models.Good, err error) {
	ctx, _, done := instrument(ctx, goodsTracer, "ListGoods")
	defer func() { done(err) }()

	query := `SELECT ` + goodsColumns + ` FROM goods WHERE deleted = false ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error("failed to list goods", "method", "List", "error", err)
		return nil, fmt.Errorf("failed to list goods: %w", err)
	}
	defer rows.Close()

	goods = []models.Good{}
	for rows.Next() {
		var g models.Good
		if err = rows.Scan(goodDest(&g)...); err != nil {
			return nil, fmt.Errorf("failed to scan goods: %w", err)
		}
		goods = append(goods, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate goods: %w", err)
	}
	return goods, nil
}

func (r *PostgresGoodsRepository) GetByID(ctx context.Context, id int64) (good *models.Good, err error) {
	ctx, span, done := instrument(ctx, goodsTracer, "GetGoodByID")
	defer func() { done(err) }()
	span.SetAttributes(attribute.Int64("goods_id", id))

	var g models.Good
	query := `SELECT ` + goodsColumns + ` FROM goods WHERE id = $1 AND deleted = false`
	err = r.db.QueryRowContext(ctx, query, id).Scan(goodDest(&g)...)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrProductNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to get goods", "method", "GetByID", "goods_id", id, "error", err)
		return nil, fmt.Errorf("failed to get goods by id: %w", err)
	}
	return &g, nil
}

func (r *PostgresGoodsRepository) Create(ctx context.Context, good *models.Good) (err error) {
	ctx, _, done := instrument(ctx, goodsTracer, "CreateGood")
	defer func() { done(err) }()

	if good == nil || good.Name == "" {
		err = fmt.Errorf("%w: name is required", pkgerrors.ErrInvalidInput)
		return err
	}
	if good.Price.IsNegative() {
		err = pkgerrors.ErrInvalidAmount
		return err
	}

	query := `
		INSERT INTO goods (name, description, price, type, stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err = r.db.QueryRowContext(ctx, query, good.Name, good.Description, good.Price, good.Type, good.Stock).Scan(&good.ID)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			err = pkgerrors.ErrConflict
			return err
		}
		slog.Error("failed to create goods", "method", "Create", "name", good.Name, "error", err)
		return fmt.Errorf("failed to create goods: %w", err)
	}
	slog.Info("goods created", "method", "Create", "goods_id", good.ID)
	return nil
}

func (r *PostgresGoodsRepository) Update(ctx context.Context, id int64, upd models.GoodUpdate) (good *models.Good, err error) {
	ctx, _, done := instrument(ctx, goodsTracer, "UpdateGood")
	defer func() { done(err) }()

	if upd.Price != nil && upd.Price.IsNegative() {
		err = pkgerrors.ErrInvalidAmount
		return nil, err
	}

	query := `
		UPDATE goods SET
			name = COALESCE($1, name),
			description = COALESCE($2, description),
			price = COALESCE($3, price),
			type = COALESCE($4, type),
			stock = COALESCE($5, stock),
			deleted = COALESCE($6, deleted)
		WHERE id = $7
		RETURNING ` + goodsColumns
	var price any
	if upd.Price != nil {
		price = *upd.Price
	}
	var g models.Good
	err = r.db.QueryRowContext(ctx, query,
		upd.Name, upd.Description, price, upd.Type, upd.Stock, upd.Deleted, id,
	).Scan(goodDest(&g)...)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrProductNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to update goods", "method", "Update", "goods_id", id, "error", err)
		return nil, fmt.Errorf("failed to update goods: %w", err)
	}
	return &g, nil
}

func (r *PostgresGoodsRepository) Delete(ctx context.Context, id int64) (err error) {
	ctx, _, done := instrument(ctx, goodsTracer, "DeleteGood")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM goods WHERE id = $1`, id)
	if err != nil {
		// Товар уже покупали, удалить нельзя.
		if pqCode(err) == pqForeignKeyViolation {
			err = pkgerrors.ErrConflict
			return err
		}
		slog.Error("failed to delete goods", "method", "Delete", "goods_id", id, "error", err)
		return fmt.Errorf("failed to delete goods: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete goods: %w", err)
	}
	if n == 0 {
		err = pkgerrors.ErrProductNotFound
		return err
	}
	return nil
}

// Purchase locks the buyer's balance and the goods row, then debits
// price*quantity, decrements tracked stock and records ownership.
func (r *PostgresGoodsRepository) Purchase(ctx context.Context, params models.PurchaseParams) (p *models.Purchase, err error) {
	ctx, span, done := instrument(ctx, goodsTracer, "PurchaseGood")
	defer func() { done(err) }()

	if params.Quantity <= 0 {
		err = fmt.Errorf("%w: quantity must be positive", pkgerrors.ErrInvalidInput)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("user_id", params.UserID),
		attribute.Int64("goods_id", params.GoodsID),
		attribute.Int("quantity", params.Quantity),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { rollback(tx, "Purchase", err) }()

	current, err := lockBalance(ctx, tx, params.UserID)
	if err != nil {
		slog.Error("failed to lock balance", "method", "Purchase", "user_id", params.UserID, "error", err)
		return nil, err
	}

	var g models.Good
	query := `SELECT ` + goodsColumns + ` FROM goods WHERE id = $1 AND deleted = false FOR UPDATE`
	err = tx.QueryRowContext(ctx, query, params.GoodsID).Scan(goodDest(&g)...)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			err = pkgerrors.ErrProductNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock goods: %w", err)
	}

	if g.Stock != nil && *g.Stock < params.Quantity {
		err = pkgerrors.ErrOutOfStock
		slog.Warn("out of stock", "method", "Purchase", "goods_id", g.ID, "stock", *g.Stock, "quantity", params.Quantity)
		return nil, err
	}

	total := g.Price.Mul(decimal.NewFromInt(int64(params.Quantity)))
	if current.LessThan(total) {
		err = pkgerrors.ErrInsufficientFunds
		slog.Warn("insufficient funds", "method", "Purchase", "user_id", params.UserID, "balance", current, "amount", total)
		return nil, err
	}

	balance := current
	var entry *models.Transaction
	if total.IsPositive() {
		entry = models.NewWithdrawal(params.UserID, total)
		if balance, err = postEntry(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	if g.Stock != nil {
		_, err = tx.ExecContext(ctx, `UPDATE goods SET stock = stock - $1 WHERE id = $2`, params.Quantity, g.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to decrement stock: %w", err)
		}
		left := *g.Stock - params.Quantity
		g.Stock = &left
	}

	p = &models.Purchase{
		UserID:   params.UserID,
		GoodsID:  g.ID,
		Quantity: params.Quantity,
		Amount:   total,
		Balance:  balance,
		Good:     &g,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO user_purchases (user_id, goods_id, quantity, amount) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		p.UserID, p.GoodsID, p.Quantity, p.Amount,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if entry != nil {
		countEntry(entry)
	}
	slog.Info("goods purchased", "method", "Purchase", "user_id", p.UserID, "goods_id", p.GoodsID, "quantity", p.Quantity, "amount", p.Amount)
	return p, nil
}

func (r *PostgresGoodsRepository) ListPurchases(ctx context.Context, userID int64) (purchases []models.Purchase, err error) {
	ctx, _, done := instrument(ctx, goodsTracer, "ListPurchases")
	defer func() { done(err) }()

	query := `
		SELECT p.id, p.user_id, p.goods_id, p.quantity, p.amount, p.created_at,
			g.id, g.name, g.description, g.price, g.type, g.stock, g.deleted
		FROM user_purchases p
		JOIN goods g ON g.id = p.goods_id
		WHERE p.user_id = $1
		ORDER BY p.created_at, p.id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Error("failed to list purchases", "method", "ListPurchases", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	purchases = []models.Purchase{}
	for rows.Next() {
		var p models.Purchase
		var g models.Good
		dest := append([]any{&p.ID, &p.UserID, &p.GoodsID, &p.Quantity, &p.Amount, &p.CreatedAt}, goodDest(&g)...)
		if err = rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		p.Good = &g
		purchases = append(purchases, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate purchases: %w", err)
	}
	return purchases, nil
}
