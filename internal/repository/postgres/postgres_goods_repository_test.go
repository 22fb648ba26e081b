package repository_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/honeynil/GymLedgerService/internal/models"
	repository "github.com/honeynil/GymLedgerService/internal/repository/postgres"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var goodsCols = []string{"id", "name", "description", "price", "type", "stock", "deleted"}

func TestPostgresGoodsRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta(`FROM goods WHERE id = $1 AND deleted = false`)

	t.Run("Success", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresGoodsRepository(db)
		mock.ExpectQuery(query).WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(goodsCols).AddRow(int64(5), "Towel", "", "150", "merch", nil, false))

		g, err := repo.GetByID(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, "Towel", g.Name)
		assert.Nil(t, g.Stock)
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresGoodsRepository(db)
		mock.ExpectQuery(query).WithArgs(int64(6)).WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(ctx, 6)
		assert.ErrorIs(t, err, pkgerrors.ErrProductNotFound)
	})
}

func TestPostgresGoodsRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresGoodsRepository(db)
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO goods (name, description, price, type, stock)`)).
			WithArgs("Towel", "", decimal.NewFromInt(150), "merch", nil).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

		g := &models.Good{Name: "Towel", Price: decimal.NewFromInt(150), Type: "merch"}
		require.NoError(t, repo.Create(ctx, g))
		assert.Equal(t, int64(5), g.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NegativePrice", func(t *testing.T) {
		db, _ := newMock(t)
		repo := repository.NewPostgresGoodsRepository(db)
		err := repo.Create(ctx, &models.Good{Name: "Towel", Price: decimal.NewFromInt(-1)})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidAmount)
	})
}

func TestPostgresGoodsRepository_Delete(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta(`DELETE FROM goods WHERE id = $1`)

	t.Run("Success", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresGoodsRepository(db)
		mock.ExpectExec(query).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.Delete(ctx, 5))
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresGoodsRepository(db)
		mock.ExpectExec(query).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.Delete(ctx, 5), pkgerrors.ErrProductNotFound)
	})

	t.Run("AlreadyPurchased", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresGoodsRepository(db)
		mock.ExpectExec(query).WithArgs(int64(5)).WillReturnError(&pq.Error{Code: "23503"})
		assert.ErrorIs(t, repo.Delete(ctx, 5), pkgerrors.ErrConflict)
	})
}

func TestPostgresGoodsRepository_Purchase(t *testing.T) {
	ctx := context.Background()
	lockGoods := regexp.QuoteMeta(`FROM goods WHERE id = $1 AND deleted = false FOR UPDATE`)
	params := models.PurchaseParams{UserID: 1, GoodsID: 5, Quantity: 2}

	t.Run("Success", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresGoodsRepository(db)
		mock.ExpectBegin()
		expectLockBalance(mock, 1, "1000")
		mock.ExpectQuery(lockGoods).WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(goodsCols).AddRow(int64(5), "Towel", "", "150", "merch", int64(3), false))
		expectPostEntry(mock, 1, decimal.NewFromInt(-300), models.TypeWithdrawal, "700")
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE goods SET stock = stock - $1 WHERE id = $2`)).
			WithArgs(2, int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO user_purchases (user_id, goods_id, quantity, amount)`)).
			WithArgs(int64(1), int64(5), 2, decimal.NewFromInt(300)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), fixedTime))
		mock.ExpectCommit()

		p, err := repo.Purchase(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, int64(42), p.ID)
		assert.Equal(t, "300", p.Amount.String())
		assert.Equal(t, "700", p.Balance.String())
		require.NotNil(t, p.Good.Stock)
		assert.Equal(t, 1, *p.Good.Stock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("OutOfStock", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresGoodsRepository(db)
		mock.ExpectBegin()
		expectLockBalance(mock, 1, "1000")
		mock.ExpectQuery(lockGoods).WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(goodsCols).AddRow(int64(5), "Towel", "", "150", "merch", int64(1), false))
		mock.ExpectRollback()

		_, err := repo.Purchase(ctx, params)
		assert.ErrorIs(t, err, pkgerrors.ErrOutOfStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresGoodsRepository(db)
		mock.ExpectBegin()
		expectLockBalance(mock, 1, "200")
		mock.ExpectQuery(lockGoods).WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(goodsCols).AddRow(int64(5), "Towel", "", "150", "merch", nil, false))
		mock.ExpectRollback()

		_, err := repo.Purchase(ctx, params)
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ProductNotFound", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresGoodsRepository(db)
		mock.ExpectBegin()
		expectLockBalance(mock, 1, "200")
		mock.ExpectQuery(lockGoods).WithArgs(int64(5)).WillReturnRows(sqlmock.NewRows(goodsCols))
		mock.ExpectRollback()

		_, err := repo.Purchase(ctx, params)
		assert.ErrorIs(t, err, pkgerrors.ErrProductNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InvalidQuantity", func(t *testing.T) {
		db, _ := newMock(t)
		repo := repository.NewPostgresGoodsRepository(db)
		_, err := repo.Purchase(ctx, models.PurchaseParams{UserID: 1, GoodsID: 5})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})
}

func TestPostgresGoodsRepository_ListPurchases(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewPostgresGoodsRepository(db)

	cols := append([]string{"id", "user_id", "goods_id", "quantity", "amount", "created_at"}, goodsCols...)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM user_purchases p JOIN goods g ON g.id = p.goods_id WHERE p.user_id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(42), int64(1), int64(5), int64(2), "300", fixedTime, int64(5), "Towel", "", "150", "merch", nil, false))

	purchases, err := repo.ListPurchases(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, "Towel", purchases[0].Good.Name)
	assert.Equal(t, 2, purchases[0].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}
