package repository_test

import (
	"context"
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

var orderCols = []string{"number", "user_id", "amount", "status", "created_at"}

func TestPostgresOrderRepository_Create(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta(`INSERT INTO orders (user_id, amount, status) VALUES ($1, $2, $3)`)

	t.Run("Success", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresOrderRepository(db)
		mock.ExpectQuery(query).
			WithArgs(int64(1), decimal.NewFromInt(300), models.OrderNew).
			WillReturnRows(sqlmock.NewRows([]string{"number", "status", "created_at"}).AddRow(int64(7), "NEW", fixedTime))

		order := &models.Order{UserID: 1, Amount: decimal.NewFromInt(300)}
		require.NoError(t, repo.Create(ctx, order))
		assert.Equal(t, int64(7), order.Number)
		assert.Equal(t, models.OrderNew, order.Status)
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		db, _ := newMock(t)
		repo := repository.NewPostgresOrderRepository(db)
		err := repo.Create(ctx, &models.Order{UserID: 1})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidAmount)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresOrderRepository(db)
		mock.ExpectQuery(query).WillReturnError(&pq.Error{Code: "23503"})

		err := repo.Create(ctx, &models.Order{UserID: 9, Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
	})
}

func TestPostgresOrderRepository_MarkPending(t *testing.T) {
	ctx := context.Background()
	update := regexp.QuoteMeta(`UPDATE orders SET status = $1 WHERE number = $2 AND status IN ($3, $1)`)

	t.Run("FromNew", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresOrderRepository(db)
		mock.ExpectQuery(update).
			WithArgs(models.OrderPending, int64(7), models.OrderNew).
			WillReturnRows(sqlmock.NewRows(orderCols).AddRow(int64(7), int64(1), "300", "PENDING", fixedTime))

		order, err := repo.MarkPending(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, models.OrderPending, order.Status)
	})

	t.Run("AlreadyComplete", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresOrderRepository(db)
		mock.ExpectQuery(update).WillReturnRows(sqlmock.NewRows(orderCols))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE number = $1`)).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(orderCols).AddRow(int64(7), int64(1), "300", "COMPLETE", fixedTime))

		_, err := repo.MarkPending(ctx, 7)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidOrderStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresOrderRepository(db)
		mock.ExpectQuery(update).WillReturnRows(sqlmock.NewRows(orderCols))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE number = $1`)).WillReturnRows(sqlmock.NewRows(orderCols))

		_, err := repo.MarkPending(ctx, 7)
		assert.ErrorIs(t, err, pkgerrors.ErrOrderNotFound)
	})
}

func TestPostgresOrderRepository_Complete(t *testing.T) {
	ctx := context.Background()
	update := regexp.QuoteMeta(`UPDATE orders SET status = $1 WHERE number = $2 AND status <> $1`)
	exists := regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM orders WHERE number = $1)`)

	t.Run("CreditsOwner", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresOrderRepository(db)
		mock.ExpectBegin()
		mock.ExpectQuery(update).
			WithArgs(models.OrderComplete, int64(7)).
			WillReturnRows(sqlmock.NewRows(orderCols).AddRow(int64(7), int64(1), "300", "COMPLETE", fixedTime))
		expectLockBalance(mock, 1, "0")
		expectPostEntry(mock, 1, decimal.NewFromInt(300), models.TypeDeposit, "300")
		mock.ExpectCommit()

		c, err := repo.Complete(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, models.OrderComplete, c.Order.Status)
		assert.Equal(t, models.TypeDeposit, c.Entry.Type)
		assert.Equal(t, "300", c.Balance.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SecondDeliveryIsRejected", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresOrderRepository(db)
		mock.ExpectBegin()
		mock.ExpectQuery(update).WithArgs(models.OrderComplete, int64(7)).WillReturnRows(sqlmock.NewRows(orderCols))
		mock.ExpectQuery(exists).WithArgs(int64(7)).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := repo.Complete(ctx, 7)
		assert.ErrorIs(t, err, pkgerrors.ErrOrderAlreadyCompleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownOrder", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresOrderRepository(db)
		mock.ExpectBegin()
		mock.ExpectQuery(update).WillReturnRows(sqlmock.NewRows(orderCols))
		mock.ExpectQuery(exists).WithArgs(int64(8)).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectRollback()

		_, err := repo.Complete(ctx, 8)
		assert.ErrorIs(t, err, pkgerrors.ErrOrderNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
