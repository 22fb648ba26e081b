package repository_test

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/honeynil/GymLedgerService/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectLockBalance(mock sqlmock.Sqlmock, userID int64, amount string) {
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO balance (user_id, amount) VALUES ($1, 0) ON CONFLICT (user_id) DO NOTHING`)).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT amount FROM balance WHERE user_id = $1 FOR UPDATE`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(amount))
}

func expectPostEntry(mock sqlmock.Sqlmock, userID int64, amount decimal.Decimal, typ models.TransactionType, balance string) {
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transactions (user_id, amount, type) VALUES ($1, $2, $3) RETURNING id, created_at`)).
		WithArgs(userID, amount, typ).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(10), fixedTime))
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE balance SET amount = amount + $1, updated_at = now() WHERE user_id = $2 RETURNING amount`)).
		WithArgs(amount, userID).
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(balance))
}

var userCols = []string{
	"id", "telegram_id", "first_name", "last_name", "telegram_nickname",
	"phone", "email", "role", "status", "gender", "birth", "created_at",
}

func userRow(rows *sqlmock.Rows, id, telegramID int64, firstName string) *sqlmock.Rows {
	return rows.AddRow(id, telegramID, firstName, "", "", "", "", models.RoleCustomer, "", "", nil, fixedTime)
}
