package repository

import (
	"context"

	"github.com/honeynil/GymLedgerService/internal/models"
	"github.com/shopspring/decimal"
)

// LedgerRepository owns balances and the append-only transaction log.
type LedgerRepository interface {
	// Post appends entry and applies its signed amount to the user's balance
	// in one atomic unit, creating the balance row when absent. A debit that
	// would leave the balance negative fails unless allowNegative is set.
	Post(ctx context.Context, entry *models.Transaction, allowNegative bool) (decimal.Decimal, error)
	GetBalance(ctx context.Context, userID int64) (*models.Balance, error)
	ListBalances(ctx context.Context, filter models.BalanceFilter) ([]models.Balance, error)
	ListTransactions(ctx context.Context, userID int64) ([]models.Transaction, error)
}
