package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an immutable ledger entry. Amount is signed:
// deposits are positive, withdrawals negative.
type Transaction struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      TransactionType `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
}

type TransactionType string

const (
	TypeDeposit    TransactionType = "DEP"
	TypeWithdrawal TransactionType = "WITH"
)

// NewDeposit builds a credit entry for a positive amount.
func NewDeposit(userID int64, amount decimal.Decimal) *Transaction {
	return &Transaction{UserID: userID, Amount: amount.Abs(), Type: TypeDeposit}
}

// NewWithdrawal builds a debit entry for a positive amount.
func NewWithdrawal(userID int64, amount decimal.Decimal) *Transaction {
	return &Transaction{UserID: userID, Amount: amount.Abs().Neg(), Type: TypeWithdrawal}
}

// Valid reports whether the sign of Amount agrees with Type.
func (t *Transaction) Valid() bool {
	switch t.Type {
	case TypeDeposit:
		return t.Amount.IsPositive()
	case TypeWithdrawal:
		return t.Amount.IsNegative()
	}
	return false
}
