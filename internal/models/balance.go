package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the current wallet amount of a user. A missing row reads as zero.
type Balance struct {
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
	User      *User           `json:"users,omitempty"`
}

type BalanceFilter struct {
	NegativeOnly bool
	TelegramID   *int64
}
