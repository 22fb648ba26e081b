package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const NotificationBalanceCredited = "balance_credited"

// Notification is an outbound message to a user, carried over Kafka.
type Notification struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	TelegramID int64           `json:"telegram_id"`
	Amount     decimal.Decimal `json:"amount"`
	Balance    decimal.Decimal `json:"balance"`
	Message    string          `json:"message"`
	CreatedAt  time.Time       `json:"created_at"`
}
