package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderNew      OrderStatus = "NEW"
	OrderPending  OrderStatus = "PENDING"
	OrderComplete OrderStatus = "COMPLETE"
)

// Order moves NEW -> PENDING -> COMPLETE. COMPLETE is terminal.
type Order struct {
	Number    int64           `json:"number"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// OrderCompletion is the result of the atomic COMPLETE transition plus balance credit.
type OrderCompletion struct {
	Order   Order
	Entry   Transaction
	Balance decimal.Decimal
}

const PaymentConfirmed = "CONFIRMED"

// PaymentNotification is the payload delivered by the payment provider.
type PaymentNotification struct {
	OrderNumber int64
	Status      string
}

type PaymentInit struct {
	OrderNumber int64
	Amount      decimal.Decimal
	CustomerKey string
	TelegramID  int64
}

type PaymentSession struct {
	Success    bool   `json:"Success"`
	ErrorCode  string `json:"ErrorCode"`
	Message    string `json:"Message,omitempty"`
	PaymentID  string `json:"PaymentId,omitempty"`
	PaymentURL string `json:"PaymentURL,omitempty"`
	Status     string `json:"Status,omitempty"`
	OrderID    string `json:"OrderId,omitempty"`
}
