package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Good is a one-off product. A nil Stock means the quantity is not tracked.
type Good struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Type        string          `json:"type"`
	Stock       *int            `json:"stock,omitempty"`
	Deleted     bool            `json:"deleted"`
}

type GoodUpdate struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Type        *string          `json:"type"`
	Stock       *int             `json:"stock"`
	Deleted     *bool            `json:"deleted"`
}

type PurchaseParams struct {
	UserID   int64
	GoodsID  int64
	Quantity int
}

// Purchase records ownership of goods bought from the balance.
type Purchase struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	GoodsID   int64           `json:"goods_id"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	Good      *Good           `json:"goods,omitempty"`
}
