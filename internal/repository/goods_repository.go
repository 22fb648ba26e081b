package repository

import (
	"context"

	"github.com/honeynil/GymLedgerService/internal/models"
)

type GoodsRepository interface {
	List(ctx context.Context) ([]models.Good, error)
	GetByID(ctx context.Context, id int64) (*models.Good, error)
	Create(ctx context.Context, good *models.Good) error
	Update(ctx context.Context, id int64, upd models.GoodUpdate) (*models.Good, error)
	Delete(ctx context.Context, id int64) error
	// Purchase checks stock and balance, debits price*quantity and records
	// ownership atomically.
	Purchase(ctx context.Context, params models.PurchaseParams) (*models.Purchase, error)
	ListPurchases(ctx context.Context, userID int64) ([]models.Purchase, error)
}
