package repository

import (
	"context"

	"github.com/honeynil/GymLedgerService/internal/models"
)

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByNumber(ctx context.Context, number int64) (*models.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Order, error)
	// MarkPending moves a NEW or PENDING order to PENDING.
	MarkPending(ctx context.Context, number int64) (*models.Order, error)
	// Complete moves the order to COMPLETE only if it is not COMPLETE yet and
	// credits the owner in the same transaction. A second call returns
	// ErrOrderAlreadyCompleted.
	Complete(ctx context.Context, number int64) (*models.OrderCompletion, error)
}
