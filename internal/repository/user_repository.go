package repository

import (
	"context"

	"github.com/honeynil/GymLedgerService/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	Update(ctx context.Context, telegramID int64, upd models.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}
