package repository

import (
	"context"

	"github.com/honeynil/GymLedgerService/internal/models"
)

type TrainerRepository interface {
	List(ctx context.Context) ([]models.Trainer, error)
	Create(ctx context.Context, trainer *models.Trainer) error
	Update(ctx context.Context, userID int64, upd models.TrainerUpdate) (*models.Trainer, error)
	Delete(ctx context.Context, userID int64) error
	ListByUser(ctx context.Context, userID int64) ([]models.UserTrainer, error)
	Assign(ctx context.Context, userID, trainerID int64) (*models.UserTrainer, error)
}
