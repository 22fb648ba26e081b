package service

import (
	"context"
	"fmt"

	"github.com/honeynil/GymLedgerService/internal/models"
	"github.com/honeynil/GymLedgerService/internal/repository"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
)

type TrainerService interface {
	List(ctx context.Context) ([]models.Trainer, error)
	Create(ctx context.Context, trainer *models.Trainer) error
	Update(ctx context.Context, userID int64, upd models.TrainerUpdate) (*models.Trainer, error)
	Delete(ctx context.Context, userID int64) error
	ListForUser(ctx context.Context, telegramID int64) ([]models.UserTrainer, error)
	Assign(ctx context.Context, telegramID, trainerID int64) (*models.UserTrainer, error)
}

type trainerService struct {
	userRepo    repository.UserRepository
	trainerRepo repository.TrainerRepository
}

func NewTrainerService(userRepo repository.UserRepository, trainerRepo repository.TrainerRepository) *trainerService {
	return &trainerService{userRepo: userRepo, trainerRepo: trainerRepo}
}

func (s *trainerService) List(ctx context.Context) ([]models.Trainer, error) {
	return s.trainerRepo.List(ctx)
}

func (s *trainerService) Create(ctx context.Context, trainer *models.Trainer) error {
	if trainer == nil || trainer.UserID <= 0 || trainer.FirstName == "" || trainer.LastName == "" || trainer.Phone == "" {
		return fmt.Errorf("%w: user_id, first_name, last_name and phone are required", pkgerrors.ErrInvalidInput)
	}
	return s.trainerRepo.Create(ctx, trainer)
}

func (s *trainerService) Update(ctx context.Context, userID int64, upd models.TrainerUpdate) (*models.Trainer, error) {
	if upd.FirstName == nil && upd.LastName == nil && upd.Phone == nil {
		return nil, fmt.Errorf("%w: nothing to update", pkgerrors.ErrInvalidInput)
	}
	return s.trainerRepo.Update(ctx, userID, upd)
}

func (s *trainerService) Delete(ctx context.Context, userID int64) error {
	return s.trainerRepo.Delete(ctx, userID)
}

func (s *trainerService) ListForUser(ctx context.Context, telegramID int64) ([]models.UserTrainer, error) {
	user, err := resolveUser(ctx, s.userRepo, telegramID)
	if err != nil {
		return nil, err
	}
	return s.trainerRepo.ListByUser(ctx, user.ID)
}

func (s *trainerService) Assign(ctx context.Context, telegramID, trainerID int64) (*models.UserTrainer, error) {
	if trainerID <= 0 {
		return nil, fmt.Errorf("%w: trainers_id is required", pkgerrors.ErrInvalidInput)
	}
	user, err := resolveUser(ctx, s.userRepo, telegramID)
	if err != nil {
		return nil, err
	}
	return s.trainerRepo.Assign(ctx, user.ID, trainerID)
}
