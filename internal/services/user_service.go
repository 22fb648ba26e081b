package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/honeynil/GymLedgerService/internal/models"
	"github.com/honeynil/GymLedgerService/internal/repository"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
)

type UserService interface {
	Register(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	Update(ctx context.Context, telegramID int64, upd models.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *userService {
	return &userService{userRepo: userRepo}
}

// Register creates the user with role CUSTOMER and a zero balance.
func (s *userService) Register(ctx context.Context, user *models.User) error {
	ctx, span := startSpan(ctx, "RegisterUser")
	defer span.End()

	if user == nil {
		return fail(span, pkgerrors.ErrNilUser, "nil user")
	}
	if user.TelegramID == 0 || user.FirstName == "" {
		return fail(span, fmt.Errorf("%w: telegram_id and first_name are required", pkgerrors.ErrInvalidInput), "invalid input")
	}
	user.Role = models.RoleCustomer
	if err := s.userRepo.Create(ctx, user); err != nil {
		return fail(span, err, "user creation failed")
	}
	slog.Info("user registered", "user_id", user.ID, "telegram_id", user.TelegramID)
	return nil
}

func (s *userService) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	return s.userRepo.List(ctx, filter)
}

func (s *userService) Update(ctx context.Context, telegramID int64, upd models.UserUpdate) (*models.User, error) {
	return s.userRepo.Update(ctx, telegramID, upd)
}

func (s *userService) Delete(ctx context.Context, id int64) error {
	ctx, span := startSpan(ctx, "DeleteUser")
	defer span.End()

	if err := s.userRepo.Delete(ctx, id); err != nil {
		return fail(span, err, "user deletion failed")
	}
	slog.Info("user deleted", "user_id", id)
	return nil
}
