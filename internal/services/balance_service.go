package service

import (
	"context"
	"log/slog"

	"github.com/honeynil/GymLedgerService/internal/models"
	"github.com/honeynil/GymLedgerService/internal/repository"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

type BalanceService interface {
	Credit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
	Debit(ctx context.Context, userID int64, amount decimal.Decimal, allowNegative bool) (decimal.Decimal, error)
	TopUp(ctx context.Context, telegramID int64, amount decimal.Decimal) (*models.Balance, error)
	ChargeOff(ctx context.Context, telegramID int64, amount decimal.Decimal, allowNegative bool) (*models.Balance, error)
	GetBalance(ctx context.Context, telegramID int64) (*models.Balance, error)
	ListBalances(ctx context.Context, filter models.BalanceFilter) ([]models.Balance, error)
	ListTransactions(ctx context.Context, telegramID int64) ([]models.Transaction, error)
}

type balanceService struct {
	userRepo   repository.UserRepository
	ledgerRepo repository.LedgerRepository
}

func NewBalanceService(userRepo repository.UserRepository, ledgerRepo repository.LedgerRepository) *balanceService {
	return &balanceService{userRepo: userRepo, ledgerRepo: ledgerRepo}
}

func (s *balanceService) Credit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	ctx, span := startSpan(ctx, "Credit")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", userID), attribute.String("amount", amount.String()))

	if !validAmount(amount) {
		slog.Warn("invalid credit amount", "user_id", userID, "amount", amount)
		return decimal.Zero, fail(span, pkgerrors.ErrInvalidAmount, "invalid amount")
	}

	balance, err := s.ledgerRepo.Post(ctx, models.NewDeposit(userID, amount), false)
	if err != nil {
		return decimal.Zero, fail(span, err, "credit failed")
	}
	return balance, nil
}

func (s *balanceService) Debit(ctx context.Context, userID int64, amount decimal.Decimal, allowNegative bool) (decimal.Decimal, error) {
	ctx, span := startSpan(ctx, "Debit")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.String("amount", amount.String()),
		attribute.Bool("allow_negative", allowNegative),
	)

	if !validAmount(amount) {
		slog.Warn("invalid debit amount", "user_id", userID, "amount", amount)
		return decimal.Zero, fail(span, pkgerrors.ErrInvalidAmount, "invalid amount")
	}

	balance, err := s.ledgerRepo.Post(ctx, models.NewWithdrawal(userID, amount), allowNegative)
	if err != nil {
		return decimal.Zero, fail(span, err, "debit failed")
	}
	return balance, nil
}

func (s *balanceService) TopUp(ctx context.Context, telegramID int64, amount decimal.Decimal) (*models.Balance, error) {
	if !validAmount(amount) {
		return nil, pkgerrors.ErrInvalidAmount
	}
	user, err := resolveUser(ctx, s.userRepo, telegramID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Credit(ctx, user.ID, amount); err != nil {
		return nil, err
	}
	slog.Info("balance topped up", "telegram_id", telegramID, "user_id", user.ID, "amount", amount)
	return s.ledgerRepo.GetBalance(ctx, user.ID)
}

func (s *balanceService) ChargeOff(ctx context.Context, telegramID int64, amount decimal.Decimal, allowNegative bool) (*models.Balance, error) {
	if !validAmount(amount) {
		return nil, pkgerrors.ErrInvalidAmount
	}
	user, err := resolveUser(ctx, s.userRepo, telegramID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Debit(ctx, user.ID, amount, allowNegative); err != nil {
		return nil, err
	}
	slog.Info("balance charged off", "telegram_id", telegramID, "user_id", user.ID, "amount", amount)
	return s.ledgerRepo.GetBalance(ctx, user.ID)
}

func (s *balanceService) GetBalance(ctx context.Context, telegramID int64) (*models.Balance, error) {
	user, err := resolveUser(ctx, s.userRepo, telegramID)
	if err != nil {
		return nil, err
	}
	balance, err := s.ledgerRepo.GetBalance(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	balance.User = user
	return balance, nil
}

func (s *balanceService) ListBalances(ctx context.Context, filter models.BalanceFilter) ([]models.Balance, error) {
	return s.ledgerRepo.ListBalances(ctx, filter)
}

func (s *balanceService) ListTransactions(ctx context.Context, telegramID int64) ([]models.Transaction, error) {
	user, err := resolveUser(ctx, s.userRepo, telegramID)
	if err != nil {
		return nil, err
	}
	return s.ledgerRepo.ListTransactions(ctx, user.ID)
}
