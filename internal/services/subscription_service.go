package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/GymLedgerService/internal/infrastructure/redis"
	"github.com/honeynil/GymLedgerService/internal/models"
	"github.com/honeynil/GymLedgerService/internal/repository"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

type ActivationRequest struct {
	TelegramID      int64
	SubscriptionID  int64
	NegativeAllowed bool
	StartDate       *time.Time
	RequestID       string
}

type SubscriptionService interface {
	Activate(ctx context.Context, req ActivationRequest) (*models.ActivationResult, error)

	ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error)
	CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) error
	UpdatePlan(ctx context.Context, id int64, upd models.PlanUpdate) (*models.SubscriptionPlan, error)
	DeletePlan(ctx context.Context, id int64) error

	ListUserSubscriptions(ctx context.Context, filter models.UserSubscriptionFilter) ([]models.UserSubscription, error)
	HasCurrent(ctx context.Context, telegramID int64) (bool, error)
	UpdateStatus(ctx context.Context, telegramID, subscriptionID int64, status models.SubscriptionStatus) (*models.UserSubscription, error)
}

type subscriptionService struct {
	userRepo   repository.UserRepository
	ledgerRepo repository.LedgerRepository
	subRepo    repository.SubscriptionRepository
	guard      requestGuard
	now        func() time.Time
}

func NewSubscriptionService(
	userRepo repository.UserRepository,
	ledgerRepo repository.LedgerRepository,
	subRepo repository.SubscriptionRepository,
	redisClient redis.RedisClient,
	requestTTL time.Duration,
) *subscriptionService {
	return &subscriptionService{
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		subRepo:    subRepo,
		guard:      requestGuard{redis: redisClient, ttl: requestTTL},
		now:        time.Now,
	}
}

// Activate charges the plan price from the balance and (re)activates the
// user's subscription. The checks before the store call only fail fast; the
// store routine repeats them under the balance row lock.
func (s *subscriptionService) Activate(ctx context.Context, req ActivationRequest) (result *models.ActivationResult, err error) {
	ctx, span := startSpan(ctx, "ActivateSubscription")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("telegram_id", req.TelegramID),
		attribute.Int64("subscription_id", req.SubscriptionID),
		attribute.Bool("negative_allowed", req.NegativeAllowed),
	)

	if req.SubscriptionID <= 0 {
		return nil, fail(span, fmt.Errorf("%w: subscription_id is required", pkgerrors.ErrInvalidInput), "invalid input")
	}

	release, err := s.guard.acquire(ctx, "subscription", req.RequestID)
	if err != nil {
		return nil, fail(span, err, "request guard")
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	user, err := resolveUser(ctx, s.userRepo, req.TelegramID)
	if err != nil {
		slog.Warn("user not resolved", "telegram_id", req.TelegramID, "error", err)
		return nil, fail(span, err, "user not found")
	}

	latest, err := s.subRepo.GetLatest(ctx, user.ID, req.SubscriptionID)
	switch {
	case err == nil && latest.Status == models.SubscriptionActive:
		slog.Warn("subscription already active",
			"user_id", user.ID,
			"subscription_id", req.SubscriptionID,
			"finish", latest.Finish)
		err = pkgerrors.ErrAlreadyActiveSubscription
		return nil, fail(span, err, "already active")
	case err != nil && !stderrors.Is(err, pkgerrors.ErrUserSubscriptionNotFound):
		return nil, fail(span, err, "latest subscription lookup failed")
	}

	plan, err := s.subRepo.GetPlan(ctx, req.SubscriptionID)
	if err != nil {
		return nil, fail(span, err, "plan lookup failed")
	}

	balance, err := s.ledgerRepo.GetBalance(ctx, user.ID)
	if err != nil {
		return nil, fail(span, err, "balance lookup failed")
	}
	if !req.NegativeAllowed && balance.Amount.LessThan(plan.Price) {
		slog.Warn("insufficient funds",
			"user_id", user.ID,
			"balance", balance.Amount,
			"price", plan.Price)
		err = pkgerrors.ErrInsufficientFunds
		return nil, fail(span, err, "insufficient funds")
	}

	start := s.now().UTC()
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}
	outcome, err := s.subRepo.Activate(ctx, models.ActivationParams{
		UserID:          user.ID,
		SubscriptionID:  plan.ID,
		Start:           start,
		NegativeAllowed: req.NegativeAllowed,
	})
	if err != nil {
		slog.Error("failed to activate subscription",
			"user_id", user.ID,
			"subscription_id", plan.ID,
			"error", err)
		return nil, fail(span, err, "activation failed")
	}

	sub, err := s.subRepo.GetLatest(ctx, user.ID, plan.ID)
	if err != nil {
		return nil, fail(span, err, "refresh subscription failed")
	}
	current, err := s.ledgerRepo.GetBalance(ctx, user.ID)
	if err != nil {
		return nil, fail(span, err, "refresh balance failed")
	}

	slog.Info("subscription activated",
		"user_id", user.ID,
		"telegram_id", user.TelegramID,
		"subscription_id", plan.ID,
		"finish", sub.Finish,
		"went_negative", outcome.WentNegative)

	return &models.ActivationResult{
		Status:       models.StatusSuccess,
		Subscription: sub,
		UserID:       user.ID,
		User:         user,
		UserBalance:  current,
		WentNegative: outcome.WentNegative,
	}, nil
}

func (s *subscriptionService) ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	return s.subRepo.ListPlans(ctx)
}

func (s *subscriptionService) CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	return s.subRepo.CreatePlan(ctx, plan)
}

func (s *subscriptionService) UpdatePlan(ctx context.Context, id int64, upd models.PlanUpdate) (*models.SubscriptionPlan, error) {
	return s.subRepo.UpdatePlan(ctx, id, upd)
}

func (s *subscriptionService) DeletePlan(ctx context.Context, id int64) error {
	return s.subRepo.DeletePlan(ctx, id)
}

func (s *subscriptionService) ListUserSubscriptions(ctx context.Context, filter models.UserSubscriptionFilter) ([]models.UserSubscription, error) {
	for _, status := range filter.Statuses {
		switch status {
		case models.SubscriptionActive, models.SubscriptionPaused, models.SubscriptionCanceled,
			models.SubscriptionSuspended, models.SubscriptionExpiring:
		default:
			return nil, pkgerrors.ErrInvalidStatus
		}
	}
	return s.subRepo.List(ctx, filter)
}

// HasCurrent reports whether the user holds any subscription that still counts
// as current (active, expiring or suspended).
func (s *subscriptionService) HasCurrent(ctx context.Context, telegramID int64) (bool, error) {
	user, err := resolveUser(ctx, s.userRepo, telegramID)
	if err != nil {
		return false, err
	}
	return s.subRepo.HasAny(ctx, user.ID, models.CurrentStatuses)
}

func (s *subscriptionService) UpdateStatus(ctx context.Context, telegramID, subscriptionID int64, status models.SubscriptionStatus) (*models.UserSubscription, error) {
	if !status.Settable() {
		return nil, pkgerrors.ErrInvalidStatus
	}
	user, err := resolveUser(ctx, s.userRepo, telegramID)
	if err != nil {
		return nil, err
	}
	return s.subRepo.UpdateStatus(ctx, user.ID, subscriptionID, status)
}
