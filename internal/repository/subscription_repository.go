package repository

import (
	"context"

	"github.com/honeynil/GymLedgerService/internal/models"
)

type SubscriptionRepository interface {
	ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error)
	GetPlan(ctx context.Context, id int64) (*models.SubscriptionPlan, error)
	CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) error
	UpdatePlan(ctx context.Context, id int64, upd models.PlanUpdate) (*models.SubscriptionPlan, error)
	DeletePlan(ctx context.Context, id int64) error

	// GetLatest returns the user's most recent row for the plan, joined with the plan.
	GetLatest(ctx context.Context, userID, subscriptionID int64) (*models.UserSubscription, error)
	List(ctx context.Context, filter models.UserSubscriptionFilter) ([]models.UserSubscription, error)
	HasAny(ctx context.Context, userID int64, statuses []models.SubscriptionStatus) (bool, error)
	UpdateStatus(ctx context.Context, userID, subscriptionID int64, status models.SubscriptionStatus) (*models.UserSubscription, error)

	// Activate debits the plan price and upserts the subscription row as one
	// atomic unit, serialised per user.
	Activate(ctx context.Context, params models.ActivationParams) (*models.ActivationOutcome, error)
}
