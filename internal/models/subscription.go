package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionPlan is catalogue data. Duration is expressed in days.
type SubscriptionPlan struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Code     string          `json:"code"`
	Price    decimal.Decimal `json:"price"`
	Duration int             `json:"duration"`
	Deleted  bool            `json:"deleted"`
}

type PlanUpdate struct {
	Name     *string          `json:"name"`
	Code     *string          `json:"code"`
	Price    *decimal.Decimal `json:"price"`
	Duration *int             `json:"duration"`
	Deleted  *bool            `json:"deleted"`
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionPaused    SubscriptionStatus = "PAUSED"
	SubscriptionCanceled  SubscriptionStatus = "CANCELED"
	SubscriptionSuspended SubscriptionStatus = "SUSPENDED"
	SubscriptionExpiring  SubscriptionStatus = "EXPIRING"
)

// Settable reports whether status may be assigned through an explicit status update.
func (s SubscriptionStatus) Settable() bool {
	switch s {
	case SubscriptionActive, SubscriptionPaused, SubscriptionCanceled, SubscriptionSuspended:
		return true
	}
	return false
}

// CurrentStatuses are the statuses counted as "has a subscription" by the check endpoint.
var CurrentStatuses = []SubscriptionStatus{SubscriptionActive, SubscriptionExpiring, SubscriptionSuspended}

// UserSubscription is unique per (UserID, SubscriptionID).
type UserSubscription struct {
	ID             int64              `json:"id"`
	UserID         int64              `json:"user_id"`
	SubscriptionID int64              `json:"subscription_id"`
	Start          time.Time          `json:"start"`
	Finish         time.Time          `json:"finish"`
	Status         SubscriptionStatus `json:"status"`
	Plan           *SubscriptionPlan  `json:"subscriptions,omitempty"`
	User           *User              `json:"users,omitempty"`
}

// ValidAt reports whether the subscription is active and not yet finished at t.
func (s *UserSubscription) ValidAt(t time.Time) bool {
	return s.Status == SubscriptionActive && s.Finish.After(t)
}

type UserSubscriptionFilter struct {
	SubscriptionIDs []int64
	Statuses        []SubscriptionStatus
	FinishFrom      *time.Time
	FinishTo        *time.Time
	TelegramID      *int64
}

// ActivationParams is the input of the atomic store-level activation routine.
type ActivationParams struct {
	UserID          int64
	SubscriptionID  int64
	Start           time.Time
	NegativeAllowed bool
}

type ActivationOutcome struct {
	Balance      decimal.Decimal
	WentNegative bool
}

// ActivationResult is returned to the caller after a successful activation.
type ActivationResult struct {
	Status       string            `json:"status"`
	Subscription *UserSubscription `json:"subscription"`
	UserID       int64             `json:"user_id"`
	User         *User             `json:"user"`
	UserBalance  *Balance          `json:"user_balance"`
	WentNegative bool              `json:"went_negative"`
}

const StatusSuccess = "SUCCESS"
