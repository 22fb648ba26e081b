package repository

import (
	"context"
	"time"

	"github.com/honeynil/GymLedgerService/internal/models"
)

type CalendarRepository interface {
	ListEvents(ctx context.Context) ([]models.CalendarEvent, error)
	CreateEvent(ctx context.Context, event *models.CalendarEvent) error
	UpdateEvent(ctx context.Context, event *models.CalendarEvent) error
	DeleteEvent(ctx context.Context, id int64) error

	// ListActions returns the schedule ordered by day and start; an empty
	// day lists every action.
	ListActions(ctx context.Context, day string) ([]models.CalendarAction, error)
	CreateAction(ctx context.Context, action *models.CalendarAction) error
	SetPeriodic(ctx context.Context, id int64, periodic bool) (*models.CalendarAction, error)
	DeleteAction(ctx context.Context, id int64) error
	// RollPeriodic copies periodic actions due within the horizon one week
	// ahead and drops actions that ended before the retention cut-off.
	RollPeriodic(ctx context.Context, now time.Time) (*models.Rollover, error)

	ListRecordsByAction(ctx context.Context, actionID int64) ([]models.CalendarRecord, error)
	ListRecordsByUser(ctx context.Context, userID int64) ([]models.CalendarRecord, error)
	// Book charges the event price and takes a place atomically.
	Book(ctx context.Context, actionID, userID int64) (*models.Booking, error)
	// Cancel frees the place and refunds what the booking charged.
	Cancel(ctx context.Context, actionID, userID int64) (*models.Booking, error)
}
