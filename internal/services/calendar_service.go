package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/GymLedgerService/internal/models"
	"github.com/honeynil/GymLedgerService/internal/repository"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

type CalendarService interface {
	ListEvents(ctx context.Context) ([]models.CalendarEvent, error)
	CreateEvent(ctx context.Context, event *models.CalendarEvent) error
	UpdateEvent(ctx context.Context, event *models.CalendarEvent) error
	DeleteEvent(ctx context.Context, id int64) error

	ListActions(ctx context.Context, day string) ([]models.CalendarAction, error)
	CreateAction(ctx context.Context, action *models.CalendarAction) error
	SetPeriodic(ctx context.Context, id int64, periodic bool) (*models.CalendarAction, error)
	DeleteAction(ctx context.Context, id int64) error
	RollPeriodic(ctx context.Context) (*models.Rollover, error)

	ListRecordsByAction(ctx context.Context, actionID int64) ([]models.CalendarRecord, error)
	ListRecordsByUser(ctx context.Context, userID int64) ([]models.CalendarRecord, error)
	Book(ctx context.Context, actionID, userID int64) (*models.Booking, error)
	Cancel(ctx context.Context, actionID, userID int64) (*models.Booking, error)
}

type calendarService struct {
	userRepo     repository.UserRepository
	calendarRepo repository.CalendarRepository
	now          func() time.Time
}

func NewCalendarService(userRepo repository.UserRepository, calendarRepo repository.CalendarRepository) *calendarService {
	return &calendarService{userRepo: userRepo, calendarRepo: calendarRepo, now: time.Now}
}

func validateEvent(e *models.CalendarEvent) error {
	switch {
	case e == nil || e.Name == "":
		return fmt.Errorf("%w: name is required", pkgerrors.ErrInvalidInput)
	case e.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", pkgerrors.ErrInvalidInput)
	case e.Capacity < 0:
		return fmt.Errorf("%w: capacity must not be negative", pkgerrors.ErrInvalidInput)
	case e.Price.IsNegative() || !e.Price.Equal(e.Price.Truncate(2)):
		return pkgerrors.ErrInvalidAmount
	}
	return nil
}

func (s *calendarService) ListEvents(ctx context.Context) ([]models.CalendarEvent, error) {
	return s.calendarRepo.ListEvents(ctx)
}

func (s *calendarService) CreateEvent(ctx context.Context, event *models.CalendarEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}
	return s.calendarRepo.CreateEvent(ctx, event)
}

// UpdateEvent replaces every field of the event.
func (s *calendarService) UpdateEvent(ctx context.Context, event *models.CalendarEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}
	if event.ID <= 0 {
		return fmt.Errorf("%w: event id is required", pkgerrors.ErrInvalidInput)
	}
	return s.calendarRepo.UpdateEvent(ctx, event)
}

func (s *calendarService) DeleteEvent(ctx context.Context, id int64) error {
	return s.calendarRepo.DeleteEvent(ctx, id)
}

// parseDay checks the YYYY-MM-DD form; an empty day is allowed by callers
// that treat it as "any day".
func parseDay(day string) error {
	if _, err := time.Parse(models.DayLayout, day); err != nil {
		return fmt.Errorf("%w: day must be YYYY-MM-DD", pkgerrors.ErrInvalidInput)
	}
	return nil
}

// normalizeStart accepts HH:MM and HH:MM:SS and returns HH:MM.
func normalizeStart(start string) (string, error) {
	for _, layout := range []string{models.StartLayout, "15:04:05"} {
		if t, err := time.Parse(layout, start); err == nil {
			return t.Format(models.StartLayout), nil
		}
	}
	return "", fmt.Errorf("%w: start must be HH:MM", pkgerrors.ErrInvalidInput)
}

func (s *calendarService) ListActions(ctx context.Context, day string) ([]models.CalendarAction, error) {
	if day != "" {
		if err := parseDay(day); err != nil {
			return nil, err
		}
	}
	return s.calendarRepo.ListActions(ctx, day)
}

func (s *calendarService) CreateAction(ctx context.Context, action *models.CalendarAction) error {
	if action == nil || action.EventID <= 0 {
		return fmt.Errorf("%w: event_id is required", pkgerrors.ErrInvalidInput)
	}
	if err := parseDay(action.Day); err != nil {
		return err
	}
	start, err := normalizeStart(action.Start)
	if err != nil {
		return err
	}
	action.Start = start
	return s.calendarRepo.CreateAction(ctx, action)
}

func (s *calendarService) SetPeriodic(ctx context.Context, id int64, periodic bool) (*models.CalendarAction, error) {
	return s.calendarRepo.SetPeriodic(ctx, id, periodic)
}

func (s *calendarService) DeleteAction(ctx context.Context, id int64) error {
	return s.calendarRepo.DeleteAction(ctx, id)
}

func (s *calendarService) RollPeriodic(ctx context.Context) (*models.Rollover, error) {
	ctx, span := startSpan(ctx, "RollPeriodic")
	defer span.End()

	rollover, err := s.calendarRepo.RollPeriodic(ctx, s.now())
	if err != nil {
		return nil, fail(span, err, "roll periodic failed")
	}
	span.SetAttributes(attribute.Int64("created", rollover.Created), attribute.Int64("removed", rollover.Removed))
	return rollover, nil
}

func (s *calendarService) ListRecordsByAction(ctx context.Context, actionID int64) ([]models.CalendarRecord, error) {
	return s.calendarRepo.ListRecordsByAction(ctx, actionID)
}

func (s *calendarService) ListRecordsByUser(ctx context.Context, userID int64) ([]models.CalendarRecord, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.calendarRepo.ListRecordsByUser(ctx, userID)
}

// Book charges the event price from the user's balance and takes a place.
func (s *calendarService) Book(ctx context.Context, actionID, userID int64) (*models.Booking, error) {
	ctx, span := startSpan(ctx, "BookRecord")
	defer span.End()
	span.SetAttributes(attribute.Int64("action_id", actionID), attribute.Int64("user_id", userID))

	if actionID <= 0 || userID <= 0 {
		return nil, fail(span, fmt.Errorf("%w: action_id and user_id are required", pkgerrors.ErrInvalidInput), "invalid input")
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, fail(span, err, "user not found")
	}

	booking, err := s.calendarRepo.Book(ctx, actionID, userID)
	if err != nil {
		slog.Warn("booking rejected", "action_id", actionID, "user_id", userID, "error", err)
		return nil, fail(span, err, "booking failed")
	}
	slog.Info("record booked", "action_id", actionID, "user_id", userID, "amount", booking.Record.Amount)
	return booking, nil
}

// Cancel releases the place and refunds what the booking charged.
func (s *calendarService) Cancel(ctx context.Context, actionID, userID int64) (*models.Booking, error) {
	ctx, span := startSpan(ctx, "CancelRecord")
	defer span.End()
	span.SetAttributes(attribute.Int64("action_id", actionID), attribute.Int64("user_id", userID))

	if actionID <= 0 || userID <= 0 {
		return nil, fail(span, fmt.Errorf("%w: action_id and user_id are required", pkgerrors.ErrInvalidInput), "invalid input")
	}

	booking, err := s.calendarRepo.Cancel(ctx, actionID, userID)
	if err != nil {
		return nil, fail(span, err, "cancel failed")
	}
	slog.Info("record cancelled", "action_id", actionID, "user_id", userID, "refund", booking.Record.Amount)
	return booking, nil
}
