package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/GymLedgerService/internal/models"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const calendarTracer = "calendar-repository"

const (
	// Periodic actions are copied a week ahead once they are this close.
	periodicHorizonDays = 14
	// Actions older than this are dropped together with their records.
	actionRetentionDays = 3
)

const eventColumns = `id, name, shortdes, description, imageurl, duration, capacity, price`

const actionColumns = `a.id, to_char(a.day, 'YYYY-MM-DD'), to_char(a.start, 'HH24:MI'),
	a.event_id, a.quantity, a.periodic, a.dubbed,
	e.id, e.name, e.shortdes, e.description, e.imageurl, e.duration, e.capacity, e.price`

func eventDest(e *models.CalendarEvent) []any {
	return []any{&e.ID, &e.Name, &e.ShortDes, &e.Description, &e.ImageURL, &e.Duration, &e.Capacity, &e.Price}
}

func actionDest(a *models.CalendarAction, e *models.CalendarEvent) []any {
	return append([]any{&a.ID, &a.Day, &a.Start, &a.EventID, &a.Quantity, &a.Periodic, &a.Dubbed}, eventDest(e)...)
}

type PostgresCalendarRepository struct {
	db *sql.DB
}

func NewPostgresCalendarRepository(db *sql.DB) *PostgresCalendarRepository {
	return &PostgresCalendarRepository{db: db}
}

func (r *PostgresCalendarRepository) ListEvents(ctx context.Context) (events []models.CalendarEvent, err error) {
	ctx, _, done := instrument(ctx, calendarTracer, "ListEvents")
	defer func() { done(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM calendar_events ORDER BY id`)
	if err != nil {
		slog.Error("failed to list events", "method", "ListEvents", "error", err)
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events = []models.CalendarEvent{}
	for rows.Next() {
		var e models.CalendarEvent
		if err = rows.Scan(eventDest(&e)...); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

func (r *PostgresCalendarRepository) CreateEvent(ctx context.Context, event *models.CalendarEvent) (err error) {
	ctx, _, done := instrument(ctx, calendarTracer, "CreateEvent")
	defer func() { done(err) }()

	query := `
		INSERT INTO calendar_events (name, shortdes, description, imageurl, duration, capacity, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err = r.db.QueryRowContext(ctx, query,
		event.Name, event.ShortDes, event.Description, event.ImageURL, event.Duration, event.Capacity, event.Price,
	).Scan(&event.ID)
	if err != nil {
		slog.Error("failed to create event", "method", "CreateEvent", "name", event.Name, "error", err)
		return fmt.Errorf("failed to create event: %w", err)
	}
	slog.Info("calendar event created", "method", "CreateEvent", "event_id", event.ID)
	return nil
}

func (r *PostgresCalendarRepository) UpdateEvent(ctx context.Context, event *models.CalendarEvent) (err error) {
	ctx, span, done := instrument(ctx, calendarTracer, "UpdateEvent")
	defer func() { done(err) }()
	span.SetAttributes(attribute.Int64("event_id", event.ID))

	query := `
		UPDATE calendar_events SET
			name = $1, shortdes = $2, description = $3, imageurl = $4,
			duration = $5, capacity = $6, price = $7
		WHERE id = $8`
	res, err := r.db.ExecContext(ctx, query,
		event.Name, event.ShortDes, event.Description, event.ImageURL, event.Duration, event.Capacity, event.Price, event.ID)
	if err != nil {
		slog.Error("failed to update event", "method", "UpdateEvent", "event_id", event.ID, "error", err)
		return fmt.Errorf("failed to update event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if n == 0 {
		err = pkgerrors.ErrEventNotFound
		return err
	}
	return nil
}

func (r *PostgresCalendarRepository) DeleteEvent(ctx context.Context, id int64) (err error) {
	ctx, _, done := instrument(ctx, calendarTracer, "DeleteEvent")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = $1`, id)
	if err != nil {
		// На событие ссылается расписание.
		if pqCode(err) == pqForeignKeyViolation {
			err = pkgerrors.ErrConflict
			return err
		}
		slog.Error("failed to delete event", "method", "DeleteEvent", "event_id", id, "error", err)
		return fmt.Errorf("failed to delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if n == 0 {
		err = pkgerrors.ErrEventNotFound
		return err
	}
	return nil
}

func (r *PostgresCalendarRepository) ListActions(ctx context.Context, day string) (actions []models.CalendarAction, err error) {
	ctx, _, done := instrument(ctx, calendarTracer, "ListActions")
	defer func() { done(err) }()

	query := `SELECT ` + actionColumns + `
		FROM calendar_actions a
		JOIN calendar_events e ON e.id = a.event_id`
	var args []any
	if day != "" {
		query += ` WHERE a.day = $1::date`
		args = append(args, day)
	}
	query += ` ORDER BY a.day, a.start, a.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to list actions", "method", "ListActions", "day", day, "error", err)
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	actions = []models.CalendarAction{}
	for rows.Next() {
		var a models.CalendarAction
		var e models.CalendarEvent
		if err = rows.Scan(actionDest(&a, &e)...); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		a.Event = &e
		actions = append(actions, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate actions: %w", err)
	}
	return actions, nil
}

func (r *PostgresCalendarRepository) CreateAction(ctx context.Context, action *models.CalendarAction) (err error) {
	ctx, _, done := instrument(ctx, calendarTracer, "CreateAction")
	defer func() { done(err) }()

	query := `
		INSERT INTO calendar_actions (day, start, event_id, periodic)
		VALUES ($1::date, $2::time, $3, $4)
		RETURNING id`
	err = r.db.QueryRowContext(ctx, query, action.Day, action.Start, action.EventID, action.Periodic).Scan(&action.ID)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			err = pkgerrors.ErrEventNotFound
			return err
		}
		slog.Error("failed to create action", "method", "CreateAction", "event_id", action.EventID, "error", err)
		return fmt.Errorf("failed to create action: %w", err)
	}
	slog.Info("calendar action created", "method", "CreateAction", "action_id", action.ID, "day", action.Day)
	return nil
}

func (r *PostgresCalendarRepository) SetPeriodic(ctx context.Context, id int64, periodic bool) (action *models.CalendarAction, err error) {
	ctx, span, done := instrument(ctx, calendarTracer, "SetPeriodic")
	defer func() { done(err) }()
	span.SetAttributes(attribute.Int64("action_id", id), attribute.Bool("periodic", periodic))

	query := `
		WITH a AS (
			UPDATE calendar_actions SET periodic = $1 WHERE id = $2
			RETURNING id, day, start, event_id, quantity, periodic, dubbed
		)
		SELECT ` + actionColumns + `
		FROM a JOIN calendar_events e ON e.id = a.event_id`
	var a models.CalendarAction
	var e models.CalendarEvent
	err = r.db.QueryRowContext(ctx, query, periodic, id).Scan(actionDest(&a, &e)...)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrActionNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to set periodic", "method", "SetPeriodic", "action_id", id, "error", err)
		return nil, fmt.Errorf("failed to set periodic: %w", err)
	}
	a.Event = &e
	return &a, nil
}

func (r *PostgresCalendarRepository) DeleteAction(ctx context.Context, id int64) (err error) {
	ctx, _, done := instrument(ctx, calendarTracer, "DeleteAction")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM calendar_actions WHERE id = $1`, id)
	if err != nil {
		// На занятие уже есть оплаченные записи.
		if pqCode(err) == pqForeignKeyViolation {
			err = pkgerrors.ErrConflict
			return err
		}
		slog.Error("failed to delete action", "method", "DeleteAction", "action_id", id, "error", err)
		return fmt.Errorf("failed to delete action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete action: %w", err)
	}
	if n == 0 {
		err = pkgerrors.ErrActionNotFound
		return err
	}
	return nil
}

func (r *PostgresCalendarRepository) RollPeriodic(ctx context.Context, now time.Time) (rollover *models.Rollover, err error) {
	ctx, _, done := instrument(ctx, calendarTracer, "RollPeriodic")
	defer func() { done(err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { rollback(tx, "RollPeriodic", err) }()

	today := now.Format(models.DayLayout)
	rollover = &models.Rollover{}

	// dubbed ставится в том же запросе, поэтому копия не создаётся дважды.
	res, err := tx.ExecContext(ctx, `
		WITH due AS (
			UPDATE calendar_actions SET dubbed = true
			WHERE periodic AND NOT dubbed AND day <= $1::date + $2::int
			RETURNING day, start, event_id
		)
		INSERT INTO calendar_actions (day, start, event_id, periodic)
		SELECT day + 7, start, event_id, true FROM due`,
		today, periodicHorizonDays)
	if err != nil {
		slog.Error("failed to copy periodic actions", "method", "RollPeriodic", "error", err)
		return nil, fmt.Errorf("failed to copy periodic actions: %w", err)
	}
	if rollover.Created, err = res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to copy periodic actions: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM calendar_records
		WHERE action_id IN (SELECT id FROM calendar_actions WHERE day <= $1::date - $2::int)`,
		today, actionRetentionDays)
	if err != nil {
		return nil, fmt.Errorf("failed to delete old records: %w", err)
	}
	res, err = tx.ExecContext(ctx,
		`DELETE FROM calendar_actions WHERE day <= $1::date - $2::int`,
		today, actionRetentionDays)
	if err != nil {
		return nil, fmt.Errorf("failed to delete old actions: %w", err)
	}
	if rollover.Removed, err = res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to delete old actions: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	slog.Info("periodic schedule rolled", "method", "RollPeriodic", "created", rollover.Created, "removed", rollover.Removed)
	return rollover, nil
}

func (r *PostgresCalendarRepository) ListRecordsByAction(ctx context.Context, actionID int64) (records []models.CalendarRecord, err error) {
	ctx, _, done := instrument(ctx, calendarTracer, "ListRecordsByAction")
	defer func() { done(err) }()

	query := `
		SELECT r.action_id, r.user_id, r.amount, r.created_at, ` + userColumnsPrefixed + `
		FROM calendar_records r
		JOIN users u ON u.id = r.user_id
		WHERE r.action_id = $1
		ORDER BY r.created_at, r.user_id`
	rows, err := r.db.QueryContext(ctx, query, actionID)
	if err != nil {
		slog.Error("failed to list records", "method", "ListRecordsByAction", "action_id", actionID, "error", err)
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records = []models.CalendarRecord{}
	for rows.Next() {
		var rec models.CalendarRecord
		var u models.User
		dest := append([]any{&rec.ActionID, &rec.UserID, &rec.Amount, &rec.CreatedAt}, userDest(&u)...)
		if err = rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.User = &u
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

func (r *PostgresCalendarRepository) ListRecordsByUser(ctx context.Context, userID int64) (records []models.CalendarRecord, err error) {
	ctx, _, done := instrument(ctx, calendarTracer, "ListRecordsByUser")
	defer func() { done(err) }()

	query := `
		SELECT r.action_id, r.user_id, r.amount, r.created_at, ` + actionColumns + `
		FROM calendar_records r
		JOIN calendar_actions a ON a.id = r.action_id
		JOIN calendar_events e ON e.id = a.event_id
		WHERE r.user_id = $1
		ORDER BY a.day, a.start`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Error("failed to list records", "method", "ListRecordsByUser", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records = []models.CalendarRecord{}
	for rows.Next() {
		var rec models.CalendarRecord
		var a models.CalendarAction
		var e models.CalendarEvent
		dest := append([]any{&rec.ActionID, &rec.UserID, &rec.Amount, &rec.CreatedAt}, actionDest(&a, &e)...)
		if err = rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		a.Event = &e
		rec.Action = &a
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

// lockAction locks the action row for the rest of tx so the place count
// cannot race with a concurrent booking.
func lockAction(ctx context.Context, tx *sql.Tx, actionID int64) (*models.CalendarAction, error) {
	query := `SELECT ` + actionColumns + `
		FROM calendar_actions a
		JOIN calendar_events e ON e.id = a.event_id
		WHERE a.id = $1
		FOR UPDATE OF a`
	var a models.CalendarAction
	var e models.CalendarEvent
	err := tx.QueryRowContext(ctx, query, actionID).Scan(actionDest(&a, &e)...)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.ErrActionNotFound
		}
		return nil, fmt.Errorf("failed to lock action: %w", err)
	}
	a.Event = &e
	return &a, nil
}

func (r *PostgresCalendarRepository) Book(ctx context.Context, actionID, userID int64) (booking *models.Booking, err error) {
	ctx, span, done := instrument(ctx, calendarTracer, "BookRecord")
	defer func() { done(err) }()
	span.SetAttributes(attribute.Int64("action_id", actionID), attribute.Int64("user_id", userID))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { rollback(tx, "Book", err) }()

	current, err := lockBalance(ctx, tx, userID)
	if err != nil {
		slog.Error("failed to lock balance", "method", "Book", "user_id", userID, "error", err)
		return nil, err
	}

	action, err := lockAction(ctx, tx, actionID)
	if err != nil {
		return nil, err
	}

	var booked bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM calendar_records WHERE action_id = $1 AND user_id = $2)`,
		actionID, userID).Scan(&booked)
	if err != nil {
		return nil, fmt.Errorf("failed to check record: %w", err)
	}
	if booked {
		err = pkgerrors.ErrAlreadyBooked
		return nil, err
	}

	if action.Event.Capacity > 0 && action.Quantity >= action.Event.Capacity {
		err = pkgerrors.ErrActionFull
		slog.Warn("action is full", "method", "Book", "action_id", actionID, "capacity", action.Event.Capacity)
		return nil, err
	}

	price := action.Event.Price
	if current.LessThan(price) {
		err = pkgerrors.ErrInsufficientFunds
		slog.Warn("insufficient funds", "method", "Book", "user_id", userID, "balance", current, "amount", price)
		return nil, err
	}

	booking = &models.Booking{Balance: current}
	if price.IsPositive() {
		booking.Entry = models.NewWithdrawal(userID, price)
		if booking.Balance, err = postEntry(ctx, tx, booking.Entry); err != nil {
			return nil, err
		}
	}

	booking.Record = models.CalendarRecord{ActionID: actionID, UserID: userID, Amount: price}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO calendar_records (action_id, user_id, amount) VALUES ($1, $2, $3) RETURNING created_at`,
		actionID, userID, price,
	).Scan(&booking.Record.CreatedAt)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			err = pkgerrors.ErrAlreadyBooked
			return nil, err
		}
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE calendar_actions SET quantity = quantity + 1 WHERE id = $1`, actionID)
	if err != nil {
		return nil, fmt.Errorf("failed to take place: %w", err)
	}
	action.Quantity++
	booking.Record.Action = action

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if booking.Entry != nil {
		countEntry(booking.Entry)
	}
	slog.Info("record booked", "method", "Book", "action_id", actionID, "user_id", userID, "amount", price)
	return booking, nil
}

func (r *PostgresCalendarRepository) Cancel(ctx context.Context, actionID, userID int64) (booking *models.Booking, err error) {
	ctx, span, done := instrument(ctx, calendarTracer, "CancelRecord")
	defer func() { done(err) }()
	span.SetAttributes(attribute.Int64("action_id", actionID), attribute.Int64("user_id", userID))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { rollback(tx, "Cancel", err) }()

	current, err := lockBalance(ctx, tx, userID)
	if err != nil {
		slog.Error("failed to lock balance", "method", "Cancel", "user_id", userID, "error", err)
		return nil, err
	}

	booking = &models.Booking{
		Record:  models.CalendarRecord{ActionID: actionID, UserID: userID},
		Balance: current,
	}
	err = tx.QueryRowContext(ctx,
		`DELETE FROM calendar_records WHERE action_id = $1 AND user_id = $2 RETURNING amount, created_at`,
		actionID, userID,
	).Scan(&booking.Record.Amount, &booking.Record.CreatedAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			err = pkgerrors.ErrRecordNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to delete record: %w", err)
	}

	if booking.Record.Amount.IsPositive() {
		booking.Entry = models.NewDeposit(userID, booking.Record.Amount)
		if booking.Balance, err = postEntry(ctx, tx, booking.Entry); err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE calendar_actions SET quantity = quantity - 1 WHERE id = $1`, actionID)
	if err != nil {
		return nil, fmt.Errorf("failed to release place: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if booking.Entry != nil {
		countEntry(booking.Entry)
	}
	slog.Info("record cancelled", "method", "Cancel", "action_id", actionID, "user_id", userID, "refund", booking.Record.Amount)
	return booking, nil
}
