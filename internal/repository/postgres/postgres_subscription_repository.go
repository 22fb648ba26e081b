package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/honeynil/GymLedgerService/internal/models"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

const subscriptionTracer = "subscription-repository"

const planColumns = `id, name, code, price, duration, deleted`

const planColumnsPrefixed = `s.id, s.name, s.code, s.price, s.duration, s.deleted`

const userSubscriptionColumns = `us.id, us.user_id, us.subscription_id, us.start, us.finish, us.status`

func planDest(p *models.SubscriptionPlan) []any {
	return []any{&p.ID, &p.Name, &p.Code, &p.Price, &p.Duration, &p.Deleted}
}

func userSubscriptionDest(us *models.UserSubscription) []any {
	return []any{&us.ID, &us.UserID, &us.SubscriptionID, &us.Start, &us.Finish, &us.Status}
}

type PostgresSubscriptionRepository struct {
	db *sql.DB
}

func NewPostgresSubscriptionRepository(db *sql.DB) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

func (r *PostgresSubscriptionRepository) ListPlans(ctx context.Context) (plans []models.SubscriptionPlan, err error) {
	ctx, _, done := instrument(ctx, subscriptionTracer, "ListPlans")
	defer func() { done(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+planColumns+` FROM subscriptions WHERE deleted = false ORDER BY id`)
	if err != nil {
		slog.Error("failed to list plans", "method", "ListPlans", "error", err)
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans = []models.SubscriptionPlan{}
	for rows.Next() {
		var p models.SubscriptionPlan
		if err = rows.Scan(planDest(&p)...); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}
	return plans, nil
}

func (r *PostgresSubscriptionRepository) GetPlan(ctx context.Context, id int64) (plan *models.SubscriptionPlan, err error) {
	ctx, _, done := instrument(ctx, subscriptionTracer, "GetPlan")
	defer func() { done(err) }()

	var p models.SubscriptionPlan
	err = r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM subscriptions WHERE id = $1 AND deleted = false`, id).Scan(planDest(&p)...)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrSubscriptionNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to get plan", "method", "GetPlan", "subscription_id", id, "error", err)
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &p, nil
}

func (r *PostgresSubscriptionRepository) CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) (err error) {
	ctx, _, done := instrument(ctx, subscriptionTracer, "CreatePlan")
	defer func() { done(err) }()

	if plan == nil || plan.Name == "" || plan.Duration <= 0 {
		err = fmt.Errorf("%w: name and positive duration are required", pkgerrors.ErrInvalidInput)
		return err
	}
	if plan.Price.IsNegative() {
		err = pkgerrors.ErrInvalidAmount
		return err
	}

	query := `INSERT INTO subscriptions (name, code, price, duration) VALUES ($1, $2, $3, $4) RETURNING id`
	err = r.db.QueryRowContext(ctx, query, plan.Name, plan.Code, plan.Price, plan.Duration).Scan(&plan.ID)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			err = pkgerrors.ErrConflict
			return err
		}
		slog.Error("failed to create plan", "method", "CreatePlan", "name", plan.Name, "error", err)
		return fmt.Errorf("failed to create plan: %w", err)
	}
	slog.Info("plan created", "method", "CreatePlan", "subscription_id", plan.ID)
	return nil
}

func (r *PostgresSubscriptionRepository) UpdatePlan(ctx context.Context, id int64, upd models.PlanUpdate) (plan *models.SubscriptionPlan, err error) {
	ctx, _, done := instrument(ctx, subscriptionTracer, "UpdatePlan")
	defer func() { done(err) }()

	if upd.Price != nil && upd.Price.IsNegative() {
		err = pkgerrors.ErrInvalidAmount
		return nil, err
	}
	if upd.Duration != nil && *upd.Duration <= 0 {
		err = fmt.Errorf("%w: duration must be positive", pkgerrors.ErrInvalidInput)
		return nil, err
	}

	query := `
		UPDATE subscriptions SET
			name = COALESCE($1, name),
			code = COALESCE($2, code),
			price = COALESCE($3, price),
			duration = COALESCE($4, duration),
			deleted = COALESCE($5, deleted)
		WHERE id = $6
		RETURNING ` + planColumns
	var price any
	if upd.Price != nil {
		price = *upd.Price
	}
	var p models.SubscriptionPlan
	err = r.db.QueryRowContext(ctx, query, upd.Name, upd.Code, price, upd.Duration, upd.Deleted, id).Scan(planDest(&p)...)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrSubscriptionNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to update plan", "method", "UpdatePlan", "subscription_id", id, "error", err)
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}
	return &p, nil
}

func (r *PostgresSubscriptionRepository) DeletePlan(ctx context.Context, id int64) (err error) {
	ctx, _, done := instrument(ctx, subscriptionTracer, "DeletePlan")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			err = pkgerrors.ErrConflict
			return err
		}
		slog.Error("failed to delete plan", "method", "DeletePlan", "subscription_id", id, "error", err)
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if n == 0 {
		err = pkgerrors.ErrSubscriptionNotFound
		return err
	}
	return nil
}

func (r *PostgresSubscriptionRepository) GetLatest(ctx context.Context, userID, subscriptionID int64) (us *models.UserSubscription, err error) {
	ctx, _, done := instrument(ctx, subscriptionTracer, "GetLatestUserSubscription")
	defer func() { done(err) }()

	query := `
		SELECT ` + userSubscriptionColumns + `, ` + planColumnsPrefixed + `
		FROM user_subscriptions us
		JOIN subscriptions s ON s.id = us.subscription_id
		WHERE us.user_id = $1 AND us.subscription_id = $2
		ORDER BY us.finish DESC
		LIMIT 1`
	var sub models.UserSubscription
	var plan models.SubscriptionPlan
	dest := append(userSubscriptionDest(&sub), planDest(&plan)...)
	err = r.db.QueryRowContext(ctx, query, userID, subscriptionID).Scan(dest...)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrUserSubscriptionNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to get user subscription", "method", "GetLatest", "user_id", userID, "subscription_id", subscriptionID, "error", err)
		return nil, fmt.Errorf("failed to get user subscription: %w", err)
	}
	sub.Plan = &plan
	return &sub, nil
}

func (r *PostgresSubscriptionRepository) List(ctx context.Context, filter models.UserSubscriptionFilter) (subs []models.UserSubscription, err error) {
	ctx, _, done := instrument(ctx, subscriptionTracer, "ListUserSubscriptions")
	defer func() { done(err) }()

	var where []string
	var args []any
	add := func(cond string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if len(filter.SubscriptionIDs) > 0 {
		add("us.subscription_id = ANY($%d)", pq.Array(filter.SubscriptionIDs))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		add("us.status = ANY($%d)", pq.Array(statuses))
	}
	if filter.FinishFrom != nil {
		add("us.finish >= $%d", *filter.FinishFrom)
	}
	if filter.FinishTo != nil {
		add("us.finish <= $%d", *filter.FinishTo)
	}
	if filter.TelegramID != nil {
		add("u.telegram_id = $%d", *filter.TelegramID)
	}

	query := `
		SELECT ` + userSubscriptionColumns + `, ` + planColumnsPrefixed + `, ` + userColumnsPrefixed + `
		FROM user_subscriptions us
		JOIN subscriptions s ON s.id = us.subscription_id
		JOIN users u ON u.id = us.user_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY us.finish, us.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to list user subscriptions", "method", "List", "error", err)
		return nil, fmt.Errorf("failed to list user subscriptions: %w", err)
	}
	defer rows.Close()

	subs = []models.UserSubscription{}
	for rows.Next() {
		var sub models.UserSubscription
		var plan models.SubscriptionPlan
		var u models.User
		dest := append(userSubscriptionDest(&sub), planDest(&plan)...)
		dest = append(dest, userDest(&u)...)
		if err = rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan user subscription: %w", err)
		}
		sub.Plan = &plan
		sub.User = &u
		subs = append(subs, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user subscriptions: %w", err)
	}
	return subs, nil
}

func (r *PostgresSubscriptionRepository) HasAny(ctx context.Context, userID int64, statuses []models.SubscriptionStatus) (exists bool, err error) {
	ctx, _, done := instrument(ctx, subscriptionTracer, "HasUserSubscription")
	defer func() { done(err) }()

	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	query := `SELECT EXISTS (SELECT 1 FROM user_subscriptions WHERE user_id = $1 AND status = ANY($2))`
	if err = r.db.QueryRowContext(ctx, query, userID, pq.Array(values)).Scan(&exists); err != nil {
		slog.Error("failed to check user subscription", "method", "HasAny", "user_id", userID, "error", err)
		return false, fmt.Errorf("failed to check user subscription: %w", err)
	}
	return exists, nil
}

func (r *PostgresSubscriptionRepository) UpdateStatus(ctx context.Context, userID, subscriptionID int64, status models.SubscriptionStatus) (us *models.UserSubscription, err error) {
	ctx, _, done := instrument(ctx, subscriptionTracer, "UpdateUserSubscriptionStatus")
	defer func() { done(err) }()

	if !status.Settable() {
		err = pkgerrors.ErrInvalidStatus
		return nil, err
	}

	query := `
		UPDATE user_subscriptions us SET status = $1
		WHERE us.user_id = $2 AND us.subscription_id = $3
		RETURNING ` + userSubscriptionColumns
	var sub models.UserSubscription
	err = r.db.QueryRowContext(ctx, query, status, userID, subscriptionID).Scan(userSubscriptionDest(&sub)...)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrUserSubscriptionNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to update subscription status", "method", "UpdateStatus", "user_id", userID, "subscription_id", subscriptionID, "error", err)
		return nil, fmt.Errorf("failed to update subscription status: %w", err)
	}
	slog.Info("subscription status updated", "method", "UpdateStatus", "user_id", userID, "subscription_id", subscriptionID, "status", status)
	return &sub, nil
}

// Activate charges the plan price and upserts the (user, plan) row inside one
// transaction. The balance row lock serialises concurrent activations.
func (r *PostgresSubscriptionRepository) Activate(ctx context.Context, params models.ActivationParams) (out *models.ActivationOutcome, err error) {
	ctx, span, done := instrument(ctx, subscriptionTracer, "ActivateSubscription")
	defer func() { done(err) }()
	span.SetAttributes(
		attribute.Int64("user_id", params.UserID),
		attribute.Int64("subscription_id", params.SubscriptionID),
		attribute.Bool("negative_allowed", params.NegativeAllowed),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { rollback(tx, "Activate", err) }()

	current, err := lockBalance(ctx, tx, params.UserID)
	if err != nil {
		slog.Error("failed to lock balance", "method", "Activate", "user_id", params.UserID, "error", err)
		return nil, err
	}

	var plan models.SubscriptionPlan
	err = tx.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM subscriptions WHERE id = $1 AND deleted = false`,
		params.SubscriptionID).Scan(planDest(&plan)...)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			err = pkgerrors.ErrSubscriptionNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	var status models.SubscriptionStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM user_subscriptions WHERE user_id = $1 AND subscription_id = $2 FOR UPDATE`,
		params.UserID, params.SubscriptionID).Scan(&status)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = nil
	case err != nil:
		return nil, fmt.Errorf("failed to lock user subscription: %w", err)
	case status == models.SubscriptionActive:
		err = pkgerrors.ErrAlreadyActiveSubscription
		slog.Warn("subscription already active", "method", "Activate", "user_id", params.UserID, "subscription_id", params.SubscriptionID)
		return nil, err
	}

	if !params.NegativeAllowed && current.LessThan(plan.Price) {
		err = pkgerrors.ErrInsufficientFunds
		slog.Warn("insufficient funds", "method", "Activate", "user_id", params.UserID, "balance", current, "price", plan.Price)
		return nil, err
	}

	out = &models.ActivationOutcome{Balance: current}
	var entry *models.Transaction
	if plan.Price.IsPositive() {
		entry = models.NewWithdrawal(params.UserID, plan.Price)
		if out.Balance, err = postEntry(ctx, tx, entry); err != nil {
			return nil, err
		}
	}
	out.WentNegative = out.Balance.IsNegative()

	finish := params.Start.AddDate(0, 0, plan.Duration)
	query := `
		INSERT INTO user_subscriptions (user_id, subscription_id, start, finish, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, subscription_id)
		DO UPDATE SET start = EXCLUDED.start, finish = EXCLUDED.finish, status = EXCLUDED.status`
	_, err = tx.ExecContext(ctx, query, params.UserID, params.SubscriptionID, params.Start, finish, models.SubscriptionActive)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user subscription: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if entry != nil {
		countEntry(entry)
	}
	slog.Info("subscription activated", "method", "Activate", "user_id", params.UserID, "subscription_id", params.SubscriptionID,
		"finish", finish, "balance", out.Balance, "went_negative", out.WentNegative)
	return out, nil
}
