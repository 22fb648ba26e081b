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
	"go.opentelemetry.io/otel/attribute"
)

const userTracer = "user-repository"

const userColumns = `id, telegram_id, first_name, last_name, telegram_nickname, phone, email, role, status, gender, birth, created_at`

const userColumnsPrefixed = `u.id, u.telegram_id, u.first_name, u.last_name, u.telegram_nickname, u.phone, u.email, u.role, u.status, u.gender, u.birth, u.created_at`

func userDest(u *models.User) []any {
	return []any{
		&u.ID, &u.TelegramID, &u.FirstName, &u.LastName, &u.TelegramNickname,
		&u.Phone, &u.Email, &u.Role, &u.Status, &u.Gender, &u.Birth, &u.CreatedAt,
	}
}

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// Create inserts the user together with a zero balance row.
func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, span, done := instrument(ctx, userTracer, "CreateUser")
	defer func() { done(err) }()

	if user == nil {
		err = pkgerrors.ErrNilUser
		return err
	}
	if user.TelegramID == 0 || user.FirstName == "" {
		err = fmt.Errorf("%w: telegram_id and first_name are required", pkgerrors.ErrInvalidInput)
		return err
	}
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}
	span.SetAttributes(attribute.Int64("telegram_id", user.TelegramID))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { rollback(tx, "CreateUser", err) }()

	query := `
		INSERT INTO users (telegram_id, first_name, last_name, telegram_nickname, phone, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err = tx.QueryRowContext(ctx, query,
		user.TelegramID, user.FirstName, user.LastName, user.TelegramNickname, user.Phone, user.Role,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			err = pkgerrors.ErrUserAlreadyExists
			return err
		}
		slog.Error("failed to create user", "method", "Create", "telegram_id", user.TelegramID, "error", err)
		return fmt.Errorf("failed to create user: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO balance (user_id, amount) VALUES ($1, 0)`, user.ID); err != nil {
		slog.Error("failed to create balance", "method", "Create", "user_id", user.ID, "error", err)
		return fmt.Errorf("failed to create balance: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("user created", "method", "Create", "user_id", user.ID, "telegram_id", user.TelegramID)
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, "GetUserByID", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return r.getOne(ctx, "GetUserByTelegramID", `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
}

func (r *PostgresUserRepository) getOne(ctx context.Context, method, query string, arg int64) (user *models.User, err error) {
	ctx, _, done := instrument(ctx, userTracer, method)
	defer func() { done(err) }()

	var u models.User
	err = r.db.QueryRowContext(ctx, query, arg).Scan(userDest(&u)...)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrUserNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to get user", "method", method, "arg", arg, "error", err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *PostgresUserRepository) List(ctx context.Context, filter models.UserFilter) (users []models.User, err error) {
	ctx, _, done := instrument(ctx, userTracer, "ListUsers")
	defer func() { done(err) }()

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1::bigint IS NULL OR id = $1)
		  AND ($2::bigint IS NULL OR telegram_id = $2)
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, filter.ID, filter.TelegramID)
	if err != nil {
		slog.Error("failed to list users", "method", "List", "error", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users = []models.User{}
	for rows.Next() {
		var u models.User
		if err = rows.Scan(userDest(&u)...); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, telegramID int64, upd models.UserUpdate) (user *models.User, err error) {
	ctx, _, done := instrument(ctx, userTracer, "UpdateUser")
	defer func() { done(err) }()

	if upd.Empty() {
		err = fmt.Errorf("%w: no fields to update", pkgerrors.ErrInvalidInput)
		return nil, err
	}

	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.FirstName != nil {
		add("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		add("last_name", *upd.LastName)
	}
	if upd.TelegramNickname != nil {
		add("telegram_nickname", *upd.TelegramNickname)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Role != nil {
		add("role", *upd.Role)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Gender != nil {
		add("gender", *upd.Gender)
	}
	if upd.Birth != nil {
		add("birth", *upd.Birth)
	}
	args = append(args, telegramID)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE telegram_id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	var u models.User
	err = r.db.QueryRowContext(ctx, query, args...).Scan(userDest(&u)...)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrUserNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to update user", "method", "Update", "telegram_id", telegramID, "error", err)
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	slog.Info("user updated", "method", "Update", "user_id", u.ID, "telegram_id", telegramID)
	return &u, nil
}

// Delete removes the user and every dependent row through the store routine.
func (r *PostgresUserRepository) Delete(ctx context.Context, id int64) (err error) {
	ctx, _, done := instrument(ctx, userTracer, "DeleteUser")
	defer func() { done(err) }()

	var deleted bool
	err = r.db.QueryRowContext(ctx, `SELECT delete_user_and_relations($1)`, id).Scan(&deleted)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			err = pkgerrors.ErrConflict
			return err
		}
		slog.Error("failed to delete user", "method", "Delete", "user_id", id, "error", err)
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if !deleted {
		err = pkgerrors.ErrUserNotFound
		return err
	}
	slog.Info("user deleted", "method", "Delete", "user_id", id)
	return nil
}
