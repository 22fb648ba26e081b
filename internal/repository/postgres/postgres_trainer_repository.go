package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/GymLedgerService/internal/models"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
)

const trainerTracer = "trainer-repository"

const trainerColumns = `id, user_id, first_name, last_name, phone, deleted, created_at`

func trainerDest(t *models.Trainer) []any {
	return []any{&t.ID, &t.UserID, &t.FirstName, &t.LastName, &t.Phone, &t.Deleted, &t.CreatedAt}
}

type PostgresTrainerRepository struct {
	db *sql.DB
}

func NewPostgresTrainerRepository(db *sql.DB) *PostgresTrainerRepository {
	return &PostgresTrainerRepository{db: db}
}

func (r *PostgresTrainerRepository) List(ctx context.Context) (trainers []models.Trainer, err error) {
	ctx, _, done := instrument(ctx, trainerTracer, "ListTrainers")
	defer func() { done(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+trainerColumns+` FROM trainers WHERE deleted = false ORDER BY id`)
	if err != nil {
		slog.Error("failed to list trainers", "method", "List", "error", err)
		return nil, fmt.Errorf("failed to list trainers: %w", err)
	}
	defer rows.Close()

	trainers = []models.Trainer{}
	for rows.Next() {
		var t models.Trainer
		if err = rows.Scan(trainerDest(&t)...); err != nil {
			return nil, fmt.Errorf("failed to scan trainer: %w", err)
		}
		trainers = append(trainers, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trainers: %w", err)
	}
	return trainers, nil
}

func (r *PostgresTrainerRepository) Create(ctx context.Context, trainer *models.Trainer) (err error) {
	ctx, _, done := instrument(ctx, trainerTracer, "CreateTrainer")
	defer func() { done(err) }()

	query := `
		INSERT INTO trainers (user_id, first_name, last_name, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + trainerColumns
	err = r.db.QueryRowContext(ctx, query, trainer.UserID, trainer.FirstName, trainer.LastName, trainer.Phone).
		Scan(trainerDest(trainer)...)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			err = pkgerrors.ErrConflict
			return err
		}
		slog.Error("failed to create trainer", "method", "Create", "user_id", trainer.UserID, "error", err)
		return fmt.Errorf("failed to create trainer: %w", err)
	}
	slog.Info("trainer created", "method", "Create", "trainer_id", trainer.ID)
	return nil
}

func (r *PostgresTrainerRepository) Update(ctx context.Context, userID int64, upd models.TrainerUpdate) (trainer *models.Trainer, err error) {
	ctx, _, done := instrument(ctx, trainerTracer, "UpdateTrainer")
	defer func() { done(err) }()

	query := `
		UPDATE trainers SET
			first_name = COALESCE($1, first_name),
			last_name = COALESCE($2, last_name),
			phone = COALESCE($3, phone)
		WHERE user_id = $4 AND deleted = false
		RETURNING ` + trainerColumns
	var t models.Trainer
	err = r.db.QueryRowContext(ctx, query, upd.FirstName, upd.LastName, upd.Phone, userID).Scan(trainerDest(&t)...)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrTrainerNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to update trainer", "method", "Update", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to update trainer: %w", err)
	}
	return &t, nil
}

// Delete hides the trainer; existing client links keep pointing at the row.
func (r *PostgresTrainerRepository) Delete(ctx context.Context, userID int64) (err error) {
	ctx, _, done := instrument(ctx, trainerTracer, "DeleteTrainer")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `UPDATE trainers SET deleted = true WHERE user_id = $1 AND deleted = false`, userID)
	if err != nil {
		slog.Error("failed to delete trainer", "method", "Delete", "user_id", userID, "error", err)
		return fmt.Errorf("failed to delete trainer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete trainer: %w", err)
	}
	if n == 0 {
		err = pkgerrors.ErrTrainerNotFound
		return err
	}
	return nil
}

func (r *PostgresTrainerRepository) ListByUser(ctx context.Context, userID int64) (links []models.UserTrainer, err error) {
	ctx, _, done := instrument(ctx, trainerTracer, "ListUserTrainers")
	defer func() { done(err) }()

	query := `
		SELECT ut.id, ut.user_id, ut.trainer_id, ut.created_at,
			t.id, t.user_id, t.first_name, t.last_name, t.phone, t.deleted, t.created_at
		FROM user_trainers ut
		JOIN trainers t ON t.id = ut.trainer_id
		WHERE ut.user_id = $1
		ORDER BY ut.id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Error("failed to list user trainers", "method", "ListByUser", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list user trainers: %w", err)
	}
	defer rows.Close()

	links = []models.UserTrainer{}
	for rows.Next() {
		var ut models.UserTrainer
		var t models.Trainer
		dest := append([]any{&ut.ID, &ut.UserID, &ut.TrainerID, &ut.CreatedAt}, trainerDest(&t)...)
		if err = rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan user trainer: %w", err)
		}
		ut.Trainer = &t
		links = append(links, ut)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user trainers: %w", err)
	}
	return links, nil
}

func (r *PostgresTrainerRepository) Assign(ctx context.Context, userID, trainerID int64) (link *models.UserTrainer, err error) {
	ctx, _, done := instrument(ctx, trainerTracer, "AssignTrainer")
	defer func() { done(err) }()

	link = &models.UserTrainer{UserID: userID, TrainerID: trainerID}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO user_trainers (user_id, trainer_id) VALUES ($1, $2) RETURNING id, created_at`,
		userID, trainerID,
	).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		switch pqCode(err) {
		case pqUniqueViolation:
			err = pkgerrors.ErrConflict
			return nil, err
		case pqForeignKeyViolation:
			err = pkgerrors.ErrTrainerNotFound
			return nil, err
		}
		slog.Error("failed to assign trainer", "method", "Assign", "user_id", userID, "trainer_id", trainerID, "error", err)
		return nil, fmt.Errorf("failed to assign trainer: %w", err)
	}
	slog.Info("trainer assigned", "method", "Assign", "user_id", userID, "trainer_id", trainerID)
	return link, nil
}
