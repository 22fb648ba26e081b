package repository_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/honeynil/GymLedgerService/internal/models"
	repository "github.com/honeynil/GymLedgerService/internal/repository/postgres"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trainerCols = []string{"id", "user_id", "first_name", "last_name", "phone", "deleted", "created_at"}

func TestPostgresTrainerRepository_Create(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta(`INSERT INTO trainers (user_id, first_name, last_name, phone)`)

	t.Run("Success", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresTrainerRepository(db)
		mock.ExpectQuery(query).WithArgs(int64(5), "Anna", "Sidorova", "+7900").
			WillReturnRows(sqlmock.NewRows(trainerCols).AddRow(int64(2), int64(5), "Anna", "Sidorova", "+7900", false, fixedTime))

		tr := &models.Trainer{UserID: 5, FirstName: "Anna", LastName: "Sidorova", Phone: "+7900"}
		require.NoError(t, repo.Create(ctx, tr))
		assert.Equal(t, int64(2), tr.ID)
		assert.Equal(t, fixedTime, tr.CreatedAt)
	})

	t.Run("Duplicate", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresTrainerRepository(db)
		mock.ExpectQuery(query).WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(ctx, &models.Trainer{UserID: 5, FirstName: "Anna", LastName: "Sidorova", Phone: "+7900"})
		assert.ErrorIs(t, err, pkgerrors.ErrConflict)
	})
}

func TestPostgresTrainerRepository_Update(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewPostgresTrainerRepository(db)

	phone := "+7911"
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE user_id = $4 AND deleted = false`)).
		WithArgs(nil, nil, "+7911", int64(5)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), 5, models.TrainerUpdate{Phone: &phone})
	assert.ErrorIs(t, err, pkgerrors.ErrTrainerNotFound)
}

func TestPostgresTrainerRepository_Delete(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewPostgresTrainerRepository(db)
	query := regexp.QuoteMeta(`UPDATE trainers SET deleted = true WHERE user_id = $1 AND deleted = false`)

	mock.ExpectExec(query).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), 5))

	mock.ExpectExec(query).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), 5), pkgerrors.ErrTrainerNotFound)
}

func TestPostgresTrainerRepository_Assign(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta(`INSERT INTO user_trainers (user_id, trainer_id) VALUES ($1, $2) RETURNING id, created_at`)

	t.Run("Success", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresTrainerRepository(db)
		mock.ExpectQuery(query).WithArgs(int64(1), int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(9), fixedTime))

		link, err := repo.Assign(ctx, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(9), link.ID)
	})

	t.Run("AlreadyAssigned", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresTrainerRepository(db)
		mock.ExpectQuery(query).WillReturnError(&pq.Error{Code: "23505"})

		_, err := repo.Assign(ctx, 1, 2)
		assert.ErrorIs(t, err, pkgerrors.ErrConflict)
	})

	t.Run("UnknownTrainer", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewPostgresTrainerRepository(db)
		mock.ExpectQuery(query).WillReturnError(&pq.Error{Code: "23503"})

		_, err := repo.Assign(ctx, 1, 2)
		assert.ErrorIs(t, err, pkgerrors.ErrTrainerNotFound)
	})
}

func TestPostgresTrainerRepository_ListByUser(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewPostgresTrainerRepository(db)

	cols := append([]string{"ut_id", "ut_user_id", "trainer_id", "ut_created_at"}, trainerCols...)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE ut.user_id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(9), int64(1), int64(2), fixedTime, int64(2), int64(5), "Anna", "Sidorova", "+7900", false, fixedTime))

	links, err := repo.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "Anna", links[0].Trainer.FirstName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
