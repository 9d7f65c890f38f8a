package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/babynest/internal/model"
)

var babyRowColumns = []string{"id", "name", "gender", "color", "photo_url", "birth_date", "created_at", "updated_at"}

func TestPostgresBabyRepo_List_ReturnsRowsInOrder(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresBabyRepo(db)
	now := time.Now()
	birth := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM babies ORDER BY created_at ASC`).
		WillReturnRows(sqlmock.NewRows(babyRowColumns).
			AddRow("b-1", "Lucía", "female", "#BEB6D9", "", birth, now, now).
			AddRow("b-2", "Mateo", "male", "#A0C4FF", "https://img/m.png", birth, now, now))

	babies, err := repo.List(t.Context())

	require.NoError(t, err)
	require.Len(t, babies, 2)
	assert.Equal(t, "Lucía", babies[0].Name)
	assert.Equal(t, model.GenderFemale, babies[0].Gender)
	assert.Equal(t, model.GenderMale, babies[1].Gender)
	assert.True(t, babies[1].BirthDate.Equal(birth))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBabyRepo_List_EmptyIsNotNil(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresBabyRepo(db)

	mock.ExpectQuery(`FROM babies`).WillReturnRows(sqlmock.NewRows(babyRowColumns))

	babies, err := repo.List(t.Context())

	require.NoError(t, err)
	assert.NotNil(t, babies)
	assert.Empty(t, babies)
}

func TestPostgresBabyRepo_Create_PassesAllFields(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresBabyRepo(db)
	now := time.Now()
	birth := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	baby := &model.Baby{ID: "b-1", Name: "Lucía", Gender: model.GenderFemale, Color: "#BEB6D9", BirthDate: birth, CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec(`INSERT INTO babies`).
		WithArgs("b-1", "Lucía", "female", "#BEB6D9", "", birth, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(t.Context(), baby))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBabyRepo_Update_OnlyPhoto(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresBabyRepo(db)
	now := time.Now()
	birth := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	photo := "https://img/l.png"

	mock.ExpectQuery(`UPDATE babies SET`).
		WithArgs("b-1", nil, nil, nil, photo, nil).
		WillReturnRows(sqlmock.NewRows(babyRowColumns).
			AddRow("b-1", "Lucía", "female", "#BEB6D9", photo, birth, now, now))

	baby, err := repo.Update(t.Context(), "b-1", model.BabyPatch{PhotoURL: &photo})

	require.NoError(t, err)
	assert.Equal(t, photo, baby.PhotoURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBabyRepo_FindByID_DBErrorIsWrapped(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresBabyRepo(db)
	dbErr := errors.New("connection reset")

	mock.ExpectQuery(`FROM babies WHERE id = \$1`).WithArgs("b-1").WillReturnError(dbErr)

	_, err := repo.FindByID(t.Context(), "b-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
}

func TestPostgresBabyRepo_Delete_ReportsWhetherRowExisted(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresBabyRepo(db)

	mock.ExpectExec(`DELETE FROM babies WHERE id = \$1`).WithArgs("b-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM babies WHERE id = \$1`).WithArgs("b-1").WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(t.Context(), "b-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(t.Context(), "b-1")
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHouseRepo_CRUD(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresHouseRepo(db)
	now := time.Now()
	name := "Casa Abuela"

	mock.ExpectExec(`INSERT INTO houses`).
		WithArgs("h-1", "Casa", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE houses SET name = COALESCE`).
		WithArgs("h-1", name).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).AddRow("h-1", name, now, now))
	mock.ExpectQuery(`FROM houses ORDER BY`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).AddRow("h-1", name, now, now))
	mock.ExpectExec(`DELETE FROM houses`).WithArgs("h-1").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(t.Context(), &model.House{ID: "h-1", Name: "Casa", CreatedAt: now, UpdatedAt: now}))

	updated, err := repo.Update(t.Context(), "h-1", model.HousePatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	houses, err := repo.List(t.Context())
	require.NoError(t, err)
	require.Len(t, houses, 1)
	assert.Equal(t, name, houses[0].Name)

	deleted, err := repo.Delete(t.Context(), "h-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHouseRepo_Update_NotFoundReturnsNil(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresHouseRepo(db)
	name := "X"

	mock.ExpectQuery(`UPDATE houses`).
		WithArgs("missing", name).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}))

	house, err := repo.Update(t.Context(), "missing", model.HousePatch{Name: &name})

	require.NoError(t, err)
	assert.Nil(t, house)
}
