package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/babynest/internal/model"
)

var identityRowColumns = []string{"id", "user_id", "provider", "provider_user_id", "secret_hash", "created_at"}

func TestPostgresIdentityRepo_Password_ReturnsSecretHash(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresIdentityRepo(db)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	// メールアドレスは小文字化して照合する
	mock.ExpectQuery(`SELECT .+ FROM identities WHERE provider = \$1 AND provider_user_id = \$2`).
		WithArgs(model.ProviderPassword, "mama@example.com").
		WillReturnRows(sqlmock.NewRows(identityRowColumns).
			AddRow("ident-1", "user-1", "password", "mama@example.com", "$2a$04$hash", now))

	ident, err := repo.FindByProviderAndProviderUserID(t.Context(), model.ProviderPassword, " Mama@Example.com ")

	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Equal(t, "user-1", ident.UserID)
	assert.Equal(t, "$2a$04$hash", ident.SecretHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIdentityRepo_Google_NullSecretIsEmpty(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresIdentityRepo(db)

	mock.ExpectQuery(`FROM identities`).
		WithArgs(model.ProviderGoogle, "Google-Sub-123").
		WillReturnRows(sqlmock.NewRows(identityRowColumns).
			AddRow("ident-2", "user-2", "google", "Google-Sub-123", nil, time.Now()))

	ident, err := repo.FindByProviderAndProviderUserID(t.Context(), model.ProviderGoogle, "Google-Sub-123")

	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Empty(t, ident.SecretHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIdentityRepo_PasswordWithoutHash_ReturnsError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresIdentityRepo(db)

	mock.ExpectQuery(`FROM identities`).
		WithArgs(model.ProviderPassword, "papa@example.com").
		WillReturnRows(sqlmock.NewRows(identityRowColumns).
			AddRow("ident-3", "user-3", "password", "papa@example.com", nil, time.Now()))

	ident, err := repo.FindByProviderAndProviderUserID(t.Context(), model.ProviderPassword, "papa@example.com")

	assert.Error(t, err)
	assert.Nil(t, ident)
}

func TestPostgresIdentityRepo_NotFoundReturnsNil(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresIdentityRepo(db)

	mock.ExpectQuery(`FROM identities`).
		WithArgs(model.ProviderPassword, "nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	ident, err := repo.FindByProviderAndProviderUserID(t.Context(), model.ProviderPassword, "nobody@example.com")

	require.NoError(t, err)
	assert.Nil(t, ident)
}

func TestPostgresSessionRepo_Create_StoresUTC(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresSessionRepo(db)
	tokyo := time.FixedZone("JST", 9*60*60)
	created := time.Date(2026, 5, 1, 18, 0, 0, 0, tokyo)

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs("sess-1", "user-1", created.Add(24*time.Hour).UTC(), created.UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(t.Context(), &model.Session{
		ID: "sess-1", UserID: "user-1", ExpiresAt: created.Add(24 * time.Hour), CreatedAt: created,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSessionRepo_Create_RequiresUser(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresSessionRepo(db)

	err := repo.Create(t.Context(), &model.Session{ID: "sess-1"})

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSessionRepo_FindByID_ExpiredReturnsNil_Auth(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresSessionRepo(db)

	mock.ExpectQuery(`FROM sessions WHERE id = \$1 AND expires_at > now\(\)`).
		WithArgs("sess-old").
		WillReturnError(sql.ErrNoRows)

	s, err := repo.FindByID(t.Context(), "sess-old")

	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestPostgresSessionRepo_DeleteByUserID_WrapsError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresSessionRepo(db)

	mock.ExpectExec(`DELETE FROM sessions WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnError(sql.ErrConnDone)

	err := repo.DeleteByUserID(t.Context(), "user-1")

	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.Contains(t, err.Error(), "delete user sessions")
}
