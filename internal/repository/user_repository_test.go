package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentorship-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestUserFindByLogin(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "full_name", "role", "active", "last_login", "created_at", "updated_at"}).
		AddRow("u1", "BCS2311-017", "amir@example.com", "hash", "Amir", string(models.RoleMentee), true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE UPPER(username) = UPPER($1) OR LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("bcs2311-017").
		WillReturnRows(rows)

	user, err := repo.FindByLogin(context.Background(), "bcs2311-017")
	require.NoError(t, err)
	assert.Equal(t, "BCS2311-017", user.Username)
	assert.Equal(t, models.RoleMentee, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByLoginNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByLogin(context.Background(), "nobody")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserExistsByUsernameOrEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT\\s+EXISTS").
		WithArgs("STA001", "lee@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"username_taken", "email_taken"}).AddRow(false, true))

	usernameTaken, emailTaken, err := repo.ExistsByUsernameOrEmail(context.Background(), "STA001", "lee@example.com")
	require.NoError(t, err)
	assert.False(t, usernameTaken)
	assert.True(t, emailTaken)
}

func TestUserCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{Username: "STA001", Email: "lee@example.com", PasswordHash: "hash", FullName: "Lee", Role: models.RoleMentor, Active: true}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
