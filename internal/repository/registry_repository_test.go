package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentorship-api/internal/models"
)

var menteeRowColumns = []string{"id", "user_id", "name", "course", "semester", "year", "email", "phone", "gender", "status", "assigned_mentor_id", "created_at", "updated_at"}

func TestMenteeListUnassigned(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMenteeRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM mentees WHERE (status = $1 AND NOT EXISTS (SELECT 1 FROM mentor_mentee_assignments a WHERE a.mentee_id = mentees.id AND a.status = 'active')) ORDER BY id")).
		WithArgs("active").
		WillReturnRows(sqlmock.NewRows(menteeRowColumns).
			AddRow("BCS2311-017", nil, "Amir", "Diploma in Computer Science", 1, 2023, "", "", "male", "active", nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM mentees")).
		WithArgs("active").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mentees, err := repo.ListUnassigned(context.Background())
	require.NoError(t, err)
	require.Len(t, mentees, 1)
	assert.Equal(t, models.GenderMale, mentees[0].Gender)
	assert.Nil(t, mentees[0].AssignedMentorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMenteeLinkUserAlreadyLinked(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMenteeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE mentees SET user_id = $2, updated_at = $3 WHERE id = $1 AND user_id IS NULL")).
		WithArgs("BCS2311-017", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.LinkUser(context.Background(), "BCS2311-017", "u1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestMenteeDeleteRefreshesMentor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMenteeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT mentor_id FROM mentor_mentee_assignments WHERE mentee_id = \\$1 AND status = 'active' FOR UPDATE").
		WithArgs("BCS2311-017").
		WillReturnRows(sqlmock.NewRows([]string{"mentor_id"}).AddRow("STC001"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM mentees WHERE id = $1")).
		WithArgs("BCS2311-017").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE mentors SET current_mentees").WithArgs("STC001", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "BCS2311-017"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMentorCreateNormalizesDepartment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMentorRepository(db)

	mock.ExpectExec("INSERT INTO mentors").
		WithArgs("STA001", nil, "Lee", "", "", "Accounting Department", 20, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mentor := &models.Mentor{ID: "STA001", Name: "Lee", Department: " Accounting Department Department ", MaxMentees: 20, CurrentMentees: 7}
	require.NoError(t, repo.Create(context.Background(), mentor))
	assert.Equal(t, "Accounting Department", mentor.Department)
	assert.Zero(t, mentor.CurrentMentees)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMentorUpdateBelowActiveCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMentorRepository(db)

	mock.ExpectExec("UPDATE mentors SET name").
		WillReturnError(&pq.Error{Code: "23514", Constraint: "chk_mentors_capacity"})

	err := repo.Update(context.Background(), &models.Mentor{ID: "STA001", Name: "Lee", MaxMentees: 1})
	assert.ErrorIs(t, err, ErrCapacityReached)
}

func TestMentorDeleteWithActiveMentees(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMentorRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM mentors WHERE id = $1 FOR UPDATE")).
		WithArgs("STA001").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("STA001"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM mentor_mentee_assignments WHERE mentor_id = $1 AND status = 'active'")).
		WithArgs("STA001").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "STA001")
	assert.ErrorIs(t, err, ErrMentorHasActiveMentees)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMentorListWithVacancy(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMentorRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM mentors WHERE (department ILIKE $1 AND max_mentees > (SELECT COUNT(*)")).
		WithArgs("%accounting%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "email", "phone", "department", "max_mentees", "current_mentees", "created_at", "updated_at"}).
			AddRow("STA001", nil, "Lee", "", "", "Accounting Department", 5, 2, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM mentors")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mentors, total, err := repo.List(context.Background(), models.MentorFilter{Department: "accounting", WithVacancy: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "STA001", mentors[0].ID)
}
