package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentorship-api/internal/models"
)

func TestAssignmentRunCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRunRepository(db)

	mock.ExpectExec("INSERT INTO assignment_runs").WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.AssignmentRun{Mode: models.ModeNaive}
	require.NoError(t, repo.Create(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.RunStatusQueued, run.Status)
	assert.NotNil(t, run.Outcomes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRunUpdateWithResult(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRunRepository(db)

	status := models.RunStatusFinished
	finished := time.Now().UTC()
	result := models.BatchResult{Mode: models.ModeNaive}
	result.Record(models.AssignmentOutcome{MenteeID: "BCS2311-017", MentorID: "STC001", Result: models.OutcomeAssigned})

	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignment_runs SET status = $1, assigned = $2, unresolvable = $3, skipped = $4, failed = $5, outcomes = $6, finished_at = $7 WHERE id = $8")).
		WithArgs(status, 1, 0, 0, 0, sqlmock.AnyArg(), finished, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "run-1", UpdateRunParams{Status: &status, Result: &result, FinishedAt: &finished}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRunUpdateNoop(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRunRepository(db)

	require.NoError(t, repo.Update(context.Background(), "run-1", UpdateRunParams{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRunFindByIDScansOutcomes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRunRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM assignment_runs WHERE id = $1")).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "mode", "status", "assigned", "unresolvable", "skipped", "failed", "outcomes", "created_by", "created_at", "finished_at", "error_message"}).
			AddRow("run-1", "gender_balanced", "FINISHED", 1, 1, 0, 0, []byte(`[{"mentee_id":"IEP2301-001","result":"unresolvable","reason":"UNRESOLVABLE_DEPARTMENT"}]`), nil, now, now, nil))

	run, err := repo.FindByID(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 1)
	assert.Equal(t, models.OutcomeUnresolvable, run.Outcomes[0].Result)
	assert.Equal(t, models.ModeGenderBalanced, run.Mode)
}

func TestAssignmentRunListUnfinishedIncludesRunning(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRunRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status IN ('QUEUED', 'RUNNING') ORDER BY created_at ASC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "mode", "status", "assigned", "unresolvable", "skipped", "failed", "outcomes", "created_by", "created_at", "finished_at", "error_message"}).
			AddRow("run-1", "naive", "RUNNING", 0, 0, 0, 0, []byte(`[]`), nil, now, nil, nil).
			AddRow("run-2", "naive", "QUEUED", 0, 0, 0, 0, []byte(`[]`), nil, now, nil, nil))

	runs, err := repo.ListUnfinished(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, models.RunStatusRunning, runs[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
