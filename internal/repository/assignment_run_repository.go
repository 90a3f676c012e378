package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mentorship-api/internal/models"
)

const assignmentRunColumns = "id, mode, status, assigned, unresolvable, skipped, failed, outcomes, created_by, created_at, finished_at, error_message"

// AssignmentRunRepository persists batch auto-assign executions.
type AssignmentRunRepository struct {
	db *sqlx.DB
}

// NewAssignmentRunRepository constructs the repository.
func NewAssignmentRunRepository(db *sqlx.DB) *AssignmentRunRepository {
	return &AssignmentRunRepository{db: db}
}

// Create inserts a new run row with generated defaults.
func (r *AssignmentRunRepository) Create(ctx context.Context, run *models.AssignmentRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunStatusQueued
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Outcomes == nil {
		run.Outcomes = models.OutcomeLog{}
	}
	const query = `INSERT INTO assignment_runs (` + assignmentRunColumns + `)
VALUES (:id, :mode, :status, :assigned, :unresolvable, :skipped, :failed, :outcomes, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create assignment run: %w", err)
	}
	return nil
}

// FindByID returns a run by identifier.
func (r *AssignmentRunRepository) FindByID(ctx context.Context, id string) (*models.AssignmentRun, error) {
	const query = `SELECT ` + assignmentRunColumns + ` FROM assignment_runs WHERE id = $1`
	var run models.AssignmentRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get assignment run: %w", err)
	}
	return &run, nil
}

// UpdateRunParams defines the mutable fields of a run.
type UpdateRunParams struct {
	Status       *models.RunStatus
	Result       *models.BatchResult
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes for a run row.
func (r *AssignmentRunRepository) Update(ctx context.Context, id string, params UpdateRunParams) error {
	set := make([]string, 0, 8)
	args := make([]interface{}, 0, 9)
	argPos := 1
	add := func(column string, value interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Result != nil {
		add("assigned", params.Result.Assigned)
		add("unresolvable", params.Result.Unresolvable)
		add("skipped", params.Result.Skipped)
		add("failed", params.Result.Failed)
		add("outcomes", params.Result.Outcomes)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE assignment_runs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update assignment run: %w", err)
	}
	return nil
}

// ListUnfinished fetches QUEUED and RUNNING runs, oldest first, so they can be resumed after a restart.
func (r *AssignmentRunRepository) ListUnfinished(ctx context.Context, limit int) ([]models.AssignmentRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT ` + assignmentRunColumns + ` FROM assignment_runs WHERE status IN ('QUEUED', 'RUNNING') ORDER BY created_at ASC LIMIT $1`
	var runs []models.AssignmentRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list unfinished assignment runs: %w", err)
	}
	return runs, nil
}
