package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/pkg/database"
)

// Ledger errors surfaced by the transactional units.
var (
	ErrActiveAssignmentExists = errors.New("mentee already has an active assignment")
	ErrPairExists             = errors.New("mentor and mentee were already paired")
	ErrCapacityReached        = errors.New("mentor has no vacancy")
	ErrAssignmentNotActive    = errors.New("assignment is not active")
	ErrMentorMissing          = errors.New("mentor does not exist")
	ErrMenteeMissing          = errors.New("mentee does not exist")
)

const (
	constraintActiveMentee = "uq_assignments_active_mentee"
	constraintPair         = "uq_assignments_pair"
	constraintCapacity     = "chk_mentors_capacity"
)

const assignmentViewColumns = `a.id, a.mentor_id, a.mentee_id, a.status, a.assigned_date, a.assigned_by, a.transferred_to,
	a.transferred_by, a.transferred_at, a.notes, a.updated_at,
	mr.name AS mentor_name, mr.department AS mentor_department, me.name AS mentee_name, me.course AS mentee_course`

const assignmentViewFrom = `mentor_mentee_assignments a
JOIN mentors mr ON mr.id = a.mentor_id
JOIN mentees me ON me.id = a.mentee_id`

const mentorLoadQuery = `SELECT m.id, m.user_id, m.name, m.email, m.phone, m.department, m.max_mentees, m.current_mentees, m.created_at, m.updated_at,
	COUNT(a.id) AS active_count,
	COUNT(a.id) FILTER (WHERE me.gender = 'male') AS male_count,
	COUNT(a.id) FILTER (WHERE me.gender = 'female') AS female_count
FROM mentors m
LEFT JOIN mentor_mentee_assignments a ON a.mentor_id = m.id AND a.status = 'active'
LEFT JOIN mentees me ON me.id = a.mentee_id`

// AssignmentRepository is the assignment ledger.
type AssignmentRepository struct {
	db *sqlx.DB
	sb squirrel.StatementBuilderType
}

// NewAssignmentRepository constructs the ledger repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db, sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

// FindByID returns one assignment with display names.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.AssignmentView, error) {
	query := `SELECT ` + assignmentViewColumns + ` FROM ` + assignmentViewFrom + ` WHERE a.id = $1`
	var view models.AssignmentView
	if err := r.db.GetContext(ctx, &view, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &view, nil
}

// FindActiveByMentee returns the mentee's single active assignment.
func (r *AssignmentRepository) FindActiveByMentee(ctx context.Context, menteeID string) (*models.AssignmentView, error) {
	query := `SELECT ` + assignmentViewColumns + ` FROM ` + assignmentViewFrom + ` WHERE a.mentee_id = $1 AND a.status = 'active'`
	var view models.AssignmentView
	if err := r.db.GetContext(ctx, &view, query, menteeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find active assignment: %w", err)
	}
	return &view, nil
}

// ListByMentee returns the mentee's assignment history, newest first.
func (r *AssignmentRepository) ListByMentee(ctx context.Context, menteeID string) ([]models.AssignmentView, error) {
	items, _, err := r.List(ctx, models.AssignmentFilter{MenteeID: menteeID, PageSize: -1})
	return items, err
}

// List filters the ledger. A negative PageSize disables paging.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentView, int, error) {
	where := assignmentWhere(filter)

	listBuilder := r.sb.Select(assignmentViewColumns).
		From(assignmentViewFrom).
		Where(where).
		OrderBy("a.assigned_date DESC", "a.id")

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	if pageSize > 0 {
		listBuilder = listBuilder.Limit(uint64(pageSize)).Offset(uint64((page - 1) * pageSize))
	}

	query, args, err := listBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build assignment list query: %w", err)
	}

	var items []models.AssignmentView
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	countQuery, countArgs, err := r.sb.Select("COUNT(*)").From(assignmentViewFrom).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build assignment count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}
	return items, total, nil
}

func assignmentWhere(filter models.AssignmentFilter) squirrel.And {
	where := squirrel.And{}
	if filter.MentorID != "" {
		where = append(where, squirrel.Eq{"a.mentor_id": filter.MentorID})
	}
	if filter.MenteeID != "" {
		where = append(where, squirrel.Eq{"a.mentee_id": filter.MenteeID})
	}
	if filter.Status != nil {
		where = append(where, squirrel.Eq{"a.status": string(*filter.Status)})
	}
	if filter.From != nil {
		where = append(where, squirrel.GtOrEq{"a.assigned_date": *filter.From})
	}
	if filter.To != nil {
		where = append(where, squirrel.Lt{"a.assigned_date": *filter.To})
	}
	return where
}

// Stats counts the ledger rows matching the filter by status.
func (r *AssignmentRepository) Stats(ctx context.Context, filter models.AssignmentFilter) (models.AssignmentStats, error) {
	filter.Status = nil
	query, args, err := r.sb.Select(
		"COUNT(*) AS total",
		"COUNT(*) FILTER (WHERE a.status = 'active') AS active",
		"COUNT(*) FILTER (WHERE a.status = 'completed') AS completed",
		"COUNT(*) FILTER (WHERE a.status = 'transferred') AS transferred",
	).From("mentor_mentee_assignments a").Where(assignmentWhere(filter)).ToSql()
	if err != nil {
		return models.AssignmentStats{}, fmt.Errorf("build assignment stats query: %w", err)
	}
	var stats models.AssignmentStats
	if err := r.db.GetContext(ctx, &stats, query, args...); err != nil {
		return models.AssignmentStats{}, fmt.Errorf("assignment stats: %w", err)
	}
	return stats, nil
}

// MentorLoads returns every mentor with live ledger counts, ordered by id.
func (r *AssignmentRepository) MentorLoads(ctx context.Context) ([]models.MentorLoad, error) {
	query := mentorLoadQuery + ` GROUP BY m.id ORDER BY m.id`
	var loads []models.MentorLoad
	if err := r.db.SelectContext(ctx, &loads, query); err != nil {
		return nil, fmt.Errorf("list mentor loads: %w", err)
	}
	return loads, nil
}

// MentorLoad returns one mentor with live ledger counts.
func (r *AssignmentRepository) MentorLoad(ctx context.Context, mentorID string) (*models.MentorLoad, error) {
	query := mentorLoadQuery + ` WHERE m.id = $1 GROUP BY m.id`
	var load models.MentorLoad
	if err := r.db.GetContext(ctx, &load, query, mentorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("mentor load: %w", err)
	}
	return &load, nil
}

type ledgerCounts struct {
	MentorActive int `db:"mentor_active"`
	MenteeActive int `db:"mentee_active"`
	Pair         int `db:"pair"`
}

const ledgerCountsQuery = `SELECT
	COUNT(*) FILTER (WHERE mentor_id = $1 AND status = 'active') AS mentor_active,
	COUNT(*) FILTER (WHERE mentee_id = $2 AND status = 'active') AS mentee_active,
	COUNT(*) FILTER (WHERE mentor_id = $1 AND mentee_id = $2) AS pair
FROM mentor_mentee_assignments
WHERE mentor_id = $1 OR mentee_id = $2`

const (
	insertAssignmentQuery = `INSERT INTO mentor_mentee_assignments (id, mentor_id, mentee_id, status, assigned_date, assigned_by, notes, updated_at)
VALUES ($1, $2, $3, 'active', $4, $5, $6, $4)`
	setMenteeMentorQuery = `UPDATE mentees SET assigned_mentor_id = $2, updated_at = $3 WHERE id = $1`
	refreshMentorQuery   = `UPDATE mentors SET current_mentees = (SELECT COUNT(*) FROM mentor_mentee_assignments WHERE mentor_id = $1 AND status = 'active'), updated_at = $2 WHERE id = $1`
)

// AssignTx creates an active assignment after re-verifying capacity under a mentor row lock.
func (r *AssignmentRepository) AssignTx(ctx context.Context, mentorID, menteeID string, actor *string, notes string) (assignment *models.Assignment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin assign transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var maxMentees int
	if err = tx.GetContext(ctx, &maxMentees, `SELECT max_mentees FROM mentors WHERE id = $1 FOR UPDATE`, mentorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMentorMissing
		}
		return nil, fmt.Errorf("lock mentor: %w", err)
	}

	var lockedMentee string
	if err = tx.GetContext(ctx, &lockedMentee, `SELECT id FROM mentees WHERE id = $1 FOR UPDATE`, menteeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMenteeMissing
		}
		return nil, fmt.Errorf("lock mentee: %w", err)
	}

	var counts ledgerCounts
	if err = tx.GetContext(ctx, &counts, ledgerCountsQuery, mentorID, menteeID); err != nil {
		return nil, fmt.Errorf("recount ledger: %w", err)
	}
	switch {
	case counts.MentorActive >= maxMentees:
		return nil, ErrCapacityReached
	case counts.MenteeActive > 0:
		return nil, ErrActiveAssignmentExists
	case counts.Pair > 0:
		return nil, ErrPairExists
	}

	now := time.Now().UTC()
	assignment = &models.Assignment{
		ID:           uuid.NewString(),
		MentorID:     mentorID,
		MenteeID:     menteeID,
		Status:       models.AssignmentActive,
		AssignedDate: now,
		AssignedBy:   actor,
		Notes:        notes,
		UpdatedAt:    now,
	}
	if _, err = tx.ExecContext(ctx, insertAssignmentQuery, assignment.ID, mentorID, menteeID, now, actor, notes); err != nil {
		return nil, mapLedgerError("insert assignment", err)
	}
	if _, err = tx.ExecContext(ctx, setMenteeMentorQuery, menteeID, mentorID, now); err != nil {
		return nil, fmt.Errorf("update mentee mentor: %w", err)
	}
	if _, err = tx.ExecContext(ctx, refreshMentorQuery, mentorID, now); err != nil {
		return nil, mapLedgerError("refresh mentor count", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assignment: %w", err)
	}
	return assignment, nil
}

type lockedAssignment struct {
	MentorID string                  `db:"mentor_id"`
	MenteeID string                  `db:"mentee_id"`
	Status   models.AssignmentStatus `db:"status"`
}

// TransferTx retires an active assignment as transferred and opens a new one for the new mentor.
func (r *AssignmentRepository) TransferTx(ctx context.Context, req models.TransferRequest) (assignment *models.Assignment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transfer transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current lockedAssignment
	if err = tx.GetContext(ctx, &current, `SELECT mentor_id, mentee_id, status FROM mentor_mentee_assignments WHERE id = $1 FOR UPDATE`, req.AssignmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock assignment: %w", err)
	}
	if current.Status != models.AssignmentActive {
		return nil, ErrAssignmentNotActive
	}

	var mentors []struct {
		ID         string `db:"id"`
		MaxMentees int    `db:"max_mentees"`
	}
	if err = tx.SelectContext(ctx, &mentors, `SELECT id, max_mentees FROM mentors WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`, current.MentorID, req.NewMentorID); err != nil {
		return nil, fmt.Errorf("lock mentors: %w", err)
	}
	maxMentees := -1
	for _, m := range mentors {
		if m.ID == req.NewMentorID {
			maxMentees = m.MaxMentees
		}
	}
	if maxMentees < 0 {
		return nil, ErrMentorMissing
	}

	var counts ledgerCounts
	if err = tx.GetContext(ctx, &counts, ledgerCountsQuery, req.NewMentorID, current.MenteeID); err != nil {
		return nil, fmt.Errorf("recount ledger: %w", err)
	}
	if counts.MentorActive >= maxMentees {
		return nil, ErrCapacityReached
	}
	if counts.Pair > 0 {
		return nil, ErrPairExists
	}

	now := time.Now().UTC()
	const retireQuery = `UPDATE mentor_mentee_assignments SET status = 'transferred', transferred_to = $2, transferred_by = $3, transferred_at = $4, notes = $5, updated_at = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, retireQuery, req.AssignmentID, req.NewMentorID, nullableString(req.Actor), now, req.Notes); err != nil {
		return nil, fmt.Errorf("mark assignment transferred: %w", err)
	}

	assignment = &models.Assignment{
		ID:           uuid.NewString(),
		MentorID:     req.NewMentorID,
		MenteeID:     current.MenteeID,
		Status:       models.AssignmentActive,
		AssignedDate: now,
		AssignedBy:   nullableString(req.Actor),
		Notes:        req.NewNotes,
		UpdatedAt:    now,
	}
	if _, err = tx.ExecContext(ctx, insertAssignmentQuery, assignment.ID, assignment.MentorID, assignment.MenteeID, now, assignment.AssignedBy, assignment.Notes); err != nil {
		return nil, mapLedgerError("insert transferred assignment", err)
	}
	if _, err = tx.ExecContext(ctx, setMenteeMentorQuery, current.MenteeID, req.NewMentorID, now); err != nil {
		return nil, fmt.Errorf("update mentee mentor: %w", err)
	}
	for _, mentorID := range []string{current.MentorID, req.NewMentorID} {
		if _, err = tx.ExecContext(ctx, refreshMentorQuery, mentorID, now); err != nil {
			return nil, mapLedgerError("refresh mentor count", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transfer: %w", err)
	}
	return assignment, nil
}

// MarkStatus closes an active assignment with the given terminal status and clears the mentee cache.
func (r *AssignmentRepository) MarkStatus(ctx context.Context, id string, status models.AssignmentStatus) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current lockedAssignment
	if err = tx.GetContext(ctx, &current, `SELECT mentor_id, mentee_id, status FROM mentor_mentee_assignments WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock assignment: %w", err)
	}
	if current.Status != models.AssignmentActive {
		return ErrAssignmentNotActive
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE mentor_mentee_assignments SET status = $2, updated_at = $3 WHERE id = $1`, id, status, now); err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	if err = r.releaseMentee(ctx, tx, current, now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit status change: %w", err)
	}
	return nil
}

// Delete removes a ledger row; deleting the active row releases the mentee.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current lockedAssignment
	if err = tx.GetContext(ctx, &current, `SELECT mentor_id, mentee_id, status FROM mentor_mentee_assignments WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock assignment: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM mentor_mentee_assignments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if current.Status == models.AssignmentActive {
		if err = r.releaseMentee(ctx, tx, current, time.Now().UTC()); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment delete: %w", err)
	}
	return nil
}

func (r *AssignmentRepository) releaseMentee(ctx context.Context, tx *sqlx.Tx, current lockedAssignment, now time.Time) error {
	const clearQuery = `UPDATE mentees SET assigned_mentor_id = NULL, updated_at = $3 WHERE id = $1 AND assigned_mentor_id = $2`
	if _, err := tx.ExecContext(ctx, clearQuery, current.MenteeID, current.MentorID, now); err != nil {
		return fmt.Errorf("clear mentee mentor: %w", err)
	}
	if _, err := tx.ExecContext(ctx, refreshMentorQuery, current.MentorID, now); err != nil {
		return fmt.Errorf("refresh mentor count: %w", err)
	}
	return nil
}

func mapLedgerError(op string, err error) error {
	if constraint, ok := database.UniqueViolation(err); ok {
		switch constraint {
		case constraintActiveMentee:
			return ErrActiveAssignmentExists
		case constraintPair:
			return ErrPairExists
		}
	}
	if constraint, ok := database.CheckViolation(err); ok && constraint == constraintCapacity {
		return ErrCapacityReached
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func normalizePage(page, pageSize int) (int, int) {
	if pageSize < 0 {
		return 1, 0
	}
	if page < 1 {
		page = 1
	}
	if pageSize == 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
