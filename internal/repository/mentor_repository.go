package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mentorship-api/internal/models"
)

// ErrMentorHasActiveMentees blocks deleting a mentor that still supervises mentees.
var ErrMentorHasActiveMentees = errors.New("mentor still has active mentees")

const mentorColumns = "id, user_id, name, email, phone, department, max_mentees, current_mentees, created_at, updated_at"

// MentorRepository provides database access for mentors.
type MentorRepository struct {
	db *sqlx.DB
	sb squirrel.StatementBuilderType
}

// NewMentorRepository creates a new instance of MentorRepository.
func NewMentorRepository(db *sqlx.DB) *MentorRepository {
	return &MentorRepository{db: db, sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

// FindByID returns a mentor by identifier.
func (r *MentorRepository) FindByID(ctx context.Context, id string) (*models.Mentor, error) {
	query := `SELECT ` + mentorColumns + ` FROM mentors WHERE id = $1`
	var mentor models.Mentor
	if err := r.db.GetContext(ctx, &mentor, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find mentor: %w", err)
	}
	return &mentor, nil
}

// FindByUserID returns the mentor profile linked to a user account.
func (r *MentorRepository) FindByUserID(ctx context.Context, userID string) (*models.Mentor, error) {
	query := `SELECT ` + mentorColumns + ` FROM mentors WHERE user_id = $1`
	var mentor models.Mentor
	if err := r.db.GetContext(ctx, &mentor, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find mentor by user: %w", err)
	}
	return &mentor, nil
}

// List returns mentors matching the filter with the total count.
func (r *MentorRepository) List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, int, error) {
	where := squirrel.And{}
	if filter.Department != "" {
		where = append(where, squirrel.ILike{"department": "%" + filter.Department + "%"})
	}
	if filter.WithVacancy {
		where = append(where, squirrel.Expr("max_mentees > (SELECT COUNT(*) FROM mentor_mentee_assignments a WHERE a.mentor_id = mentors.id AND a.status = 'active')"))
	}

	builder := r.sb.Select(mentorColumns).From("mentors").Where(where).OrderBy("department", "id")
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	if pageSize > 0 {
		builder = builder.Limit(uint64(pageSize)).Offset(uint64((page - 1) * pageSize))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build mentor list query: %w", err)
	}

	var mentors []models.Mentor
	if err := r.db.SelectContext(ctx, &mentors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list mentors: %w", err)
	}

	countQuery, countArgs, err := r.sb.Select("COUNT(*)").From("mentors").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build mentor count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count mentors: %w", err)
	}
	return mentors, total, nil
}

// Exists reports whether the identifier is taken.
func (r *MentorRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM mentors WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("check mentor exists: %w", err)
	}
	return exists, nil
}

// Create inserts a new mentor.
func (r *MentorRepository) Create(ctx context.Context, mentor *models.Mentor) error {
	now := time.Now().UTC()
	mentor.Department = models.NormalizeDepartment(mentor.Department)
	mentor.CurrentMentees = 0
	mentor.CreatedAt = now
	mentor.UpdatedAt = now
	const query = `INSERT INTO mentors (id, user_id, name, email, phone, department, max_mentees, current_mentees, created_at, updated_at)
VALUES (:id, :user_id, :name, :email, :phone, :department, :max_mentees, :current_mentees, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mentor); err != nil {
		return fmt.Errorf("create mentor: %w", err)
	}
	return nil
}

// Update saves mutable fields, refreshing the cached count from the ledger.
// Lowering max_mentees below the active count violates chk_mentors_capacity and yields ErrCapacityReached.
func (r *MentorRepository) Update(ctx context.Context, mentor *models.Mentor) error {
	mentor.Department = models.NormalizeDepartment(mentor.Department)
	mentor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE mentors SET name = :name, email = :email, phone = :phone, department = :department, max_mentees = :max_mentees,
current_mentees = (SELECT COUNT(*) FROM mentor_mentee_assignments WHERE mentor_id = :id AND status = 'active'), updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, mentor); err != nil {
		return mapLedgerError("update mentor", err)
	}
	return nil
}

// LinkUser attaches a user account to an unlinked mentor profile.
func (r *MentorRepository) LinkUser(ctx context.Context, id, userID string) error {
	const query = `UPDATE mentors SET user_id = $2, updated_at = $3 WHERE id = $1 AND user_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("link mentor user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a mentor that has no active assignments.
func (r *MentorRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mentor delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked string
	if err = tx.GetContext(ctx, &locked, `SELECT id FROM mentors WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock mentor: %w", err)
	}

	var active int
	if err = tx.GetContext(ctx, &active, `SELECT COUNT(*) FROM mentor_mentee_assignments WHERE mentor_id = $1 AND status = 'active'`, id); err != nil {
		return fmt.Errorf("count mentor assignments: %w", err)
	}
	if active > 0 {
		return ErrMentorHasActiveMentees
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM mentors WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete mentor: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit mentor delete: %w", err)
	}
	return nil
}
