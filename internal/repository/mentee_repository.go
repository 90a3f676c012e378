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

const menteeColumns = "id, user_id, name, course, semester, year, email, phone, gender, status, assigned_mentor_id, created_at, updated_at"

// MenteeRepository provides database access for mentees.
type MenteeRepository struct {
	db *sqlx.DB
	sb squirrel.StatementBuilderType
}

// NewMenteeRepository creates a new instance of MenteeRepository.
func NewMenteeRepository(db *sqlx.DB) *MenteeRepository {
	return &MenteeRepository{db: db, sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

// FindByID returns a mentee by identifier.
func (r *MenteeRepository) FindByID(ctx context.Context, id string) (*models.Mentee, error) {
	query := `SELECT ` + menteeColumns + ` FROM mentees WHERE id = $1`
	var mentee models.Mentee
	if err := r.db.GetContext(ctx, &mentee, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find mentee: %w", err)
	}
	return &mentee, nil
}

// FindByUserID returns the mentee profile linked to a user account.
func (r *MenteeRepository) FindByUserID(ctx context.Context, userID string) (*models.Mentee, error) {
	query := `SELECT ` + menteeColumns + ` FROM mentees WHERE user_id = $1`
	var mentee models.Mentee
	if err := r.db.GetContext(ctx, &mentee, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find mentee by user: %w", err)
	}
	return &mentee, nil
}

// List returns mentees matching the filter with the total count. A negative PageSize disables paging.
func (r *MenteeRepository) List(ctx context.Context, filter models.MenteeFilter) ([]models.Mentee, int, error) {
	where := squirrel.And{}
	if filter.Status != nil {
		where = append(where, squirrel.Eq{"status": string(*filter.Status)})
	}
	if filter.Gender != nil {
		where = append(where, squirrel.Eq{"gender": string(*filter.Gender)})
	}
	if filter.Course != "" {
		where = append(where, squirrel.ILike{"course": "%" + filter.Course + "%"})
	}
	if filter.MentorID != "" {
		where = append(where, squirrel.Eq{"assigned_mentor_id": filter.MentorID})
	}
	if filter.Unassigned {
		where = append(where, squirrel.Expr("NOT EXISTS (SELECT 1 FROM mentor_mentee_assignments a WHERE a.mentee_id = mentees.id AND a.status = 'active')"))
	}

	builder := r.sb.Select(menteeColumns).From("mentees").Where(where).OrderBy("id")
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	if pageSize > 0 {
		builder = builder.Limit(uint64(pageSize)).Offset(uint64((page - 1) * pageSize))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build mentee list query: %w", err)
	}

	var mentees []models.Mentee
	if err := r.db.SelectContext(ctx, &mentees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list mentees: %w", err)
	}

	countQuery, countArgs, err := r.sb.Select("COUNT(*)").From("mentees").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build mentee count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count mentees: %w", err)
	}
	return mentees, total, nil
}

// ListUnassigned returns active mentees without an active assignment, ordered by id.
func (r *MenteeRepository) ListUnassigned(ctx context.Context) ([]models.Mentee, error) {
	status := models.MenteeStatusActive
	mentees, _, err := r.List(ctx, models.MenteeFilter{Status: &status, Unassigned: true, PageSize: -1})
	return mentees, err
}

// ListByMentor returns the mentees whose active assignment is with the mentor.
func (r *MenteeRepository) ListByMentor(ctx context.Context, mentorID string) ([]models.Mentee, error) {
	query := `SELECT ` + prefixed("me", menteeColumns) + ` FROM mentees me
JOIN mentor_mentee_assignments a ON a.mentee_id = me.id AND a.status = 'active'
WHERE a.mentor_id = $1 ORDER BY me.name`
	var mentees []models.Mentee
	if err := r.db.SelectContext(ctx, &mentees, query, mentorID); err != nil {
		return nil, fmt.Errorf("list mentees by mentor: %w", err)
	}
	return mentees, nil
}

// Exists reports whether the identifier is taken.
func (r *MenteeRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM mentees WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("check mentee exists: %w", err)
	}
	return exists, nil
}

// Create inserts a new mentee.
func (r *MenteeRepository) Create(ctx context.Context, mentee *models.Mentee) error {
	now := time.Now().UTC()
	mentee.CreatedAt = now
	mentee.UpdatedAt = now
	const query = `INSERT INTO mentees (id, user_id, name, course, semester, year, email, phone, gender, status, created_at, updated_at)
VALUES (:id, :user_id, :name, :course, :semester, :year, :email, :phone, :gender, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mentee); err != nil {
		return fmt.Errorf("create mentee: %w", err)
	}
	return nil
}

// Update updates mutable fields of a mentee. The mentor cache is owned by the ledger.
func (r *MenteeRepository) Update(ctx context.Context, mentee *models.Mentee) error {
	mentee.UpdatedAt = time.Now().UTC()
	const query = `UPDATE mentees SET name = :name, course = :course, semester = :semester, year = :year, email = :email,
phone = :phone, gender = :gender, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, mentee); err != nil {
		return fmt.Errorf("update mentee: %w", err)
	}
	return nil
}

// LinkUser attaches a user account to an unlinked mentee profile.
func (r *MenteeRepository) LinkUser(ctx context.Context, id, userID string) error {
	const query = `UPDATE mentees SET user_id = $2, updated_at = $3 WHERE id = $1 AND user_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("link mentee user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a mentee and refreshes the cached count of its mentor.
func (r *MenteeRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mentee delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var mentorIDs []string
	if err = tx.SelectContext(ctx, &mentorIDs, `SELECT mentor_id FROM mentor_mentee_assignments WHERE mentee_id = $1 AND status = 'active' FOR UPDATE`, id); err != nil {
		return fmt.Errorf("lock mentee assignments: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM mentees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete mentee: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	now := time.Now().UTC()
	for _, mentorID := range mentorIDs {
		if _, err = tx.ExecContext(ctx, refreshMentorQuery, mentorID, now); err != nil {
			return fmt.Errorf("refresh mentor count: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit mentee delete: %w", err)
	}
	return nil
}
