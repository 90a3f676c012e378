package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/pkg/database"
)

// Advisory lock keys serialising id allocation per id family.
const (
	sessionIDLockKey  = 71_004_201
	activityIDLockKey = 71_004_202
)

// ErrActivityIDTaken is returned when an explicit activity id is already in use.
var ErrActivityIDTaken = errors.New("activity id already exists")

const activityColumns = "id, name, type, description, date, start_time, end_time, location, created_by, primary_mentor_id, is_mentoring_session, session_type, topic, completed, completed_at, created_at"

const reportColumns = "id, activity_id, summary, attendance_summary, total_attendees, present_count, created_at, updated_at"

// ActivityRepository manages mentoring sessions, attendance sheets and activity reports.
type ActivityRepository struct {
	db *sqlx.DB
	sb squirrel.StatementBuilderType
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db, sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

// NextSessionID formats the successor of lastID as S00001, S00002, ...
func NextSessionID(lastID string) string {
	return nextCodedID("S", lastID)
}

// NextActivityID formats the successor of lastID as A00001, A00002, ...
func NextActivityID(lastID string) string {
	return nextCodedID("A", lastID)
}

func nextCodedID(prefix, lastID string) string {
	next := 1
	if strings.HasPrefix(lastID, prefix) {
		if n, err := strconv.Atoi(lastID[len(prefix):]); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%05d", prefix, next)
}

// lastCodedIDQuery orders numerically so S100000 sorts above S99999.
func lastCodedIDQuery(prefix string) string {
	return fmt.Sprintf(`SELECT id FROM activities WHERE id ~ '^%s[0-9]+$' ORDER BY CAST(substring(id from %d) AS BIGINT) DESC LIMIT 1`, prefix, len(prefix)+1)
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func lastCodedID(ctx context.Context, q queryer, prefix string) (string, error) {
	var lastID string
	if err := q.GetContext(ctx, &lastID, lastCodedIDQuery(prefix)); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read last %s id: %w", prefix, err)
	}
	return lastID, nil
}

// CreateSession inserts a mentoring session and its attendance sheet in one transaction.
// The session id is allocated inside the transaction when activity.ID is empty.
func (r *ActivityRepository) CreateSession(ctx context.Context, activity *models.Activity, menteeIDs []string) error {
	return r.insert(ctx, activity, "S", sessionIDLockKey, menteeIDs)
}

// CreateActivity inserts a general activity. An empty ID is allocated as the next A-number.
func (r *ActivityRepository) CreateActivity(ctx context.Context, activity *models.Activity) error {
	return r.insert(ctx, activity, "A", activityIDLockKey, nil)
}

// PeekActivityID suggests the next free activity id without reserving it.
func (r *ActivityRepository) PeekActivityID(ctx context.Context) (string, error) {
	lastID, err := lastCodedID(ctx, r.db, "A")
	if err != nil {
		return "", err
	}
	return NextActivityID(lastID), nil
}

func (r *ActivityRepository) insert(ctx context.Context, activity *models.Activity, prefix string, lockKey int64, menteeIDs []string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activity transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if activity.ID == "" {
		if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
			return fmt.Errorf("lock %s ids: %w", prefix, err)
		}
		var lastID string
		if lastID, err = lastCodedID(ctx, tx, prefix); err != nil {
			return err
		}
		activity.ID = nextCodedID(prefix, lastID)
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}

	const insertActivity = `INSERT INTO activities (` + activityColumns + `)
VALUES (:id, :name, :type, :description, :date, :start_time, :end_time, :location, :created_by, :primary_mentor_id, :is_mentoring_session, :session_type, :topic, :completed, :completed_at, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertActivity, activity); err != nil {
		if _, dup := database.UniqueViolation(err); dup {
			return ErrActivityIDTaken
		}
		return fmt.Errorf("insert activity: %w", err)
	}
	for _, menteeID := range menteeIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO attendance (activity_id, mentee_id, attended, notes) VALUES ($1, $2, FALSE, '')`, activity.ID, menteeID); err != nil {
			return fmt.Errorf("insert attendance: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit activity: %w", err)
	}
	return nil
}

// UpdateActivity replaces the schedule fields of an activity. Completion state is untouched.
func (r *ActivityRepository) UpdateActivity(ctx context.Context, activity *models.Activity) error {
	const query = `UPDATE activities SET name = :name, type = :type, description = :description, date = :date,
start_time = :start_time, end_time = :end_time, location = :location, primary_mentor_id = :primary_mentor_id,
is_mentoring_session = :is_mentoring_session, topic = :topic WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, activity)
	if err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListActivities returns activities matching filter, newest first, plus the total count.
func (r *ActivityRepository) ListActivities(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error) {
	where := squirrel.And{}
	if filter.Type != nil {
		where = append(where, squirrel.Eq{"type": *filter.Type})
	}
	if filter.MentorID != "" {
		where = append(where, squirrel.Eq{"primary_mentor_id": filter.MentorID})
	}
	if filter.From != nil {
		where = append(where, squirrel.GtOrEq{"date": filter.From.Format("2006-01-02")})
	}
	if filter.To != nil {
		where = append(where, squirrel.LtOrEq{"date": filter.To.Format("2006-01-02")})
	}
	pagination := models.NewPagination(filter.Page, filter.PageSize, 0)

	query, args, err := r.sb.Select(strings.Split(activityColumns, ", ")...).
		From("activities").
		Where(where).
		OrderBy("date DESC", "start_time DESC").
		Limit(uint64(pagination.PageSize)).
		Offset(uint64((pagination.Page - 1) * pagination.PageSize)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build activity query: %w", err)
	}
	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}

	countQuery, countArgs, err := r.sb.Select("COUNT(*)").From("activities").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build activity count: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}
	return activities, total, nil
}

// FindByID returns an activity by identifier.
func (r *ActivityRepository) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, `SELECT `+activityColumns+` FROM activities WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find activity: %w", err)
	}
	return &activity, nil
}

// ListByMentor returns a mentor's sessions restricted to the window; today anchors the date windows.
func (r *ActivityRepository) ListByMentor(ctx context.Context, mentorID string, window models.SessionWindow, today time.Time) ([]models.Activity, error) {
	where := squirrel.And{
		squirrel.Eq{"primary_mentor_id": mentorID},
		squirrel.Eq{"is_mentoring_session": true},
	}
	day := today.Format("2006-01-02")
	switch window {
	case models.WindowCompleted:
		where = append(where, squirrel.Eq{"completed": true})
	case models.WindowUpcoming:
		where = append(where, squirrel.Eq{"completed": false}, squirrel.GtOrEq{"date": day})
	case models.WindowToday:
		where = append(where, squirrel.Eq{"date": day})
	}

	query, args, err := r.sb.Select(strings.Split(activityColumns, ", ")...).
		From("activities").
		Where(where).
		OrderBy("date DESC", "start_time DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build session query: %w", err)
	}
	var sessions []models.Activity
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list mentor sessions: %w", err)
	}
	return sessions, nil
}

// Attendance returns the attendance rows of the given activities, keyed by activity id.
func (r *ActivityRepository) Attendance(ctx context.Context, activityIDs []string) (map[string][]models.Attendance, error) {
	out := make(map[string][]models.Attendance, len(activityIDs))
	if len(activityIDs) == 0 {
		return out, nil
	}
	const query = `SELECT att.activity_id, att.mentee_id, me.name AS mentee_name, att.attended, att.notes
FROM attendance att JOIN mentees me ON me.id = att.mentee_id
WHERE att.activity_id = ANY($1)
ORDER BY att.activity_id, att.mentee_id`
	var rows []models.Attendance
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(activityIDs)); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	for _, row := range rows {
		out[row.ActivityID] = append(out[row.ActivityID], row)
	}
	return out, nil
}

const menteeSessionQuery = `SELECT ` + "a.id, a.name, a.type, a.description, a.date, a.start_time, a.end_time, a.location, a.created_by, a.primary_mentor_id, a.is_mentoring_session, a.session_type, a.topic, a.completed, a.completed_at, a.created_at" + `,
COALESCE(m.name, '') AS mentor_name, att.attended
FROM activities a
JOIN attendance att ON att.activity_id = a.id
LEFT JOIN mentors m ON m.id = a.primary_mentor_id
WHERE att.mentee_id = $1 AND a.is_mentoring_session`

// ListForMentee returns every session the mentee is enrolled in, newest first.
func (r *ActivityRepository) ListForMentee(ctx context.Context, menteeID string) ([]models.MenteeSession, error) {
	var sessions []models.MenteeSession
	if err := r.db.SelectContext(ctx, &sessions, menteeSessionQuery+` ORDER BY a.date DESC, a.start_time DESC`, menteeID); err != nil {
		return nil, fmt.Errorf("list mentee sessions: %w", err)
	}
	return sessions, nil
}

// ListShared returns the mentor's sessions the mentee was enrolled in.
func (r *ActivityRepository) ListShared(ctx context.Context, mentorID, menteeID string) ([]models.MenteeSession, error) {
	var sessions []models.MenteeSession
	if err := r.db.SelectContext(ctx, &sessions, menteeSessionQuery+` AND a.primary_mentor_id = $2 ORDER BY a.date DESC, a.start_time DESC`, menteeID, mentorID); err != nil {
		return nil, fmt.Errorf("list shared sessions: %w", err)
	}
	return sessions, nil
}

// Complete marks the activity completed and records attendance for the listed mentees.
func (r *ActivityRepository) Complete(ctx context.Context, id string, marks []models.AttendanceMark) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE activities SET completed = TRUE, completed_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("complete activity: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	for _, mark := range marks {
		if _, err = tx.ExecContext(ctx, `UPDATE attendance SET attended = $3, notes = $4 WHERE activity_id = $1 AND mentee_id = $2`, id, mark.MenteeID, mark.Attended, mark.Notes); err != nil {
			return fmt.Errorf("mark attendance: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit completion: %w", err)
	}
	return nil
}

// Delete removes an activity; attendance and reports cascade.
func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetAttendance re-marks the whole sheet: listed mentees get their mark, everyone else is absent.
func (r *ActivityRepository) SetAttendance(ctx context.Context, id string, marks []models.AttendanceMark) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE attendance SET attended = FALSE WHERE activity_id = $1`, id); err != nil {
		return fmt.Errorf("reset attendance: %w", err)
	}
	for _, mark := range marks {
		if _, err = tx.ExecContext(ctx, `UPDATE attendance SET attended = $3, notes = $4 WHERE activity_id = $1 AND mentee_id = $2`, id, mark.MenteeID, mark.Attended, mark.Notes); err != nil {
			return fmt.Errorf("mark attendance: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance: %w", err)
	}
	return nil
}

// AttendanceStats counts the mentee's attendance rows. A non-empty mentorID limits
// the count to activities led by that mentor.
func (r *ActivityRepository) AttendanceStats(ctx context.Context, menteeID, mentorID string) (*models.AttendanceStats, error) {
	where := squirrel.And{squirrel.Eq{"att.mentee_id": menteeID}}
	if mentorID != "" {
		where = append(where, squirrel.Eq{"a.primary_mentor_id": mentorID})
	}
	query, args, err := r.sb.Select(
		"COUNT(*) AS invited",
		"COUNT(*) FILTER (WHERE att.attended) AS attended",
		"COUNT(*) FILTER (WHERE att.attended AND a.completed) AS completed",
	).
		From("attendance att").
		Join("activities a ON a.id = att.activity_id").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build attendance stats: %w", err)
	}
	var stats models.AttendanceStats
	if err := r.db.GetContext(ctx, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("attendance stats: %w", err)
	}
	return &stats, nil
}

// SaveReport creates the activity report or replaces the existing one.
func (r *ActivityRepository) SaveReport(ctx context.Context, report *models.ActivityReport) error {
	now := time.Now().UTC()
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now

	const query = `INSERT INTO activity_reports (` + reportColumns + `)
VALUES (:id, :activity_id, :summary, :attendance_summary, :total_attendees, :present_count, :created_at, :updated_at)
ON CONFLICT (activity_id) DO UPDATE SET summary = EXCLUDED.summary, attendance_summary = EXCLUDED.attendance_summary,
total_attendees = EXCLUDED.total_attendees, present_count = EXCLUDED.present_count, updated_at = EXCLUDED.updated_at
RETURNING id, created_at`
	rows, err := r.db.NamedQueryContext(ctx, query, report)
	if err != nil {
		return fmt.Errorf("save activity report: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&report.ID, &report.CreatedAt); err != nil {
			return fmt.Errorf("scan activity report: %w", err)
		}
	}
	return rows.Err()
}

// FindReport returns the report of an activity.
func (r *ActivityRepository) FindReport(ctx context.Context, activityID string) (*models.ActivityReport, error) {
	var report models.ActivityReport
	if err := r.db.GetContext(ctx, &report, `SELECT `+reportColumns+` FROM activity_reports WHERE activity_id = $1`, activityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find activity report: %w", err)
	}
	return &report, nil
}


// DeleteReport removes the report of an activity.
func (r *ActivityRepository) DeleteReport(ctx context.Context, activityID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activity_reports WHERE activity_id = $1`, activityID)
	if err != nil {
		return fmt.Errorf("delete activity report: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
