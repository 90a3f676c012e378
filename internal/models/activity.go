package models

import "time"

// ActivityType enumerates the kinds of activities.
type ActivityType string

const (
	ActivityMentoring ActivityType = "mentoring"
	ActivityWorkshop  ActivityType = "workshop"
	ActivitySeminar   ActivityType = "seminar"
	ActivityMeeting   ActivityType = "meeting"
	ActivityOther     ActivityType = "other"
)

// SessionType distinguishes one-to-one from group mentoring.
type SessionType string

const (
	SessionIndividual SessionType = "individual"
	SessionGroup      SessionType = "group"
)

// SessionWindow filters a mentor's schedule.
type SessionWindow string

const (
	WindowAll       SessionWindow = "all"
	WindowCompleted SessionWindow = "completed"
	WindowUpcoming  SessionWindow = "upcoming"
	WindowToday     SessionWindow = "today"
)

// Activity is a scheduled event; mentoring sessions carry the session columns.
type Activity struct {
	ID                 string       `db:"id" json:"id"`
	Name               string       `db:"name" json:"name"`
	Type               ActivityType `db:"type" json:"type"`
	Description        string       `db:"description" json:"description"`
	Date               time.Time    `db:"date" json:"date"`
	StartTime          string       `db:"start_time" json:"start_time"`
	EndTime            string       `db:"end_time" json:"end_time"`
	Location           string       `db:"location" json:"location"`
	CreatedBy          string       `db:"created_by" json:"created_by"`
	PrimaryMentorID    *string      `db:"primary_mentor_id" json:"primary_mentor_id,omitempty"`
	IsMentoringSession bool         `db:"is_mentoring_session" json:"is_mentoring_session"`
	SessionType        *SessionType `db:"session_type" json:"session_type,omitempty"`
	Topic              string       `db:"topic" json:"topic"`
	Completed          bool         `db:"completed" json:"completed"`
	CompletedAt        *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
}

// Attendance links a mentee to an activity.
type Attendance struct {
	ActivityID string `db:"activity_id" json:"activity_id"`
	MenteeID   string `db:"mentee_id" json:"mentee_id"`
	MenteeName string `db:"mentee_name" json:"mentee_name"`
	Attended   bool   `db:"attended" json:"attended"`
	Notes      string `db:"notes" json:"notes"`
}

// SessionView is a session with its attendance sheet.
type SessionView struct {
	Activity
	Attendance []Attendance `json:"attendance"`
}

// ActivityReport summarises a completed activity.
type ActivityReport struct {
	ID                string    `db:"id" json:"id"`
	ActivityID        string    `db:"activity_id" json:"activity_id"`
	Summary           string    `db:"summary" json:"summary"`
	AttendanceSummary string    `db:"attendance_summary" json:"attendance_summary"`
	TotalAttendees    int       `db:"total_attendees" json:"total_attendees"`
	PresentCount      int       `db:"present_count" json:"present_count"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// MenteeSession is a session as seen by one enrolled mentee.
type MenteeSession struct {
	Activity
	MentorName string `db:"mentor_name" json:"mentor_name"`
	Attended   bool   `db:"attended" json:"attended"`
}

// AttendanceMark records whether one enrolled mentee turned up.
type AttendanceMark struct {
	MenteeID string `json:"mentee_id" validate:"required"`
	Attended bool   `json:"attended"`
	Notes    string `json:"notes" validate:"max=500"`
}

// ActivityFilter narrows the head's activity listing.
type ActivityFilter struct {
	Type     *ActivityType
	MentorID string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// ActivityDetails is an activity with its attendance sheet and headline numbers.
type ActivityDetails struct {
	Activity
	Attendance     []Attendance `json:"attendance"`
	TotalAttendees int          `json:"total_attendees"`
	PresentCount   int          `json:"present_count"`
	AbsentCount    int          `json:"absent_count"`
	AttendanceRate int          `json:"attendance_rate"`
}

// AttendanceStats counts one mentee's attendance rows.
type AttendanceStats struct {
	Invited   int `db:"invited" json:"sessions_invited"`
	Attended  int `db:"attended" json:"sessions_attended"`
	Completed int `db:"completed" json:"completed_sessions"`
}

// MenteeOverview is a mentee as seen by a mentor, with attendance scoped to that mentor
// unless the mentee is assigned to them.
type MenteeOverview struct {
	Mentee         Mentee          `json:"mentee"`
	AssignedToMe   bool            `json:"assigned_to_me"`
	Attendance     AttendanceStats `json:"attendance"`
	AttendanceRate int             `json:"attendance_rate"`
}

// AttendanceRate is the whole-number percentage of present out of total, 0 when total is 0.
func AttendanceRate(present, total int) int {
	if total == 0 {
		return 0
	}
	return present * 100 / total
}
