package models

import "time"

// AssignmentStatus is the lifecycle state of a mentor-mentee pairing.
type AssignmentStatus string

const (
	AssignmentActive      AssignmentStatus = "active"
	AssignmentCompleted   AssignmentStatus = "completed"
	AssignmentTransferred AssignmentStatus = "transferred"
)

// Valid reports whether the status is known.
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentActive, AssignmentCompleted, AssignmentTransferred:
		return true
	}
	return false
}

// Assignment is one ledger row in mentor_mentee_assignments.
type Assignment struct {
	ID            string           `db:"id" json:"id"`
	MentorID      string           `db:"mentor_id" json:"mentor_id"`
	MenteeID      string           `db:"mentee_id" json:"mentee_id"`
	Status        AssignmentStatus `db:"status" json:"status"`
	AssignedDate  time.Time        `db:"assigned_date" json:"assigned_date"`
	AssignedBy    *string          `db:"assigned_by" json:"assigned_by,omitempty"`
	TransferredTo *string          `db:"transferred_to" json:"transferred_to,omitempty"`
	TransferredBy *string          `db:"transferred_by" json:"transferred_by,omitempty"`
	TransferredAt *time.Time       `db:"transferred_at" json:"transferred_at,omitempty"`
	Notes         string           `db:"notes" json:"notes"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// AssignmentView joins display names onto an assignment.
type AssignmentView struct {
	Assignment
	MentorName       string `db:"mentor_name" json:"mentor_name"`
	MentorDepartment string `db:"mentor_department" json:"mentor_department"`
	MenteeName       string `db:"mentee_name" json:"mentee_name"`
	MenteeCourse     string `db:"mentee_course" json:"mentee_course"`
}

// AssignmentFilter narrows history queries.
type AssignmentFilter struct {
	MentorID string
	MenteeID string
	Status   *AssignmentStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// AssignmentStats summarises the ledger by status.
type AssignmentStats struct {
	Total       int `db:"total" json:"total"`
	Active      int `db:"active" json:"active"`
	Completed   int `db:"completed" json:"completed"`
	Transferred int `db:"transferred" json:"transferred"`
}

// TransferRequest carries the arguments of one atomic transfer.
type TransferRequest struct {
	AssignmentID string
	NewMentorID  string
	Actor        string
	Notes        string
	NewNotes     string
}

// AssignmentDetails is the assignment page: history, shared sessions and attendance rate.
type AssignmentDetails struct {
	Assignment     AssignmentView   `json:"assignment"`
	History        []AssignmentView `json:"history"`
	Sessions       []MenteeSession  `json:"sessions"`
	AttendedCount  int              `json:"attended_count"`
	AttendanceRate int              `json:"attendance_rate"`
}

// MentorCandidate is a compatible mentor offered for quick assignment.
type MentorCandidate struct {
	MentorLoad
	Slots int `json:"vacancy"`
}

// CandidateList answers "who can take this mentee".
type CandidateList struct {
	Mentee     Mentee            `json:"mentee"`
	Department string            `json:"department"`
	Mentors    []MentorCandidate `json:"mentors"`
}

// EligibleMentees answers "who can this mentor take".
type EligibleMentees struct {
	Mentor   CapacitySnapshot `json:"mentor"`
	Mentees  []EligibleMentee `json:"mentees"`
	Assigned []Mentee         `json:"assigned"`
}

// EligibleMentee is an unassigned mentee with its resolved department.
type EligibleMentee struct {
	Mentee
	Department string `json:"department"`
}
