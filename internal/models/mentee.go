package models

import "time"

// Gender of a mentee; mentors carry no gender.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// MenteeStatus tracks whether the mentee is still studying.
type MenteeStatus string

const (
	MenteeStatusActive    MenteeStatus = "active"
	MenteeStatusInactive  MenteeStatus = "inactive"
	MenteeStatusGraduated MenteeStatus = "graduated"
)

// Mentee is a student that receives mentoring.
// AssignedMentorID mirrors the mentor of the single active assignment, if any.
type Mentee struct {
	ID               string       `db:"id" json:"id"`
	UserID           *string      `db:"user_id" json:"user_id,omitempty"`
	Name             string       `db:"name" json:"name"`
	Course           string       `db:"course" json:"course"`
	Semester         int          `db:"semester" json:"semester"`
	Year             int          `db:"year" json:"year"`
	Email            string       `db:"email" json:"email"`
	Phone            string       `db:"phone" json:"phone"`
	Gender           Gender       `db:"gender" json:"gender"`
	Status           MenteeStatus `db:"status" json:"status"`
	AssignedMentorID *string      `db:"assigned_mentor_id" json:"assigned_mentor_id,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}

// MenteeFilter captures list filters for mentees.
type MenteeFilter struct {
	Status     *MenteeStatus
	Gender     *Gender
	Course     string
	MentorID   string
	Unassigned bool
	Page       int
	PageSize   int
}
