package models

import (
	"strings"
	"time"
)

// Mentor supervises up to MaxMentees active mentees.
type Mentor struct {
	ID             string    `db:"id" json:"id"`
	UserID         *string   `db:"user_id" json:"user_id,omitempty"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Phone          string    `db:"phone" json:"phone"`
	Department     string    `db:"department" json:"department"`
	MaxMentees     int       `db:"max_mentees" json:"max_mentees"`
	CurrentMentees int       `db:"current_mentees" json:"current_mentees"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// MentorFilter captures list filters for mentors.
type MentorFilter struct {
	Department  string
	WithVacancy bool
	Page        int
	PageSize    int
}

// MentorLoad is a mentor with its live active-assignment counts taken from the ledger.
type MentorLoad struct {
	Mentor
	ActiveCount int `db:"active_count" json:"active_count"`
	MaleCount   int `db:"male_count" json:"male_count"`
	FemaleCount int `db:"female_count" json:"female_count"`
}

// Vacancy is the remaining capacity, never negative.
func (l MentorLoad) Vacancy() int {
	if v := l.MaxMentees - l.ActiveCount; v > 0 {
		return v
	}
	return 0
}

// GenderDistribution counts active mentees by gender.
type GenderDistribution struct {
	Male   int `db:"male" json:"male"`
	Female int `db:"female" json:"female"`
}

// GenderPlan is the desired split of the next open slots.
type GenderPlan struct {
	Male   int `json:"male"`
	Female int `json:"female"`
}

// CapacitySnapshot reports a mentor's load, gender split and ideal fill plan.
type CapacitySnapshot struct {
	MentorID     string             `json:"mentor_id"`
	MaxMentees   int                `json:"max_mentees"`
	ActiveCount  int                `json:"active_count"`
	Vacancy      int                `json:"vacancy"`
	Distribution GenderDistribution `json:"distribution"`
	IdealPlan    GenderPlan         `json:"ideal_plan"`
}

// NormalizeDepartment trims the value and collapses a doubled "Department" suffix.
func NormalizeDepartment(dept string) string {
	dept = strings.TrimSpace(dept)
	for strings.Contains(dept, "Department Department") {
		dept = strings.ReplaceAll(dept, "Department Department", "Department")
	}
	return dept
}
