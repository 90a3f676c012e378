package dto

import "github.com/noah-isme/mentorship-api/internal/models"

// CreateMenteeRequest registers a mentee profile ahead of signup.
type CreateMenteeRequest struct {
	ID       string        `json:"id" validate:"required,mentee_id"`
	Name     string        `json:"name" validate:"required,max=100"`
	Course   string        `json:"course" validate:"omitempty,max=100"`
	Semester int           `json:"semester" validate:"omitempty,min=1,max=12"`
	Year     int           `json:"year" validate:"omitempty,min=2000,max=2100"`
	Email    string        `json:"email" validate:"omitempty,email"`
	Phone    string        `json:"phone" validate:"omitempty,max=20"`
	Gender   models.Gender `json:"gender" validate:"required,oneof=male female"`
}

// UpdateMenteeRequest replaces the mutable mentee fields.
type UpdateMenteeRequest struct {
	Name     string              `json:"name" validate:"required,max=100"`
	Course   string              `json:"course" validate:"required,max=100"`
	Semester int                 `json:"semester" validate:"omitempty,min=1,max=12"`
	Year     int                 `json:"year" validate:"omitempty,min=2000,max=2100"`
	Email    string              `json:"email" validate:"omitempty,email"`
	Phone    string              `json:"phone" validate:"omitempty,max=20"`
	Gender   models.Gender       `json:"gender" validate:"required,oneof=male female"`
	Status   models.MenteeStatus `json:"status" validate:"required,oneof=active inactive graduated"`
}

// CreateMentorRequest registers a mentor profile.
type CreateMentorRequest struct {
	ID         string `json:"id" validate:"required,max=12"`
	Name       string `json:"name" validate:"required,max=100"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"omitempty,max=20"`
	Department string `json:"department" validate:"omitempty,max=100"`
	MaxMentees int    `json:"maxMentees" validate:"omitempty,min=1,max=200"`
}

// UpdateMentorRequest replaces the mutable mentor fields.
type UpdateMentorRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"omitempty,max=20"`
	Department string `json:"department" validate:"required,max=100"`
	MaxMentees int    `json:"maxMentees" validate:"required,min=1,max=200"`
}

// MenteeProfileRequest is the subset of fields a mentee may change on their own profile.
type MenteeProfileRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Semester int    `json:"semester" validate:"omitempty,min=1,max=12"`
	Year     int    `json:"year" validate:"omitempty,min=2000,max=2100"`
}

// MentorProfileRequest is the subset of fields a mentor may change on their own profile.
type MentorProfileRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=20"`
}
