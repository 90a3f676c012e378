package dto

import "github.com/noah-isme/mentorship-api/internal/models"

// AssignRequest pairs one mentee with one mentor.
type AssignRequest struct {
	MentorID string `json:"mentorId" validate:"required,max=12"`
	MenteeID string `json:"menteeId" validate:"required,max=12"`
	Notes    string `json:"notes" validate:"max=500"`
}

// AssignManyRequest assigns several mentees to the mentor in the path.
type AssignManyRequest struct {
	MenteeIDs []string `json:"menteeIds" validate:"required,min=1,dive,required,max=12"`
}

// TransferRequest moves an active assignment to another mentor.
type TransferRequest struct {
	NewMentorID string `json:"newMentorId" validate:"required,max=12"`
	Notes       string `json:"notes" validate:"max=500"`
}

// ReassignRequest transfers the active assignments of several mentees to one mentor.
type ReassignRequest struct {
	MenteeIDs   []string `json:"menteeIds" validate:"required,min=1,dive,required,max=12"`
	NewMentorID string   `json:"newMentorId" validate:"required,max=12"`
	Notes       string   `json:"notes" validate:"max=500"`
}

// AutoAssignRequest starts a batch auto-assign run.
type AutoAssignRequest struct {
	Mode  models.AllocationMode `json:"mode" validate:"required,oneof=naive gender_balanced"`
	Async bool                  `json:"async"`
}

// AssignmentListResult carries one page of history plus the ledger stats.
type AssignmentListResult struct {
	Items []models.AssignmentView `json:"items"`
	Total int                     `json:"total"`
	Stats models.AssignmentStats  `json:"stats"`
}
