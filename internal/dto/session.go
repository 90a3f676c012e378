package dto

import "github.com/noah-isme/mentorship-api/internal/models"

// CreateSessionRequest schedules a mentoring session for the calling mentor.
type CreateSessionRequest struct {
	Topic       string             `json:"topic" validate:"required,max=200"`
	Description string             `json:"description" validate:"max=2000"`
	Date        string             `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string             `json:"startTime" validate:"required,datetime=15:04"`
	EndTime     string             `json:"endTime" validate:"required,datetime=15:04"`
	Location    string             `json:"location" validate:"max=200"`
	SessionType models.SessionType `json:"sessionType" validate:"required,oneof=individual group"`
	MenteeIDs   []string           `json:"menteeIds" validate:"required,min=1,dive,required,max=12"`
}

// CompleteSessionRequest closes a session and records who attended.
type CompleteSessionRequest struct {
	Attendance []models.AttendanceMark `json:"attendance" validate:"dive"`
}

// SessionReportRequest writes the narrative of a completed session.
type SessionReportRequest struct {
	Summary string `json:"summary" validate:"max=5000"`
}

// UpdateReportRequest rewrites a report and re-marks the whole attendance sheet.
type UpdateReportRequest struct {
	Summary    string                  `json:"summary" validate:"max=5000"`
	Attendance []models.AttendanceMark `json:"attendance" validate:"dive"`
}

// ActivityRequest creates or replaces a general activity. An empty ID on create
// takes the next free A-number.
type ActivityRequest struct {
	ID                 string              `json:"id" validate:"omitempty,max=12"`
	Name               string              `json:"name" validate:"required,max=200"`
	Type               models.ActivityType `json:"type" validate:"required,oneof=mentoring workshop seminar meeting other"`
	Description        string              `json:"description" validate:"max=2000"`
	Date               string              `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime          string              `json:"startTime" validate:"required,datetime=15:04"`
	EndTime            string              `json:"endTime" validate:"required,datetime=15:04"`
	Location           string              `json:"location" validate:"max=200"`
	PrimaryMentorID    string              `json:"primaryMentorId" validate:"omitempty,max=12"`
	IsMentoringSession bool                `json:"isMentoringSession"`
}
