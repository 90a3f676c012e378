package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/dto"
	"github.com/noah-isme/mentorship-api/internal/models"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
	"github.com/noah-isme/mentorship-api/pkg/export"
)

const defaultSessionLocation = "Mentor Office"

type sessionStore interface {
	CreateSession(ctx context.Context, activity *models.Activity, menteeIDs []string) error
	FindByID(ctx context.Context, id string) (*models.Activity, error)
	ListByMentor(ctx context.Context, mentorID string, window models.SessionWindow, today time.Time) ([]models.Activity, error)
	Attendance(ctx context.Context, activityIDs []string) (map[string][]models.Attendance, error)
	ListForMentee(ctx context.Context, menteeID string) ([]models.MenteeSession, error)
	Complete(ctx context.Context, id string, marks []models.AttendanceMark) error
	Delete(ctx context.Context, id string) error
	SaveReport(ctx context.Context, report *models.ActivityReport) error
	FindReport(ctx context.Context, activityID string) (*models.ActivityReport, error)
	DeleteReport(ctx context.Context, activityID string) error
	SetAttendance(ctx context.Context, id string, marks []models.AttendanceMark) error
	AttendanceStats(ctx context.Context, menteeID, mentorID string) (*models.AttendanceStats, error)
}

type sessionRoster interface {
	mentorMenteeReader
	FindByID(ctx context.Context, id string) (*models.Mentee, error)
}

// SessionService schedules mentoring sessions and tracks their attendance and reports.
type SessionService struct {
	repo      sessionStore
	roster    sessionRoster
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionService constructs the service.
func NewSessionService(repo sessionStore, roster sessionRoster, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, roster: roster, validator: validate, logger: logger, now: time.Now}
}

// Create schedules a session for mentorID. Attendees must be the mentor's active mentees.
func (s *SessionService) Create(ctx context.Context, mentorID, createdBy string, req dto.CreateSessionRequest) (*models.SessionView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	attendees := uniqueUpper(req.MenteeIDs)
	if req.SessionType == models.SessionIndividual && len(attendees) != 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "individual sessions take exactly one mentee")
	}
	if err := s.checkRoster(ctx, mentorID, attendees); err != nil {
		return nil, err
	}

	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = defaultSessionLocation
	}
	sessionType := req.SessionType
	activity := &models.Activity{
		Name:               strings.TrimSpace(req.Topic),
		Type:               models.ActivityMentoring,
		Description:        strings.TrimSpace(req.Description),
		Date:               date,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		Location:           location,
		CreatedBy:          createdBy,
		PrimaryMentorID:    &mentorID,
		IsMentoringSession: true,
		SessionType:        &sessionType,
		Topic:              strings.TrimSpace(req.Topic),
	}
	if err := s.repo.CreateSession(ctx, activity, attendees); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	s.logger.Info("session created",
		zap.String("session_id", activity.ID),
		zap.String("mentor_id", mentorID),
		zap.Int("attendees", len(attendees)),
	)
	return s.view(ctx, activity)
}

// List returns the mentor's sessions within the window together with their attendance.
func (s *SessionService) List(ctx context.Context, mentorID string, window models.SessionWindow) ([]models.SessionView, error) {
	if window == "" {
		window = models.WindowAll
	}
	switch window {
	case models.WindowAll, models.WindowCompleted, models.WindowUpcoming, models.WindowToday:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "window must be one of all, completed, upcoming, today")
	}

	sessions, err := s.repo.ListByMentor(ctx, mentorID, window, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	ids := make([]string, len(sessions))
	for i, session := range sessions {
		ids[i] = session.ID
	}
	attendance, err := s.repo.Attendance(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	views := make([]models.SessionView, 0, len(sessions))
	for _, session := range sessions {
		rows := attendance[session.ID]
		if rows == nil {
			rows = []models.Attendance{}
		}
		views = append(views, models.SessionView{Activity: session, Attendance: rows})
	}
	return views, nil
}

// Complete closes a session and records attendance. Enrolled mentees without a mark stay absent.
func (s *SessionService) Complete(ctx context.Context, mentorID, id string, req dto.CompleteSessionRequest) (*models.SessionView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	session, err := s.owned(ctx, mentorID, id)
	if err != nil {
		return nil, err
	}
	if session.Completed {
		return nil, appErrors.Clone(appErrors.ErrSessionCompleted, "")
	}

	marks, err := s.enrolledMarks(ctx, session.ID, req.Attendance)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Complete(ctx, session.ID, marks); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSessionNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete session")
	}
	now := s.now().UTC()
	session.Completed = true
	session.CompletedAt = &now
	s.logger.Info("session completed", zap.String("session_id", session.ID), zap.Int("marks", len(marks)))
	return s.view(ctx, session)
}

// Delete removes one of the mentor's sessions.
func (s *SessionService) Delete(ctx context.Context, mentorID, id string) error {
	session, err := s.owned(ctx, mentorID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, session.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrSessionNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	s.logger.Info("session deleted", zap.String("session_id", session.ID), zap.String("mentor_id", mentorID))
	return nil
}

// SaveReport writes the activity report of a completed session, recomputing its attendance figures.
func (s *SessionService) SaveReport(ctx context.Context, mentorID, id string, req dto.SessionReportRequest) (*models.ActivityReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	session, err := s.owned(ctx, mentorID, id)
	if err != nil {
		return nil, err
	}
	if !session.Completed {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only completed sessions can be reported")
	}
	rows, err := s.attendanceOf(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	total, present, summary := SummarizeAttendance(rows)
	report := &models.ActivityReport{
		ActivityID:        session.ID,
		Summary:           strings.TrimSpace(req.Summary),
		AttendanceSummary: summary,
		TotalAttendees:    total,
		PresentCount:      present,
	}
	if err := s.repo.SaveReport(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save report")
	}
	return report, nil
}

// UpdateReport rewrites an existing report. The attendance sheet is re-marked in full, so
// enrolled mentees missing from req.Attendance become absent.
func (s *SessionService) UpdateReport(ctx context.Context, mentorID, id string, req dto.UpdateReportRequest) (*models.ActivityReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	report, err := s.Report(ctx, mentorID, id)
	if err != nil {
		return nil, err
	}
	marks, err := s.enrolledMarks(ctx, report.ActivityID, req.Attendance)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetAttendance(ctx, report.ActivityID, marks); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}
	rows, err := s.attendanceOf(ctx, report.ActivityID)
	if err != nil {
		return nil, err
	}

	report.TotalAttendees, report.PresentCount, report.AttendanceSummary = SummarizeAttendance(rows)
	report.Summary = strings.TrimSpace(req.Summary)
	if err := s.repo.SaveReport(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save report")
	}
	s.logger.Info("session report updated", zap.String("session_id", report.ActivityID), zap.Int("present", report.PresentCount))
	return report, nil
}

// DeleteReport removes the report of one of the mentor's sessions. The session stays completed.
func (s *SessionService) DeleteReport(ctx context.Context, mentorID, id string) error {
	session, err := s.owned(ctx, mentorID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteReport(ctx, session.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrReportNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete report")
	}
	s.logger.Info("session report deleted", zap.String("session_id", session.ID))
	return nil
}

// MenteeOverview shows any mentee to a mentor. Attendance covers every session when the
// mentee is assigned to mentorID and only mentorID's sessions otherwise.
func (s *SessionService) MenteeOverview(ctx context.Context, mentorID, menteeID string) (*models.MenteeOverview, error) {
	mentee, err := s.roster.FindByID(ctx, strings.ToUpper(strings.TrimSpace(menteeID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrMenteeNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentee")
	}
	assigned := mentee.AssignedMentorID != nil && *mentee.AssignedMentorID == mentorID
	scope := mentorID
	if assigned {
		scope = ""
	}
	stats, err := s.repo.AttendanceStats(ctx, mentee.ID, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return &models.MenteeOverview{
		Mentee:         *mentee,
		AssignedToMe:   assigned,
		Attendance:     *stats,
		AttendanceRate: models.AttendanceRate(stats.Attended, stats.Invited),
	}, nil
}

// Report returns the saved report of one of the mentor's sessions.
func (s *SessionService) Report(ctx context.Context, mentorID, id string) (*models.ActivityReport, error) {
	session, err := s.owned(ctx, mentorID, id)
	if err != nil {
		return nil, err
	}
	report, err := s.repo.FindReport(ctx, session.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReportNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return report, nil
}

// ExportReport renders the session report and its attendance sheet as CSV or PDF.
func (s *SessionService) ExportReport(ctx context.Context, mentorID, id string, format export.Format) ([]byte, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	report, err := s.Report(ctx, mentorID, id)
	if err != nil {
		return nil, err
	}
	session, err := s.owned(ctx, mentorID, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.attendanceOf(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Title: fmt.Sprintf("Activity Report - %s", session.Name),
		Preamble: []export.Field{
			{Label: "Session", Value: session.ID},
			{Label: "Date", Value: session.Date.Format("2006-01-02")},
			{Label: "Time", Value: session.StartTime + " - " + session.EndTime},
			{Label: "Location", Value: session.Location},
			{Label: "Present", Value: fmt.Sprintf("%d/%d", report.PresentCount, report.TotalAttendees)},
			{Label: "Summary", Value: report.Summary},
		},
		Headers: []string{"Mentee ID", "Name", "Attended", "Notes"},
	}
	for _, row := range rows {
		attended := "No"
		if row.Attended {
			attended = "Yes"
		}
		data.Rows = append(data.Rows, map[string]string{
			"Mentee ID": row.MenteeID,
			"Name":      row.MenteeName,
			"Attended":  attended,
			"Notes":     row.Notes,
		})
	}
	out, err := export.Render(format, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return out, nil
}

// MenteeSchedule lists every session the mentee is enrolled in.
func (s *SessionService) MenteeSchedule(ctx context.Context, menteeID string) ([]models.MenteeSession, error) {
	sessions, err := s.repo.ListForMentee(ctx, menteeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	if sessions == nil {
		sessions = []models.MenteeSession{}
	}
	return sessions, nil
}

// SummarizeAttendance counts the sheet and renders the two-line present/absent summary.
func SummarizeAttendance(rows []models.Attendance) (total, present int, summary string) {
	var presentNames, absentNames []string
	for _, row := range rows {
		label := fmt.Sprintf("%s (%s)", row.MenteeName, row.MenteeID)
		if row.Attended {
			presentNames = append(presentNames, label)
		} else {
			absentNames = append(absentNames, label)
		}
	}
	total = len(rows)
	present = len(presentNames)
	summary = fmt.Sprintf("Present (%d/%d): %s\nAbsent (%d/%d): %s",
		present, total, joinOrNone(presentNames),
		total-present, total, joinOrNone(absentNames))
	return total, present, summary
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, ", ")
}

func (s *SessionService) owned(ctx context.Context, mentorID, id string) (*models.Activity, error) {
	session, err := s.repo.FindByID(ctx, strings.ToUpper(strings.TrimSpace(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSessionNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if !session.IsMentoringSession || session.PrimaryMentorID == nil || *session.PrimaryMentorID != mentorID {
		return nil, appErrors.Clone(appErrors.ErrSessionNotFound, "")
	}
	return session, nil
}

func (s *SessionService) checkRoster(ctx context.Context, mentorID string, menteeIDs []string) error {
	roster, err := s.roster.ListByMentor(ctx, mentorID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentees")
	}
	assigned := make(map[string]struct{}, len(roster))
	for _, mentee := range roster {
		assigned[mentee.ID] = struct{}{}
	}
	for _, id := range menteeIDs {
		if _, ok := assigned[id]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("mentee %s is not assigned to you", id))
		}
	}
	return nil
}

func (s *SessionService) enrolledMarks(ctx context.Context, id string, requested []models.AttendanceMark) ([]models.AttendanceMark, error) {
	enrolled, err := s.attendanceOf(ctx, id)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(enrolled))
	for _, row := range enrolled {
		known[row.MenteeID] = struct{}{}
	}
	marks := make([]models.AttendanceMark, 0, len(requested))
	for _, mark := range requested {
		mark.MenteeID = strings.ToUpper(strings.TrimSpace(mark.MenteeID))
		if _, ok := known[mark.MenteeID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("mentee %s is not enrolled in this session", mark.MenteeID))
		}
		marks = append(marks, mark)
	}
	return marks, nil
}

func (s *SessionService) attendanceOf(ctx context.Context, id string) ([]models.Attendance, error) {
	sheet, err := s.repo.Attendance(ctx, []string{id})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	rows := sheet[id]
	if rows == nil {
		rows = []models.Attendance{}
	}
	return rows, nil
}

func (s *SessionService) view(ctx context.Context, session *models.Activity) (*models.SessionView, error) {
	rows, err := s.attendanceOf(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return &models.SessionView{Activity: *session, Attendance: rows}, nil
}

func uniqueUpper(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToUpper(strings.TrimSpace(id))
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
