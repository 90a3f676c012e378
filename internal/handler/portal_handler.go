package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentorship-api/internal/dto"
	"github.com/noah-isme/mentorship-api/internal/models"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
	"github.com/noah-isme/mentorship-api/pkg/export"
	"github.com/noah-isme/mentorship-api/pkg/response"
)

type mentorProfiles interface {
	ForUser(ctx context.Context, userID string) (*models.Mentor, error)
	Mentees(ctx context.Context, mentorID string) ([]models.Mentee, error)
	UpdateProfile(ctx context.Context, userID string, req dto.MentorProfileRequest) (*models.Mentor, error)
}

type menteeProfiles interface {
	ForUser(ctx context.Context, userID string) (*models.Mentee, error)
	UpdateProfile(ctx context.Context, userID string, req dto.MenteeProfileRequest) (*models.Mentee, error)
}

type currentMentorReader interface {
	CurrentMentor(ctx context.Context, menteeID string) (*models.AssignmentView, error)
}

type sessionService interface {
	Create(ctx context.Context, mentorID, createdBy string, req dto.CreateSessionRequest) (*models.SessionView, error)
	List(ctx context.Context, mentorID string, window models.SessionWindow) ([]models.SessionView, error)
	Complete(ctx context.Context, mentorID, id string, req dto.CompleteSessionRequest) (*models.SessionView, error)
	Delete(ctx context.Context, mentorID, id string) error
	SaveReport(ctx context.Context, mentorID, id string, req dto.SessionReportRequest) (*models.ActivityReport, error)
	UpdateReport(ctx context.Context, mentorID, id string, req dto.UpdateReportRequest) (*models.ActivityReport, error)
	DeleteReport(ctx context.Context, mentorID, id string) error
	Report(ctx context.Context, mentorID, id string) (*models.ActivityReport, error)
	MenteeOverview(ctx context.Context, mentorID, menteeID string) (*models.MenteeOverview, error)
	ExportReport(ctx context.Context, mentorID, id string, format export.Format) ([]byte, error)
	MenteeSchedule(ctx context.Context, menteeID string) ([]models.MenteeSession, error)
}

// PortalConfig toggles optional portal features.
type PortalConfig struct {
	ExportsEnabled bool
}

// PortalHandler serves the self-service routes of signed-in mentors and mentees.
type PortalHandler struct {
	mentors     mentorProfiles
	mentees     menteeProfiles
	assignments currentMentorReader
	sessions    sessionService
	config      PortalConfig
}

// NewPortalHandler constructs PortalHandler.
func NewPortalHandler(mentors mentorProfiles, mentees menteeProfiles, assignments currentMentorReader, sessions sessionService, config PortalConfig) *PortalHandler {
	return &PortalHandler{mentors: mentors, mentees: mentees, assignments: assignments, sessions: sessions, config: config}
}

// MyMentees godoc
// @Summary Active mentees of the signed-in mentor
// @Tags Mentor Portal
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /mentor/mentees [get]
func (h *PortalHandler) MyMentees(c *gin.Context) {
	mentor, ok := h.currentMentor(c)
	if !ok {
		return
	}
	mentees, err := h.mentors.Mentees(c.Request.Context(), mentor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentees, nil)
}

// MentorProfile godoc
// @Summary Profile of the signed-in mentor
// @Tags Mentor Portal
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /mentor/profile [get]
func (h *PortalHandler) MentorProfile(c *gin.Context) {
	mentor, ok := h.currentMentor(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, mentor, nil)
}

// UpdateMentorProfile godoc
// @Summary Update the signed-in mentor's contact details
// @Tags Mentor Portal
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.MentorProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /mentor/profile [put]
func (h *PortalHandler) UpdateMentorProfile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.MentorProfileRequest
	if !bindJSON(c, &req, "invalid profile payload") {
		return
	}
	mentor, err := h.mentors.UpdateProfile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentor, nil)
}

// MenteeOverview godoc
// @Summary One mentee with their attendance record
// @Description Attendance covers all sessions for the mentor's own mentees and only the mentor's sessions otherwise.
// @Tags Mentor Portal
// @Produce json
// @Security BearerAuth
// @Param id path string true "Mentee ID"
// @Success 200 {object} response.Envelope
// @Router /mentor/mentees/{id} [get]
func (h *PortalHandler) MenteeOverview(c *gin.Context) {
	mentor, ok := h.currentMentor(c)
	if !ok {
		return
	}
	overview, err := h.sessions.MenteeOverview(c.Request.Context(), mentor.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// ListSessions godoc
// @Summary Sessions of the signed-in mentor
// @Tags Mentor Portal
// @Produce json
// @Security BearerAuth
// @Param window query string false "all, completed, upcoming or today"
// @Success 200 {object} response.Envelope
// @Router /mentor/sessions [get]
func (h *PortalHandler) ListSessions(c *gin.Context) {
	mentor, ok := h.currentMentor(c)
	if !ok {
		return
	}
	sessions, err := h.sessions.List(c.Request.Context(), mentor.ID, models.SessionWindow(strings.ToLower(c.Query("window"))))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// CreateSession godoc
// @Summary Schedule a mentoring session
// @Tags Mentor Portal
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /mentor/sessions [post]
func (h *PortalHandler) CreateSession(c *gin.Context) {
	mentor, ok := h.currentMentor(c)
	if !ok {
		return
	}
	var req dto.CreateSessionRequest
	if !bindJSON(c, &req, "invalid session payload") {
		return
	}
	session, err := h.sessions.Create(c.Request.Context(), mentor.ID, actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// CompleteSession godoc
// @Summary Complete a session and record attendance
// @Tags Mentor Portal
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body dto.CompleteSessionRequest true "Attendance marks"
// @Success 200 {object} response.Envelope
// @Router /mentor/sessions/{id}/complete [post]
func (h *PortalHandler) CompleteSession(c *gin.Context) {
	mentor, ok := h.currentMentor(c)
	if !ok {
		return
	}
	var req dto.CompleteSessionRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	session, err := h.sessions.Complete(c.Request.Context(), mentor.ID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// DeleteSession godoc
// @Summary Delete a session
// @Tags Mentor Portal
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 204
// @Router /mentor/sessions/{id} [delete]
func (h *PortalHandler) DeleteSession(c *gin.Context) {
	mentor, ok := h.currentMentor(c)
	if !ok {
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), mentor.ID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SaveReport godoc
// @Summary Write the activity report of a completed session
// @Tags Mentor Portal
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body dto.SessionReportRequest true "Report payload"
// @Success 200 {object} response.Envelope
// @Router /mentor/sessions/{id}/report [post]
func (h *PortalHandler) SaveReport(c *gin.Context) {
	mentor, ok := h.currentMentor(c)
	if !ok {
		return
	}
	var req dto.SessionReportRequest
	if !bindJSON(c, &req, "invalid report payload") {
		return
	}
	report, err := h.sessions.SaveReport(c.Request.Context(), mentor.ID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// UpdateReport godoc
// @Summary Rewrite a session report and its attendance
// @Description Enrolled mentees left out of the attendance list are marked absent.
// @Tags Mentor Portal
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body dto.UpdateReportRequest true "Report payload"
// @Success 200 {object} response.Envelope
// @Router /mentor/sessions/{id}/report [put]
func (h *PortalHandler) UpdateReport(c *gin.Context) {
	mentor, ok := h.currentMentor(c)
	if !ok {
		return
	}
	var req dto.UpdateReportRequest
	if !bindJSON(c, &req, "invalid report payload") {
		return
	}
	report, err := h.sessions.UpdateReport(c.Request.Context(), mentor.ID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// DeleteReport godoc
// @Summary Delete a session report
// @Tags Mentor Portal
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 204
// @Router /mentor/sessions/{id}/report [delete]
func (h *PortalHandler) DeleteReport(c *gin.Context) {
	mentor, ok := h.currentMentor(c)
	if !ok {
		return
	}
	if err := h.sessions.DeleteReport(c.Request.Context(), mentor.ID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Report godoc
// @Summary View or export a session report
// @Tags Mentor Portal
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param format query string false "csv or pdf to download"
// @Success 200 {object} response.Envelope
// @Router /mentor/sessions/{id}/report [get]
func (h *PortalHandler) Report(c *gin.Context) {
	mentor, ok := h.currentMentor(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if format := c.Query("format"); format != "" {
		if !h.config.ExportsEnabled {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "report export is disabled"))
			return
		}
		f := export.Format(strings.ToLower(format))
		body, err := h.sessions.ExportReport(c.Request.Context(), mentor.ID, id, f)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Attachment(c, fmt.Sprintf("activity-report-%s.%s", strings.ToUpper(id), f), f.ContentType(), body)
		return
	}
	report, err := h.sessions.Report(c.Request.Context(), mentor.ID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// MyMentor godoc
// @Summary Current mentor of the signed-in mentee
// @Tags Mentee Portal
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /mentee/mentor [get]
func (h *PortalHandler) MyMentor(c *gin.Context) {
	mentee, ok := h.currentMentee(c)
	if !ok {
		return
	}
	assignment, err := h.assignments.CurrentMentor(c.Request.Context(), mentee.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// MenteeProfile godoc
// @Summary Profile of the signed-in mentee
// @Tags Mentee Portal
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /mentee/profile [get]
func (h *PortalHandler) MenteeProfile(c *gin.Context) {
	mentee, ok := h.currentMentee(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, mentee, nil)
}

// UpdateMenteeProfile godoc
// @Summary Update the signed-in mentee's contact and study details
// @Tags Mentee Portal
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.MenteeProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /mentee/profile [put]
func (h *PortalHandler) UpdateMenteeProfile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.MenteeProfileRequest
	if !bindJSON(c, &req, "invalid profile payload") {
		return
	}
	mentee, err := h.mentees.UpdateProfile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentee, nil)
}

// MySessions godoc
// @Summary Sessions the signed-in mentee is enrolled in
// @Tags Mentee Portal
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /mentee/sessions [get]
func (h *PortalHandler) MySessions(c *gin.Context) {
	mentee, ok := h.currentMentee(c)
	if !ok {
		return
	}
	sessions, err := h.sessions.MenteeSchedule(c.Request.Context(), mentee.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

func (h *PortalHandler) currentMentor(c *gin.Context) (*models.Mentor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	mentor, err := h.mentors.ForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return mentor, true
}

func (h *PortalHandler) currentMentee(c *gin.Context) (*models.Mentee, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	mentee, err := h.mentees.ForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return mentee, true
}
