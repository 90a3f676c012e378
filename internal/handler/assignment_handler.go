package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentorship-api/internal/dto"
	"github.com/noah-isme/mentorship-api/internal/models"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
	"github.com/noah-isme/mentorship-api/pkg/response"
)

type assignmentService interface {
	Assign(ctx context.Context, req dto.AssignRequest, actor string) (*models.Assignment, error)
	AssignMany(ctx context.Context, mentorID string, req dto.AssignManyRequest, actor string) (*models.BatchResult, error)
	Transfer(ctx context.Context, assignmentID string, req dto.TransferRequest, actor string) (*models.Assignment, error)
	Reassign(ctx context.Context, req dto.ReassignRequest, actor string) (*models.BatchResult, error)
	Complete(ctx context.Context, assignmentID string) error
	Delete(ctx context.Context, assignmentID string) error
	List(ctx context.Context, filter models.AssignmentFilter) (*dto.AssignmentListResult, error)
	Details(ctx context.Context, assignmentID string) (*models.AssignmentDetails, error)
	Capacity(ctx context.Context, mentorID string) (*models.CapacitySnapshot, error)
	Candidates(ctx context.Context, menteeID string) (*models.CandidateList, error)
	EligibleMentees(ctx context.Context, mentorID string) (*models.EligibleMentees, error)
}

type assignmentRunService interface {
	Start(ctx context.Context, req dto.AutoAssignRequest, actor string) (*models.AssignmentRun, error)
	Get(ctx context.Context, id string) (*models.AssignmentRun, error)
}

// AssignmentHandler exposes the assignment engine to heads of programme.
type AssignmentHandler struct {
	assignments assignmentService
	runs        assignmentRunService
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(assignments assignmentService, runs assignmentRunService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments, runs: runs}
}

// Assign godoc
// @Summary Assign a mentee to a mentor
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AssignRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req dto.AssignRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	assignment, err := h.assignments.Assign(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// AssignMany godoc
// @Summary Assign several mentees to one mentor
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Staff ID"
// @Param payload body dto.AssignManyRequest true "Mentee ids"
// @Success 200 {object} response.Envelope
// @Router /mentors/{id}/assignments [post]
func (h *AssignmentHandler) AssignMany(c *gin.Context) {
	var req dto.AssignManyRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	result, err := h.assignments.AssignMany(c.Request.Context(), strings.ToUpper(c.Param("id")), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary Assignment history
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param mentorId query string false "Mentor"
// @Param menteeId query string false "Mentee"
// @Param status query string false "active, completed or transferred"
// @Param from query string false "Assigned on or after (YYYY-MM-DD)"
// @Param to query string false "Assigned on or before (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	var filter models.AssignmentFilter
	filter.MentorID = strings.ToUpper(c.Query("mentorId"))
	filter.MenteeID = strings.ToUpper(c.Query("menteeId"))
	if status := c.Query("status"); status != "" {
		s := models.AssignmentStatus(strings.ToLower(status))
		filter.Status = &s
	}
	var err error
	if filter.From, err = parseDay(c.Query("from")); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
		return
	}
	if filter.To, err = parseDay(c.Query("to")); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD"))
		return
	}
	if filter.To != nil {
		end := filter.To.AddDate(0, 0, 1)
		filter.To = &end
	}
	filter.Page, filter.PageSize = pageParams(c)

	result, err := h.assignments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := models.NewPagination(filter.Page, filter.PageSize, result.Total)
	response.JSON(c, http.StatusOK, result.Items, pagination, map[string]interface{}{"stats": result.Stats})
}

// Details godoc
// @Summary Assignment details
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Details(c *gin.Context) {
	details, err := h.assignments.Details(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// Transfer godoc
// @Summary Transfer an active assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param payload body dto.TransferRequest true "Transfer payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id}/transfer [post]
func (h *AssignmentHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !bindJSON(c, &req, "invalid transfer payload") {
		return
	}
	assignment, err := h.assignments.Transfer(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Complete godoc
// @Summary Complete an active assignment
// @Tags Assignments
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id}/complete [post]
func (h *AssignmentHandler) Complete(c *gin.Context) {
	if err := h.assignments.Complete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete an assignment
// @Tags Assignments
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	if err := h.assignments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reassign godoc
// @Summary Move several mentees to one mentor
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ReassignRequest true "Reassign payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/reassign [post]
func (h *AssignmentHandler) Reassign(c *gin.Context) {
	var req dto.ReassignRequest
	if !bindJSON(c, &req, "invalid reassign payload") {
		return
	}
	result, err := h.assignments.Reassign(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AutoAssign godoc
// @Summary Batch auto-assign unassigned mentees
// @Description Runs inline; with async=true the run is queued and 202 is returned
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AutoAssignRequest true "Run payload"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /assignments/auto-assign [post]
func (h *AssignmentHandler) AutoAssign(c *gin.Context) {
	var req dto.AutoAssignRequest
	if !bindJSON(c, &req, "invalid auto-assign payload") {
		return
	}
	run, err := h.runs.Start(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if req.Async {
		response.Accepted(c, run)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// RunStatus godoc
// @Summary Batch run status
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/runs/{id} [get]
func (h *AssignmentHandler) RunStatus(c *gin.Context) {
	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// Capacity godoc
// @Summary Mentor capacity and gender plan
// @Tags Mentors
// @Produce json
// @Security BearerAuth
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /mentors/{id}/capacity [get]
func (h *AssignmentHandler) Capacity(c *gin.Context) {
	snapshot, err := h.assignments.Capacity(c.Request.Context(), strings.ToUpper(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// EligibleMentees godoc
// @Summary Unassigned mentees a mentor can take
// @Tags Mentors
// @Produce json
// @Security BearerAuth
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /mentors/{id}/eligible-mentees [get]
func (h *AssignmentHandler) EligibleMentees(c *gin.Context) {
	eligible, err := h.assignments.EligibleMentees(c.Request.Context(), strings.ToUpper(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, eligible, nil)
}

// Candidates godoc
// @Summary Quick-assign mentor candidates for a mentee
// @Tags Mentees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Mentee ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /mentees/{id}/candidates [get]
func (h *AssignmentHandler) Candidates(c *gin.Context) {
	candidates, err := h.assignments.Candidates(c.Request.Context(), strings.ToUpper(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}

func parseDay(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &day, nil
}
