package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentorship-api/internal/dto"
	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/pkg/response"
)

type menteeService interface {
	List(ctx context.Context, filter models.MenteeFilter) ([]models.Mentee, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Mentee, error)
	Create(ctx context.Context, req dto.CreateMenteeRequest) (*models.Mentee, error)
	Update(ctx context.Context, id string, req dto.UpdateMenteeRequest) (*models.Mentee, error)
	Delete(ctx context.Context, id string) error
}

// MenteeHandler exposes mentee registry endpoints.
type MenteeHandler struct {
	mentees menteeService
}

// NewMenteeHandler constructs MenteeHandler.
func NewMenteeHandler(mentees menteeService) *MenteeHandler {
	return &MenteeHandler{mentees: mentees}
}

// List godoc
// @Summary List mentees
// @Tags Mentees
// @Produce json
// @Security BearerAuth
// @Param status query string false "active, inactive or graduated"
// @Param gender query string false "male or female"
// @Param course query string false "Course name"
// @Param mentorId query string false "Current mentor"
// @Param unassigned query bool false "Only mentees without an active assignment"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /mentees [get]
func (h *MenteeHandler) List(c *gin.Context) {
	var filter models.MenteeFilter
	if status := c.Query("status"); status != "" {
		s := models.MenteeStatus(status)
		filter.Status = &s
	}
	if gender := c.Query("gender"); gender != "" {
		g := models.Gender(strings.ToLower(gender))
		filter.Gender = &g
	}
	filter.Course = strings.TrimSpace(c.Query("course"))
	filter.MentorID = strings.ToUpper(c.Query("mentorId"))
	filter.Unassigned = c.Query("unassigned") == "true"
	filter.Page, filter.PageSize = pageParams(c)

	mentees, pagination, err := h.mentees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentees, pagination)
}

// Get godoc
// @Summary Get mentee
// @Tags Mentees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Mentee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /mentees/{id} [get]
func (h *MenteeHandler) Get(c *gin.Context) {
	mentee, err := h.mentees.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentee, nil)
}

// Create godoc
// @Summary Register mentee
// @Tags Mentees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateMenteeRequest true "Mentee payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /mentees [post]
func (h *MenteeHandler) Create(c *gin.Context) {
	var req dto.CreateMenteeRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	mentee, err := h.mentees.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, mentee)
}

// Update godoc
// @Summary Update mentee
// @Tags Mentees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Mentee ID"
// @Param payload body dto.UpdateMenteeRequest true "Mentee payload"
// @Success 200 {object} response.Envelope
// @Router /mentees/{id} [put]
func (h *MenteeHandler) Update(c *gin.Context) {
	var req dto.UpdateMenteeRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	mentee, err := h.mentees.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentee, nil)
}

// Delete godoc
// @Summary Delete mentee
// @Tags Mentees
// @Security BearerAuth
// @Param id path string true "Mentee ID"
// @Success 204
// @Router /mentees/{id} [delete]
func (h *MenteeHandler) Delete(c *gin.Context) {
	if err := h.mentees.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
