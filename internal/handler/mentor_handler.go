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

type mentorService interface {
	List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Mentor, error)
	Create(ctx context.Context, req dto.CreateMentorRequest) (*models.Mentor, error)
	Update(ctx context.Context, id string, req dto.UpdateMentorRequest) (*models.Mentor, error)
	Delete(ctx context.Context, id string) error
}

// MentorHandler exposes mentor registry endpoints.
type MentorHandler struct {
	mentors mentorService
}

// NewMentorHandler constructs MentorHandler.
func NewMentorHandler(mentors mentorService) *MentorHandler {
	return &MentorHandler{mentors: mentors}
}

// List godoc
// @Summary List mentors
// @Tags Mentors
// @Produce json
// @Security BearerAuth
// @Param department query string false "Department"
// @Param withVacancy query bool false "Only mentors with free slots"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /mentors [get]
func (h *MentorHandler) List(c *gin.Context) {
	var filter models.MentorFilter
	filter.Department = strings.TrimSpace(c.Query("department"))
	filter.WithVacancy = c.Query("withVacancy") == "true"
	filter.Page, filter.PageSize = pageParams(c)

	mentors, pagination, err := h.mentors.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentors, pagination)
}

// Get godoc
// @Summary Get mentor
// @Tags Mentors
// @Produce json
// @Security BearerAuth
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /mentors/{id} [get]
func (h *MentorHandler) Get(c *gin.Context) {
	mentor, err := h.mentors.Get(c.Request.Context(), strings.ToUpper(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentor, nil)
}

// Create godoc
// @Summary Register mentor
// @Tags Mentors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateMentorRequest true "Mentor payload"
// @Success 201 {object} response.Envelope
// @Router /mentors [post]
func (h *MentorHandler) Create(c *gin.Context) {
	var req dto.CreateMentorRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	mentor, err := h.mentors.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, mentor)
}

// Update godoc
// @Summary Update mentor
// @Tags Mentors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Staff ID"
// @Param payload body dto.UpdateMentorRequest true "Mentor payload"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /mentors/{id} [put]
func (h *MentorHandler) Update(c *gin.Context) {
	var req dto.UpdateMentorRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	mentor, err := h.mentors.Update(c.Request.Context(), strings.ToUpper(c.Param("id")), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentor, nil)
}

// Delete godoc
// @Summary Delete mentor
// @Tags Mentors
// @Security BearerAuth
// @Param id path string true "Staff ID"
// @Success 204
// @Failure 412 {object} response.Envelope
// @Router /mentors/{id} [delete]
func (h *MentorHandler) Delete(c *gin.Context) {
	if err := h.mentors.Delete(c.Request.Context(), strings.ToUpper(c.Param("id"))); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
