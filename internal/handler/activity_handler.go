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

type activityService interface {
	NextID(ctx context.Context) (string, error)
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, *models.Pagination, error)
	Create(ctx context.Context, createdBy string, req dto.ActivityRequest) (*models.Activity, error)
	Get(ctx context.Context, id string) (*models.ActivityDetails, error)
	Update(ctx context.Context, id string, req dto.ActivityRequest) (*models.Activity, error)
	Delete(ctx context.Context, id string) error
}

// ActivityHandler exposes the head's activity calendar.
type ActivityHandler struct {
	activities activityService
}

// NewActivityHandler constructs ActivityHandler.
func NewActivityHandler(activities activityService) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// List godoc
// @Summary List activities
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Param type query string false "mentoring, workshop, seminar, meeting or other"
// @Param mentorId query string false "Primary mentor"
// @Param from query string false "Earliest date, YYYY-MM-DD"
// @Param to query string false "Latest date, YYYY-MM-DD"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
	var filter models.ActivityFilter
	if kind := c.Query("type"); kind != "" {
		t := models.ActivityType(strings.ToLower(kind))
		filter.Type = &t
	}
	filter.MentorID = strings.ToUpper(c.Query("mentorId"))
	for param, dest := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, param+" must be YYYY-MM-DD"))
			return
		}
		*dest = &day
	}
	filter.Page, filter.PageSize = pageParams(c)

	activities, pagination, err := h.activities.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activities, pagination)
}

// NextID godoc
// @Summary Suggest the next free activity id
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /activities/next-id [get]
func (h *ActivityHandler) NextID(c *gin.Context) {
	id, err := h.activities.NextID(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": id}, nil)
}

// Create godoc
// @Summary Create activity
// @Tags Activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ActivityRequest true "Activity payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /activities [post]
func (h *ActivityHandler) Create(c *gin.Context) {
	var req dto.ActivityRequest
	if !bindJSON(c, &req, "invalid activity payload") {
		return
	}
	activity, err := h.activities.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, activity)
}

// Get godoc
// @Summary Activity with its attendance sheet
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /activities/{id} [get]
func (h *ActivityHandler) Get(c *gin.Context) {
	details, err := h.activities.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// Update godoc
// @Summary Update activity
// @Tags Activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Activity ID"
// @Param payload body dto.ActivityRequest true "Activity payload"
// @Success 200 {object} response.Envelope
// @Router /activities/{id} [put]
func (h *ActivityHandler) Update(c *gin.Context) {
	var req dto.ActivityRequest
	if !bindJSON(c, &req, "invalid activity payload") {
		return
	}
	activity, err := h.activities.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}

// Delete godoc
// @Summary Delete activity
// @Tags Activities
// @Security BearerAuth
// @Param id path string true "Activity ID"
// @Success 204
// @Router /activities/{id} [delete]
func (h *ActivityHandler) Delete(c *gin.Context) {
	if err := h.activities.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
