package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/dto"
	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/internal/repository"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

var activityIDPattern = regexp.MustCompile(`^A\d{5,}$`)

type activityStore interface {
	CreateActivity(ctx context.Context, activity *models.Activity) error
	PeekActivityID(ctx context.Context) (string, error)
	FindByID(ctx context.Context, id string) (*models.Activity, error)
	UpdateActivity(ctx context.Context, activity *models.Activity) error
	Delete(ctx context.Context, id string) error
	ListActivities(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error)
	Attendance(ctx context.Context, activityIDs []string) (map[string][]models.Attendance, error)
}

type mentorChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// ActivityService lets the head of department manage the activity calendar.
type ActivityService struct {
	repo      activityStore
	mentors   mentorChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewActivityService constructs the service.
func NewActivityService(repo activityStore, mentors mentorChecker, validate *validator.Validate, logger *zap.Logger) *ActivityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, mentors: mentors, validator: validate, logger: logger}
}

// NextID suggests the id the next created activity would take.
func (s *ActivityService) NextID(ctx context.Context) (string, error) {
	id, err := s.repo.PeekActivityID(ctx)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read activity ids")
	}
	return id, nil
}

// List returns activities plus pagination data.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, *models.Pagination, error) {
	activities, total, err := s.repo.ListActivities(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	return activities, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Create adds an activity. An explicit id must look like A00001 and be unused.
func (s *ActivityService) Create(ctx context.Context, createdBy string, req dto.ActivityRequest) (*models.Activity, error) {
	activity, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	activity.ID = strings.ToUpper(strings.TrimSpace(req.ID))
	if activity.ID != "" && !activityIDPattern.MatchString(activity.ID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "activity id must look like A00001")
	}
	activity.CreatedBy = createdBy

	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		if errors.Is(err, repository.ErrActivityIDTaken) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "activity id already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create activity")
	}
	s.logger.Info("activity created", zap.String("activity_id", activity.ID), zap.String("type", string(activity.Type)))
	return activity, nil
}

// Get returns an activity with its attendance sheet and headline numbers.
func (s *ActivityService) Get(ctx context.Context, id string) (*models.ActivityDetails, error) {
	activity, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	sheet, err := s.repo.Attendance(ctx, []string{activity.ID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	rows := sheet[activity.ID]
	if rows == nil {
		rows = []models.Attendance{}
	}

	details := &models.ActivityDetails{Activity: *activity, Attendance: rows, TotalAttendees: len(rows)}
	for _, row := range rows {
		if row.Attended {
			details.PresentCount++
		}
	}
	details.AbsentCount = details.TotalAttendees - details.PresentCount
	details.AttendanceRate = models.AttendanceRate(details.PresentCount, details.TotalAttendees)
	return details, nil
}

// Update replaces the schedule of an activity. The id and completion state never change.
func (s *ActivityService) Update(ctx context.Context, id string, req dto.ActivityRequest) (*models.Activity, error) {
	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	activity, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	activity.ID = existing.ID
	activity.CreatedBy = existing.CreatedBy
	activity.CreatedAt = existing.CreatedAt
	activity.SessionType = existing.SessionType
	activity.Completed = existing.Completed
	activity.CompletedAt = existing.CompletedAt

	if err := s.repo.UpdateActivity(ctx, activity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrActivityNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update activity")
	}
	return activity, nil
}

// Delete removes an activity with its attendance and report.
func (s *ActivityService) Delete(ctx context.Context, id string) error {
	id = strings.ToUpper(strings.TrimSpace(id))
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrActivityNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete activity")
	}
	s.logger.Info("activity deleted", zap.String("activity_id", id))
	return nil
}

func (s *ActivityService) find(ctx context.Context, id string) (*models.Activity, error) {
	activity, err := s.repo.FindByID(ctx, strings.ToUpper(strings.TrimSpace(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrActivityNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	return activity, nil
}

func (s *ActivityService) build(ctx context.Context, req dto.ActivityRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	activity := &models.Activity{
		Name:               strings.TrimSpace(req.Name),
		Type:               req.Type,
		Description:        strings.TrimSpace(req.Description),
		Date:               date,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		Location:           strings.TrimSpace(req.Location),
		IsMentoringSession: req.IsMentoringSession,
	}
	if activity.IsMentoringSession {
		activity.Topic = activity.Name
	}

	mentorID := strings.ToUpper(strings.TrimSpace(req.PrimaryMentorID))
	if mentorID == "" {
		if activity.IsMentoringSession {
			return nil, appErrors.Clone(appErrors.ErrValidation, "mentoring sessions need a primary mentor")
		}
		return activity, nil
	}
	exists, err := s.mentors.Exists(ctx, mentorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check mentor")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrMentorNotFound, "")
	}
	activity.PrimaryMentorID = &mentorID
	return activity, nil
}
