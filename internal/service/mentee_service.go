package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/dto"
	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/pkg/cache"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

type menteeRepository interface {
	List(ctx context.Context, filter models.MenteeFilter) ([]models.Mentee, int, error)
	FindByID(ctx context.Context, id string) (*models.Mentee, error)
	FindByUserID(ctx context.Context, userID string) (*models.Mentee, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, mentee *models.Mentee) error
	Update(ctx context.Context, mentee *models.Mentee) error
	Delete(ctx context.Context, id string) error
}

type capacityFlusher interface {
	InvalidatePattern(ctx context.Context, pattern string) error
}

// MenteeService manages mentee profiles.
type MenteeService struct {
	repo      menteeRepository
	capacity  capacityFlusher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMenteeService constructs the service and registers the mentee_id validation. capacity may be nil.
func NewMenteeService(repo menteeRepository, capacity capacityFlusher, validate *validator.Validate, logger *zap.Logger) *MenteeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &MenteeService{repo: repo, capacity: capacity, validator: validate, logger: logger}
	svc.validator.RegisterValidation("mentee_id", func(fl validator.FieldLevel) bool {
		return menteeIDPattern.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	})
	return svc
}

// List returns mentees plus pagination data.
func (s *MenteeService) List(ctx context.Context, filter models.MenteeFilter) ([]models.Mentee, *models.Pagination, error) {
	mentees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mentees")
	}
	if mentees == nil {
		mentees = []models.Mentee{}
	}
	return mentees, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a mentee by id.
func (s *MenteeService) Get(ctx context.Context, id string) (*models.Mentee, error) {
	mentee, err := s.repo.FindByID(ctx, strings.ToUpper(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrMenteeNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentee")
	}
	return mentee, nil
}

// ForUser returns the mentee profile linked to the account.
func (s *MenteeService) ForUser(ctx context.Context, userID string) (*models.Mentee, error) {
	mentee, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrMenteeNotFound, "no mentee profile linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentee")
	}
	return mentee, nil
}

// Create registers a mentee. The course defaults to the one implied by the id prefix.
func (s *MenteeService) Create(ctx context.Context, req dto.CreateMenteeRequest) (*models.Mentee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mentee payload")
	}
	id := strings.ToUpper(strings.TrimSpace(req.ID))
	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check mentee id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "mentee id already registered")
	}

	course := strings.TrimSpace(req.Course)
	if course == "" {
		course = CourseFromMenteeID(id)
	}
	semester := req.Semester
	if semester == 0 {
		semester = 1
	}
	mentee := &models.Mentee{
		ID:       id,
		Name:     strings.TrimSpace(req.Name),
		Course:   course,
		Semester: semester,
		Year:     req.Year,
		Email:    strings.TrimSpace(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		Gender:   req.Gender,
		Status:   models.MenteeStatusActive,
	}
	if err := s.repo.Create(ctx, mentee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create mentee")
	}
	s.logger.Info("mentee created", zap.String("mentee_id", id))
	return mentee, nil
}

// Update modifies an existing mentee.
func (s *MenteeService) Update(ctx context.Context, id string, req dto.UpdateMenteeRequest) (*models.Mentee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mentee payload")
	}
	mentee, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	mentee.Name = strings.TrimSpace(req.Name)
	mentee.Course = strings.TrimSpace(req.Course)
	if req.Semester > 0 {
		mentee.Semester = req.Semester
	}
	if req.Year > 0 {
		mentee.Year = req.Year
	}
	mentee.Email = strings.TrimSpace(req.Email)
	mentee.Phone = strings.TrimSpace(req.Phone)
	mentee.Gender = req.Gender
	mentee.Status = req.Status

	if err := s.repo.Update(ctx, mentee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mentee")
	}
	return mentee, nil
}

// UpdateProfile lets a mentee change their own contact and study details.
// Course, gender and status stay under the head's control.
func (s *MenteeService) UpdateProfile(ctx context.Context, userID string, req dto.MenteeProfileRequest) (*models.Mentee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	mentee, err := s.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	mentee.Name = strings.TrimSpace(req.Name)
	mentee.Email = strings.TrimSpace(req.Email)
	mentee.Phone = strings.TrimSpace(req.Phone)
	if req.Semester > 0 {
		mentee.Semester = req.Semester
	}
	if req.Year > 0 {
		mentee.Year = req.Year
	}

	if err := s.repo.Update(ctx, mentee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	s.logger.Info("mentee profile updated", zap.String("mentee_id", mentee.ID))
	return mentee, nil
}

// Delete removes a mentee together with its assignment history.
func (s *MenteeService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, strings.ToUpper(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrMenteeNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete mentee")
	}
	// The cascade may have freed a slot under any mentor.
	if s.capacity != nil {
		_ = s.capacity.InvalidatePattern(ctx, cache.Key("capacity", "*"))
	}
	s.logger.Info("mentee deleted", zap.String("mentee_id", id))
	return nil
}
