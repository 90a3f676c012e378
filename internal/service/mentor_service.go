package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/dto"
	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/internal/repository"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

type mentorRepository interface {
	List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, int, error)
	FindByID(ctx context.Context, id string) (*models.Mentor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Mentor, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, mentor *models.Mentor) error
	Update(ctx context.Context, mentor *models.Mentor) error
	Delete(ctx context.Context, id string) error
}

type mentorMenteeReader interface {
	ListByMentor(ctx context.Context, mentorID string) ([]models.Mentee, error)
}

// MentorServiceConfig holds registry defaults.
type MentorServiceConfig struct {
	DefaultMaxMentees int
}

// MentorService manages mentor profiles.
type MentorService struct {
	repo      mentorRepository
	mentees   mentorMenteeReader
	capacity  capacityCache
	validator *validator.Validate
	logger    *zap.Logger
	config    MentorServiceConfig
}

// NewMentorService constructs the service. capacity may be nil.
func NewMentorService(repo mentorRepository, mentees mentorMenteeReader, capacity capacityCache, validate *validator.Validate, logger *zap.Logger, config MentorServiceConfig) *MentorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultMaxMentees <= 0 {
		config.DefaultMaxMentees = 20
	}
	return &MentorService{repo: repo, mentees: mentees, capacity: capacity, validator: validate, logger: logger, config: config}
}

// List returns mentors plus pagination data.
func (s *MentorService) List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, *models.Pagination, error) {
	mentors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mentors")
	}
	if mentors == nil {
		mentors = []models.Mentor{}
	}
	return mentors, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a mentor by id.
func (s *MentorService) Get(ctx context.Context, id string) (*models.Mentor, error) {
	mentor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrMentorNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	return mentor, nil
}

// ForUser returns the mentor profile linked to the account.
func (s *MentorService) ForUser(ctx context.Context, userID string) (*models.Mentor, error) {
	mentor, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrMentorNotFound, "no mentor profile linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	return mentor, nil
}

// Mentees lists the mentor's active mentees.
func (s *MentorService) Mentees(ctx context.Context, mentorID string) ([]models.Mentee, error) {
	mentees, err := s.mentees.ListByMentor(ctx, mentorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mentees")
	}
	if mentees == nil {
		mentees = []models.Mentee{}
	}
	return mentees, nil
}

// Create registers a mentor. The department defaults to the one implied by the staff id.
func (s *MentorService) Create(ctx context.Context, req dto.CreateMentorRequest) (*models.Mentor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mentor payload")
	}
	id := strings.ToUpper(strings.TrimSpace(req.ID))
	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check mentor id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "mentor id already registered")
	}

	department := strings.TrimSpace(req.Department)
	if department == "" {
		department = DepartmentFromStaffID(id)
	}
	if department == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department is required")
	}
	maxMentees := req.MaxMentees
	if maxMentees == 0 {
		maxMentees = s.config.DefaultMaxMentees
	}
	mentor := &models.Mentor{
		ID:         id,
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		Phone:      strings.TrimSpace(req.Phone),
		Department: department,
		MaxMentees: maxMentees,
	}
	if err := s.repo.Create(ctx, mentor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create mentor")
	}
	s.logger.Info("mentor created", zap.String("mentor_id", id), zap.String("department", mentor.Department))
	return mentor, nil
}

// Update modifies a mentor. max_mentees never drops below the active mentee count.
func (s *MentorService) Update(ctx context.Context, id string, req dto.UpdateMentorRequest) (*models.Mentor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mentor payload")
	}
	mentor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.MaxMentees < mentor.CurrentMentees {
		return nil, capacityBelowActive(mentor.CurrentMentees)
	}

	mentor.Name = strings.TrimSpace(req.Name)
	mentor.Email = strings.TrimSpace(req.Email)
	mentor.Phone = strings.TrimSpace(req.Phone)
	mentor.Department = strings.TrimSpace(req.Department)
	mentor.MaxMentees = req.MaxMentees

	if err := s.repo.Update(ctx, mentor); err != nil {
		if errors.Is(err, repository.ErrCapacityReached) {
			return nil, capacityBelowActive(mentor.CurrentMentees)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mentor")
	}
	s.invalidate(ctx, mentor.ID)
	return mentor, nil
}

// UpdateProfile lets a mentor change their own contact details.
// Department and capacity stay under the head's control.
func (s *MentorService) UpdateProfile(ctx context.Context, userID string, req dto.MentorProfileRequest) (*models.Mentor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	mentor, err := s.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	mentor.Name = strings.TrimSpace(req.Name)
	mentor.Email = strings.TrimSpace(req.Email)
	mentor.Phone = strings.TrimSpace(req.Phone)

	if err := s.repo.Update(ctx, mentor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	s.logger.Info("mentor profile updated", zap.String("mentor_id", mentor.ID))
	return mentor, nil
}

// Delete removes a mentor that has no active mentees.
func (s *MentorService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrMentorNotFound, "")
		case errors.Is(err, repository.ErrMentorHasActiveMentees):
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "transfer or complete the mentor's active assignments first")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete mentor")
	}
	s.invalidate(ctx, id)
	s.logger.Info("mentor deleted", zap.String("mentor_id", id))
	return nil
}

func (s *MentorService) invalidate(ctx context.Context, mentorID string) {
	if s.capacity == nil {
		return
	}
	_ = s.capacity.Invalidate(ctx, capacityKey(mentorID))
}

func capacityBelowActive(active int) error {
	return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("max mentees cannot be lower than the %d active mentees", active))
}
