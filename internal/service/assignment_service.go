package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/dto"
	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/internal/repository"
	"github.com/noah-isme/mentorship-api/pkg/cache"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

type assignmentLedger interface {
	FindByID(ctx context.Context, id string) (*models.AssignmentView, error)
	FindActiveByMentee(ctx context.Context, menteeID string) (*models.AssignmentView, error)
	ListByMentee(ctx context.Context, menteeID string) ([]models.AssignmentView, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentView, int, error)
	Stats(ctx context.Context, filter models.AssignmentFilter) (models.AssignmentStats, error)
	MentorLoads(ctx context.Context) ([]models.MentorLoad, error)
	MentorLoad(ctx context.Context, mentorID string) (*models.MentorLoad, error)
	AssignTx(ctx context.Context, mentorID, menteeID string, actor *string, notes string) (*models.Assignment, error)
	TransferTx(ctx context.Context, req models.TransferRequest) (*models.Assignment, error)
	MarkStatus(ctx context.Context, id string, status models.AssignmentStatus) error
	Delete(ctx context.Context, id string) error
}

type assignmentMenteeReader interface {
	FindByID(ctx context.Context, id string) (*models.Mentee, error)
	ListUnassigned(ctx context.Context) ([]models.Mentee, error)
	ListByMentor(ctx context.Context, mentorID string) ([]models.Mentee, error)
}

type sharedSessionReader interface {
	ListShared(ctx context.Context, mentorID, menteeID string) ([]models.MenteeSession, error)
}

type capacityCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type assignmentRecorder interface {
	RecordAssignment(operation, result string)
	ObserveBatchRun(mode string, duration time.Duration, outcomes map[string]int)
}

// AssignmentServiceConfig tunes the assignment service.
type AssignmentServiceConfig struct {
	CapacityTTL time.Duration
}

// AssignmentService allocates mentees to mentors and maintains the assignment ledger.
type AssignmentService struct {
	ledger    assignmentLedger
	mentees   assignmentMenteeReader
	sessions  sharedSessionReader
	cache     capacityCache
	metrics   assignmentRecorder
	validator *validator.Validate
	logger    *zap.Logger
	config    AssignmentServiceConfig
}

// NewAssignmentService constructs the service. capacity and metrics may be nil.
func NewAssignmentService(
	ledger assignmentLedger,
	mentees assignmentMenteeReader,
	sessions sharedSessionReader,
	capacity capacityCache,
	metrics assignmentRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
	config AssignmentServiceConfig,
) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.CapacityTTL <= 0 {
		config.CapacityTTL = 2 * time.Minute
	}
	return &AssignmentService{
		ledger:    ledger,
		mentees:   mentees,
		sessions:  sessions,
		cache:     capacity,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Assign validates the payload and performs a single assignment.
func (s *AssignmentService) Assign(ctx context.Context, req dto.AssignRequest, actor string) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	return s.singleAssign(ctx, strings.TrimSpace(req.MentorID), strings.ToUpper(strings.TrimSpace(req.MenteeID)), actor, req.Notes)
}

// SingleAssign creates an active assignment between mentor and mentee.
func (s *AssignmentService) SingleAssign(ctx context.Context, mentorID, menteeID, actor string) (*models.Assignment, error) {
	return s.singleAssign(ctx, mentorID, menteeID, actor, "")
}

func (s *AssignmentService) singleAssign(ctx context.Context, mentorID, menteeID, actor, notes string) (*models.Assignment, error) {
	assignment, err := s.ledger.AssignTx(ctx, mentorID, menteeID, optionalString(actor), notes)
	if err != nil {
		appErr := mapLedgerError(err, "failed to create assignment")
		s.record("assign", appErr)
		return nil, appErr
	}
	s.record("assign", nil)
	s.invalidateCapacity(ctx, mentorID)
	s.logger.Info("mentee assigned",
		zap.String("mentor_id", mentorID),
		zap.String("mentee_id", menteeID),
		zap.String("assignment_id", assignment.ID),
	)
	return assignment, nil
}

// AssignMany assigns each mentee to the mentor independently; one failure never stops the rest.
func (s *AssignmentService) AssignMany(ctx context.Context, mentorID string, req dto.AssignManyRequest, actor string) (*models.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if _, err := s.loadMentor(ctx, mentorID); err != nil {
		return nil, err
	}

	result := &models.BatchResult{}
	for _, raw := range req.MenteeIDs {
		menteeID := strings.ToUpper(strings.TrimSpace(raw))
		outcome := models.AssignmentOutcome{MenteeID: menteeID, MentorID: mentorID}
		if _, err := s.singleAssign(ctx, mentorID, menteeID, actor, ""); err != nil {
			outcome.Result = models.OutcomeFailed
			outcome.Reason = appErrors.FromError(err).Code
		} else {
			outcome.Result = models.OutcomeAssigned
		}
		result.Record(outcome)
	}
	return result, nil
}

// Transfer moves an active assignment to a new mentor.
func (s *AssignmentService) Transfer(ctx context.Context, assignmentID string, req dto.TransferRequest, actor string) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}

	current, err := s.ledger.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAssignmentNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return s.transfer(ctx, current, strings.TrimSpace(req.NewMentorID), actor, req.Notes)
}

func (s *AssignmentService) transfer(ctx context.Context, current *models.AssignmentView, newMentorID, actor, notes string) (*models.Assignment, error) {
	if current.Status != models.AssignmentActive {
		return nil, appErrors.Clone(appErrors.ErrNotActive, "")
	}
	if current.MentorID == newMentorID {
		return nil, appErrors.Clone(appErrors.ErrSameMentor, "")
	}
	target, err := s.loadMentor(ctx, newMentorID)
	if err != nil {
		return nil, err
	}
	if target.Vacancy() == 0 {
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("%s has no available slots", target.Name))
	}

	assignment, err := s.ledger.TransferTx(ctx, models.TransferRequest{
		AssignmentID: current.ID,
		NewMentorID:  newMentorID,
		Actor:        actor,
		Notes:        notes,
		NewNotes:     transferNote(current.MentorName, notes),
	})
	if err != nil {
		appErr := mapLedgerError(err, "failed to transfer assignment")
		s.record("transfer", appErr)
		return nil, appErr
	}
	s.record("transfer", nil)
	s.invalidateCapacity(ctx, current.MentorID, newMentorID)
	s.logger.Info("assignment transferred",
		zap.String("from_assignment_id", current.ID),
		zap.String("assignment_id", assignment.ID),
		zap.String("from_mentor_id", current.MentorID),
		zap.String("to_mentor_id", newMentorID),
		zap.String("mentee_id", current.MenteeID),
	)
	return assignment, nil
}

func transferNote(previousMentor, notes string) string {
	note := fmt.Sprintf("Transferred from %s.", previousMentor)
	if notes = strings.TrimSpace(notes); notes != "" {
		note += " " + notes
	}
	return note
}

// Reassign transfers the active assignment of every listed mentee to newMentorID.
// The whole request is rejected up front when the mentor cannot take every mentee that would move.
func (s *AssignmentService) Reassign(ctx context.Context, req dto.ReassignRequest, actor string) (*models.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reassign payload")
	}
	newMentorID := strings.TrimSpace(req.NewMentorID)
	target, err := s.loadMentor(ctx, newMentorID)
	if err != nil {
		return nil, err
	}

	type pending struct {
		menteeID string
		current  *models.AssignmentView
	}
	result := &models.BatchResult{}
	moves := make([]pending, 0, len(req.MenteeIDs))
	for _, raw := range req.MenteeIDs {
		menteeID := strings.ToUpper(strings.TrimSpace(raw))
		current, err := s.ledger.FindActiveByMentee(ctx, menteeID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			result.Record(models.AssignmentOutcome{MenteeID: menteeID, MentorID: newMentorID, Result: models.OutcomeFailed, Reason: appErrors.ErrNotActive.Code})
		case err != nil:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active assignment")
		case current.MentorID == newMentorID:
			result.Record(models.AssignmentOutcome{MenteeID: menteeID, MentorID: newMentorID, Result: models.OutcomeSkipped, Reason: appErrors.ErrSameMentor.Code})
		default:
			moves = append(moves, pending{menteeID: menteeID, current: current})
		}
	}

	if len(moves) > target.Vacancy() {
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded,
			fmt.Sprintf("%s has %d available slots but %d mentees were selected", target.Name, target.Vacancy(), len(moves)))
	}

	for _, move := range moves {
		outcome := models.AssignmentOutcome{MenteeID: move.menteeID, MentorID: newMentorID, Result: models.OutcomeAssigned}
		if _, err := s.transfer(ctx, move.current, newMentorID, actor, req.Notes); err != nil {
			outcome.Result = models.OutcomeFailed
			outcome.Reason = appErrors.FromError(err).Code
		}
		result.Record(outcome)
	}
	return result, nil
}

// Complete closes an active assignment as completed.
func (s *AssignmentService) Complete(ctx context.Context, assignmentID string) error {
	current, err := s.ledger.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrAssignmentNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if err := s.ledger.MarkStatus(ctx, assignmentID, models.AssignmentCompleted); err != nil {
		appErr := mapLedgerError(err, "failed to complete assignment")
		s.record("complete", appErr)
		return appErr
	}
	s.record("complete", nil)
	s.invalidateCapacity(ctx, current.MentorID)
	return nil
}

// Delete removes an assignment record, releasing the mentee when it was active.
func (s *AssignmentService) Delete(ctx context.Context, assignmentID string) error {
	current, err := s.ledger.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrAssignmentNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if err := s.ledger.Delete(ctx, assignmentID); err != nil {
		appErr := mapLedgerError(err, "failed to delete assignment")
		s.record("delete", appErr)
		return appErr
	}
	s.record("delete", nil)
	s.invalidateCapacity(ctx, current.MentorID)
	return nil
}

// List returns one page of assignment history with stats for the same filter.
func (s *AssignmentService) List(ctx context.Context, filter models.AssignmentFilter) (*dto.AssignmentListResult, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown assignment status")
	}
	items, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	stats, err := s.ledger.Stats(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute assignment stats")
	}
	if items == nil {
		items = []models.AssignmentView{}
	}
	return &dto.AssignmentListResult{Items: items, Total: total, Stats: stats}, nil
}

// Details returns an assignment with the mentee's history and the sessions it shared with the mentor.
func (s *AssignmentService) Details(ctx context.Context, assignmentID string) (*models.AssignmentDetails, error) {
	current, err := s.ledger.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAssignmentNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	all, err := s.ledger.ListByMentee(ctx, current.MenteeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment history")
	}
	history := make([]models.AssignmentView, 0, len(all))
	for _, item := range all {
		if item.ID != current.ID {
			history = append(history, item)
		}
	}

	details := &models.AssignmentDetails{Assignment: *current, History: history, Sessions: []models.MenteeSession{}}
	if s.sessions != nil {
		sessions, err := s.sessions.ListShared(ctx, current.MentorID, current.MenteeID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
		}
		if sessions != nil {
			details.Sessions = sessions
		}
	}
	for _, session := range details.Sessions {
		if session.Attended {
			details.AttendedCount++
		}
	}
	if n := len(details.Sessions); n > 0 {
		details.AttendanceRate = details.AttendedCount * 100 / n
	}
	return details, nil
}

// Capacity reports a mentor's live load, gender split and ideal fill plan.
// Snapshots may be served from cache; allocation decisions never read it.
func (s *AssignmentService) Capacity(ctx context.Context, mentorID string) (*models.CapacitySnapshot, error) {
	key := capacityKey(mentorID)
	var cached models.CapacitySnapshot
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	load, err := s.loadMentor(ctx, mentorID)
	if err != nil {
		return nil, err
	}
	snapshot := capacitySnapshot(*load)
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, snapshot, s.config.CapacityTTL)
	}
	return &snapshot, nil
}

// Candidates lists department-compatible mentors with vacancy for a mentee, least loaded first.
func (s *AssignmentService) Candidates(ctx context.Context, menteeID string) (*models.CandidateList, error) {
	mentee, err := s.mentees.FindByID(ctx, menteeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrMenteeNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentee")
	}
	department, ok := ResolveDepartment(mentee.Course)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnresolvableDepartment, fmt.Sprintf("course %q does not map to any department", mentee.Course))
	}

	loads, err := s.ledger.MentorLoads(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentors")
	}
	candidates := make([]models.MentorCandidate, 0)
	for _, load := range loads {
		if load.Vacancy() > 0 && DepartmentsCompatible(department, load.Department) {
			candidates = append(candidates, models.MentorCandidate{MentorLoad: load, Slots: load.Vacancy()})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ActiveCount != candidates[j].ActiveCount {
			return candidates[i].ActiveCount < candidates[j].ActiveCount
		}
		return candidates[i].ID < candidates[j].ID
	})
	return &models.CandidateList{Mentee: *mentee, Department: department, Mentors: candidates}, nil
}

// EligibleMentees lists unassigned mentees whose department the mentor can take.
func (s *AssignmentService) EligibleMentees(ctx context.Context, mentorID string) (*models.EligibleMentees, error) {
	load, err := s.loadMentor(ctx, mentorID)
	if err != nil {
		return nil, err
	}
	unassigned, err := s.mentees.ListUnassigned(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentees")
	}
	assigned, err := s.mentees.ListByMentor(ctx, mentorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assigned mentees")
	}

	eligible := make([]models.EligibleMentee, 0)
	for _, mentee := range unassigned {
		department, ok := ResolveDepartment(mentee.Course)
		if ok && DepartmentsCompatible(department, load.Department) {
			eligible = append(eligible, models.EligibleMentee{Mentee: mentee, Department: department})
		}
	}
	if assigned == nil {
		assigned = []models.Mentee{}
	}
	return &models.EligibleMentees{Mentor: capacitySnapshot(*load), Mentees: eligible, Assigned: assigned}, nil
}

// CurrentMentor returns the mentor of the mentee's active assignment, read from the ledger.
func (s *AssignmentService) CurrentMentor(ctx context.Context, menteeID string) (*models.AssignmentView, error) {
	current, err := s.ledger.FindActiveByMentee(ctx, menteeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no mentor assigned yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current mentor")
	}
	return current, nil
}

func (s *AssignmentService) loadMentor(ctx context.Context, mentorID string) (*models.MentorLoad, error) {
	load, err := s.ledger.MentorLoad(ctx, mentorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrMentorNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	return load, nil
}

func (s *AssignmentService) invalidateCapacity(ctx context.Context, mentorIDs ...string) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(mentorIDs))
	for _, id := range mentorIDs {
		keys = append(keys, capacityKey(id))
	}
	_ = s.cache.Invalidate(ctx, keys...)
}

func (s *AssignmentService) record(operation string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = appErrors.FromError(err).Code
	}
	s.metrics.RecordAssignment(operation, result)
}

func capacityKey(mentorID string) string {
	return cache.Key("capacity", mentorID)
}

func capacitySnapshot(load models.MentorLoad) models.CapacitySnapshot {
	dist := models.GenderDistribution{Male: load.MaleCount, Female: load.FemaleCount}
	return models.CapacitySnapshot{
		MentorID:     load.ID,
		MaxMentees:   load.MaxMentees,
		ActiveCount:  load.ActiveCount,
		Vacancy:      load.Vacancy(),
		Distribution: dist,
		IdealPlan:    idealPlan(dist, load.Vacancy()),
	}
}

// mapLedgerError translates repository errors into domain errors.
func mapLedgerError(err error, fallback string) error {
	switch {
	case errors.Is(err, repository.ErrCapacityReached):
		return appErrors.Clone(appErrors.ErrCapacityExceeded, "")
	case errors.Is(err, repository.ErrActiveAssignmentExists):
		return appErrors.Clone(appErrors.ErrAlreadyAssigned, "")
	case errors.Is(err, repository.ErrPairExists):
		return appErrors.Clone(appErrors.ErrAssignmentPairExists, "")
	case errors.Is(err, repository.ErrAssignmentNotActive):
		return appErrors.Clone(appErrors.ErrNotActive, "")
	case errors.Is(err, repository.ErrMentorMissing):
		return appErrors.Clone(appErrors.ErrMentorNotFound, "")
	case errors.Is(err, repository.ErrMenteeMissing):
		return appErrors.Clone(appErrors.ErrMenteeNotFound, "")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrAssignmentNotFound, "")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fallback)
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
