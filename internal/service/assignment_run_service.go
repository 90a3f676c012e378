package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/dto"
	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/internal/repository"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
	"github.com/noah-isme/mentorship-api/pkg/jobs"
)

// AutoAssignJobType tags queue jobs that execute a persisted run.
const AutoAssignJobType = "auto_assign"

type assignmentRunStore interface {
	Create(ctx context.Context, run *models.AssignmentRun) error
	FindByID(ctx context.Context, id string) (*models.AssignmentRun, error)
	Update(ctx context.Context, id string, params repository.UpdateRunParams) error
	ListUnfinished(ctx context.Context, limit int) ([]models.AssignmentRun, error)
}

// Status writes outlive the request or worker context that produced them.
const runPersistTimeout = 5 * time.Second

type batchAssigner interface {
	BatchAutoAssign(ctx context.Context, mode models.AllocationMode, actor string) (*models.BatchResult, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// AssignmentRunService persists batch auto-assign runs and executes them inline or on the queue.
type AssignmentRunService struct {
	repo      assignmentRunStore
	engine    batchAssigner
	queue     jobDispatcher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentRunService constructs the service. queue may be nil, which disables async runs.
func NewAssignmentRunService(repo assignmentRunStore, engine batchAssigner, queue jobDispatcher, validate *validator.Validate, logger *zap.Logger) *AssignmentRunService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentRunService{repo: repo, engine: engine, queue: queue, validator: validate, logger: logger}
}

// Start records a run and executes it. Async runs return while still QUEUED.
func (s *AssignmentRunService) Start(ctx context.Context, req dto.AutoAssignRequest, actor string) (*models.AssignmentRun, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid auto-assign payload")
	}
	if req.Async && s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "async runs are not enabled")
	}

	run := &models.AssignmentRun{Mode: req.Mode, Status: models.RunStatusQueued, CreatedBy: optionalString(actor)}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment run")
	}

	if req.Async {
		if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: AutoAssignJobType}); err != nil {
			msg := "failed to enqueue run"
			s.finish(ctx, run, models.RunStatusFailed, nil, &msg)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue assignment run")
		}
		s.logger.Info("assignment run queued", zap.String("run_id", run.ID), zap.String("mode", string(run.Mode)))
		return run, nil
	}

	if err := s.execute(ctx, run, models.RunStatusFailed); err != nil {
		return run, err
	}
	return run, nil
}

// Get returns a persisted run.
func (s *AssignmentRunService) Get(ctx context.Context, id string) (*models.AssignmentRun, error) {
	run, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment run")
	}
	return run, nil
}

// Handle executes a queued run. It satisfies jobs.Handler. A failed attempt puts
// the run back to QUEUED so the queue can retry it; Exhausted settles it.
func (s *AssignmentRunService) Handle(ctx context.Context, job jobs.Job) error {
	run, err := s.repo.FindByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if run.Status == models.RunStatusFinished || run.Status == models.RunStatusFailed {
		return nil
	}
	return s.execute(ctx, run, models.RunStatusQueued)
}

// Exhausted marks a run FAILED once the queue gives up retrying it. A run abandoned
// because the queue is shutting down stays QUEUED for RecoverPending.
func (s *AssignmentRunService) Exhausted(ctx context.Context, job jobs.Job, cause error) {
	if ctx.Err() != nil {
		s.logger.Info("assignment run left for recovery", zap.String("run_id", job.ID), zap.Error(cause))
		return
	}
	msg := cause.Error()
	failed := models.RunStatusFailed
	now := time.Now().UTC()
	writeCtx, cancel := persistContext(ctx)
	defer cancel()
	if err := s.repo.Update(writeCtx, job.ID, repository.UpdateRunParams{Status: &failed, ErrorMessage: &msg, FinishedAt: &now}); err != nil {
		s.logger.Warn("failed to mark run failed", zap.String("run_id", job.ID), zap.Error(err))
	}
}

// RecoverPending requeues runs a previous process left QUEUED or RUNNING. It is
// called once at start-up, before this process has started any run of its own.
func (s *AssignmentRunService) RecoverPending(ctx context.Context) {
	if s.queue == nil {
		return
	}
	pending, err := s.repo.ListUnfinished(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover assignment runs", zap.Error(err))
		return
	}
	queued := models.RunStatusQueued
	for _, run := range pending {
		if run.Status == models.RunStatusRunning {
			if err := s.repo.Update(ctx, run.ID, repository.UpdateRunParams{Status: &queued}); err != nil {
				s.logger.Warn("failed to reclaim assignment run", zap.String("run_id", run.ID), zap.Error(err))
				continue
			}
			s.logger.Info("reclaimed interrupted assignment run", zap.String("run_id", run.ID))
		}
		if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: AutoAssignJobType}); err != nil {
			s.logger.Warn("failed to requeue assignment run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
}

func (s *AssignmentRunService) execute(ctx context.Context, run *models.AssignmentRun, onError models.RunStatus) error {
	running := models.RunStatusRunning
	if err := s.repo.Update(ctx, run.ID, repository.UpdateRunParams{Status: &running}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start assignment run")
	}
	run.Status = running

	result, err := s.engine.BatchAutoAssign(ctx, run.Mode, derefString(run.CreatedBy))
	if err != nil {
		msg := err.Error()
		s.finish(ctx, run, onError, result, &msg)
		return err
	}
	s.finish(ctx, run, models.RunStatusFinished, result, nil)
	return nil
}

// finish persists the attempt. Outcomes of earlier attempts are kept because
// their assignments are already committed.
func (s *AssignmentRunService) finish(ctx context.Context, run *models.AssignmentRun, status models.RunStatus, result *models.BatchResult, msg *string) {
	params := repository.UpdateRunParams{Status: &status, ErrorMessage: msg}
	if status != models.RunStatusQueued {
		now := time.Now().UTC()
		params.FinishedAt = &now
		run.FinishedAt = &now
	}
	run.Status = status
	run.ErrorMessage = msg
	if result != nil {
		merged := run.Result().Merge(*result)
		merged.Mode = run.Mode
		run.Apply(merged)
		params.Result = &merged
	}

	writeCtx, cancel := persistContext(ctx)
	defer cancel()
	if err := s.repo.Update(writeCtx, run.ID, params); err != nil {
		s.logger.Warn("failed to persist run outcome", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), runPersistTimeout)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
