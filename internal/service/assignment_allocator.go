package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/models"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

// ReasonNoMentorAvailable marks mentees left over once every compatible mentor is full.
const ReasonNoMentorAvailable = "NO_MENTOR_AVAILABLE"

// allocationState is the running view of one mentor during a batch run.
type allocationState struct {
	load    models.MentorLoad
	active  int
	male    int
	female  int
	vacancy int
}

func newAllocationState(load models.MentorLoad) *allocationState {
	return &allocationState{
		load:    load,
		active:  load.ActiveCount,
		male:    load.MaleCount,
		female:  load.FemaleCount,
		vacancy: load.Vacancy(),
	}
}

func (a *allocationState) imbalance() int {
	if d := a.male - a.female; d > 0 {
		return d
	}
	return a.female - a.male
}

func (a *allocationState) take(gender models.Gender) {
	a.active++
	a.vacancy--
	if gender == models.GenderFemale {
		a.female++
	} else {
		a.male++
	}
}

// BatchAutoAssign assigns every active, unassigned mentee it can. Per-mentee failures are
// recorded as outcomes and never abort the run.
func (s *AssignmentService) BatchAutoAssign(ctx context.Context, mode models.AllocationMode, actor string) (*models.BatchResult, error) {
	if !mode.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mode must be naive or gender_balanced")
	}
	start := time.Now()

	unassigned, err := s.mentees.ListUnassigned(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unassigned mentees")
	}
	loads, err := s.ledger.MentorLoads(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentors")
	}

	states := make([]*allocationState, 0, len(loads))
	for _, load := range loads {
		states = append(states, newAllocationState(load))
	}
	sort.SliceStable(states, func(i, j int) bool { return states[i].load.ID < states[j].load.ID })

	sort.SliceStable(unassigned, func(i, j int) bool { return unassigned[i].ID < unassigned[j].ID })
	result := &models.BatchResult{Mode: mode, Outcomes: models.OutcomeLog{}}
	groups := make(map[string][]models.Mentee)
	departments := make([]string, 0)
	for _, mentee := range unassigned {
		department, ok := ResolveDepartment(mentee.Course)
		if !ok {
			s.recordOutcome(result, models.AssignmentOutcome{
				MenteeID: mentee.ID,
				Result:   models.OutcomeUnresolvable,
				Reason:   appErrors.ErrUnresolvableDepartment.Code,
			})
			continue
		}
		if _, seen := groups[department]; !seen {
			departments = append(departments, department)
		}
		groups[department] = append(groups[department], mentee)
	}
	sort.Strings(departments)

	touched := make(map[string]struct{})
	var runErr error
	for _, department := range departments {
		if runErr = ctx.Err(); runErr != nil {
			break
		}
		compatible := make([]*allocationState, 0, len(states))
		for _, st := range states {
			if DepartmentsCompatible(department, st.load.Department) {
				compatible = append(compatible, st)
			}
		}
		if mode == models.ModeGenderBalanced {
			runErr = s.allocateBalanced(ctx, department, groups[department], compatible, actor, result, touched)
		} else {
			runErr = s.allocateNaive(ctx, department, groups[department], compatible, actor, result, touched)
		}
		if runErr != nil {
			break
		}
	}

	mentorIDs := make([]string, 0, len(touched))
	for id := range touched {
		mentorIDs = append(mentorIDs, id)
	}
	s.invalidateCapacity(ctx, mentorIDs...)

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.ObserveBatchRun(string(mode), duration, map[string]int{
			string(models.OutcomeAssigned):     result.Assigned,
			string(models.OutcomeUnresolvable): result.Unresolvable,
			string(models.OutcomeSkipped):      result.Skipped,
			string(models.OutcomeFailed):       result.Failed,
		})
	}
	s.logger.Info("batch auto-assign finished",
		zap.String("mode", string(mode)),
		zap.Int("candidates", len(unassigned)),
		zap.Int("assigned", result.Assigned),
		zap.Int("unresolvable", result.Unresolvable),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", duration),
	)

	if runErr != nil {
		return result, appErrors.Wrap(runErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "batch auto-assign interrupted")
	}
	return result, nil
}

// allocateNaive gives each mentee to the least-loaded compatible mentor that accepts it.
func (s *AssignmentService) allocateNaive(
	ctx context.Context,
	department string,
	mentees []models.Mentee,
	mentors []*allocationState,
	actor string,
	result *models.BatchResult,
	touched map[string]struct{},
) error {
	for _, mentee := range mentees {
		if err := ctx.Err(); err != nil {
			return err
		}

		candidates := make([]*allocationState, 0, len(mentors))
		for _, st := range mentors {
			if st.vacancy > 0 {
				candidates = append(candidates, st)
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].active != candidates[j].active {
				return candidates[i].active < candidates[j].active
			}
			return candidates[i].load.ID < candidates[j].load.ID
		})

		var lastErr error
		placed := false
		for _, st := range candidates {
			err := s.commitBatch(ctx, st, mentee, actor)
			if err == nil {
				touched[st.load.ID] = struct{}{}
				s.recordOutcome(result, models.AssignmentOutcome{MenteeID: mentee.ID, Department: department, MentorID: st.load.ID, Result: models.OutcomeAssigned})
				placed = true
				break
			}
			if menteeLevelFailure(err) {
				s.recordOutcome(result, models.AssignmentOutcome{MenteeID: mentee.ID, Department: department, Result: models.OutcomeSkipped, Reason: appErrors.FromError(err).Code})
				placed = true
				break
			}
			lastErr = err
		}
		if !placed {
			s.recordOutcome(result, unplacedOutcome(mentee, department, lastErr))
		}
	}
	return nil
}

// allocateBalanced repeatedly serves the most balanced mentor from the gender queue it under-represents.
func (s *AssignmentService) allocateBalanced(
	ctx context.Context,
	department string,
	mentees []models.Mentee,
	mentors []*allocationState,
	actor string,
	result *models.BatchResult,
	touched map[string]struct{},
) error {
	queues := map[models.Gender][]models.Mentee{}
	for _, mentee := range mentees {
		g := menteeGender(mentee)
		queues[g] = append(queues[g], mentee)
	}

	eligible := make([]*allocationState, 0, len(mentors))
	for _, st := range mentors {
		if st.vacancy > 0 {
			eligible = append(eligible, st)
		}
	}

	lastErr := make(map[string]error)
	for len(queues[models.GenderMale])+len(queues[models.GenderFemale]) > 0 && len(eligible) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		sort.SliceStable(eligible, func(i, j int) bool {
			a, b := eligible[i], eligible[j]
			if a.imbalance() != b.imbalance() {
				return a.imbalance() < b.imbalance()
			}
			if a.active != b.active {
				return a.active < b.active
			}
			return a.load.ID < b.load.ID
		})
		st := eligible[0]

		gender := preferredGender(st.male, st.female)
		if len(queues[gender]) == 0 {
			gender = otherGender(gender)
		}
		mentee := queues[gender][0]
		queues[gender] = queues[gender][1:]

		err := s.commitBatch(ctx, st, mentee, actor)
		switch {
		case err == nil:
			delete(lastErr, mentee.ID)
			touched[st.load.ID] = struct{}{}
			s.recordOutcome(result, models.AssignmentOutcome{MenteeID: mentee.ID, Department: department, MentorID: st.load.ID, Result: models.OutcomeAssigned})
			if st.vacancy <= 0 {
				eligible = eligible[1:]
			}
		case menteeLevelFailure(err):
			delete(lastErr, mentee.ID)
			s.recordOutcome(result, models.AssignmentOutcome{MenteeID: mentee.ID, Department: department, Result: models.OutcomeSkipped, Reason: appErrors.FromError(err).Code})
		default:
			lastErr[mentee.ID] = err
			queues[gender] = append([]models.Mentee{mentee}, queues[gender]...)
			eligible = eligible[1:]
		}
	}

	leftover := append(append([]models.Mentee{}, queues[models.GenderMale]...), queues[models.GenderFemale]...)
	sort.SliceStable(leftover, func(i, j int) bool { return leftover[i].ID < leftover[j].ID })
	for _, mentee := range leftover {
		s.recordOutcome(result, unplacedOutcome(mentee, department, lastErr[mentee.ID]))
	}
	return nil
}

// commitBatch persists one pairing and advances the mentor's running state.
// A capacity rejection means the ledger moved underneath the run, so the mentor is marked full.
func (s *AssignmentService) commitBatch(ctx context.Context, st *allocationState, mentee models.Mentee, actor string) error {
	_, err := s.ledger.AssignTx(ctx, st.load.ID, mentee.ID, optionalString(actor), "")
	if err != nil {
		appErr := mapLedgerError(err, "failed to create assignment")
		if errors.Is(appErr, appErrors.ErrCapacityExceeded) {
			st.vacancy = 0
		}
		return appErr
	}
	st.take(menteeGender(mentee))
	return nil
}

func (s *AssignmentService) recordOutcome(result *models.BatchResult, outcome models.AssignmentOutcome) {
	s.logger.Debug("batch outcome",
		zap.String("mentee_id", outcome.MenteeID),
		zap.String("department", outcome.Department),
		zap.String("mentor_id", outcome.MentorID),
		zap.String("result", string(outcome.Result)),
		zap.String("reason", outcome.Reason),
	)
	result.Record(outcome)
}

func unplacedOutcome(mentee models.Mentee, department string, lastErr error) models.AssignmentOutcome {
	outcome := models.AssignmentOutcome{MenteeID: mentee.ID, Department: department, Result: models.OutcomeSkipped, Reason: ReasonNoMentorAvailable}
	if lastErr != nil {
		outcome.Result = models.OutcomeFailed
		outcome.Reason = appErrors.FromError(lastErr).Code
	}
	return outcome
}

// menteeLevelFailure reports errors that no other mentor could fix.
func menteeLevelFailure(err error) bool {
	return errors.Is(err, appErrors.ErrAlreadyAssigned) || errors.Is(err, appErrors.ErrMenteeNotFound)
}

func menteeGender(m models.Mentee) models.Gender {
	if m.Gender == models.GenderFemale {
		return models.GenderFemale
	}
	return models.GenderMale
}

func otherGender(g models.Gender) models.Gender {
	if g == models.GenderMale {
		return models.GenderFemale
	}
	return models.GenderMale
}
