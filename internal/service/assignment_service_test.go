package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentorship-api/internal/dto"
	"github.com/noah-isme/mentorship-api/internal/models"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

const csCourse = "Diploma in Computer Science"

func newAssignmentServiceForTest(l *memoryLedger) *AssignmentService {
	return NewAssignmentService(l, memoryMentees{l: l}, nil, nil, nil, nil, nil, AssignmentServiceConfig{})
}

func TestSingleAssignCapacityExceeded(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STC001", "Quantitative Science", 1).
		addMentee("BCS2301-001", csCourse, models.GenderMale).
		addMentee("BCS2301-002", csCourse, models.GenderFemale)
	svc := newAssignmentServiceForTest(l)
	ctx := context.Background()

	_, err := svc.SingleAssign(ctx, "STC001", "BCS2301-001", "head")
	require.NoError(t, err)

	_, err = svc.SingleAssign(ctx, "STC001", "BCS2301-002", "head")
	assert.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
	assert.Equal(t, 1, l.mentors["STC001"].CurrentMentees)
	requireLedgerInvariants(t, l)
}

func TestSingleAssignRejectsSecondActiveAssignment(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STC001", "Quantitative Science", 5).
		addMentor("STC002", "Quantitative Science", 5).
		addMentee("BCS2301-001", csCourse, models.GenderMale)
	svc := newAssignmentServiceForTest(l)
	ctx := context.Background()

	first, err := svc.SingleAssign(ctx, "STC001", "BCS2301-001", "head")
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentActive, first.Status)
	require.NotNil(t, l.mentees["BCS2301-001"].AssignedMentorID)
	assert.Equal(t, "STC001", *l.mentees["BCS2301-001"].AssignedMentorID)

	_, err = svc.SingleAssign(ctx, "STC002", "BCS2301-001", "head")
	assert.ErrorIs(t, err, appErrors.ErrAlreadyAssigned)
	assert.Equal(t, "STC001", *l.mentees["BCS2301-001"].AssignedMentorID)
	requireLedgerInvariants(t, l)
}

func TestSingleAssignUnknownParties(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STC001", "Quantitative Science", 5).
		addMentee("BCS2301-001", csCourse, models.GenderMale)
	svc := newAssignmentServiceForTest(l)

	_, err := svc.SingleAssign(context.Background(), "STX999", "BCS2301-001", "")
	assert.ErrorIs(t, err, appErrors.ErrMentorNotFound)

	_, err = svc.SingleAssign(context.Background(), "STC001", "BCS9999-999", "")
	assert.ErrorIs(t, err, appErrors.ErrMenteeNotFound)
}

func TestAssignValidatesPayload(t *testing.T) {
	svc := newAssignmentServiceForTest(newMemoryLedger())

	_, err := svc.Assign(context.Background(), dto.AssignRequest{MentorID: "STC001"}, "head")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestConcurrentSingleAssignNeverOverfills(t *testing.T) {
	l := newMemoryLedger().addMentor("STC001", "Quantitative Science", 3)
	for i := 1; i <= 10; i++ {
		l.addMentee(fmt.Sprintf("BCS2301-%03d", i), csCourse, models.GenderMale)
	}
	svc := newAssignmentServiceForTest(l)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.SingleAssign(context.Background(), "STC001", id, "head"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(fmt.Sprintf("BCS2301-%03d", i))
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	requireLedgerInvariants(t, l)
}

func TestTransferMovesActiveAssignment(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STA001", "Accounting Department", 5).
		addMentor("STA002", "Accounting Department", 5).
		addMentee("BDA2301-001", "Diploma in Accounting", models.GenderFemale)
	svc := newAssignmentServiceForTest(l)
	ctx := context.Background()

	original, err := svc.SingleAssign(ctx, "STA001", "BDA2301-001", "head")
	require.NoError(t, err)

	moved, err := svc.Transfer(ctx, original.ID, dto.TransferRequest{NewMentorID: "STA002", Notes: "timetable clash"}, "head")
	require.NoError(t, err)

	old := l.find(original.ID)
	assert.Equal(t, models.AssignmentTransferred, old.Status)
	require.NotNil(t, old.TransferredTo)
	assert.Equal(t, "STA002", *old.TransferredTo)
	require.NotNil(t, old.TransferredAt)
	assert.Equal(t, "timetable clash", old.Notes)

	assert.Equal(t, models.AssignmentActive, moved.Status)
	assert.Equal(t, "STA002", moved.MentorID)
	assert.Equal(t, "BDA2301-001", moved.MenteeID)
	assert.Equal(t, "Transferred from Mentor STA001. timetable clash", moved.Notes)
	assert.Equal(t, "STA002", *l.mentees["BDA2301-001"].AssignedMentorID)
	assert.Equal(t, 0, l.mentors["STA001"].CurrentMentees)
	assert.Equal(t, 1, l.mentors["STA002"].CurrentMentees)

	_, err = svc.Transfer(ctx, original.ID, dto.TransferRequest{NewMentorID: "STA002"}, "head")
	assert.ErrorIs(t, err, appErrors.ErrNotActive)
	requireLedgerInvariants(t, l)
}

func TestTransferRejections(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STA001", "Accounting Department", 5).
		addMentor("STA002", "Accounting Department", 1).
		addMentee("BDA2301-001", "Diploma in Accounting", models.GenderFemale).
		addMentee("BDA2301-002", "Diploma in Accounting", models.GenderMale)
	svc := newAssignmentServiceForTest(l)
	ctx := context.Background()

	a, err := svc.SingleAssign(ctx, "STA001", "BDA2301-001", "head")
	require.NoError(t, err)
	_, err = svc.SingleAssign(ctx, "STA002", "BDA2301-002", "head")
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, a.ID, dto.TransferRequest{NewMentorID: "STA001"}, "head")
	assert.ErrorIs(t, err, appErrors.ErrSameMentor)

	_, err = svc.Transfer(ctx, a.ID, dto.TransferRequest{NewMentorID: "STA002"}, "head")
	assert.ErrorIs(t, err, appErrors.ErrCapacityExceeded)

	_, err = svc.Transfer(ctx, a.ID, dto.TransferRequest{NewMentorID: "STX404"}, "head")
	assert.ErrorIs(t, err, appErrors.ErrMentorNotFound)

	_, err = svc.Transfer(ctx, "missing", dto.TransferRequest{NewMentorID: "STA002"}, "head")
	assert.ErrorIs(t, err, appErrors.ErrAssignmentNotFound)

	_, err = svc.Transfer(ctx, a.ID, dto.TransferRequest{}, "head")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	requireLedgerInvariants(t, l)
}

func TestTransferBackToPreviousMentorIsRejected(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STA001", "Accounting Department", 5).
		addMentor("STA002", "Accounting Department", 5).
		addMentee("BDA2301-001", "Diploma in Accounting", models.GenderFemale)
	svc := newAssignmentServiceForTest(l)
	ctx := context.Background()

	a, err := svc.SingleAssign(ctx, "STA001", "BDA2301-001", "head")
	require.NoError(t, err)
	moved, err := svc.Transfer(ctx, a.ID, dto.TransferRequest{NewMentorID: "STA002"}, "head")
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, moved.ID, dto.TransferRequest{NewMentorID: "STA001"}, "head")
	assert.ErrorIs(t, err, appErrors.ErrAssignmentPairExists)
	assert.Equal(t, "STA002", *l.mentees["BDA2301-001"].AssignedMentorID)
	requireLedgerInvariants(t, l)
}

func TestBatchGenderBalancedPairsBothGenders(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STC001", "Quantitative Science", 2).
		addMentee("BCS2301-001", csCourse, models.GenderMale).
		addMentee("BCS2301-002", csCourse, models.GenderFemale)
	svc := newAssignmentServiceForTest(l)

	result, err := svc.BatchAutoAssign(context.Background(), models.ModeGenderBalanced, "head")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Assigned)

	load, err := l.MentorLoad(context.Background(), "STC001")
	require.NoError(t, err)
	assert.Equal(t, 2, load.ActiveCount)
	assert.Equal(t, 1, load.MaleCount)
	assert.Equal(t, 1, load.FemaleCount)
	requireLedgerInvariants(t, l)
}

func TestBatchGenderBalancedConverges(t *testing.T) {
	l := newMemoryLedger().addMentor("STC001", "Quantitative Science Department", 10)
	for i := 1; i <= 5; i++ {
		l.addMentee(fmt.Sprintf("BCS2301-%03d", i), csCourse, models.GenderMale)
		l.addMentee(fmt.Sprintf("BCS2302-%03d", i), csCourse, models.GenderFemale)
	}
	svc := newAssignmentServiceForTest(l)

	result, err := svc.BatchAutoAssign(context.Background(), models.ModeGenderBalanced, "head")
	require.NoError(t, err)
	assert.Equal(t, 10, result.Assigned)

	load, err := l.MentorLoad(context.Background(), "STC001")
	require.NoError(t, err)
	assert.Equal(t, 5, load.MaleCount)
	assert.Equal(t, 5, load.FemaleCount)
	requireLedgerInvariants(t, l)
}

func TestBatchGenderBalancedCorrectsExistingSkew(t *testing.T) {
	l := newMemoryLedger().addMentor("STC001", "Quantitative Science", 7)
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("BCS2300-%03d", i)
		l.addMentee(id, csCourse, models.GenderMale)
	}
	for i := 1; i <= 4; i++ {
		l.addMentee(fmt.Sprintf("BCS2301-%03d", i), csCourse, models.GenderMale)
		l.addMentee(fmt.Sprintf("BCS2302-%03d", i), csCourse, models.GenderFemale)
	}
	svc := newAssignmentServiceForTest(l)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		_, err := svc.SingleAssign(ctx, "STC001", fmt.Sprintf("BCS2300-%03d", i), "head")
		require.NoError(t, err)
	}

	result, err := svc.BatchAutoAssign(ctx, models.ModeGenderBalanced, "head")
	require.NoError(t, err)
	assert.Equal(t, 4, result.Assigned)

	load, err := l.MentorLoad(ctx, "STC001")
	require.NoError(t, err)
	assert.Equal(t, 4, load.MaleCount)
	assert.Equal(t, 3, load.FemaleCount)
	requireLedgerInvariants(t, l)
}

func TestBatchAutoAssignIsIdempotent(t *testing.T) {
	for _, mode := range []models.AllocationMode{models.ModeNaive, models.ModeGenderBalanced} {
		t.Run(string(mode), func(t *testing.T) {
			l := newMemoryLedger().
				addMentor("STC001", "Quantitative Science", 3).
				addMentor("STA001", "Accounting", 3)
			for i := 1; i <= 4; i++ {
				l.addMentee(fmt.Sprintf("BCS2301-%03d", i), csCourse, models.GenderMale)
				l.addMentee(fmt.Sprintf("BDA2301-%03d", i), "Diploma in Accounting", models.GenderFemale)
			}
			svc := newAssignmentServiceForTest(l)
			ctx := context.Background()

			first, err := svc.BatchAutoAssign(ctx, mode, "head")
			require.NoError(t, err)
			assert.Equal(t, 6, first.Assigned)
			assert.Equal(t, 2, first.Skipped)

			second, err := svc.BatchAutoAssign(ctx, mode, "head")
			require.NoError(t, err)
			assert.Equal(t, 0, second.Assigned)
			requireLedgerInvariants(t, l)
		})
	}
}

func TestBatchNaivePrefersLeastLoaded(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STC001", "Quantitative Science", 5).
		addMentor("STC002", "Quantitative Science", 5)
	for i := 1; i <= 5; i++ {
		l.addMentee(fmt.Sprintf("BCS2301-%03d", i), csCourse, models.GenderMale)
	}
	svc := newAssignmentServiceForTest(l)
	ctx := context.Background()
	for _, id := range []string{"BCS2301-001", "BCS2301-002"} {
		_, err := svc.SingleAssign(ctx, "STC001", id, "head")
		require.NoError(t, err)
	}

	result, err := svc.BatchAutoAssign(ctx, models.ModeNaive, "head")
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 3)

	got := map[string]string{}
	for _, o := range result.Outcomes {
		got[o.MenteeID] = o.MentorID
	}
	assert.Equal(t, map[string]string{
		"BCS2301-003": "STC002",
		"BCS2301-004": "STC002",
		"BCS2301-005": "STC001",
	}, got)
	requireLedgerInvariants(t, l)
}

func TestBatchReportsUnresolvableAndFullDepartments(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STC001", "Quantitative Science", 2).
		addMentor("STA001", "Accounting", 5).
		addMentee("BCS2301-001", csCourse, models.GenderMale).
		addMentee("BCS2301-002", csCourse, models.GenderFemale).
		addMentee("BCS2301-003", csCourse, models.GenderMale).
		addMentee("BCS2301-004", "Music", models.GenderFemale).
		addMentee("BCS2301-005", csCourse, models.GenderFemale)
	l.mentees["BCS2301-005"].Status = models.MenteeStatusGraduated
	svc := newAssignmentServiceForTest(l)

	for _, mode := range []models.AllocationMode{models.ModeNaive, models.ModeGenderBalanced} {
		result, err := svc.BatchAutoAssign(context.Background(), mode, "head")
		require.NoError(t, err)
		requireLedgerInvariants(t, l)
		if mode == models.ModeNaive {
			assert.Equal(t, 2, result.Assigned)
			assert.Equal(t, 1, result.Skipped)
		}
		assert.Equal(t, 1, result.Unresolvable)
		for _, o := range result.Outcomes {
			assert.NotEqual(t, "BCS2301-005", o.MenteeID)
			if o.MenteeID == "BCS2301-004" {
				assert.Equal(t, models.OutcomeUnresolvable, o.Result)
				assert.Equal(t, appErrors.ErrUnresolvableDepartment.Code, o.Reason)
			}
			if o.Result == models.OutcomeSkipped {
				assert.Equal(t, ReasonNoMentorAvailable, o.Reason)
			}
			if o.Result == models.OutcomeAssigned {
				assert.Equal(t, "STC001", o.MentorID)
			}
		}
	}
	assert.Zero(t, l.mentors["STA001"].CurrentMentees)
}

func TestBatchGenderBalancedRequeuesAfterCommitFailure(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STC001", "Quantitative Science", 5).
		addMentor("STC002", "Quantitative Science", 5).
		addMentee("BCS2301-001", csCourse, models.GenderMale).
		addMentee("BCS2301-002", csCourse, models.GenderMale)
	l.failAssign = func(mentorID, _ string) error {
		if mentorID == "STC001" {
			return errors.New("deadlock detected")
		}
		return nil
	}
	svc := newAssignmentServiceForTest(l)

	result, err := svc.BatchAutoAssign(context.Background(), models.ModeGenderBalanced, "head")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Assigned)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, l.mentors["STC002"].CurrentMentees)
	requireLedgerInvariants(t, l)
}

func TestBatchRecordsFailuresWithoutAborting(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STC001", "Quantitative Science", 5).
		addMentor("STA001", "Accounting", 5).
		addMentee("BCS2301-001", csCourse, models.GenderMale).
		addMentee("BDA2301-001", "Diploma in Accounting", models.GenderFemale)
	l.failAssign = func(mentorID, _ string) error {
		if mentorID == "STC001" {
			return errors.New("connection reset")
		}
		return nil
	}
	svc := newAssignmentServiceForTest(l)

	for _, mode := range []models.AllocationMode{models.ModeNaive, models.ModeGenderBalanced} {
		l.rows = nil
		l.refresh("STA001")
		l.mentees["BDA2301-001"].AssignedMentorID = nil

		result, err := svc.BatchAutoAssign(context.Background(), mode, "head")
		require.NoError(t, err)
		assert.Equal(t, 1, result.Assigned, mode)
		assert.Equal(t, 1, result.Failed, mode)
		for _, o := range result.Outcomes {
			if o.MenteeID == "BCS2301-001" {
				assert.Equal(t, models.OutcomeFailed, o.Result)
				assert.Equal(t, appErrors.ErrInternal.Code, o.Reason)
			}
		}
	}
}

func TestBatchRejectsUnknownMode(t *testing.T) {
	svc := newAssignmentServiceForTest(newMemoryLedger())
	_, err := svc.BatchAutoAssign(context.Background(), "random", "head")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAssignManyRecordsPerMenteeOutcomes(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STC001", "Quantitative Science", 1).
		addMentee("BCS2301-001", csCourse, models.GenderMale).
		addMentee("BCS2301-002", csCourse, models.GenderFemale)
	svc := newAssignmentServiceForTest(l)

	result, err := svc.AssignMany(context.Background(), "STC001", dto.AssignManyRequest{MenteeIDs: []string{"bcs2301-001", "BCS2301-002", "BCS0000-000"}}, "head")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Assigned)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, result.Outcomes[1].Reason)
	assert.Equal(t, appErrors.ErrMenteeNotFound.Code, result.Outcomes[2].Reason)

	_, err = svc.AssignMany(context.Background(), "STX404", dto.AssignManyRequest{MenteeIDs: []string{"BCS2301-002"}}, "head")
	assert.ErrorIs(t, err, appErrors.ErrMentorNotFound)
	requireLedgerInvariants(t, l)
}

func TestReassignPrechecksCapacity(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STB001", "Business Studies", 5).
		addMentor("STB002", "Business Studies", 1).
		addMentor("STB003", "Business Studies", 5).
		addMentee("BDB2301-001", "Diploma in Business Studies", models.GenderMale).
		addMentee("BDB2301-002", "Diploma in Business Studies", models.GenderFemale).
		addMentee("BDB2301-003", "Diploma in Business Studies", models.GenderFemale)
	svc := newAssignmentServiceForTest(l)
	ctx := context.Background()
	for _, id := range []string{"BDB2301-001", "BDB2301-002"} {
		_, err := svc.SingleAssign(ctx, "STB001", id, "head")
		require.NoError(t, err)
	}

	_, err := svc.Reassign(ctx, dto.ReassignRequest{MenteeIDs: []string{"BDB2301-001", "BDB2301-002"}, NewMentorID: "STB002"}, "head")
	assert.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
	assert.Equal(t, 2, l.mentors["STB001"].CurrentMentees)

	result, err := svc.Reassign(ctx, dto.ReassignRequest{MenteeIDs: []string{"BDB2301-001", "BDB2301-002", "BDB2301-003"}, NewMentorID: "STB003", Notes: "sabbatical"}, "head")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Assigned)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, l.mentors["STB003"].CurrentMentees)
	assert.Zero(t, l.mentors["STB001"].CurrentMentees)
	requireLedgerInvariants(t, l)
}

func TestCompleteReleasesMentee(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STC001", "Quantitative Science", 5).
		addMentee("BCS2301-001", csCourse, models.GenderMale)
	svc := newAssignmentServiceForTest(l)
	ctx := context.Background()

	a, err := svc.SingleAssign(ctx, "STC001", "BCS2301-001", "head")
	require.NoError(t, err)
	require.NoError(t, svc.Complete(ctx, a.ID))
	assert.Nil(t, l.mentees["BCS2301-001"].AssignedMentorID)
	assert.Zero(t, l.mentors["STC001"].CurrentMentees)

	assert.ErrorIs(t, svc.Complete(ctx, a.ID), appErrors.ErrNotActive)
	assert.ErrorIs(t, svc.Complete(ctx, "missing"), appErrors.ErrAssignmentNotFound)

	_, err = svc.SingleAssign(ctx, "STC001", "BCS2301-001", "head")
	assert.ErrorIs(t, err, appErrors.ErrAssignmentPairExists)
}

func TestDeleteActiveAssignmentReleasesMentee(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STC001", "Quantitative Science", 5).
		addMentee("BCS2301-001", csCourse, models.GenderMale)
	svc := newAssignmentServiceForTest(l)
	ctx := context.Background()

	a, err := svc.SingleAssign(ctx, "STC001", "BCS2301-001", "head")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.Nil(t, l.mentees["BCS2301-001"].AssignedMentorID)
	assert.ErrorIs(t, svc.Delete(ctx, a.ID), appErrors.ErrAssignmentNotFound)
	requireLedgerInvariants(t, l)
}

func TestCandidates(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STC001", "Quantitative Science Department", 2).
		addMentor("STC002", "Quantitative Science", 3).
		addMentor("STC003", "Quantitative Science", 1).
		addMentor("STA001", "Accounting", 5).
		addMentee("BCS2301-001", csCourse, models.GenderMale).
		addMentee("BCS2301-002", csCourse, models.GenderMale).
		addMentee("BCS2301-003", csCourse, models.GenderMale).
		addMentee("BCS2301-004", "Music", models.GenderMale)
	svc := newAssignmentServiceForTest(l)
	ctx := context.Background()
	_, err := svc.SingleAssign(ctx, "STC001", "BCS2301-002", "head")
	require.NoError(t, err)
	_, err = svc.SingleAssign(ctx, "STC003", "BCS2301-003", "head")
	require.NoError(t, err)

	list, err := svc.Candidates(ctx, "BCS2301-001")
	require.NoError(t, err)
	assert.Equal(t, DeptQuantitativeScience, list.Department)
	require.Len(t, list.Mentors, 2)
	assert.Equal(t, "STC002", list.Mentors[0].ID)
	assert.Equal(t, 3, list.Mentors[0].Slots)
	assert.Equal(t, "STC001", list.Mentors[1].ID)

	_, err = svc.Candidates(ctx, "BCS2301-004")
	assert.ErrorIs(t, err, appErrors.ErrUnresolvableDepartment)

	_, err = svc.Candidates(ctx, "BCS0000-000")
	assert.ErrorIs(t, err, appErrors.ErrMenteeNotFound)
}

func TestEligibleMentees(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STA001", "Accounting Department", 4).
		addMentee("BDA2301-001", "Diploma in Accounting", models.GenderFemale).
		addMentee("CFAB2301-001", "Certificate in Finance, Accountancy and Business", models.GenderMale).
		addMentee("BCS2301-001", csCourse, models.GenderMale).
		addMentee("BDA2301-002", "Diploma in Accounting", models.GenderMale)
	svc := newAssignmentServiceForTest(l)
	ctx := context.Background()
	_, err := svc.SingleAssign(ctx, "STA001", "BDA2301-002", "head")
	require.NoError(t, err)

	eligible, err := svc.EligibleMentees(ctx, "STA001")
	require.NoError(t, err)
	ids := []string{}
	for _, m := range eligible.Mentees {
		ids = append(ids, m.ID)
		assert.Equal(t, DeptAccounting, m.Department)
	}
	assert.Equal(t, []string{"BDA2301-001", "CFAB2301-001"}, ids)
	require.Len(t, eligible.Assigned, 1)
	assert.Equal(t, 3, eligible.Mentor.Vacancy)
	assert.Equal(t, models.GenderPlan{Male: 1, Female: 2}, eligible.Mentor.IdealPlan)
}

type stubSessions struct {
	sessions []models.MenteeSession
}

func (s stubSessions) ListShared(context.Context, string, string) ([]models.MenteeSession, error) {
	return s.sessions, nil
}

func TestDetailsComputesAttendanceRate(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STA001", "Accounting", 5).
		addMentor("STA002", "Accounting", 5).
		addMentee("BDA2301-001", "Diploma in Accounting", models.GenderFemale)
	sessions := stubSessions{sessions: []models.MenteeSession{
		{Activity: models.Activity{ID: "S00001"}, Attended: true},
		{Activity: models.Activity{ID: "S00002"}, Attended: false},
		{Activity: models.Activity{ID: "S00003"}, Attended: true},
	}}
	svc := NewAssignmentService(l, memoryMentees{l: l}, sessions, nil, nil, nil, nil, AssignmentServiceConfig{})
	ctx := context.Background()

	first, err := svc.SingleAssign(ctx, "STA001", "BDA2301-001", "head")
	require.NoError(t, err)
	current, err := svc.Transfer(ctx, first.ID, dto.TransferRequest{NewMentorID: "STA002"}, "head")
	require.NoError(t, err)

	details, err := svc.Details(ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mentor STA002", details.Assignment.MentorName)
	require.Len(t, details.History, 1)
	assert.Equal(t, first.ID, details.History[0].ID)
	assert.Equal(t, 2, details.AttendedCount)
	assert.Equal(t, 66, details.AttendanceRate)
}

func TestListAssignmentsReturnsStats(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STA001", "Accounting", 5).
		addMentee("BDA2301-001", "Diploma in Accounting", models.GenderFemale).
		addMentee("BDA2301-002", "Diploma in Accounting", models.GenderFemale)
	svc := newAssignmentServiceForTest(l)
	ctx := context.Background()
	a, err := svc.SingleAssign(ctx, "STA001", "BDA2301-001", "head")
	require.NoError(t, err)
	_, err = svc.SingleAssign(ctx, "STA001", "BDA2301-002", "head")
	require.NoError(t, err)
	require.NoError(t, svc.Complete(ctx, a.ID))

	result, err := svc.List(ctx, models.AssignmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, models.AssignmentStats{Total: 2, Active: 1, Completed: 1}, result.Stats)

	bogus := models.AssignmentStatus("paused")
	_, err = svc.List(ctx, models.AssignmentFilter{Status: &bogus})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

type mapCapacityCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
}

func (c *mapCapacityCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *mapCapacityCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *mapCapacityCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func TestCapacitySnapshotIsCachedAndInvalidated(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STC001", "Quantitative Science", 4).
		addMentee("BCS2301-001", csCourse, models.GenderMale)
	cache := &mapCapacityCache{entries: map[string][]byte{}}
	svc := NewAssignmentService(l, memoryMentees{l: l}, nil, cache, nil, nil, nil, AssignmentServiceConfig{})
	ctx := context.Background()

	snapshot, err := svc.Capacity(ctx, "STC001")
	require.NoError(t, err)
	assert.Equal(t, 4, snapshot.Vacancy)
	assert.Equal(t, models.GenderPlan{Male: 2, Female: 2}, snapshot.IdealPlan)
	assert.Contains(t, cache.entries, capacityKey("STC001"))

	_, err = svc.SingleAssign(ctx, "STC001", "BCS2301-001", "head")
	require.NoError(t, err)
	assert.NotContains(t, cache.entries, capacityKey("STC001"))

	snapshot, err = svc.Capacity(ctx, "STC001")
	require.NoError(t, err)
	assert.Equal(t, 3, snapshot.Vacancy)
	assert.Equal(t, models.GenderDistribution{Male: 1}, snapshot.Distribution)

	_, err = svc.Capacity(ctx, "STX404")
	assert.ErrorIs(t, err, appErrors.ErrMentorNotFound)
}

func TestCurrentMentor(t *testing.T) {
	l := newMemoryLedger().
		addMentor("STC001", "Quantitative Science", 4).
		addMentee("BCS2301-001", csCourse, models.GenderMale)
	svc := newAssignmentServiceForTest(l)
	ctx := context.Background()

	_, err := svc.CurrentMentor(ctx, "BCS2301-001")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.SingleAssign(ctx, "STC001", "BCS2301-001", "head")
	require.NoError(t, err)
	current, err := svc.CurrentMentor(ctx, "BCS2301-001")
	require.NoError(t, err)
	assert.Equal(t, "STC001", current.MentorID)
}
