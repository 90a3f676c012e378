package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentorship-api/internal/dto"
	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/internal/repository"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

type memoryActivities struct {
	lastID     string
	activities map[string]*models.Activity
	sheets     map[string][]models.Attendance
}

func newMemoryActivities() *memoryActivities {
	return &memoryActivities{activities: map[string]*models.Activity{}, sheets: map[string][]models.Attendance{}}
}

func (m *memoryActivities) CreateActivity(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = repository.NextActivityID(m.lastID)
	}
	if _, ok := m.activities[activity.ID]; ok {
		return repository.ErrActivityIDTaken
	}
	if activity.ID > m.lastID {
		m.lastID = activity.ID
	}
	cp := *activity
	m.activities[activity.ID] = &cp
	return nil
}

func (m *memoryActivities) PeekActivityID(ctx context.Context) (string, error) {
	return repository.NextActivityID(m.lastID), nil
}

func (m *memoryActivities) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	if a, ok := m.activities[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryActivities) UpdateActivity(ctx context.Context, activity *models.Activity) error {
	if _, ok := m.activities[activity.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *activity
	m.activities[activity.ID] = &cp
	return nil
}

func (m *memoryActivities) Delete(ctx context.Context, id string) error {
	if _, ok := m.activities[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.activities, id)
	delete(m.sheets, id)
	return nil
}

func (m *memoryActivities) ListActivities(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error) {
	var out []models.Activity
	for _, a := range m.activities {
		if filter.Type != nil && a.Type != *filter.Type {
			continue
		}
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (m *memoryActivities) Attendance(ctx context.Context, ids []string) (map[string][]models.Attendance, error) {
	out := map[string][]models.Attendance{}
	for _, id := range ids {
		if rows, ok := m.sheets[id]; ok {
			out[id] = rows
		}
	}
	return out, nil
}

type knownMentors map[string]bool

func (k knownMentors) Exists(ctx context.Context, id string) (bool, error) {
	return k[id], nil
}

func workshop() dto.ActivityRequest {
	return dto.ActivityRequest{
		Name:      "CV clinic",
		Type:      models.ActivityWorkshop,
		Date:      "2026-11-02",
		StartTime: "14:00",
		EndTime:   "16:00",
		Location:  "Hall B",
	}
}

func TestActivityCreateAllocatesAndRejectsDuplicates(t *testing.T) {
	store := newMemoryActivities()
	svc := NewActivityService(store, knownMentors{"STC001": true}, nil, nil)
	ctx := context.Background()

	next, err := svc.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A00001", next)

	first, err := svc.Create(ctx, "u-head", workshop())
	require.NoError(t, err)
	assert.Equal(t, "A00001", first.ID)
	assert.Equal(t, "u-head", first.CreatedBy)
	assert.Nil(t, first.PrimaryMentorID)

	explicit := workshop()
	explicit.ID = "a00010"
	created, err := svc.Create(ctx, "u-head", explicit)
	require.NoError(t, err)
	assert.Equal(t, "A00010", created.ID)

	next, err = svc.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A00011", next)

	_, err = svc.Create(ctx, "u-head", explicit)
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	malformed := workshop()
	malformed.ID = "S00001"
	_, err = svc.Create(ctx, "u-head", malformed)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestActivityCreateChecksMentor(t *testing.T) {
	svc := NewActivityService(newMemoryActivities(), knownMentors{"STC001": true}, nil, nil)
	ctx := context.Background()

	session := workshop()
	session.Type = models.ActivityMentoring
	session.IsMentoringSession = true
	_, err := svc.Create(ctx, "u-head", session)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	session.PrimaryMentorID = "STC404"
	_, err = svc.Create(ctx, "u-head", session)
	assert.ErrorIs(t, err, appErrors.ErrMentorNotFound)

	session.PrimaryMentorID = "stc001"
	created, err := svc.Create(ctx, "u-head", session)
	require.NoError(t, err)
	require.NotNil(t, created.PrimaryMentorID)
	assert.Equal(t, "STC001", *created.PrimaryMentorID)
	assert.Equal(t, "CV clinic", created.Topic)

	backwards := workshop()
	backwards.EndTime = "13:00"
	_, err = svc.Create(ctx, "u-head", backwards)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestActivityGetCountsAttendance(t *testing.T) {
	store := newMemoryActivities()
	svc := NewActivityService(store, knownMentors{}, nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u-head", workshop())
	require.NoError(t, err)
	store.sheets[created.ID] = []models.Attendance{
		{MenteeID: "BCS2301-001", Attended: true},
		{MenteeID: "BCS2301-002", Attended: true},
		{MenteeID: "BCS2301-003"},
	}

	details, err := svc.Get(ctx, "a00001")
	require.NoError(t, err)
	assert.Equal(t, 3, details.TotalAttendees)
	assert.Equal(t, 2, details.PresentCount)
	assert.Equal(t, 1, details.AbsentCount)
	assert.Equal(t, 66, details.AttendanceRate)

	_, err = svc.Get(ctx, "A09999")
	assert.ErrorIs(t, err, appErrors.ErrActivityNotFound)
}

func TestActivityUpdateKeepsIdentity(t *testing.T) {
	store := newMemoryActivities()
	svc := NewActivityService(store, knownMentors{}, nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u-head", workshop())
	require.NoError(t, err)
	store.activities[created.ID].Completed = true

	change := workshop()
	change.ID = "A00500"
	change.Name = "CV clinic II"
	change.Type = models.ActivitySeminar
	updated, err := svc.Update(ctx, created.ID, change)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "u-head", updated.CreatedBy)
	assert.True(t, updated.Completed)
	assert.Equal(t, models.ActivitySeminar, store.activities[created.ID].Type)

	_, err = svc.Update(ctx, "A00404", change)
	assert.ErrorIs(t, err, appErrors.ErrActivityNotFound)
}

func TestActivityListAndDelete(t *testing.T) {
	svc := NewActivityService(newMemoryActivities(), knownMentors{}, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u-head", workshop())
	require.NoError(t, err)
	seminar := workshop()
	seminar.Type = models.ActivitySeminar
	_, err = svc.Create(ctx, "u-head", seminar)
	require.NoError(t, err)

	kind := models.ActivitySeminar
	listed, pagination, err := svc.List(ctx, models.ActivityFilter{Type: &kind})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 1, pagination.TotalCount)

	require.NoError(t, svc.Delete(ctx, "a00001"))
	assert.ErrorIs(t, svc.Delete(ctx, "A00001"), appErrors.ErrActivityNotFound)
}
