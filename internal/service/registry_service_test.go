package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/dto"
	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/internal/repository"
	"github.com/noah-isme/mentorship-api/pkg/cache"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

type mockMenteeRepo struct {
	items   map[string]*models.Mentee
	deleted []string
}

func (m *mockMenteeRepo) List(ctx context.Context, filter models.MenteeFilter) ([]models.Mentee, int, error) {
	var out []models.Mentee
	for _, item := range m.items {
		out = append(out, *item)
	}
	return out, len(out), nil
}

func (m *mockMenteeRepo) FindByID(ctx context.Context, id string) (*models.Mentee, error) {
	if item, ok := m.items[id]; ok {
		cp := *item
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMenteeRepo) FindByUserID(ctx context.Context, userID string) (*models.Mentee, error) {
	for _, item := range m.items {
		if item.UserID != nil && *item.UserID == userID {
			cp := *item
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockMenteeRepo) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := m.items[id]
	return ok, nil
}

func (m *mockMenteeRepo) Create(ctx context.Context, mentee *models.Mentee) error {
	if m.items == nil {
		m.items = map[string]*models.Mentee{}
	}
	cp := *mentee
	m.items[mentee.ID] = &cp
	return nil
}

func (m *mockMenteeRepo) Update(ctx context.Context, mentee *models.Mentee) error {
	cp := *mentee
	m.items[mentee.ID] = &cp
	return nil
}

func (m *mockMenteeRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func TestMenteeServiceCreateDerivesCourse(t *testing.T) {
	repo := &mockMenteeRepo{}
	svc := NewMenteeService(repo, nil, validator.New(), zap.NewNop())

	mentee, err := svc.Create(context.Background(), dto.CreateMenteeRequest{ID: "bda2307-123", Name: "Siti", Gender: models.GenderFemale})
	require.NoError(t, err)
	assert.Equal(t, "BDA2307-123", mentee.ID)
	assert.Equal(t, "Diploma in Accounting", mentee.Course)
	assert.Equal(t, 1, mentee.Semester)
	assert.Equal(t, models.MenteeStatusActive, mentee.Status)

	_, err = svc.Create(context.Background(), dto.CreateMenteeRequest{ID: "BDA2307-123", Name: "Siti", Gender: models.GenderFemale})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestMenteeServiceRejectsMalformedID(t *testing.T) {
	svc := NewMenteeService(&mockMenteeRepo{}, nil, validator.New(), zap.NewNop())

	for _, id := range []string{"BCS23-001", "XYZ2301-001", "STC001"} {
		_, err := svc.Create(context.Background(), dto.CreateMenteeRequest{ID: id, Name: "N", Gender: models.GenderMale})
		assert.ErrorIs(t, err, appErrors.ErrValidation, id)
	}
}

func TestMenteeServiceUpdateAndDelete(t *testing.T) {
	repo := &mockMenteeRepo{items: map[string]*models.Mentee{
		"BCS2301-001": {ID: "BCS2301-001", Name: "Old", Course: "Diploma in Computer Science", Semester: 1, Gender: models.GenderMale, Status: models.MenteeStatusActive},
	}}
	flusher := &patternRecorder{}
	svc := NewMenteeService(repo, flusher, nil, nil)

	updated, err := svc.Update(context.Background(), "bcs2301-001", dto.UpdateMenteeRequest{
		Name:   "New",
		Course: "Diploma in Computer Science",
		Gender: models.GenderMale,
		Status: models.MenteeStatusGraduated,
	})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Name)
	assert.Equal(t, 1, updated.Semester)
	assert.Equal(t, models.MenteeStatusGraduated, repo.items["BCS2301-001"].Status)

	require.NoError(t, svc.Delete(context.Background(), "BCS2301-001"))
	assert.Equal(t, []string{cache.Key("capacity", "*")}, flusher.patterns)
	assert.ErrorIs(t, svc.Delete(context.Background(), "BCS2301-001"), appErrors.ErrMenteeNotFound)
	assert.Len(t, flusher.patterns, 1)

	_, err = svc.Get(context.Background(), "BCS2301-001")
	assert.ErrorIs(t, err, appErrors.ErrMenteeNotFound)
}

type patternRecorder struct {
	patterns []string
}

func (p *patternRecorder) InvalidatePattern(ctx context.Context, pattern string) error {
	p.patterns = append(p.patterns, pattern)
	return nil
}

func TestMenteeServiceUpdateProfileKeepsHeadFields(t *testing.T) {
	userID := "u-mentee"
	repo := &mockMenteeRepo{items: map[string]*models.Mentee{
		"BCS2301-001": {ID: "BCS2301-001", UserID: &userID, Name: "Old", Course: "Diploma in Computer Science", Semester: 2, Year: 2023, Gender: models.GenderMale, Status: models.MenteeStatusActive},
	}}
	svc := NewMenteeService(repo, nil, nil, nil)

	updated, err := svc.UpdateProfile(context.Background(), userID, dto.MenteeProfileRequest{Name: " Ali ", Email: "ali@example.edu", Semester: 3})
	require.NoError(t, err)
	assert.Equal(t, "Ali", updated.Name)
	assert.Equal(t, 3, updated.Semester)
	assert.Equal(t, 2023, updated.Year)
	stored := repo.items["BCS2301-001"]
	assert.Equal(t, "ali@example.edu", stored.Email)
	assert.Equal(t, "Diploma in Computer Science", stored.Course)
	assert.Equal(t, models.MenteeStatusActive, stored.Status)

	_, err = svc.UpdateProfile(context.Background(), userID, dto.MenteeProfileRequest{Name: "Ali", Email: "not-an-email"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.UpdateProfile(context.Background(), "u-nobody", dto.MenteeProfileRequest{Name: "Ali"})
	assert.ErrorIs(t, err, appErrors.ErrMenteeNotFound)
}

type mockMentorRepo struct {
	items     map[string]*models.Mentor
	updateErr error
	deleteErr error
}

func (m *mockMentorRepo) List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, int, error) {
	return nil, 0, nil
}

func (m *mockMentorRepo) FindByID(ctx context.Context, id string) (*models.Mentor, error) {
	if item, ok := m.items[id]; ok {
		cp := *item
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMentorRepo) FindByUserID(ctx context.Context, userID string) (*models.Mentor, error) {
	for _, item := range m.items {
		if item.UserID != nil && *item.UserID == userID {
			cp := *item
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockMentorRepo) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := m.items[id]
	return ok, nil
}

func (m *mockMentorRepo) Create(ctx context.Context, mentor *models.Mentor) error {
	if m.items == nil {
		m.items = map[string]*models.Mentor{}
	}
	mentor.Department = models.NormalizeDepartment(mentor.Department)
	cp := *mentor
	m.items[mentor.ID] = &cp
	return nil
}

func (m *mockMentorRepo) Update(ctx context.Context, mentor *models.Mentor) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	cp := *mentor
	m.items[mentor.ID] = &cp
	return nil
}

func (m *mockMentorRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

type noMentees struct{}

func (noMentees) ListByMentor(context.Context, string) ([]models.Mentee, error) { return nil, nil }

func TestMentorServiceCreateDefaults(t *testing.T) {
	repo := &mockMentorRepo{}
	svc := NewMentorService(repo, noMentees{}, nil, validator.New(), zap.NewNop(), MentorServiceConfig{DefaultMaxMentees: 20})

	mentor, err := svc.Create(context.Background(), dto.CreateMentorRequest{ID: "stc010", Name: "Dr Tan"})
	require.NoError(t, err)
	assert.Equal(t, "STC010", mentor.ID)
	assert.Equal(t, "Quantitative Science Department", mentor.Department)
	assert.Equal(t, 20, mentor.MaxMentees)

	_, err = svc.Create(context.Background(), dto.CreateMentorRequest{ID: "HEAD01", Name: "Nobody"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestMentorServiceUpdateGuardsCapacity(t *testing.T) {
	repo := &mockMentorRepo{items: map[string]*models.Mentor{
		"STA001": {ID: "STA001", Name: "A", Department: "Accounting", MaxMentees: 5, CurrentMentees: 3},
	}}
	capacity := &mapCapacityCache{entries: map[string][]byte{capacityKey("STA001"): []byte(`{}`)}}
	svc := NewMentorService(repo, noMentees{}, capacity, nil, nil, MentorServiceConfig{})

	req := dto.UpdateMentorRequest{Name: "A", Department: "Accounting", MaxMentees: 2}
	_, err := svc.Update(context.Background(), "STA001", req)
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	repo.updateErr = repository.ErrCapacityReached
	req.MaxMentees = 3
	_, err = svc.Update(context.Background(), "STA001", req)
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	repo.updateErr = nil
	req.MaxMentees = 8
	updated, err := svc.Update(context.Background(), "STA001", req)
	require.NoError(t, err)
	assert.Equal(t, 8, updated.MaxMentees)
	assert.NotContains(t, capacity.entries, capacityKey("STA001"))
}

func TestMentorServiceDelete(t *testing.T) {
	repo := &mockMentorRepo{items: map[string]*models.Mentor{"STB001": {ID: "STB001"}}}
	svc := NewMentorService(repo, noMentees{}, nil, nil, nil, MentorServiceConfig{})

	repo.deleteErr = repository.ErrMentorHasActiveMentees
	assert.ErrorIs(t, svc.Delete(context.Background(), "STB001"), appErrors.ErrPreconditionFailed)

	repo.deleteErr = nil
	require.NoError(t, svc.Delete(context.Background(), "STB001"))
	assert.ErrorIs(t, svc.Delete(context.Background(), "STB001"), appErrors.ErrMentorNotFound)
}

func TestMentorServiceUpdateProfileKeepsCapacity(t *testing.T) {
	userID := "u-mentor"
	repo := &mockMentorRepo{items: map[string]*models.Mentor{
		"STC001": {ID: "STC001", UserID: &userID, Name: "Old", Department: "Quantitative Science", MaxMentees: 12},
	}}
	svc := NewMentorService(repo, noMentees{}, nil, nil, nil, MentorServiceConfig{})

	updated, err := svc.UpdateProfile(context.Background(), userID, dto.MentorProfileRequest{Name: "Dr Tan", Phone: "012-3456789"})
	require.NoError(t, err)
	assert.Equal(t, "Dr Tan", updated.Name)
	assert.Equal(t, "012-3456789", repo.items["STC001"].Phone)
	assert.Equal(t, 12, repo.items["STC001"].MaxMentees)
	assert.Equal(t, "Quantitative Science", repo.items["STC001"].Department)

	_, err = svc.UpdateProfile(context.Background(), userID, dto.MentorProfileRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.UpdateProfile(context.Background(), "u-head", dto.MentorProfileRequest{Name: "X"})
	assert.ErrorIs(t, err, appErrors.ErrMentorNotFound)
}

func TestMentorServiceMenteesNeverNil(t *testing.T) {
	svc := NewMentorService(&mockMentorRepo{}, noMentees{}, nil, nil, nil, MentorServiceConfig{})
	mentees, err := svc.Mentees(context.Background(), "STB001")
	require.NoError(t, err)
	assert.NotNil(t, mentees)
}
