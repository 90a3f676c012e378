package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/internal/repository"
)

// memoryLedger enforces the same storage constraints as the Postgres ledger:
// one active row per mentee, unique historical pairs and mentor capacity.
type memoryLedger struct {
	mu         sync.Mutex
	mentors    map[string]*models.Mentor
	mentees    map[string]*models.Mentee
	rows       []*models.Assignment
	seq        int
	failAssign func(mentorID, menteeID string) error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{mentors: map[string]*models.Mentor{}, mentees: map[string]*models.Mentee{}}
}

func (l *memoryLedger) addMentor(id, department string, max int) *memoryLedger {
	l.mentors[id] = &models.Mentor{ID: id, Name: "Mentor " + id, Department: department, MaxMentees: max}
	return l
}

func (l *memoryLedger) addMentee(id, course string, gender models.Gender) *memoryLedger {
	l.mentees[id] = &models.Mentee{ID: id, Name: "Mentee " + id, Course: course, Gender: gender, Status: models.MenteeStatusActive}
	return l
}

func (l *memoryLedger) activeFor(pred func(*models.Assignment) bool) int {
	n := 0
	for _, row := range l.rows {
		if row.Status == models.AssignmentActive && pred(row) {
			n++
		}
	}
	return n
}

func (l *memoryLedger) view(row *models.Assignment) models.AssignmentView {
	v := models.AssignmentView{Assignment: *row}
	if m, ok := l.mentors[row.MentorID]; ok {
		v.MentorName = m.Name
		v.MentorDepartment = m.Department
	}
	if me, ok := l.mentees[row.MenteeID]; ok {
		v.MenteeName = me.Name
		v.MenteeCourse = me.Course
	}
	return v
}

func (l *memoryLedger) find(id string) *models.Assignment {
	for _, row := range l.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

func (l *memoryLedger) refresh(mentorID string) {
	if m, ok := l.mentors[mentorID]; ok {
		m.CurrentMentees = l.activeFor(func(a *models.Assignment) bool { return a.MentorID == mentorID })
	}
}

func (l *memoryLedger) FindByID(_ context.Context, id string) (*models.AssignmentView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row := l.find(id)
	if row == nil {
		return nil, sql.ErrNoRows
	}
	v := l.view(row)
	return &v, nil
}

func (l *memoryLedger) FindActiveByMentee(_ context.Context, menteeID string) (*models.AssignmentView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, row := range l.rows {
		if row.MenteeID == menteeID && row.Status == models.AssignmentActive {
			v := l.view(row)
			return &v, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (l *memoryLedger) ListByMentee(ctx context.Context, menteeID string) ([]models.AssignmentView, error) {
	items, _, err := l.List(ctx, models.AssignmentFilter{MenteeID: menteeID})
	return items, err
}

func (l *memoryLedger) List(_ context.Context, filter models.AssignmentFilter) ([]models.AssignmentView, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.AssignmentView, 0)
	for i := len(l.rows) - 1; i >= 0; i-- {
		row := l.rows[i]
		if filter.MentorID != "" && row.MentorID != filter.MentorID {
			continue
		}
		if filter.MenteeID != "" && row.MenteeID != filter.MenteeID {
			continue
		}
		if filter.Status != nil && row.Status != *filter.Status {
			continue
		}
		out = append(out, l.view(row))
	}
	return out, len(out), nil
}

func (l *memoryLedger) Stats(_ context.Context, _ models.AssignmentFilter) (models.AssignmentStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var stats models.AssignmentStats
	for _, row := range l.rows {
		stats.Total++
		switch row.Status {
		case models.AssignmentActive:
			stats.Active++
		case models.AssignmentCompleted:
			stats.Completed++
		case models.AssignmentTransferred:
			stats.Transferred++
		}
	}
	return stats, nil
}

func (l *memoryLedger) load(m *models.Mentor) models.MentorLoad {
	load := models.MentorLoad{Mentor: *m}
	for _, row := range l.rows {
		if row.MentorID != m.ID || row.Status != models.AssignmentActive {
			continue
		}
		load.ActiveCount++
		if l.mentees[row.MenteeID].Gender == models.GenderFemale {
			load.FemaleCount++
		} else {
			load.MaleCount++
		}
	}
	return load
}

func (l *memoryLedger) MentorLoads(_ context.Context) ([]models.MentorLoad, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	loads := make([]models.MentorLoad, 0, len(l.mentors))
	for _, m := range l.mentors {
		loads = append(loads, l.load(m))
	}
	sort.Slice(loads, func(i, j int) bool { return loads[i].ID < loads[j].ID })
	return loads, nil
}

func (l *memoryLedger) MentorLoad(_ context.Context, mentorID string) (*models.MentorLoad, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.mentors[mentorID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	load := l.load(m)
	return &load, nil
}

func (l *memoryLedger) insert(mentorID, menteeID string, actor *string, notes string) *models.Assignment {
	l.seq++
	now := time.Now().UTC()
	row := &models.Assignment{
		ID:           fmt.Sprintf("as-%03d", l.seq),
		MentorID:     mentorID,
		MenteeID:     menteeID,
		Status:       models.AssignmentActive,
		AssignedDate: now,
		AssignedBy:   actor,
		Notes:        notes,
		UpdatedAt:    now,
	}
	l.rows = append(l.rows, row)
	mentorRef := mentorID
	l.mentees[menteeID].AssignedMentorID = &mentorRef
	l.refresh(mentorID)
	return row
}

func (l *memoryLedger) AssignTx(_ context.Context, mentorID, menteeID string, actor *string, notes string) (*models.Assignment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAssign != nil {
		if err := l.failAssign(mentorID, menteeID); err != nil {
			return nil, err
		}
	}
	mentor, ok := l.mentors[mentorID]
	if !ok {
		return nil, repository.ErrMentorMissing
	}
	if _, ok := l.mentees[menteeID]; !ok {
		return nil, repository.ErrMenteeMissing
	}
	if l.activeFor(func(a *models.Assignment) bool { return a.MentorID == mentorID }) >= mentor.MaxMentees {
		return nil, repository.ErrCapacityReached
	}
	if l.activeFor(func(a *models.Assignment) bool { return a.MenteeID == menteeID }) > 0 {
		return nil, repository.ErrActiveAssignmentExists
	}
	for _, row := range l.rows {
		if row.MentorID == mentorID && row.MenteeID == menteeID {
			return nil, repository.ErrPairExists
		}
	}
	row := l.insert(mentorID, menteeID, actor, notes)
	copied := *row
	return &copied, nil
}

func (l *memoryLedger) TransferTx(_ context.Context, req models.TransferRequest) (*models.Assignment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.find(req.AssignmentID)
	if current == nil {
		return nil, sql.ErrNoRows
	}
	if current.Status != models.AssignmentActive {
		return nil, repository.ErrAssignmentNotActive
	}
	mentor, ok := l.mentors[req.NewMentorID]
	if !ok {
		return nil, repository.ErrMentorMissing
	}
	if l.activeFor(func(a *models.Assignment) bool { return a.MentorID == req.NewMentorID }) >= mentor.MaxMentees {
		return nil, repository.ErrCapacityReached
	}
	for _, row := range l.rows {
		if row.MentorID == req.NewMentorID && row.MenteeID == current.MenteeID {
			return nil, repository.ErrPairExists
		}
	}

	now := time.Now().UTC()
	newMentor := req.NewMentorID
	current.Status = models.AssignmentTransferred
	current.TransferredTo = &newMentor
	if req.Actor != "" {
		actor := req.Actor
		current.TransferredBy = &actor
	}
	current.TransferredAt = &now
	current.Notes = req.Notes

	var actor *string
	if req.Actor != "" {
		a := req.Actor
		actor = &a
	}
	row := l.insert(req.NewMentorID, current.MenteeID, actor, req.NewNotes)
	l.refresh(current.MentorID)
	copied := *row
	return &copied, nil
}

func (l *memoryLedger) release(row *models.Assignment) {
	if me, ok := l.mentees[row.MenteeID]; ok && me.AssignedMentorID != nil && *me.AssignedMentorID == row.MentorID {
		me.AssignedMentorID = nil
	}
	l.refresh(row.MentorID)
}

func (l *memoryLedger) MarkStatus(_ context.Context, id string, status models.AssignmentStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	row := l.find(id)
	if row == nil {
		return sql.ErrNoRows
	}
	if row.Status != models.AssignmentActive {
		return repository.ErrAssignmentNotActive
	}
	row.Status = status
	l.release(row)
	return nil
}

func (l *memoryLedger) Delete(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, row := range l.rows {
		if row.ID == id {
			l.rows = append(l.rows[:i], l.rows[i+1:]...)
			if row.Status == models.AssignmentActive {
				l.release(row)
			}
			return nil
		}
	}
	return sql.ErrNoRows
}

// memoryMentees reads mentees from the ledger's store.
type memoryMentees struct{ l *memoryLedger }

func (m memoryMentees) FindByID(_ context.Context, id string) (*models.Mentee, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	me, ok := m.l.mentees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *me
	return &copied, nil
}

func (m memoryMentees) ListUnassigned(_ context.Context) ([]models.Mentee, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	out := make([]models.Mentee, 0)
	for _, me := range m.l.mentees {
		id := me.ID
		if me.Status == models.MenteeStatusActive && m.l.activeFor(func(a *models.Assignment) bool { return a.MenteeID == id }) == 0 {
			out = append(out, *me)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memoryMentees) ListByMentor(_ context.Context, mentorID string) ([]models.Mentee, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	out := make([]models.Mentee, 0)
	for _, row := range m.l.rows {
		if row.MentorID == mentorID && row.Status == models.AssignmentActive {
			out = append(out, *m.l.mentees[row.MenteeID])
		}
	}
	return out, nil
}

// requireLedgerInvariants checks at-most-one-active per mentee and capacity per mentor.
func requireLedgerInvariants(t *testing.T, l *memoryLedger) {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range l.mentees {
		menteeID := id
		require.LessOrEqual(t, l.activeFor(func(a *models.Assignment) bool { return a.MenteeID == menteeID }), 1, "mentee %s has several active assignments", menteeID)
	}
	for id, m := range l.mentors {
		mentorID := id
		active := l.activeFor(func(a *models.Assignment) bool { return a.MentorID == mentorID })
		require.LessOrEqual(t, active, m.MaxMentees, "mentor %s over capacity", mentorID)
		require.Equal(t, active, m.CurrentMentees, "mentor %s cached count drifted", mentorID)
	}
}
