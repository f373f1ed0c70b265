package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mta-academy/academy-api/internal/models"
)

type mockAttendanceRepo struct {
	upserted []models.Attendance
	existing map[string]bool
	history  []models.Attendance
	records  []models.AttendanceRecord
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.Attendance) error {
	record.ID = "a-upserted"
	m.upserted = append(m.upserted, *record)
	return nil
}

func (m *mockAttendanceRepo) BulkInsert(ctx context.Context, records []models.Attendance) (int, []models.AttendanceBulkConflict, error) {
	marked := 0
	var conflicts []models.AttendanceBulkConflict
	for _, record := range records {
		if m.existing[record.StudentID] {
			conflicts = append(conflicts, models.AttendanceBulkConflict{
				StudentID: record.StudentID,
				Date:      record.Date,
				Reason:    "already marked",
			})
			continue
		}
		marked++
		m.upserted = append(m.upserted, record)
	}
	return marked, conflicts, nil
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	return m.records, len(m.records), nil
}

func (m *mockAttendanceRepo) HistoryByStudent(ctx context.Context, studentID string) ([]models.Attendance, error) {
	return m.history, nil
}

type mockAttendanceStudents struct {
	students map[string]models.Student
}

func (m *mockAttendanceStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceStudents) ListActive(ctx context.Context) ([]models.Student, error) {
	var out []models.Student
	for _, s := range m.students {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func TestAttendanceServiceMark(t *testing.T) {
	repo := &mockAttendanceRepo{}
	students := &mockAttendanceStudents{students: map[string]models.Student{"s1": {ID: "s1", Active: true}}}
	svc := NewAttendanceService(repo, students, validator.New(), zap.NewNop())

	record, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID:      "s1",
		Date:           time.Date(2025, 6, 5, 18, 30, 0, 0, time.UTC),
		Status:         models.AttendanceStatusLate,
		InstructorName: "Master Kim",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusLate, record.Status)
	assert.Equal(t, time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC), record.Date)
	require.Len(t, repo.upserted, 1)
}

func TestAttendanceServiceMarkUnknownStatus(t *testing.T) {
	repo := &mockAttendanceRepo{}
	students := &mockAttendanceStudents{students: map[string]models.Student{"s1": {ID: "s1", Active: true}}}
	svc := NewAttendanceService(repo, students, validator.New(), zap.NewNop())

	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID:      "s1",
		Date:           time.Now(),
		Status:         "tardy",
		InstructorName: "Master Kim",
	})
	require.Error(t, err)
	assert.Empty(t, repo.upserted)
}

func TestAttendanceServiceMarkInactiveStudent(t *testing.T) {
	repo := &mockAttendanceRepo{}
	students := &mockAttendanceStudents{students: map[string]models.Student{"s1": {ID: "s1", Active: false}}}
	svc := NewAttendanceService(repo, students, validator.New(), zap.NewNop())

	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID:      "s1",
		Date:           time.Now(),
		Status:         models.AttendanceStatusPresent,
		InstructorName: "Master Kim",
	})
	require.Error(t, err)
	assert.Empty(t, repo.upserted)
}

func TestAttendanceServiceMarkAllPresent(t *testing.T) {
	repo := &mockAttendanceRepo{existing: map[string]bool{"s2": true}}
	students := &mockAttendanceStudents{students: map[string]models.Student{
		"s1": {ID: "s1", Active: true},
		"s2": {ID: "s2", Active: true},
		"s3": {ID: "s3", Active: false},
	}}
	svc := NewAttendanceService(repo, students, validator.New(), zap.NewNop())

	result, err := svc.MarkAllPresent(context.Background(), BulkMarkRequest{
		Date:           time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		InstructorName: "Master Kim",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Marked)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "s2", result.Conflicts[0].StudentID)
	assert.Equal(t, "already marked", result.Conflicts[0].Reason)
	for _, record := range repo.upserted {
		assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	}
}

func TestAttendanceServiceHistory(t *testing.T) {
	repo := &mockAttendanceRepo{history: []models.Attendance{
		{Status: models.AttendanceStatusPresent},
		{Status: models.AttendanceStatusAbsent},
		{Status: models.AttendanceStatusLate},
		{Status: models.AttendanceStatusPresent},
	}}
	students := &mockAttendanceStudents{students: map[string]models.Student{"s1": {ID: "s1", Active: true}}}
	svc := NewAttendanceService(repo, students, validator.New(), zap.NewNop())

	records, summary, err := svc.History(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, 2, summary.Present)
	assert.Equal(t, 1, summary.Absent)
	assert.Equal(t, 1, summary.Late)
	assert.InDelta(t, 75.0, summary.Percent, 0.01)
}

func TestAttendanceServiceHistoryUnknownStudent(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, &mockAttendanceStudents{}, validator.New(), zap.NewNop())

	_, _, err := svc.History(context.Background(), "missing")
	require.Error(t, err)
}
