package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mta-academy/academy-api/internal/models"
)

type mockBeltTestRepo struct {
	tests   map[string]models.BeltTest
	details []models.BeltTestDetail
}

func (m *mockBeltTestRepo) List(ctx context.Context, filter models.BeltTestFilter) ([]models.BeltTestDetail, int, error) {
	return m.details, len(m.details), nil
}

func (m *mockBeltTestRepo) FindByID(ctx context.Context, id string) (*models.BeltTest, error) {
	if test, ok := m.tests[id]; ok {
		return &test, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBeltTestRepo) Create(ctx context.Context, test *models.BeltTest) error {
	if m.tests == nil {
		m.tests = make(map[string]models.BeltTest)
	}
	if test.ID == "" {
		test.ID = "bt-created"
	}
	m.tests[test.ID] = *test
	return nil
}

func (m *mockBeltTestRepo) Update(ctx context.Context, test *models.BeltTest) error {
	m.tests[test.ID] = *test
	return nil
}

type mockBeltTestStudents struct {
	students   map[string]models.Student
	promotions map[string]models.BeltLevel
}

func (m *mockBeltTestStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBeltTestStudents) UpdateBeltLevel(ctx context.Context, id string, level models.BeltLevel) error {
	if m.promotions == nil {
		m.promotions = make(map[string]models.BeltLevel)
	}
	m.promotions[id] = level
	if s, ok := m.students[id]; ok {
		s.BeltLevel = level
		m.students[id] = s
	}
	return nil
}

func newBeltTestService(repo *mockBeltTestRepo, students *mockBeltTestStudents) *BeltTestService {
	svc := NewBeltTestService(repo, students, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestBeltTestServiceScheduleDefaultsTargetToNextRank(t *testing.T) {
	repo := &mockBeltTestRepo{}
	students := &mockBeltTestStudents{students: map[string]models.Student{
		"s1": {ID: "s1", BeltLevel: models.BeltGreen, Active: true},
	}}
	svc := newBeltTestService(repo, students)

	test, err := svc.Schedule(context.Background(), ScheduleBeltTestRequest{
		StudentID: "s1",
		TestDate:  time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		TestFee:   decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	assert.Equal(t, models.BeltGreen, test.CurrentBelt)
	assert.Equal(t, models.BeltBlueStripe, test.TargetBelt)
	assert.Equal(t, models.TestResultPending, test.Result)
}

func TestBeltTestServiceScheduleHighestRank(t *testing.T) {
	repo := &mockBeltTestRepo{}
	students := &mockBeltTestStudents{students: map[string]models.Student{
		"s1": {ID: "s1", BeltLevel: models.BeltBlack5thDan, Active: true},
	}}
	svc := newBeltTestService(repo, students)

	_, err := svc.Schedule(context.Background(), ScheduleBeltTestRequest{
		StudentID: "s1",
		TestDate:  time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "highest rank")
}

func TestBeltTestServiceScheduleInactiveStudent(t *testing.T) {
	students := &mockBeltTestStudents{students: map[string]models.Student{
		"s1": {ID: "s1", BeltLevel: models.BeltWhite, Active: false},
	}}
	svc := newBeltTestService(&mockBeltTestRepo{}, students)

	_, err := svc.Schedule(context.Background(), ScheduleBeltTestRequest{
		StudentID: "s1",
		TestDate:  time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
}

func TestBeltTestServiceRecordResultDoesNotTouchBelt(t *testing.T) {
	repo := &mockBeltTestRepo{tests: map[string]models.BeltTest{
		"bt1": {ID: "bt1", StudentID: "s1", CurrentBelt: models.BeltGreen, TargetBelt: models.BeltBlueStripe, Result: models.TestResultPending},
	}}
	students := &mockBeltTestStudents{students: map[string]models.Student{
		"s1": {ID: "s1", BeltLevel: models.BeltGreen, Active: true},
	}}
	svc := newBeltTestService(repo, students)

	cert := "ITF-2025-0042"
	test, err := svc.RecordResult(context.Background(), "bt1", RecordBeltTestResultRequest{
		Result:              models.TestResultPassed,
		CertificationNumber: &cert,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TestResultPassed, test.Result)
	require.NotNil(t, test.CertificationNumber)
	assert.Equal(t, "ITF-2025-0042", *test.CertificationNumber)
	assert.Empty(t, students.promotions)
}

func TestBeltTestServicePromoteDefaultsToNextRank(t *testing.T) {
	students := &mockBeltTestStudents{students: map[string]models.Student{
		"s1": {ID: "s1", BeltLevel: models.BeltGreen, Active: true},
	}}
	svc := newBeltTestService(&mockBeltTestRepo{}, students)

	student, err := svc.Promote(context.Background(), "s1", PromoteStudentRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.BeltBlueStripe, student.BeltLevel)
	assert.Equal(t, models.BeltBlueStripe, students.promotions["s1"])
}

func TestBeltTestServicePromoteExplicitTarget(t *testing.T) {
	students := &mockBeltTestStudents{students: map[string]models.Student{
		"s1": {ID: "s1", BeltLevel: models.BeltGreen, Active: true},
	}}
	svc := newBeltTestService(&mockBeltTestRepo{}, students)

	student, err := svc.Promote(context.Background(), "s1", PromoteStudentRequest{TargetBelt: models.BeltBlue})
	require.NoError(t, err)
	assert.Equal(t, models.BeltBlue, student.BeltLevel)
}

func TestBeltTestServicePromoteHighestRank(t *testing.T) {
	students := &mockBeltTestStudents{students: map[string]models.Student{
		"s1": {ID: "s1", BeltLevel: models.BeltBlack5thDan, Active: true},
	}}
	svc := newBeltTestService(&mockBeltTestRepo{}, students)

	_, err := svc.Promote(context.Background(), "s1", PromoteStudentRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "highest rank")
}

func TestBeltTestServicePromoteInactiveStudent(t *testing.T) {
	students := &mockBeltTestStudents{students: map[string]models.Student{
		"s1": {ID: "s1", BeltLevel: models.BeltWhite, Active: false},
	}}
	svc := newBeltTestService(&mockBeltTestRepo{}, students)

	_, err := svc.Promote(context.Background(), "s1", PromoteStudentRequest{})
	require.Error(t, err)
}

func TestBeltTestServiceRecordResultAlreadyDecided(t *testing.T) {
	repo := &mockBeltTestRepo{tests: map[string]models.BeltTest{
		"bt1": {ID: "bt1", StudentID: "s1", Result: models.TestResultPassed},
	}}
	svc := newBeltTestService(repo, &mockBeltTestStudents{})

	_, err := svc.RecordResult(context.Background(), "bt1", RecordBeltTestResultRequest{Result: models.TestResultFailed})
	require.Error(t, err)
}

func TestBeltTestServiceRecordResultRejectsBadCertNumber(t *testing.T) {
	repo := &mockBeltTestRepo{tests: map[string]models.BeltTest{
		"bt1": {ID: "bt1", StudentID: "s1", Result: models.TestResultPending},
	}}
	svc := newBeltTestService(repo, &mockBeltTestStudents{})

	tooLong := strings.Repeat("A", 21)
	_, err := svc.RecordResult(context.Background(), "bt1", RecordBeltTestResultRequest{
		Result:              models.TestResultPassed,
		CertificationNumber: &tooLong,
	})
	require.Error(t, err)

	badChars := "CERT #42"
	_, err = svc.RecordResult(context.Background(), "bt1", RecordBeltTestResultRequest{
		Result:              models.TestResultPassed,
		CertificationNumber: &badChars,
	})
	require.Error(t, err)
}

func TestBeltTestServiceUpdateAfterResultRecorded(t *testing.T) {
	repo := &mockBeltTestRepo{tests: map[string]models.BeltTest{
		"bt1": {ID: "bt1", StudentID: "s1", TargetBelt: models.BeltYellow, Result: models.TestResultFailed},
	}}
	svc := newBeltTestService(repo, &mockBeltTestStudents{})

	_, err := svc.Update(context.Background(), "bt1", UpdateBeltTestRequest{
		TargetBelt: models.BeltYellow,
		TestDate:   time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
}

func TestBeltTestServiceListPartitionsUpcoming(t *testing.T) {
	repo := &mockBeltTestRepo{details: []models.BeltTestDetail{
		{BeltTest: models.BeltTest{ID: "future", TestDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), Result: models.TestResultPending}},
		{BeltTest: models.BeltTest{ID: "today", TestDate: time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC), Result: models.TestResultPending}},
		{BeltTest: models.BeltTest{ID: "decided", TestDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), Result: models.TestResultPassed}},
		{BeltTest: models.BeltTest{ID: "past", TestDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), Result: models.TestResultPending}},
	}}
	svc := newBeltTestService(repo, &mockBeltTestStudents{})

	upcoming, past, pagination, err := svc.List(context.Background(), models.BeltTestFilter{})
	require.NoError(t, err)
	assert.Len(t, upcoming, 2)
	assert.Len(t, past, 2)
	assert.Equal(t, 4, pagination.TotalCount)
}
