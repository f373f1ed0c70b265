package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mta-academy/academy-api/internal/models"
)

type mockFeeRepo struct {
	fees       map[string]models.MonthlyFee
	details    []models.MonthlyFeeDetail
	patches    map[string]models.MonthlyFeePatch
	notes      map[string]*string
	created    []models.MonthlyFee
	listTotal  int
	lastFilter models.MonthlyFeeFilter
}

func (m *mockFeeRepo) List(ctx context.Context, filter models.MonthlyFeeFilter) ([]models.MonthlyFeeDetail, int, error) {
	m.lastFilter = filter
	if filter.Page > 1 {
		return nil, m.listTotal, nil
	}
	return m.details, m.listTotal, nil
}

func (m *mockFeeRepo) FindByID(ctx context.Context, id string) (*models.MonthlyFee, error) {
	if fee, ok := m.fees[id]; ok {
		return &fee, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeRepo) FindForPeriod(ctx context.Context, month, year int) (map[string]models.MonthlyFee, error) {
	byStudent := make(map[string]models.MonthlyFee)
	for _, fee := range m.fees {
		if fee.Month == month && fee.Year == year {
			byStudent[fee.StudentID] = fee
		}
	}
	return byStudent, nil
}

func (m *mockFeeRepo) ListByStudent(ctx context.Context, studentID string) ([]models.MonthlyFee, error) {
	out := make([]models.MonthlyFee, 0)
	for _, fee := range m.fees {
		if fee.StudentID == studentID {
			out = append(out, fee)
		}
	}
	return out, nil
}

func (m *mockFeeRepo) Create(ctx context.Context, fee *models.MonthlyFee) (bool, error) {
	if m.fees == nil {
		m.fees = make(map[string]models.MonthlyFee)
	}
	for _, existing := range m.fees {
		if existing.StudentID == fee.StudentID && existing.Month == fee.Month && existing.Year == fee.Year {
			return false, nil
		}
	}
	if fee.ID == "" {
		fee.ID = "fee-" + fee.StudentID
	}
	m.fees[fee.ID] = *fee
	m.created = append(m.created, *fee)
	return true, nil
}

func (m *mockFeeRepo) ApplyPatch(ctx context.Context, id string, patch models.MonthlyFeePatch) error {
	if m.patches == nil {
		m.patches = make(map[string]models.MonthlyFeePatch)
	}
	m.patches[id] = patch
	fee := m.fees[id]
	fee.Status = patch.Status
	fee.PartialAmountPaid = patch.PartialAmountPaid
	fee.PaidDate = patch.PaidDate
	m.fees[id] = fee
	return nil
}

func (m *mockFeeRepo) UpdateNotes(ctx context.Context, id string, notes *string) error {
	if m.notes == nil {
		m.notes = make(map[string]*string)
	}
	m.notes[id] = notes
	return nil
}

type mockFeeStudents struct {
	students map[string]models.Student
}

func (m *mockFeeStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeStudents) ListActive(ctx context.Context) ([]models.Student, error) {
	out := make([]models.Student, 0)
	for _, s := range m.students {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func newFeeService(repo *mockFeeRepo, students *mockFeeStudents) *FeeService {
	svc := NewFeeService(repo, students, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestFeeServiceListBackfillsMissingRows(t *testing.T) {
	repo := &mockFeeRepo{}
	students := &mockFeeStudents{students: map[string]models.Student{
		"s1": {ID: "s1", FeeStructure: models.FeeStructureTwoClasses, Active: true},
		"s2": {ID: "s2", FeeStructure: models.FeeStructureFourClasses, Active: true},
		"s3": {ID: "s3", FeeStructure: models.FeeStructureTwoClasses, Active: false},
	}}
	svc := newFeeService(repo, students)

	_, _, err := svc.ListForMonth(context.Background(), models.MonthlyFeeFilter{Month: 6, Year: 2025})
	require.NoError(t, err)

	assert.Len(t, repo.created, 2)
	for _, fee := range repo.created {
		assert.Equal(t, models.PaymentStatusUnpaid, fee.Status)
		assert.NotEqual(t, "s3", fee.StudentID)
	}
}

func TestFeeServiceBackfillIdempotent(t *testing.T) {
	repo := &mockFeeRepo{fees: map[string]models.MonthlyFee{
		"f1": {ID: "f1", StudentID: "s1", Month: 6, Year: 2025, Amount: decimal.NewFromInt(700), Status: models.PaymentStatusPaid},
	}}
	students := &mockFeeStudents{students: map[string]models.Student{
		"s1": {ID: "s1", FeeStructure: models.FeeStructureTwoClasses, Active: true},
	}}
	svc := newFeeService(repo, students)

	_, _, err := svc.ListForMonth(context.Background(), models.MonthlyFeeFilter{Month: 6, Year: 2025})
	require.NoError(t, err)
	assert.Empty(t, repo.created)
	assert.Equal(t, models.PaymentStatusPaid, repo.fees["f1"].Status)
}

func TestFeeServiceSnapshotSurvivesPlanChange(t *testing.T) {
	repo := &mockFeeRepo{}
	students := &mockFeeStudents{students: map[string]models.Student{
		"s1": {ID: "s1", FeeStructure: models.FeeStructureTwoClasses, Active: true},
	}}
	svc := newFeeService(repo, students)

	_, _, err := svc.ListForMonth(context.Background(), models.MonthlyFeeFilter{Month: 6, Year: 2025})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.True(t, repo.created[0].Amount.Equal(decimal.NewFromInt(700)))

	// Upgrading the plan must not rewrite the June row.
	s := students.students["s1"]
	s.FeeStructure = models.FeeStructureFourClasses
	students.students["s1"] = s

	_, _, err = svc.ListForMonth(context.Background(), models.MonthlyFeeFilter{Month: 6, Year: 2025})
	require.NoError(t, err)
	assert.Len(t, repo.created, 1)
	assert.True(t, repo.created[0].Amount.Equal(decimal.NewFromInt(700)))
}

func TestFeeServiceUpdateStatusPaid(t *testing.T) {
	repo := &mockFeeRepo{fees: map[string]models.MonthlyFee{
		"f1": {ID: "f1", StudentID: "s1", Month: 6, Year: 2025, Amount: decimal.NewFromInt(700), Status: models.PaymentStatusUnpaid},
	}}
	svc := newFeeService(repo, &mockFeeStudents{})

	fee, err := svc.UpdateStatus(context.Background(), "f1", UpdateFeeStatusRequest{Status: models.PaymentStatusPaid})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, fee.Status)
	assert.True(t, fee.PartialAmountPaid.IsZero())
	require.NotNil(t, fee.PaidDate)
	assert.Equal(t, time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC), *fee.PaidDate)
}

func TestFeeServiceUpdateStatusPartial(t *testing.T) {
	repo := &mockFeeRepo{fees: map[string]models.MonthlyFee{
		"f1": {ID: "f1", StudentID: "s1", Month: 6, Year: 2025, Amount: decimal.NewFromInt(1000), Status: models.PaymentStatusUnpaid},
	}}
	svc := newFeeService(repo, &mockFeeStudents{})

	partial := decimal.NewFromInt(400)
	fee, err := svc.UpdateStatus(context.Background(), "f1", UpdateFeeStatusRequest{Status: models.PaymentStatusPartial, PartialAmount: &partial})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartial, fee.Status)
	assert.True(t, fee.PartialAmountPaid.Equal(partial))
	assert.Nil(t, fee.PaidDate)
}

func TestFeeServiceUpdateStatusPartialRequiresAmount(t *testing.T) {
	repo := &mockFeeRepo{fees: map[string]models.MonthlyFee{
		"f1": {ID: "f1", Amount: decimal.NewFromInt(700), Status: models.PaymentStatusUnpaid},
	}}
	svc := newFeeService(repo, &mockFeeStudents{})

	_, err := svc.UpdateStatus(context.Background(), "f1", UpdateFeeStatusRequest{Status: models.PaymentStatusPartial})
	require.Error(t, err)
}

func TestFeeServiceUpdateStatusPartialRejectsFullAmount(t *testing.T) {
	repo := &mockFeeRepo{fees: map[string]models.MonthlyFee{
		"f1": {ID: "f1", Amount: decimal.NewFromInt(700), Status: models.PaymentStatusUnpaid},
	}}
	svc := newFeeService(repo, &mockFeeStudents{})

	full := decimal.NewFromInt(700)
	_, err := svc.UpdateStatus(context.Background(), "f1", UpdateFeeStatusRequest{Status: models.PaymentStatusPartial, PartialAmount: &full})
	require.Error(t, err)
}

func TestFeeServiceUpdateStatusUnpaidResets(t *testing.T) {
	paid := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockFeeRepo{fees: map[string]models.MonthlyFee{
		"f1": {ID: "f1", Amount: decimal.NewFromInt(700), Status: models.PaymentStatusPaid, PaidDate: &paid},
	}}
	svc := newFeeService(repo, &mockFeeStudents{})

	fee, err := svc.UpdateStatus(context.Background(), "f1", UpdateFeeStatusRequest{Status: models.PaymentStatusUnpaid})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusUnpaid, fee.Status)
	assert.True(t, fee.PartialAmountPaid.IsZero())
	assert.Nil(t, fee.PaidDate)
}

func TestFeeServiceUpdateStatusNotFound(t *testing.T) {
	svc := newFeeService(&mockFeeRepo{}, &mockFeeStudents{})
	_, err := svc.UpdateStatus(context.Background(), "missing", UpdateFeeStatusRequest{Status: models.PaymentStatusPaid})
	require.Error(t, err)
}

func TestFeeServiceMonthSummary(t *testing.T) {
	repo := &mockFeeRepo{
		details: []models.MonthlyFeeDetail{
			{MonthlyFee: models.MonthlyFee{StudentID: "s1", Month: 6, Year: 2025, Amount: decimal.NewFromInt(700), Status: models.PaymentStatusPaid}, FeeStructure: models.FeeStructureTwoClasses},
			{MonthlyFee: models.MonthlyFee{StudentID: "s2", Month: 6, Year: 2025, Amount: decimal.NewFromInt(1000), Status: models.PaymentStatusPartial, PartialAmountPaid: decimal.NewFromInt(400)}, FeeStructure: models.FeeStructureFourClasses},
			{MonthlyFee: models.MonthlyFee{StudentID: "s3", Month: 6, Year: 2025, Amount: decimal.NewFromInt(700), Status: models.PaymentStatusUnpaid}, FeeStructure: models.FeeStructureTwoClasses},
		},
		listTotal: 3,
	}
	svc := newFeeService(repo, &mockFeeStudents{})

	summary, err := svc.MonthSummary(context.Background(), 6, 2025)
	require.NoError(t, err)
	assert.True(t, summary.TotalAmount.Equal(decimal.NewFromInt(2400)))
	assert.True(t, summary.Collected.Equal(decimal.NewFromInt(1100)))
	assert.True(t, summary.Outstanding.Equal(decimal.NewFromInt(1300)))
	assert.Equal(t, 1, summary.PaidCount)
	assert.Equal(t, 1, summary.PartialCount)
	assert.Equal(t, 1, summary.UnpaidCount)
}

func TestFeeServiceStudentLedger(t *testing.T) {
	repo := &mockFeeRepo{fees: map[string]models.MonthlyFee{
		"f1": {ID: "f1", StudentID: "s1", Month: 5, Year: 2025, Amount: decimal.NewFromInt(700), Status: models.PaymentStatusPaid},
		"f2": {ID: "f2", StudentID: "s1", Month: 6, Year: 2025, Amount: decimal.NewFromInt(700), Status: models.PaymentStatusUnpaid},
	}}
	students := &mockFeeStudents{students: map[string]models.Student{
		"s1": {ID: "s1", FeeStructure: models.FeeStructureTwoClasses, Active: true},
	}}
	svc := newFeeService(repo, students)

	views, totals, err := svc.StudentLedger(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, views, 2)
	assert.True(t, totals.Obligated.Equal(decimal.NewFromInt(1400)))
	assert.True(t, totals.Paid.Equal(decimal.NewFromInt(700)))
	assert.True(t, totals.Balance.Equal(decimal.NewFromInt(700)))
}
