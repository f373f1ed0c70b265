package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mta-academy/academy-api/internal/models"
	appErrors "github.com/mta-academy/academy-api/pkg/errors"
)

type mockCacheRepo struct {
	entries map[string][]byte
	deleted []string
}

func (m *mockCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[key] = raw
	return nil
}

func (m *mockCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	for key := range m.entries {
		delete(m.entries, key)
	}
	return nil
}

type mockDashStudents struct {
	total, active int
	calls         int
}

func (m *mockDashStudents) Counts(ctx context.Context) (int, int, error) {
	m.calls++
	return m.total, m.active, nil
}

type mockDashFees struct {
	pending int
	details []models.MonthlyFeeDetail
}

func (m *mockDashFees) CountPendingForMonth(ctx context.Context, month, year int) (int, error) {
	return m.pending, nil
}

func (m *mockDashFees) List(ctx context.Context, filter models.MonthlyFeeFilter) ([]models.MonthlyFeeDetail, int, error) {
	if filter.Page > 1 {
		return nil, len(m.details), nil
	}
	return m.details, len(m.details), nil
}

type mockDashAttendance struct {
	present int
}

func (m *mockDashAttendance) CountPresentOn(ctx context.Context, date time.Time) (int, error) {
	return m.present, nil
}

type mockDashBeltTests struct {
	pending int
	from    time.Time
	to      time.Time
}

func (m *mockDashBeltTests) CountPendingBetween(ctx context.Context, from, to time.Time) (int, error) {
	m.from = from
	m.to = to
	return m.pending, nil
}

func newDashboardFixture() (*DashboardService, *mockDashStudents, *mockCacheRepo) {
	students := &mockDashStudents{total: 42, active: 38}
	fees := &mockDashFees{pending: 7, details: []models.MonthlyFeeDetail{
		{MonthlyFee: models.MonthlyFee{Amount: decimal.NewFromInt(700), Status: models.PaymentStatusPaid}},
		{MonthlyFee: models.MonthlyFee{Amount: decimal.NewFromInt(1000), Status: models.PaymentStatusPartial, PartialAmountPaid: decimal.NewFromInt(400)}},
		{MonthlyFee: models.MonthlyFee{Amount: decimal.NewFromInt(700), Status: models.PaymentStatusUnpaid}},
	}}
	attendance := &mockDashAttendance{present: 19}
	beltTests := &mockDashBeltTests{pending: 3}
	cacheRepo := &mockCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(students, fees, attendance, beltTests, cache, time.Minute, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC) }
	return svc, students, cacheRepo
}

func TestDashboardServiceSummary(t *testing.T) {
	svc, _, _ := newDashboardFixture()

	summary, fromCache, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 42, summary.TotalStudents)
	assert.Equal(t, 38, summary.ActiveStudents)
	assert.Equal(t, 7, summary.PendingFees)
	assert.True(t, summary.CollectedThisMonth.Equal(decimal.NewFromInt(1100)))
	assert.Equal(t, 19, summary.PresentToday)
	assert.Equal(t, 3, summary.UpcomingBeltTests)
	assert.Equal(t, 6, summary.Month)
	assert.Equal(t, 2025, summary.Year)
}

func TestDashboardServiceSummaryServedFromCache(t *testing.T) {
	svc, students, _ := newDashboardFixture()

	_, fromCache, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 1, students.calls)

	summary, fromCache, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, 1, students.calls)
	assert.Equal(t, 42, summary.TotalStudents)
}

func TestDashboardServiceInvalidate(t *testing.T) {
	svc, students, cacheRepo := newDashboardFixture()

	_, _, err := svc.Summary(context.Background())
	require.NoError(t, err)
	svc.Invalidate(context.Background())
	assert.NotEmpty(t, cacheRepo.deleted)

	_, fromCache, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 2, students.calls)
}

func TestDashboardServiceSummaryCacheDisabled(t *testing.T) {
	students := &mockDashStudents{total: 5, active: 5}
	fees := &mockDashFees{}
	svc := NewDashboardService(students, fees, &mockDashAttendance{}, &mockDashBeltTests{}, nil, time.Minute, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC) }

	summary, fromCache, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 5, summary.TotalStudents)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	var svc *CacheService
	hit, err := svc.Get(context.Background(), "k", nil)
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, svc.Set(context.Background(), "k", "v", time.Minute))
	require.NoError(t, svc.Invalidate(context.Background(), "k"))
}
