package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mta-academy/academy-api/internal/models"
	appErrors "github.com/mta-academy/academy-api/pkg/errors"
)

type dashboardStudentCounter interface {
	Counts(ctx context.Context) (total int, active int, err error)
}

type dashboardFeeCounter interface {
	CountPendingForMonth(ctx context.Context, month, year int) (int, error)
	List(ctx context.Context, filter models.MonthlyFeeFilter) ([]models.MonthlyFeeDetail, int, error)
}

type dashboardAttendanceCounter interface {
	CountPresentOn(ctx context.Context, date time.Time) (int, error)
}

type dashboardBeltTestCounter interface {
	CountPendingBetween(ctx context.Context, from, to time.Time) (int, error)
}

// DashboardSummary backs the landing page cards.
type DashboardSummary struct {
	TotalStudents      int             `json:"total_students"`
	ActiveStudents     int             `json:"active_students"`
	PendingFees        int             `json:"pending_fees"`
	CollectedThisMonth decimal.Decimal `json:"collected_this_month"`
	PresentToday       int             `json:"present_today"`
	UpcomingBeltTests  int             `json:"upcoming_belt_tests"`
	Month              int             `json:"month"`
	Year               int             `json:"year"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

// DashboardService composes the landing page summary with a short-lived
// cache in front of the counting queries.
type DashboardService struct {
	students   dashboardStudentCounter
	fees       dashboardFeeCounter
	attendance dashboardAttendanceCounter
	beltTests  dashboardBeltTestCounter
	cache      *CacheService
	logger     *zap.Logger
	now        func() time.Time
	cacheTTL   time.Duration
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(students dashboardStudentCounter, fees dashboardFeeCounter, attendance dashboardAttendanceCounter, beltTests dashboardBeltTestCounter, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		students:   students,
		fees:       fees,
		attendance: attendance,
		beltTests:  beltTests,
		cache:      cache,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		cacheTTL:   cacheTTL,
	}
}

const dashboardCacheKey = "dashboard:summary"

// Summary returns the dashboard payload and whether it was served from
// cache.
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, bool, error) {
	var cached DashboardSummary
	if hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	total, active, err := s.students.Counts(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}

	pendingFees, err := s.fees.CountPendingForMonth(ctx, int(now.Month()), now.Year())
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending fees")
	}

	collected, err := s.collectedThisMonth(ctx, int(now.Month()), now.Year())
	if err != nil {
		return nil, false, err
	}

	presentToday, err := s.attendance.CountPresentOn(ctx, today)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
	}

	upcomingTests, err := s.beltTests.CountPendingBetween(ctx, today, today.AddDate(0, 0, 30))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count belt tests")
	}

	summary := &DashboardSummary{
		TotalStudents:      total,
		ActiveStudents:     active,
		PendingFees:        pendingFees,
		CollectedThisMonth: collected,
		PresentToday:       presentToday,
		UpcomingBeltTests:  upcomingTests,
		Month:              int(now.Month()),
		Year:               now.Year(),
		GeneratedAt:        now,
	}
	if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return summary, false, nil
}

// Invalidate drops the cached summary, used after fee or roster mutations.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidate failed", zap.Error(err))
	}
}

func (s *DashboardService) collectedThisMonth(ctx context.Context, month, year int) (decimal.Decimal, error) {
	collected := decimal.Zero
	filter := models.MonthlyFeeFilter{Month: month, Year: year, PageSize: 200}
	for page := 1; ; page++ {
		filter.Page = page
		fees, total, err := s.fees.List(ctx, filter)
		if err != nil {
			return decimal.Zero, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list monthly fees")
		}
		count := 0
		for _, fee := range fees {
			count++
			switch fee.Status {
			case models.PaymentStatusPaid:
				collected = collected.Add(fee.Amount)
			case models.PaymentStatusPartial:
				collected = collected.Add(fee.PartialAmountPaid)
			}
		}
		if len(fees) == 0 || (page-1)*filter.PageSize+count >= total {
			break
		}
	}
	return collected, nil
}
