package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mta-academy/academy-api/internal/ledger"
	"github.com/mta-academy/academy-api/internal/models"
	appErrors "github.com/mta-academy/academy-api/pkg/errors"
)

type feeRepository interface {
	List(ctx context.Context, filter models.MonthlyFeeFilter) ([]models.MonthlyFeeDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.MonthlyFee, error)
	FindForPeriod(ctx context.Context, month, year int) (map[string]models.MonthlyFee, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.MonthlyFee, error)
	Create(ctx context.Context, fee *models.MonthlyFee) (bool, error)
	ApplyPatch(ctx context.Context, id string, patch models.MonthlyFeePatch) error
	UpdateNotes(ctx context.Context, id string, notes *string) error
}

type feeStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListActive(ctx context.Context) ([]models.Student, error)
}

// UpdateFeeStatusRequest carries a payment status transition.
type UpdateFeeStatusRequest struct {
	Status        models.PaymentStatus `json:"status" validate:"required"`
	PartialAmount *decimal.Decimal     `json:"partial_amount"`
	Notes         *string              `json:"notes"`
}

// FeeService drives the monthly fee ledger.
type FeeService struct {
	repo      feeRepository
	students  feeStudentReader
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewFeeService constructs the fee service.
func NewFeeService(repo feeRepository, students feeStudentReader, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{
		repo:      repo,
		students:  students,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListForMonth returns the fee rows for one month, materialising missing
// rows for active students first so every enrolled student appears exactly
// once. The obligated amount is snapshotted at creation time.
func (s *FeeService) ListForMonth(ctx context.Context, filter models.MonthlyFeeFilter) ([]models.MonthlyFeeDetail, *models.Pagination, error) {
	if filter.Month < 1 || filter.Month > 12 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "month out of range")
	}
	if filter.Year < 2000 || filter.Year > 2100 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "year out of range")
	}

	if err := s.backfillMonth(ctx, filter.Month, filter.Year); err != nil {
		return nil, nil, err
	}

	fees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list monthly fees")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return fees, pagination, nil
}

func (s *FeeService) backfillMonth(ctx context.Context, month, year int) error {
	existing, err := s.repo.FindForPeriod(ctx, month, year)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect fee period")
	}
	students, err := s.students.ListActive(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active students")
	}
	for _, student := range students {
		if _, ok := existing[student.ID]; ok {
			continue
		}
		amount, err := ledger.ObligatedAmount(student.FeeStructure)
		if err != nil {
			s.logger.Warn("skipping fee backfill for student",
				zap.String("student_id", student.ID),
				zap.String("fee_structure", string(student.FeeStructure)),
				zap.Error(err))
			continue
		}
		fee := &models.MonthlyFee{
			StudentID:         student.ID,
			Month:             month,
			Year:              year,
			Amount:            amount,
			Status:            models.PaymentStatusUnpaid,
			PartialAmountPaid: decimal.Zero,
		}
		// A concurrent backfill may have inserted the row already; the
		// insert is a no-op then and the stored row wins.
		if _, err := s.repo.Create(ctx, fee); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to backfill fee row")
		}
	}
	return nil
}

// Get returns one fee row.
func (s *FeeService) Get(ctx context.Context, id string) (*models.MonthlyFee, error) {
	fee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee record")
	}
	return fee, nil
}

// UpdateStatus applies a payment status transition. Any state may move to
// any state; the patch fully determines partial amount and paid date.
func (s *FeeService) UpdateStatus(ctx context.Context, id string, req UpdateFeeStatusRequest) (*models.MonthlyFee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment status")
	}
	fee, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch, err := ledger.ApplyStatusChange(*fee, req.Status, req.PartialAmount, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.ApplyPatch(ctx, id, patch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fee status")
	}
	if req.Notes != nil {
		if err := s.repo.UpdateNotes(ctx, id, req.Notes); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fee notes")
		}
		fee.Notes = req.Notes
	}

	fee.Status = patch.Status
	fee.PartialAmountPaid = patch.PartialAmountPaid
	fee.PaidDate = patch.PaidDate
	return fee, nil
}

// StudentLedger resolves a student's full fee history through the ledger
// and returns per-period views with running totals.
func (s *FeeService) StudentLedger(ctx context.Context, studentID string) ([]ledger.FeeView, models.FeeTotals, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.FeeTotals{}, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, models.FeeTotals{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	fees, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, models.FeeTotals{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee history")
	}
	views := make([]ledger.FeeView, 0, len(fees))
	for i := range fees {
		view, err := ledger.ResolvePeriod(*student, fees[i].Month, fees[i].Year, &fees[i])
		if err != nil {
			return nil, models.FeeTotals{}, err
		}
		views = append(views, view)
	}
	return views, ledger.Aggregate(views), nil
}

// MonthSummary computes the collection stats for one month after backfill.
func (s *FeeService) MonthSummary(ctx context.Context, month, year int) (*models.FeeSummary, error) {
	if month < 1 || month > 12 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month out of range")
	}
	if err := s.backfillMonth(ctx, month, year); err != nil {
		return nil, err
	}

	fees, _, err := s.repo.List(ctx, models.MonthlyFeeFilter{Month: month, Year: year, PageSize: 200})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list monthly fees")
	}

	summary := &models.FeeSummary{
		Month:       month,
		Year:        year,
		TotalAmount: decimal.Zero,
		Collected:   decimal.Zero,
		Outstanding: decimal.Zero,
	}
	for _, fee := range fees {
		student := models.Student{ID: fee.StudentID, FeeStructure: fee.FeeStructure}
		row := fee.MonthlyFee
		view, err := ledger.ResolvePeriod(student, fee.Month, fee.Year, &row)
		if err != nil {
			return nil, err
		}
		summary.TotalAmount = summary.TotalAmount.Add(view.Obligated)
		summary.Collected = summary.Collected.Add(view.Paid)
		summary.Outstanding = summary.Outstanding.Add(view.Balance)
		switch fee.Status {
		case models.PaymentStatusPaid:
			summary.PaidCount++
		case models.PaymentStatusPartial:
			summary.PartialCount++
		default:
			summary.UnpaidCount++
		}
	}
	return summary, nil
}
