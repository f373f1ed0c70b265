// Package ledger holds the pure fee arithmetic shared by the API surface,
// the invoice composer and the export builders. Functions here never touch
// the database, the clock or the logger; callers supply every input.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mta-academy/academy-api/internal/models"
	appErrors "github.com/mta-academy/academy-api/pkg/errors"
)

var (
	amountTwoClasses  = decimal.NewFromInt(700)
	amountFourClasses = decimal.NewFromInt(1000)
)

// ObligatedAmount maps a fee plan to its monthly amount.
func ObligatedAmount(structure models.FeeStructure) (decimal.Decimal, error) {
	switch structure {
	case models.FeeStructureTwoClasses:
		return amountTwoClasses, nil
	case models.FeeStructureFourClasses:
		return amountFourClasses, nil
	default:
		return decimal.Zero, appErrors.Wrap(
			fmt.Errorf("fee structure %q", structure),
			appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status,
			"unknown fee structure tier",
		)
	}
}

// FeeView is the resolved state of one student-month period. A period with
// no persisted row resolves to a virtual unpaid view.
type FeeView struct {
	FeeID     string          `json:"fee_id,omitempty"`
	StudentID string          `json:"student_id"`
	Month     int             `json:"month"`
	Year      int             `json:"year"`
	Status    models.PaymentStatus `json:"status"`
	Obligated decimal.Decimal `json:"obligated"`
	Paid      decimal.Decimal `json:"paid"`
	Balance   decimal.Decimal `json:"balance"`
	PaidDate  *time.Time      `json:"paid_date,omitempty"`
	Virtual   bool            `json:"virtual"`
}

// ResolvePeriod produces the FeeView for a student and month. When row is
// nil the period is rendered as a virtual unpaid obligation priced off the
// student's current plan; otherwise the snapshotted row amount wins.
func ResolvePeriod(student models.Student, month, year int, row *models.MonthlyFee) (FeeView, error) {
	if month < 1 || month > 12 {
		return FeeView{}, appErrors.Clone(appErrors.ErrValidation, "month out of range")
	}

	view := FeeView{
		StudentID: student.ID,
		Month:     month,
		Year:      year,
	}

	if row == nil {
		obligated, err := ObligatedAmount(student.FeeStructure)
		if err != nil {
			return FeeView{}, err
		}
		view.Status = models.PaymentStatusUnpaid
		view.Obligated = obligated
		view.Paid = decimal.Zero
		view.Balance = obligated
		view.Virtual = true
		return view, nil
	}

	obligated := row.Amount
	if obligated.IsZero() {
		fallback, err := ObligatedAmount(student.FeeStructure)
		if err != nil {
			return FeeView{}, err
		}
		obligated = fallback
	}

	view.FeeID = row.ID
	view.Status = row.Status
	view.Obligated = obligated
	view.PaidDate = row.PaidDate

	switch row.Status {
	case models.PaymentStatusPaid:
		view.Paid = obligated
	case models.PaymentStatusPartial:
		view.Paid = row.PartialAmountPaid
	case models.PaymentStatusUnpaid:
		view.Paid = decimal.Zero
	default:
		return FeeView{}, appErrors.Clone(appErrors.ErrValidation, "unknown payment status")
	}

	view.Balance = obligated.Sub(view.Paid)
	if view.Balance.IsNegative() {
		view.Balance = decimal.Zero
	}
	return view, nil
}

// ApplyStatusChange computes the persisted patch for a payment status
// transition. Any state may transition to any state; the patch always fully
// determines partial amount and paid date.
func ApplyStatusChange(row models.MonthlyFee, newStatus models.PaymentStatus, partialAmount *decimal.Decimal, today time.Time) (models.MonthlyFeePatch, error) {
	switch newStatus {
	case models.PaymentStatusPaid:
		paid := today
		return models.MonthlyFeePatch{
			Status:            models.PaymentStatusPaid,
			PartialAmountPaid: decimal.Zero,
			PaidDate:          &paid,
		}, nil
	case models.PaymentStatusPartial:
		if partialAmount == nil {
			return models.MonthlyFeePatch{}, appErrors.Clone(appErrors.ErrValidation, "partial amount is required")
		}
		if partialAmount.IsNegative() || partialAmount.GreaterThanOrEqual(row.Amount) {
			return models.MonthlyFeePatch{}, appErrors.Clone(appErrors.ErrValidation, "partial amount must be at least 0 and below the monthly fee")
		}
		return models.MonthlyFeePatch{
			Status:            models.PaymentStatusPartial,
			PartialAmountPaid: *partialAmount,
			PaidDate:          nil,
		}, nil
	case models.PaymentStatusUnpaid:
		return models.MonthlyFeePatch{
			Status:            models.PaymentStatusUnpaid,
			PartialAmountPaid: decimal.Zero,
			PaidDate:          nil,
		}, nil
	default:
		return models.MonthlyFeePatch{}, appErrors.Clone(appErrors.ErrValidation, "unknown payment status")
	}
}

// Aggregate sums a set of resolved periods. Summation is order independent
// so callers may aggregate partitions and combine the results.
func Aggregate(views []FeeView) models.FeeTotals {
	totals := models.FeeTotals{
		Obligated: decimal.Zero,
		Paid:      decimal.Zero,
		Balance:   decimal.Zero,
	}
	for _, v := range views {
		totals.Obligated = totals.Obligated.Add(v.Obligated)
		totals.Paid = totals.Paid.Add(v.Paid)
		totals.Balance = totals.Balance.Add(v.Balance)
	}
	return totals
}

// OverallStatus labels a set of periods: paid when nothing is owed, unpaid
// when nothing was collected, partial otherwise.
func OverallStatus(totals models.FeeTotals) models.PaymentStatus {
	if totals.Balance.IsZero() {
		return models.PaymentStatusPaid
	}
	if totals.Paid.IsZero() {
		return models.PaymentStatusUnpaid
	}
	return models.PaymentStatusPartial
}
