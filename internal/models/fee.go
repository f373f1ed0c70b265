package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks the state of a monthly fee row.
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
)

// Valid returns true when the status is a supported value.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusUnpaid, PaymentStatusPartial:
		return true
	default:
		return false
	}
}

// MonthlyFee is one student's obligation for a single calendar month. The
// obligated amount is snapshotted at row creation so later plan changes do
// not rewrite history.
type MonthlyFee struct {
	ID                string          `db:"id" json:"id"`
	StudentID         string          `db:"student_id" json:"student_id"`
	Month             int             `db:"month" json:"month"`
	Year              int             `db:"year" json:"year"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Status            PaymentStatus   `db:"status" json:"status"`
	PartialAmountPaid decimal.Decimal `db:"partial_amount_paid" json:"partial_amount_paid"`
	PaidDate          *time.Time      `db:"paid_date" json:"paid_date,omitempty"`
	Notes             *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// MonthlyFeeDetail joins fee rows with roster fields used by listings and
// exports.
type MonthlyFeeDetail struct {
	MonthlyFee
	StudentName        string       `db:"student_name" json:"student_name"`
	RegistrationNumber string       `db:"registration_number" json:"registration_number"`
	FeeStructure       FeeStructure `db:"fee_structure" json:"fee_structure"`
}

// MonthlyFeeFilter scopes fee listings.
type MonthlyFeeFilter struct {
	StudentID string
	Month     int
	Year      int
	Status    *PaymentStatus
	Page      int
	PageSize  int
}

// MonthlyFeePatch carries the ledger-computed mutation for a status change.
type MonthlyFeePatch struct {
	Status            PaymentStatus
	PartialAmountPaid decimal.Decimal
	PaidDate          *time.Time
}

// FeeSummary backs the fees page cards for one month.
type FeeSummary struct {
	Month        int             `json:"month"`
	Year         int             `json:"year"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Collected    decimal.Decimal `json:"collected"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	PaidCount    int             `json:"paid_count"`
	UnpaidCount  int             `json:"unpaid_count"`
	PartialCount int             `json:"partial_count"`
}
