package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeStructure identifies the monthly fee plan a student is enrolled on.
type FeeStructure string

const (
	FeeStructureTwoClasses  FeeStructure = "2_classes_700"
	FeeStructureFourClasses FeeStructure = "4_classes_1000"
)

// Valid returns true when the fee structure is a supported tier.
func (f FeeStructure) Valid() bool {
	switch f {
	case FeeStructureTwoClasses, FeeStructureFourClasses:
		return true
	default:
		return false
	}
}

// Label returns the display name for the plan.
func (f FeeStructure) Label() string {
	switch f {
	case FeeStructureTwoClasses:
		return "2 Classes / Week"
	case FeeStructureFourClasses:
		return "4 Classes / Week"
	default:
		return string(f)
	}
}

// Student represents a learner registered at the academy.
type Student struct {
	ID                 string       `db:"id" json:"id"`
	RegistrationNumber string       `db:"registration_number" json:"registration_number"`
	FullName           string       `db:"full_name" json:"full_name"`
	DateOfBirth        *time.Time   `db:"date_of_birth" json:"date_of_birth,omitempty"`
	GuardianName       string       `db:"guardian_name" json:"guardian_name"`
	Phone              string       `db:"phone" json:"phone"`
	Address            string       `db:"address" json:"address"`
	JoinDate           time.Time    `db:"join_date" json:"join_date"`
	FeeStructure       FeeStructure `db:"fee_structure" json:"fee_structure"`
	BeltLevel          BeltLevel    `db:"belt_level" json:"belt_level"`
	Active             bool         `db:"active" json:"active"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Active    *bool
	BeltLevel *BeltLevel
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentProfile aggregates roster, attendance, fee and testing context for
// the profile view.
type StudentProfile struct {
	Student
	BeltLabel  string            `json:"belt_label"`
	Attendance AttendanceSummary `json:"attendance"`
	FeeTotals  FeeTotals         `json:"fee_totals"`
	BeltTests  []BeltTest        `json:"belt_tests"`
}

// FeeTotals summarises a set of fee periods.
type FeeTotals struct {
	Obligated decimal.Decimal `json:"obligated"`
	Paid      decimal.Decimal `json:"paid"`
	Balance   decimal.Decimal `json:"balance"`
}
