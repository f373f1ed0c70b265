package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BeltLevel is a rank code in the progression ladder.
type BeltLevel string

const (
	BeltWhite        BeltLevel = "white"
	BeltYellowStripe BeltLevel = "yellow_stripe"
	BeltYellow       BeltLevel = "yellow"
	BeltGreenStripe  BeltLevel = "green_stripe"
	BeltGreen        BeltLevel = "green"
	BeltBlueStripe   BeltLevel = "blue_stripe"
	BeltBlue         BeltLevel = "blue"
	BeltRedStripe    BeltLevel = "red_stripe"
	BeltRed          BeltLevel = "red"
	BeltRedBlack     BeltLevel = "red_black"
	BeltBlack1stDan  BeltLevel = "black_1st_dan"
	BeltBlack2ndDan  BeltLevel = "black_2nd_dan"
	BeltBlack3rdDan  BeltLevel = "black_3rd_dan"
	BeltBlack4thDan  BeltLevel = "black_4th_dan"
	BeltBlack5thDan  BeltLevel = "black_5th_dan"
)

// beltOrder defines progression from lowest to highest rank.
var beltOrder = []BeltLevel{
	BeltWhite,
	BeltYellowStripe,
	BeltYellow,
	BeltGreenStripe,
	BeltGreen,
	BeltBlueStripe,
	BeltBlue,
	BeltRedStripe,
	BeltRed,
	BeltRedBlack,
	BeltBlack1stDan,
	BeltBlack2ndDan,
	BeltBlack3rdDan,
	BeltBlack4thDan,
	BeltBlack5thDan,
}

var beltLabels = map[BeltLevel]string{
	BeltWhite:        "White Belt",
	BeltYellowStripe: "Yellow Stripe",
	BeltYellow:       "Yellow Belt",
	BeltGreenStripe:  "Green Stripe",
	BeltGreen:        "Green Belt",
	BeltBlueStripe:   "Blue Stripe",
	BeltBlue:         "Blue Belt",
	BeltRedStripe:    "Red Stripe",
	BeltRed:          "Red Belt",
	BeltRedBlack:     "Red-Black Belt",
	BeltBlack1stDan:  "Black 1st Dan",
	BeltBlack2ndDan:  "Black 2nd Dan",
	BeltBlack3rdDan:  "Black 3rd Dan",
	BeltBlack4thDan:  "Black 4th Dan",
	BeltBlack5thDan:  "Black 5th Dan",
}

// Valid reports whether the code is a known rank.
func (b BeltLevel) Valid() bool {
	_, ok := beltLabels[b]
	return ok
}

// Label returns the canonical display name. Unknown codes fall back to a
// title-case transform so future rank codes still render.
func (b BeltLevel) Label() string {
	if label, ok := beltLabels[b]; ok {
		return label
	}
	words := strings.Split(strings.ReplaceAll(string(b), "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Next returns the following rank in the ladder. The highest rank and any
// unknown code return false.
func (b BeltLevel) Next() (BeltLevel, bool) {
	for i, level := range beltOrder {
		if level == b {
			if i+1 < len(beltOrder) {
				return beltOrder[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// AllBeltLevels returns the ladder from lowest to highest.
func AllBeltLevels() []BeltLevel {
	out := make([]BeltLevel, len(beltOrder))
	copy(out, beltOrder)
	return out
}

// TestResult is the outcome state of a scheduled belt test.
type TestResult string

const (
	TestResultPassed  TestResult = "passed"
	TestResultFailed  TestResult = "failed"
	TestResultPending TestResult = "pending"
)

// Valid returns true when the result is a supported value.
func (r TestResult) Valid() bool {
	switch r {
	case TestResultPassed, TestResultFailed, TestResultPending:
		return true
	default:
		return false
	}
}

// BeltTest represents a scheduled or completed promotion test.
type BeltTest struct {
	ID                  string          `db:"id" json:"id"`
	StudentID           string          `db:"student_id" json:"student_id"`
	CurrentBelt         BeltLevel       `db:"current_belt" json:"current_belt"`
	TargetBelt          BeltLevel       `db:"target_belt" json:"target_belt"`
	TestDate            time.Time       `db:"test_date" json:"test_date"`
	TestFee             decimal.Decimal `db:"test_fee" json:"test_fee"`
	Result              TestResult      `db:"result" json:"result"`
	CertificationNumber *string         `db:"certification_number" json:"certification_number,omitempty"`
	Notes               *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// BeltTestDetail joins the test with the student's name for listings.
type BeltTestDetail struct {
	BeltTest
	StudentName string `db:"student_name" json:"student_name"`
}

// BeltTestFilter scopes belt test listings.
type BeltTestFilter struct {
	StudentID string
	Result    *TestResult
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
