package service

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mta-academy/academy-api/internal/ledger"
	"github.com/mta-academy/academy-api/internal/models"
	appErrors "github.com/mta-academy/academy-api/pkg/errors"
)

type beltTestRepository interface {
	List(ctx context.Context, filter models.BeltTestFilter) ([]models.BeltTestDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.BeltTest, error)
	Create(ctx context.Context, test *models.BeltTest) error
	Update(ctx context.Context, test *models.BeltTest) error
}

type beltTestStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdateBeltLevel(ctx context.Context, id string, level models.BeltLevel) error
}

// ScheduleBeltTestRequest books a promotion test for a student.
type ScheduleBeltTestRequest struct {
	StudentID  string           `json:"student_id" validate:"required"`
	TargetBelt models.BeltLevel `json:"target_belt"`
	TestDate   time.Time        `json:"test_date" validate:"required"`
	TestFee    decimal.Decimal  `json:"test_fee"`
	Notes      *string          `json:"notes"`
}

// RecordBeltTestResultRequest records the outcome of a test.
type RecordBeltTestResultRequest struct {
	Result              models.TestResult `json:"result" validate:"required"`
	CertificationNumber *string           `json:"certification_number"`
	Notes               *string           `json:"notes"`
}

// PromoteStudentRequest moves a student to a new rank, usually after a
// passed test.
type PromoteStudentRequest struct {
	TargetBelt models.BeltLevel `json:"target_belt"`
}

// UpdateBeltTestRequest reschedules or amends a pending test.
type UpdateBeltTestRequest struct {
	TargetBelt models.BeltLevel `json:"target_belt" validate:"required"`
	TestDate   time.Time        `json:"test_date" validate:"required"`
	TestFee    decimal.Decimal  `json:"test_fee"`
	Notes      *string          `json:"notes"`
}

var certNumberAllowed = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// BeltTestService handles belt test scheduling, results and promotion.
type BeltTestService struct {
	repo      beltTestRepository
	students  beltTestStudentStore
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewBeltTestService constructs the belt test service.
func NewBeltTestService(repo beltTestRepository, students beltTestStudentStore, validate *validator.Validate, logger *zap.Logger) *BeltTestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BeltTestService{
		repo:      repo,
		students:  students,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns belt tests partitioned into upcoming and past sets. Upcoming
// means dated today or later with a pending result.
func (s *BeltTestService) List(ctx context.Context, filter models.BeltTestFilter) (upcoming, past []models.BeltTestDetail, pagination *models.Pagination, err error) {
	tests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list belt tests")
	}
	today := s.now()
	upcoming = make([]models.BeltTestDetail, 0)
	past = make([]models.BeltTestDetail, 0)
	for _, test := range tests {
		if ledger.IsUpcoming(test.BeltTest, today) {
			upcoming = append(upcoming, test)
		} else {
			past = append(past, test)
		}
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	pagination = &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return upcoming, past, pagination, nil
}

// Get returns a single belt test.
func (s *BeltTestService) Get(ctx context.Context, id string) (*models.BeltTest, error) {
	test, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "belt test not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load belt test")
	}
	return test, nil
}

// Schedule books a new test. The student's current belt is snapshotted on
// the row and the target defaults to the next rank in the ladder.
func (s *BeltTestService) Schedule(ctx context.Context, req ScheduleBeltTestRequest) (*models.BeltTest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid belt test payload")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is inactive")
	}

	target := req.TargetBelt
	if target == "" {
		next, ok := student.BeltLevel.Next()
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student already holds the highest rank")
		}
		target = next
	}
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown target belt")
	}
	if req.TestFee.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "test fee cannot be negative")
	}

	test := &models.BeltTest{
		StudentID:   req.StudentID,
		CurrentBelt: student.BeltLevel,
		TargetBelt:  target,
		TestDate:    req.TestDate,
		TestFee:     req.TestFee,
		Result:      models.TestResultPending,
		Notes:       req.Notes,
	}
	if err := s.repo.Create(ctx, test); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule belt test")
	}
	return test, nil
}

// Update amends a test that has not yet been decided.
func (s *BeltTestService) Update(ctx context.Context, id string, req UpdateBeltTestRequest) (*models.BeltTest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid belt test payload")
	}
	if !req.TargetBelt.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown target belt")
	}
	if req.TestFee.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "test fee cannot be negative")
	}
	test, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if test.Result != models.TestResultPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "belt test result already recorded")
	}
	test.TargetBelt = req.TargetBelt
	test.TestDate = req.TestDate
	test.TestFee = req.TestFee
	test.Notes = req.Notes
	if err := s.repo.Update(ctx, test); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update belt test")
	}
	return test, nil
}

// RecordResult decides a pending test. The student's belt is left untouched;
// promotion is a separate operation triggered by the caller.
func (s *BeltTestService) RecordResult(ctx context.Context, id string, req RecordBeltTestResultRequest) (*models.BeltTest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid belt test payload")
	}
	if req.Result != models.TestResultPassed && req.Result != models.TestResultFailed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "result must be passed or failed")
	}
	certNumber, err := sanitizeCertNumber(req.CertificationNumber)
	if err != nil {
		return nil, err
	}
	test, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if test.Result != models.TestResultPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "belt test result already recorded")
	}

	test.Result = req.Result
	test.CertificationNumber = certNumber
	if req.Notes != nil {
		test.Notes = req.Notes
	}
	if err := s.repo.Update(ctx, test); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record belt test result")
	}
	return test, nil
}

// Promote moves a student up the ladder. The target defaults to the next
// rank when the request leaves it empty.
func (s *BeltTestService) Promote(ctx context.Context, studentID string, req PromoteStudentRequest) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is inactive")
	}

	target := req.TargetBelt
	if target == "" {
		next, ok := student.BeltLevel.Next()
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student already holds the highest rank")
		}
		target = next
	}
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown target belt")
	}

	if err := s.students.UpdateBeltLevel(ctx, studentID, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote student")
	}
	s.logger.Info("student promoted",
		zap.String("student_id", studentID),
		zap.String("belt_level", string(target)))
	student.BeltLevel = target
	return student, nil
}

func sanitizeCertNumber(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}
	if len(trimmed) > 20 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "certification number too long")
	}
	if !certNumberAllowed.MatchString(trimmed) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "certification number may only contain letters, digits and hyphens")
	}
	return &trimmed, nil
}
