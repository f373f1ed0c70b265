package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mta-academy/academy-api/internal/ledger"
	"github.com/mta-academy/academy-api/internal/models"
	appErrors "github.com/mta-academy/academy-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByRegistrationNumber(ctx context.Context, regNo string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

type studentAttendanceReader interface {
	HistoryByStudent(ctx context.Context, studentID string) ([]models.Attendance, error)
}

type studentFeeReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.MonthlyFee, error)
}

type studentBeltTestReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.BeltTest, error)
}

// CreateStudentRequest holds payload for registering students.
type CreateStudentRequest struct {
	RegistrationNumber string              `json:"registration_number" validate:"required"`
	FullName           string              `json:"full_name" validate:"required"`
	DateOfBirth        *time.Time          `json:"date_of_birth"`
	GuardianName       string              `json:"guardian_name"`
	Phone              string              `json:"phone"`
	Address            string              `json:"address"`
	JoinDate           time.Time           `json:"join_date" validate:"required"`
	FeeStructure       models.FeeStructure `json:"fee_structure" validate:"required"`
	BeltLevel          models.BeltLevel    `json:"belt_level"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	RegistrationNumber string              `json:"registration_number" validate:"required"`
	FullName           string              `json:"full_name" validate:"required"`
	DateOfBirth        *time.Time          `json:"date_of_birth"`
	GuardianName       string              `json:"guardian_name"`
	Phone              string              `json:"phone"`
	Address            string              `json:"address"`
	JoinDate           time.Time           `json:"join_date" validate:"required"`
	FeeStructure       models.FeeStructure `json:"fee_structure" validate:"required"`
	BeltLevel          models.BeltLevel    `json:"belt_level" validate:"required"`
	Active             bool                `json:"active"`
}

// StudentService handles roster use-cases.
type StudentService struct {
	repo       studentRepository
	attendance studentAttendanceReader
	fees       studentFeeReader
	beltTests  studentBeltTestReader
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, attendance studentAttendanceReader, fees studentFeeReader, beltTests studentBeltTestReader, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:       repo,
		attendance: attendance,
		fees:       fees,
		beltTests:  beltTests,
		validator:  validate,
		logger:     logger,
	}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Profile aggregates attendance, fee and belt test context for one student.
func (s *StudentService) Profile(ctx context.Context, id string) (*models.StudentProfile, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	history, err := s.attendance.HistoryByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}

	fees, err := s.fees.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee history")
	}
	views := make([]ledger.FeeView, 0, len(fees))
	for i := range fees {
		view, err := ledger.ResolvePeriod(*student, fees[i].Month, fees[i].Year, &fees[i])
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	tests, err := s.beltTests.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load belt tests")
	}

	return &models.StudentProfile{
		Student:    *student,
		BeltLabel:  student.BeltLevel.Label(),
		Attendance: ledger.SummarizeAttendance(history),
		FeeTotals:  ledger.Aggregate(views),
		BeltTests:  tests,
	}, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if !req.FeeStructure.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown fee structure")
	}
	belt := req.BeltLevel
	if belt == "" {
		belt = models.BeltWhite
	}
	if !belt.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown belt level")
	}
	exists, err := s.repo.ExistsByRegistrationNumber(ctx, req.RegistrationNumber, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate registration number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "registration number already used")
	}
	student := &models.Student{
		RegistrationNumber: req.RegistrationNumber,
		FullName:           req.FullName,
		DateOfBirth:        req.DateOfBirth,
		GuardianName:       req.GuardianName,
		Phone:              req.Phone,
		Address:            req.Address,
		JoinDate:           req.JoinDate,
		FeeStructure:       req.FeeStructure,
		BeltLevel:          belt,
		Active:             true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies an existing student record. A fee structure change only
// affects months billed after the change; existing rows keep their amount.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if !req.FeeStructure.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown fee structure")
	}
	if !req.BeltLevel.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown belt level")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByRegistrationNumber(ctx, req.RegistrationNumber, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate registration number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "registration number already used")
	}
	student.RegistrationNumber = req.RegistrationNumber
	student.FullName = req.FullName
	student.DateOfBirth = req.DateOfBirth
	student.GuardianName = req.GuardianName
	student.Phone = req.Phone
	student.Address = req.Address
	student.JoinDate = req.JoinDate
	student.FeeStructure = req.FeeStructure
	student.BeltLevel = req.BeltLevel
	student.Active = req.Active
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Deactivate marks a student inactive. History is preserved; the student
// simply stops accruing new monthly fees.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}
