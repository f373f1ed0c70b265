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

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.Attendance) error
	BulkInsert(ctx context.Context, records []models.Attendance) (int, []models.AttendanceBulkConflict, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	HistoryByStudent(ctx context.Context, studentID string) ([]models.Attendance, error)
}

type attendanceStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListActive(ctx context.Context) ([]models.Student, error)
}

// MarkAttendanceRequest records a single student's status for a class day.
type MarkAttendanceRequest struct {
	StudentID      string                  `json:"student_id" validate:"required"`
	Date           time.Time               `json:"date" validate:"required"`
	Status         models.AttendanceStatus `json:"status" validate:"required"`
	InstructorName string                  `json:"instructor_name" validate:"required"`
	Remarks        *string                 `json:"remarks"`
}

// BulkMarkRequest marks every active student present for one class day.
type BulkMarkRequest struct {
	Date           time.Time `json:"date" validate:"required"`
	InstructorName string    `json:"instructor_name" validate:"required"`
}

// AttendanceService handles class-day attendance use-cases.
type AttendanceService struct {
	repo      attendanceRepository
	students  attendanceStudentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, students attendanceStudentReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, students: students, validator: validate, logger: logger}
}

// Mark writes one student's attendance for a date. Marking the same day
// again overwrites the earlier status.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
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

	record := &models.Attendance{
		StudentID:      req.StudentID,
		Date:           dateOnly(req.Date),
		Status:         req.Status,
		InstructorName: req.InstructorName,
		Remarks:        req.Remarks,
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	return record, nil
}

// MarkAllPresent inserts a present mark for every active student on the
// given date. Students already marked for that date are left untouched and
// reported as conflicts so earlier absences are never overwritten.
func (s *AttendanceService) MarkAllPresent(ctx context.Context, req BulkMarkRequest) (*models.AttendanceBulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	students, err := s.students.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active students")
	}
	if len(students) == 0 {
		return &models.AttendanceBulkResult{}, nil
	}

	date := dateOnly(req.Date)
	records := make([]models.Attendance, 0, len(students))
	for _, student := range students {
		records = append(records, models.Attendance{
			StudentID:      student.ID,
			Date:           date,
			Status:         models.AttendanceStatusPresent,
			InstructorName: req.InstructorName,
		})
	}
	marked, conflicts, err := s.repo.BulkInsert(ctx, records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk mark attendance")
	}
	s.logger.Info("bulk attendance marked",
		zap.Time("date", date),
		zap.Int("marked", marked),
		zap.Int("conflicts", len(conflicts)))
	return &models.AttendanceBulkResult{Marked: marked, Conflicts: conflicts}, nil
}

// List returns attendance records and pagination metadata.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
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
	return records, pagination, nil
}

// History returns one student's records plus a status summary.
func (s *AttendanceService) History(ctx context.Context, studentID string) ([]models.Attendance, models.AttendanceSummary, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, models.AttendanceSummary{}, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, models.AttendanceSummary{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	records, err := s.repo.HistoryByStudent(ctx, studentID)
	if err != nil {
		return nil, models.AttendanceSummary{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	return records, ledger.SummarizeAttendance(records), nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
