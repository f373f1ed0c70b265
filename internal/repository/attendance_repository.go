package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mta-academy/academy-api/internal/models"
)

// AttendanceRepository manages persistence for attendance rows.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = "a.id, a.student_id, a.date, a.status, a.instructor_name, a.remarks, a.created_at, a.updated_at"

// Upsert writes the attendance row for a student and date atomically. A
// second mark for the same day overwrites the earlier status.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO attendance (id, student_id, date, status, instructor_name, remarks, created_at, updated_at)
        VALUES (:id, :student_id, :date, :status, :instructor_name, :remarks, :created_at, :updated_at)
        ON CONFLICT (student_id, date) DO UPDATE
        SET status = EXCLUDED.status, instructor_name = EXCLUDED.instructor_name, remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// BulkInsert writes many rows without overwriting existing marks. Rows that
// already exist are reported as conflicts; the batch continues past them.
func (r *AttendanceRepository) BulkInsert(ctx context.Context, records []models.Attendance) (int, []models.AttendanceBulkConflict, error) {
	const query = `INSERT INTO attendance (id, student_id, date, status, instructor_name, remarks, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (student_id, date) DO NOTHING RETURNING id`

	marked := 0
	conflicts := make([]models.AttendanceBulkConflict, 0)
	now := time.Now().UTC()

	for _, record := range records {
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		var insertedID string
		err := r.db.QueryRowxContext(ctx, query,
			record.ID, record.StudentID, record.Date, record.Status,
			record.InstructorName, record.Remarks, now, now,
		).Scan(&insertedID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				conflicts = append(conflicts, models.AttendanceBulkConflict{
					StudentID: record.StudentID,
					Date:      record.Date,
					Reason:    "already marked",
				})
				continue
			}
			conflicts = append(conflicts, models.AttendanceBulkConflict{
				StudentID: record.StudentID,
				Date:      record.Date,
				Reason:    err.Error(),
			})
			continue
		}
		marked++
	}
	return marked, conflicts, nil
}

// List returns attendance records joined with student names.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	base := "FROM attendance a JOIN students s ON s.id = a.student_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s, s.full_name AS student_name %s ORDER BY a.date DESC, s.full_name ASC LIMIT %d OFFSET %d", attendanceColumns, base, size, offset)

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// HistoryByStudent returns every record for a student, newest first.
func (r *AttendanceRepository) HistoryByStudent(ctx context.Context, studentID string) ([]models.Attendance, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance a WHERE a.student_id = $1 ORDER BY a.date DESC", attendanceColumns)
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return records, nil
}

// CountPresentOn counts present marks for a single date.
func (r *AttendanceRepository) CountPresentOn(ctx context.Context, date time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance WHERE date = $1 AND status = 'present'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, date); err != nil {
		return 0, fmt.Errorf("count present: %w", err)
	}
	return count, nil
}
