package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mta-academy/academy-api/internal/models"
)

// BeltTestRepository manages persistence for belt test rows.
type BeltTestRepository struct {
	db *sqlx.DB
}

// NewBeltTestRepository constructs a BeltTestRepository.
func NewBeltTestRepository(db *sqlx.DB) *BeltTestRepository {
	return &BeltTestRepository{db: db}
}

const beltTestColumns = "t.id, t.student_id, t.current_belt, t.target_belt, t.test_date, t.test_fee, t.result, t.certification_number, t.notes, t.created_at, t.updated_at"

// List returns belt tests joined with student names.
func (r *BeltTestRepository) List(ctx context.Context, filter models.BeltTestFilter) ([]models.BeltTestDetail, int, error) {
	base := "FROM belt_tests t JOIN students s ON s.id = t.student_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("t.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Result != nil {
		conditions = append(conditions, fmt.Sprintf("t.result = $%d", len(args)+1))
		args = append(args, *filter.Result)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("t.test_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("t.test_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s, s.full_name AS student_name %s ORDER BY t.test_date DESC LIMIT %d OFFSET %d", beltTestColumns, base, size, offset)

	var tests []models.BeltTestDetail
	if err := r.db.SelectContext(ctx, &tests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list belt tests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count belt tests: %w", err)
	}
	return tests, total, nil
}

// FindByID fetches a belt test by ID.
func (r *BeltTestRepository) FindByID(ctx context.Context, id string) (*models.BeltTest, error) {
	query := fmt.Sprintf("SELECT %s FROM belt_tests t WHERE t.id = $1", beltTestColumns)
	var test models.BeltTest
	if err := r.db.GetContext(ctx, &test, query, id); err != nil {
		return nil, err
	}
	return &test, nil
}

// ListByStudent returns a student's test history, newest first.
func (r *BeltTestRepository) ListByStudent(ctx context.Context, studentID string) ([]models.BeltTest, error) {
	query := fmt.Sprintf("SELECT %s FROM belt_tests t WHERE t.student_id = $1 ORDER BY t.test_date DESC", beltTestColumns)
	var tests []models.BeltTest
	if err := r.db.SelectContext(ctx, &tests, query, studentID); err != nil {
		return nil, fmt.Errorf("list student belt tests: %w", err)
	}
	return tests, nil
}

// Create inserts a new belt test row.
func (r *BeltTestRepository) Create(ctx context.Context, test *models.BeltTest) error {
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if test.CreatedAt.IsZero() {
		test.CreatedAt = now
	}
	test.UpdatedAt = now
	const query = `INSERT INTO belt_tests (id, student_id, current_belt, target_belt, test_date, test_fee, result, certification_number, notes, created_at, updated_at)
        VALUES (:id, :student_id, :current_belt, :target_belt, :test_date, :test_fee, :result, :certification_number, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, test); err != nil {
		return fmt.Errorf("create belt test: %w", err)
	}
	return nil
}

// Update modifies an existing belt test.
func (r *BeltTestRepository) Update(ctx context.Context, test *models.BeltTest) error {
	test.UpdatedAt = time.Now().UTC()
	const query = `UPDATE belt_tests SET current_belt = :current_belt, target_belt = :target_belt, test_date = :test_date, test_fee = :test_fee, result = :result, certification_number = :certification_number, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, test); err != nil {
		return fmt.Errorf("update belt test: %w", err)
	}
	return nil
}

// CountPendingBetween counts pending tests inside a date window.
func (r *BeltTestRepository) CountPendingBetween(ctx context.Context, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM belt_tests WHERE result = 'pending' AND test_date >= $1 AND test_date <= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, from, to); err != nil {
		return 0, fmt.Errorf("count pending belt tests: %w", err)
	}
	return count, nil
}
