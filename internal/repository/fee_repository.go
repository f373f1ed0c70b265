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

// FeeRepository manages persistence for monthly fee rows.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs a FeeRepository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

const feeColumns = "f.id, f.student_id, f.month, f.year, f.amount, f.status, f.partial_amount_paid, f.paid_date, f.notes, f.created_at, f.updated_at"
const feeJoinColumns = feeColumns + ", s.full_name AS student_name, s.registration_number, s.fee_structure"

// List returns fee rows joined with student fields.
func (r *FeeRepository) List(ctx context.Context, filter models.MonthlyFeeFilter) ([]models.MonthlyFeeDetail, int, error) {
	base := "FROM monthly_fees f JOIN students s ON s.id = f.student_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("f.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Month > 0 {
		conditions = append(conditions, fmt.Sprintf("f.month = $%d", len(args)+1))
		args = append(args, filter.Month)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("f.year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("f.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY s.full_name ASC, f.year DESC, f.month DESC LIMIT %d OFFSET %d", feeJoinColumns, base, size, offset)

	var fees []models.MonthlyFeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list monthly fees: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count monthly fees: %w", err)
	}
	return fees, total, nil
}

// FindByID fetches a fee row by ID.
func (r *FeeRepository) FindByID(ctx context.Context, id string) (*models.MonthlyFee, error) {
	query := fmt.Sprintf("SELECT %s FROM monthly_fees f WHERE f.id = $1", feeColumns)
	var fee models.MonthlyFee
	if err := r.db.GetContext(ctx, &fee, query, id); err != nil {
		return nil, err
	}
	return &fee, nil
}

// FindForPeriod returns the rows a set of students have for a month,
// keyed by student ID.
func (r *FeeRepository) FindForPeriod(ctx context.Context, month, year int) (map[string]models.MonthlyFee, error) {
	query := fmt.Sprintf("SELECT %s FROM monthly_fees f WHERE f.month = $1 AND f.year = $2", feeColumns)
	var fees []models.MonthlyFee
	if err := r.db.SelectContext(ctx, &fees, query, month, year); err != nil {
		return nil, fmt.Errorf("list fees for period: %w", err)
	}
	byStudent := make(map[string]models.MonthlyFee, len(fees))
	for _, fee := range fees {
		byStudent[fee.StudentID] = fee
	}
	return byStudent, nil
}

// ListByStudent returns a student's full fee history, newest first.
func (r *FeeRepository) ListByStudent(ctx context.Context, studentID string) ([]models.MonthlyFee, error) {
	query := fmt.Sprintf("SELECT %s FROM monthly_fees f WHERE f.student_id = $1 ORDER BY f.year DESC, f.month DESC", feeColumns)
	var fees []models.MonthlyFee
	if err := r.db.SelectContext(ctx, &fees, query, studentID); err != nil {
		return nil, fmt.Errorf("list student fees: %w", err)
	}
	return fees, nil
}

// Create inserts a new fee row. Duplicate student/month/year rows are left
// untouched and reported as created=false.
func (r *FeeRepository) Create(ctx context.Context, fee *models.MonthlyFee) (bool, error) {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if fee.CreatedAt.IsZero() {
		fee.CreatedAt = now
	}
	fee.UpdatedAt = now
	const query = `INSERT INTO monthly_fees (id, student_id, month, year, amount, status, partial_amount_paid, paid_date, notes, created_at, updated_at)
        VALUES (:id, :student_id, :month, :year, :amount, :status, :partial_amount_paid, :paid_date, :notes, :created_at, :updated_at)
        ON CONFLICT (student_id, month, year) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, fee)
	if err != nil {
		return false, fmt.Errorf("create monthly fee: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create monthly fee: %w", err)
	}
	return affected > 0, nil
}

// ApplyPatch persists a ledger-computed status change.
func (r *FeeRepository) ApplyPatch(ctx context.Context, id string, patch models.MonthlyFeePatch) error {
	const query = `UPDATE monthly_fees SET status = $2, partial_amount_paid = $3, paid_date = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, patch.Status, patch.PartialAmountPaid, patch.PaidDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("apply fee patch: %w", err)
	}
	return nil
}

// UpdateNotes replaces the notes on a fee row.
func (r *FeeRepository) UpdateNotes(ctx context.Context, id string, notes *string) error {
	const query = `UPDATE monthly_fees SET notes = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("update fee notes: %w", err)
	}
	return nil
}

// CountPendingForMonth returns how many rows are not fully paid.
func (r *FeeRepository) CountPendingForMonth(ctx context.Context, month, year int) (int, error) {
	const query = `SELECT COUNT(*) FROM monthly_fees WHERE month = $1 AND year = $2 AND status <> 'paid'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, month, year); err != nil {
		return 0, fmt.Errorf("count pending fees: %w", err)
	}
	return count, nil
}
