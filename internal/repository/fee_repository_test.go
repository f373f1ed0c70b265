package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mta-academy/academy-api/internal/models"
)

func feeRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "month", "year", "amount", "status", "partial_amount_paid", "paid_date", "notes", "created_at", "updated_at", "student_name", "registration_number", "fee_structure"}).
		AddRow("f1", "s1", 6, 2025, "700", "unpaid", "0", nil, nil, time.Now(), time.Now(), "Arjun Perera", "MTA-001", "2_classes_700")
}

func TestFeeRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectQuery("SELECT f.id, f.student_id, .+ FROM monthly_fees f JOIN students s ON s.id = f.student_id WHERE 1=1 AND f.month = \\$1 AND f.year = \\$2").
		WithArgs(6, 2025).
		WillReturnRows(feeRows())
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM monthly_fees f").
		WithArgs(6, 2025).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	fees, total, err := repo.List(context.Background(), models.MonthlyFeeFilter{Month: 6, Year: 2025})
	require.NoError(t, err)
	assert.Len(t, fees, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Arjun Perera", fees[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryCreateSkipsDuplicates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectExec("INSERT INTO monthly_fees").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	fee := &models.MonthlyFee{
		StudentID: "s1",
		Month:     6,
		Year:      2025,
		Amount:    decimal.NewFromInt(700),
		Status:    models.PaymentStatusUnpaid,
	}
	created, err := repo.Create(context.Background(), fee)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryApplyPatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	paid := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE monthly_fees SET status = $2, partial_amount_paid = $3, paid_date = $4, updated_at = $5 WHERE id = $1")).
		WithArgs("f1", models.PaymentStatusPaid, sqlmock.AnyArg(), &paid, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyPatch(context.Background(), "f1", models.MonthlyFeePatch{
		Status:            models.PaymentStatusPaid,
		PartialAmountPaid: decimal.Zero,
		PaidDate:          &paid,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryCountPendingForMonth(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM monthly_fees WHERE month = $1 AND year = $2 AND status <> 'paid'")).
		WithArgs(6, 2025).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountPendingForMonth(context.Background(), 6, 2025)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
