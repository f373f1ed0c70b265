package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mta-academy/academy-api/internal/models"
)

func attendanceRecord(studentID, name string, date time.Time, status models.AttendanceStatus) models.AttendanceRecord {
	return models.AttendanceRecord{
		Attendance: models.Attendance{
			StudentID:      studentID,
			Date:           date,
			Status:         status,
			InstructorName: "Master Fernando",
		},
		StudentName: name,
	}
}

func TestBuildAttendanceExportColumnsAndCapitalization(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	records := []models.AttendanceRecord{
		attendanceRecord("s1", "Arjun Perera", date, models.AttendanceStatusPresent),
	}

	dataset := BuildAttendanceExport(records, AttendanceExportFilter{})
	assert.Equal(t, []string{"Student Name", "Date", "Attendance Status", "Instructor Name", "Remarks"}, dataset.Headers)
	require.Len(t, dataset.Rows, 1)
	assert.Equal(t, "Present", dataset.Rows[0]["Attendance Status"])
	assert.Equal(t, "2025-06-02", dataset.Rows[0]["Date"])
	assert.Equal(t, []float64{25, 15, 18, 20, 30}, dataset.ColumnWidths)
}

func TestBuildAttendanceExportInclusiveDateRange(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	records := []models.AttendanceRecord{
		attendanceRecord("s1", "A", time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), models.AttendanceStatusPresent),
		attendanceRecord("s1", "A", from, models.AttendanceStatusPresent),
		attendanceRecord("s1", "A", to, models.AttendanceStatusLate),
		attendanceRecord("s1", "A", time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC), models.AttendanceStatusAbsent),
	}

	dataset := BuildAttendanceExport(records, AttendanceExportFilter{DateFrom: &from, DateTo: &to})
	assert.Len(t, dataset.Rows, 2)
}

func TestBuildAttendanceExportStudentAndStatusFilters(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	late := models.AttendanceStatusLate
	records := []models.AttendanceRecord{
		attendanceRecord("s1", "A", date, models.AttendanceStatusPresent),
		attendanceRecord("s2", "B", date, models.AttendanceStatusLate),
		attendanceRecord("s1", "A", date.AddDate(0, 0, 1), models.AttendanceStatusLate),
	}

	dataset := BuildAttendanceExport(records, AttendanceExportFilter{StudentID: "s1", Status: &late})
	require.Len(t, dataset.Rows, 1)
	assert.Equal(t, "Late", dataset.Rows[0]["Attendance Status"])
}

func TestBuildAttendanceExportEmptyResult(t *testing.T) {
	dataset := BuildAttendanceExport(nil, AttendanceExportFilter{})
	assert.NotEmpty(t, dataset.Headers)
	assert.Empty(t, dataset.Rows)
}

func TestBuildFeeExportRows(t *testing.T) {
	paid := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	fees := []models.MonthlyFeeDetail{
		{
			MonthlyFee: models.MonthlyFee{
				StudentID: "s1", Month: 6, Year: 2025,
				Amount: decimal.NewFromInt(700), Status: models.PaymentStatusPaid, PaidDate: &paid,
			},
			StudentName:        "Arjun Perera",
			RegistrationNumber: "MTA-042",
			FeeStructure:       models.FeeStructureTwoClasses,
		},
		{
			MonthlyFee: models.MonthlyFee{
				StudentID: "s2", Month: 6, Year: 2025,
				Amount: decimal.NewFromInt(1000), Status: models.PaymentStatusPartial,
				PartialAmountPaid: decimal.NewFromInt(250),
			},
			StudentName:        "Nimal Silva",
			RegistrationNumber: "MTA-007",
			FeeStructure:       models.FeeStructureFourClasses,
		},
	}

	dataset, err := BuildFeeExport(fees)
	require.NoError(t, err)
	require.Len(t, dataset.Rows, 2)

	assert.Equal(t, "June", dataset.Rows[0]["Month"])
	assert.Equal(t, "0.00", dataset.Rows[0]["Remaining Balance"])
	assert.Equal(t, "Paid", dataset.Rows[0]["Payment Status"])
	assert.Equal(t, "2025-06-05", dataset.Rows[0]["Paid Date"])

	assert.Equal(t, "750.00", dataset.Rows[1]["Remaining Balance"])
	assert.Equal(t, "250.00", dataset.Rows[1]["Partial Amount Paid"])
	assert.Equal(t, "", dataset.Rows[1]["Paid Date"])
}

func TestExportFilenames(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Attendance_Report_2025-06-01_to_2025-06-30.xlsx", AttendanceExportFilename(from, to))
	assert.Equal(t, "Fee_Records_June_2025.xlsx", FeeExportFilename(6, 2025))
}

func TestSummarizeAttendance(t *testing.T) {
	records := []models.Attendance{
		{Status: models.AttendanceStatusPresent},
		{Status: models.AttendanceStatusPresent},
		{Status: models.AttendanceStatusPresent},
		{Status: models.AttendanceStatusAbsent},
		{Status: models.AttendanceStatusLate},
	}

	summary := SummarizeAttendance(records)
	assert.Equal(t, 3, summary.Present)
	assert.Equal(t, 1, summary.Absent)
	assert.Equal(t, 1, summary.Late)
	assert.Equal(t, 5, summary.Total)
	assert.InDelta(t, 60.0, summary.Percent, 0.0001)
}

func TestSummarizeAttendanceEmpty(t *testing.T) {
	summary := SummarizeAttendance(nil)
	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 0.0, summary.Percent)
}

func TestIsUpcoming(t *testing.T) {
	today := time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)

	sameDay := models.BeltTest{TestDate: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), Result: models.TestResultPending}
	assert.True(t, IsUpcoming(sameDay, today))

	future := models.BeltTest{TestDate: today.AddDate(0, 0, 5), Result: models.TestResultPending}
	assert.True(t, IsUpcoming(future, today))

	past := models.BeltTest{TestDate: today.AddDate(0, 0, -1), Result: models.TestResultPending}
	assert.False(t, IsUpcoming(past, today))

	decided := models.BeltTest{TestDate: today.AddDate(0, 0, 5), Result: models.TestResultPassed}
	assert.False(t, IsUpcoming(decided, today))
}
