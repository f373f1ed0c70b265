package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/mta-academy/academy-api/internal/models"
	"github.com/mta-academy/academy-api/pkg/export"
)

// AttendanceExportFilter narrows the records included in an export. The
// date range is inclusive on both ends.
type AttendanceExportFilter struct {
	DateFrom  *time.Time
	DateTo    *time.Time
	StudentID string
	Status    *models.AttendanceStatus
}

var attendanceExportHeaders = []string{"Student Name", "Date", "Attendance Status", "Instructor Name", "Remarks"}
var attendanceExportWidths = []float64{25, 15, 18, 20, 30}

// BuildAttendanceExport maps attendance records into an export dataset.
// Zero matching records yields an empty dataset, not an error.
func BuildAttendanceExport(records []models.AttendanceRecord, filter AttendanceExportFilter) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		if !attendanceMatches(rec, filter) {
			continue
		}
		remarks := ""
		if rec.Remarks != nil {
			remarks = *rec.Remarks
		}
		rows = append(rows, map[string]string{
			"Student Name":      rec.StudentName,
			"Date":              rec.Date.Format("2006-01-02"),
			"Attendance Status": capitalize(string(rec.Status)),
			"Instructor Name":   rec.InstructorName,
			"Remarks":           remarks,
		})
	}
	return export.Dataset{
		Headers:      attendanceExportHeaders,
		Rows:         rows,
		ColumnWidths: attendanceExportWidths,
	}
}

func attendanceMatches(rec models.AttendanceRecord, filter AttendanceExportFilter) bool {
	day := truncateToDay(rec.Date)
	if filter.DateFrom != nil && day.Before(truncateToDay(*filter.DateFrom)) {
		return false
	}
	if filter.DateTo != nil && day.After(truncateToDay(*filter.DateTo)) {
		return false
	}
	if filter.StudentID != "" && rec.StudentID != filter.StudentID {
		return false
	}
	if filter.Status != nil && rec.Status != *filter.Status {
		return false
	}
	return true
}

// AttendanceExportFilename derives the workbook name from the date range.
func AttendanceExportFilename(from, to time.Time) string {
	return fmt.Sprintf("Attendance_Report_%s_to_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
}

var feeExportHeaders = []string{
	"Student Name", "Registration Number", "Month", "Year", "Fee Amount",
	"Partial Amount Paid", "Remaining Balance", "Payment Status", "Paid Date", "Notes",
}

// BuildFeeExport maps fee rows joined with roster fields into an export
// dataset. Per-row paid and remaining amounts follow the ledger rules.
func BuildFeeExport(fees []models.MonthlyFeeDetail) (export.Dataset, error) {
	rows := make([]map[string]string, 0, len(fees))
	for _, fee := range fees {
		student := models.Student{
			ID:           fee.StudentID,
			FeeStructure: fee.FeeStructure,
		}
		row := fee.MonthlyFee
		view, err := ResolvePeriod(student, fee.Month, fee.Year, &row)
		if err != nil {
			return export.Dataset{}, err
		}
		paidDate := ""
		if fee.PaidDate != nil {
			paidDate = fee.PaidDate.Format("2006-01-02")
		}
		notes := ""
		if fee.Notes != nil {
			notes = *fee.Notes
		}
		rows = append(rows, map[string]string{
			"Student Name":        fee.StudentName,
			"Registration Number": fee.RegistrationNumber,
			"Month":               time.Month(fee.Month).String(),
			"Year":                fmt.Sprintf("%d", fee.Year),
			"Fee Amount":          view.Obligated.StringFixed(2),
			"Partial Amount Paid": fee.PartialAmountPaid.StringFixed(2),
			"Remaining Balance":   view.Balance.StringFixed(2),
			"Payment Status":      capitalize(string(fee.Status)),
			"Paid Date":           paidDate,
			"Notes":               notes,
		})
	}
	return export.Dataset{Headers: feeExportHeaders, Rows: rows}, nil
}

// FeeExportFilename derives the workbook name from the billed month.
func FeeExportFilename(month, year int) string {
	return fmt.Sprintf("Fee_Records_%s_%d.xlsx", time.Month(month), year)
}

// SummarizeAttendance counts records per status. Percent is present/total
// and zero when there are no records.
func SummarizeAttendance(records []models.Attendance) models.AttendanceSummary {
	summary := models.AttendanceSummary{}
	for _, rec := range records {
		switch rec.Status {
		case models.AttendanceStatusPresent:
			summary.Present++
		case models.AttendanceStatusAbsent:
			summary.Absent++
		case models.AttendanceStatusLate:
			summary.Late++
		}
	}
	summary.Total = summary.Present + summary.Absent + summary.Late
	if summary.Total > 0 {
		summary.Percent = float64(summary.Present) / float64(summary.Total) * 100
	}
	return summary
}

/// IsUpcoming reports whether a belt test is still ahead: dated today or
// later and with a pending result.
func IsUpcoming(test models.BeltTest, today time.Time) bool {
	return !truncateToDay(test.TestDate).Before(truncateToDay(today)) && test.Result == models.TestResultPending
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func capitalize(raw string) string {
	if raw == "" {
		return raw
	}
	return strings.ToUpper(raw[:1]) + raw[1:]
}
