package export

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// InvoiceLine is a single billed period on an invoice.
type InvoiceLine struct {
	Period string
	Plan   string
	Amount decimal.Decimal
}

// Invoice carries everything the PDF layout needs.
type Invoice struct {
	Number             string
	IssuedOn           time.Time
	AcademyName        string
	LogoPath           string
	StudentName        string
	RegistrationNumber string
	BeltRank           string
	Lines              []InvoiceLine
	SubTotal           decimal.Decimal
	AmountPaid         decimal.Decimal
	BalanceDue         decimal.Decimal
	PaidInFull         bool
}

// InvoicePDFExporter renders fee invoices with the academy letterhead.
type InvoicePDFExporter struct{}

// NewInvoicePDFExporter constructs an invoice renderer.
func NewInvoicePDFExporter() *InvoicePDFExporter {
	return &InvoicePDFExporter{}
}

// Render produces the invoice PDF. A missing or unreadable logo is skipped
// rather than failing the whole document.
func (e *InvoicePDFExporter) Render(inv Invoice) ([]byte, error) {
	if len(inv.Lines) == 0 {
		return nil, fmt.Errorf("invoice requires at least one line item")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	top := 15.0
	if inv.LogoPath != "" {
		if _, err := os.Stat(inv.LogoPath); err == nil {
			pdf.ImageOptions(inv.LogoPath, 15, top, 24, 24, false, gofpdf.ImageOptions{ReadDpi: true}, 0, "")
		}
	}

	pdf.SetXY(45, top+4)
	pdf.SetTextColor(220, 20, 60)
	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 8, inv.AcademyName, "", 1, "L", false, 0, "")
	pdf.SetX(45)
	pdf.SetTextColor(90, 90, 90)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "FEE INVOICE", "", 1, "L", false, 0, "")
	pdf.Ln(10)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(95, 6, fmt.Sprintf("Invoice No: %s", inv.Number), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Date: %s", inv.IssuedOn.Format("02 Jan 2006")), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Bill To:", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 5, inv.StudentName, "", 1, "L", false, 0, "")
	if inv.RegistrationNumber != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Reg No: %s", inv.RegistrationNumber), "", 1, "L", false, 0, "")
	}
	if inv.BeltRank != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Belt Rank: %s", inv.BeltRank), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFillColor(220, 20, 60)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 8, "Month", "1", 0, "L", true, 0, "")
	pdf.CellFormat(70, 8, "Fee Plan", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 8, "Amount (Rs.)", "1", 1, "R", true, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "", 10)
	for _, line := range inv.Lines {
		pdf.CellFormat(70, 7, line.Period, "1", 0, "L", false, 0, "")
		pdf.CellFormat(70, 7, line.Plan, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, line.Amount.StringFixed(2), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(140, 6, "Sub Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(40, 6, "Rs. "+inv.SubTotal.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(140, 6, "Amount Paid", "", 0, "R", false, 0, "")
	pdf.CellFormat(40, 6, "Rs. "+inv.AmountPaid.StringFixed(2), "", 1, "R", false, 0, "")
	if inv.PaidInFull {
		pdf.SetTextColor(34, 139, 34)
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, "PAID IN FULL", "", 1, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	} else {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(140, 8, "Balance Due", "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 8, "Rs. "+inv.BalanceDue.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(14)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Thank you for being a part of %s!", inv.AcademyName), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, "This is a computer-generated invoice.", "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}
