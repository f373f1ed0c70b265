package ledger

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mta-academy/academy-api/internal/models"
	appErrors "github.com/mta-academy/academy-api/pkg/errors"
)

// InvoiceLine is one billed period inside an invoice document.
type InvoiceLine struct {
	Month  int     `json:"month"`
	Year   int     `json:"year"`
	Period string  `json:"period"`
	Plan   string  `json:"plan"`
	View   FeeView `json:"view"`
}

// InvoiceDocument is the fully composed invoice, ready for rendering.
type InvoiceDocument struct {
	Number   string               `json:"number"`
	Student  models.Student       `json:"student"`
	Lines    []InvoiceLine        `json:"lines"`
	Totals   models.FeeTotals     `json:"totals"`
	Status   models.PaymentStatus `json:"status"`
	Filename string               `json:"filename"`
}

// BuildInvoice composes an invoice for the given periods. Line items are
// ordered chronologically regardless of input order, and the invoice number
// and filename are deterministic for the same input set.
func BuildInvoice(student models.Student, periods []FeeView) (*InvoiceDocument, error) {
	if len(periods) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no months selected")
	}

	sorted := make([]FeeView, len(periods))
	copy(sorted, periods)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Year != sorted[j].Year {
			return sorted[i].Year < sorted[j].Year
		}
		return sorted[i].Month < sorted[j].Month
	})

	lines := make([]InvoiceLine, 0, len(sorted))
	for _, view := range sorted {
		lines = append(lines, InvoiceLine{
			Month:  view.Month,
			Year:   view.Year,
			Period: fmt.Sprintf("%s %d", time.Month(view.Month), view.Year),
			Plan:   student.FeeStructure.Label(),
			View:   view,
		})
	}

	totals := Aggregate(sorted)
	first := sorted[0]
	last := sorted[len(sorted)-1]

	doc := &InvoiceDocument{
		Number:   invoiceNumber(student, first, last),
		Student:  student,
		Lines:    lines,
		Totals:   totals,
		Status:   OverallStatus(totals),
		Filename: invoiceFilename(student, first, last),
	}
	return doc, nil
}

func invoiceNumber(student models.Student, first, last FeeView) string {
	ref := student.RegistrationNumber
	if ref == "" {
		id := student.ID
		if len(id) > 8 {
			id = id[:8]
		}
		ref = strings.ToUpper(id)
	}
	span := fmt.Sprintf("%04d%02d", first.Year, first.Month)
	if first.Year != last.Year || first.Month != last.Month {
		span = fmt.Sprintf("%s-%04d%02d", span, last.Year, last.Month)
	}
	return fmt.Sprintf("INV-%s-%s", span, ref)
}

var filenameUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func invoiceFilename(student models.Student, first, last FeeView) string {
	name := filenameUnsafe.ReplaceAllString(strings.ReplaceAll(student.FullName, " ", "_"), "")
	span := fmt.Sprintf("%s_%d", time.Month(first.Month), first.Year)
	if first.Year != last.Year || first.Month != last.Month {
		span = fmt.Sprintf("%s-%s_%d", span, time.Month(last.Month), last.Year)
	}
	return fmt.Sprintf("Invoice_%s_%s.pdf", name, span)
}
