package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mta-academy/academy-api/internal/models"
	appErrors "github.com/mta-academy/academy-api/pkg/errors"
)

func feeView(month, year int, obligated, paid int64) FeeView {
	o := decimal.NewFromInt(obligated)
	p := decimal.NewFromInt(paid)
	balance := o.Sub(p)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	return FeeView{Month: month, Year: year, Obligated: o, Paid: p, Balance: balance}
}

func TestBuildInvoiceEmptyPeriods(t *testing.T) {
	student := models.Student{ID: "s1", FullName: "Arjun Perera", FeeStructure: models.FeeStructureTwoClasses}
	_, err := BuildInvoice(student, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "no months selected")
}

func TestBuildInvoiceSortsChronologically(t *testing.T) {
	student := models.Student{ID: "s1", FullName: "Arjun Perera", RegistrationNumber: "MTA-042", FeeStructure: models.FeeStructureTwoClasses}
	periods := []FeeView{
		feeView(3, 2025, 700, 700),
		feeView(12, 2024, 700, 0),
		feeView(1, 2025, 700, 300),
	}

	doc, err := BuildInvoice(student, periods)
	require.NoError(t, err)
	require.Len(t, doc.Lines, 3)
	assert.Equal(t, "December 2024", doc.Lines[0].Period)
	assert.Equal(t, "January 2025", doc.Lines[1].Period)
	assert.Equal(t, "March 2025", doc.Lines[2].Period)
}

func TestBuildInvoiceInputOrderInvariance(t *testing.T) {
	student := models.Student{ID: "s1", FullName: "Arjun Perera", RegistrationNumber: "MTA-042", FeeStructure: models.FeeStructureTwoClasses}
	a := []FeeView{feeView(1, 2025, 700, 0), feeView(2, 2025, 700, 700)}
	b := []FeeView{feeView(2, 2025, 700, 700), feeView(1, 2025, 700, 0)}

	docA, err := BuildInvoice(student, a)
	require.NoError(t, err)
	docB, err := BuildInvoice(student, b)
	require.NoError(t, err)

	assert.Equal(t, docA.Number, docB.Number)
	assert.Equal(t, docA.Filename, docB.Filename)
	assert.Equal(t, docA.Lines[0].Period, docB.Lines[0].Period)
}

func TestBuildInvoiceNumberUsesRegistration(t *testing.T) {
	student := models.Student{ID: "abcdef12-3456", FullName: "Nimal Silva", RegistrationNumber: "MTA-007", FeeStructure: models.FeeStructureFourClasses}
	doc, err := BuildInvoice(student, []FeeView{feeView(6, 2025, 1000, 0)})
	require.NoError(t, err)
	assert.Equal(t, "INV-202506-MTA-007", doc.Number)
}

func TestBuildInvoiceNumberFallsBackToID(t *testing.T) {
	student := models.Student{ID: "abcdef12-3456", FullName: "Nimal Silva", FeeStructure: models.FeeStructureFourClasses}
	doc, err := BuildInvoice(student, []FeeView{feeView(6, 2025, 1000, 0)})
	require.NoError(t, err)
	assert.Equal(t, "INV-202506-ABCDEF12", doc.Number)
}

func TestBuildInvoiceMultiMonthSpan(t *testing.T) {
	student := models.Student{ID: "s1", FullName: "Nimal Silva", RegistrationNumber: "MTA-007", FeeStructure: models.FeeStructureTwoClasses}
	doc, err := BuildInvoice(student, []FeeView{
		feeView(11, 2024, 700, 700),
		feeView(1, 2025, 700, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-202411-202501-MTA-007", doc.Number)
	assert.Equal(t, "Invoice_Nimal_Silva_November_2024-January_2025.pdf", doc.Filename)
}

func TestBuildInvoiceTotalsAndStatus(t *testing.T) {
	student := models.Student{ID: "s1", FullName: "Nimal Silva", RegistrationNumber: "MTA-007", FeeStructure: models.FeeStructureTwoClasses}

	doc, err := BuildInvoice(student, []FeeView{feeView(1, 2025, 700, 700), feeView(2, 2025, 700, 700)})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, doc.Status)
	assert.True(t, doc.Totals.Balance.IsZero())

	doc, err = BuildInvoice(student, []FeeView{feeView(1, 2025, 700, 0)})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusUnpaid, doc.Status)

	doc, err = BuildInvoice(student, []FeeView{feeView(1, 2025, 700, 300), feeView(2, 2025, 700, 0)})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartial, doc.Status)
	assert.True(t, doc.Totals.Paid.Equal(decimal.NewFromInt(300)))
	assert.True(t, doc.Totals.Balance.Equal(decimal.NewFromInt(1100)))
}

func TestBuildInvoiceSingleMonthFilename(t *testing.T) {
	student := models.Student{ID: "s1", FullName: "Kasun De Silva", RegistrationNumber: "MTA-001", FeeStructure: models.FeeStructureTwoClasses}
	doc, err := BuildInvoice(student, []FeeView{feeView(7, 2025, 700, 0)})
	require.NoError(t, err)
	assert.Equal(t, "Invoice_Kasun_De_Silva_July_2025.pdf", doc.Filename)
}
