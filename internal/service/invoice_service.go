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
	"github.com/mta-academy/academy-api/pkg/export"
)

type invoiceStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type invoiceFeeReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.MonthlyFee, error)
}

type invoiceRenderer interface {
	Render(inv export.Invoice) ([]byte, error)
}

// InvoicePeriod selects one billed month on an invoice request.
type InvoicePeriod struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required"`
}

// GenerateInvoiceRequest selects the months to bill.
type GenerateInvoiceRequest struct {
	Periods []InvoicePeriod `json:"periods" validate:"required,min=1,dive"`
}

// GeneratedInvoice is a rendered invoice ready for download.
type GeneratedInvoice struct {
	Document *ledger.InvoiceDocument
	PDF      []byte
}

// InvoiceService composes and renders fee invoices synchronously.
type InvoiceService struct {
	students    invoiceStudentReader
	fees        invoiceFeeReader
	renderer    invoiceRenderer
	academyName string
	logoPath    string
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewInvoiceService constructs the invoice service.
func NewInvoiceService(students invoiceStudentReader, fees invoiceFeeReader, renderer invoiceRenderer, academyName, logoPath string, validate *validator.Validate, logger *zap.Logger) *InvoiceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = export.NewInvoicePDFExporter()
	}
	return &InvoiceService{
		students:    students,
		fees:        fees,
		renderer:    renderer,
		academyName: academyName,
		logoPath:    logoPath,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Generate composes an invoice for the requested months and renders it to
// PDF. Months with no persisted fee row are billed as virtual unpaid
// periods priced off the student's current plan.
func (s *InvoiceService) Generate(ctx context.Context, studentID string, req GenerateInvoiceRequest) (*GeneratedInvoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice payload")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	history, err := s.fees.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee history")
	}
	rowsByPeriod := make(map[[2]int]models.MonthlyFee, len(history))
	for _, row := range history {
		rowsByPeriod[[2]int{row.Year, row.Month}] = row
	}

	seen := make(map[[2]int]bool, len(req.Periods))
	views := make([]ledger.FeeView, 0, len(req.Periods))
	for _, period := range req.Periods {
		key := [2]int{period.Year, period.Month}
		if seen[key] {
			continue
		}
		seen[key] = true

		var row *models.MonthlyFee
		if stored, ok := rowsByPeriod[key]; ok {
			row = &stored
		}
		view, err := ledger.ResolvePeriod(*student, period.Month, period.Year, row)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	doc, err := ledger.BuildInvoice(*student, views)
	if err != nil {
		return nil, err
	}

	inv := export.Invoice{
		Number:             doc.Number,
		IssuedOn:           s.now(),
		AcademyName:        s.academyName,
		LogoPath:           s.logoPath,
		StudentName:        student.FullName,
		RegistrationNumber: student.RegistrationNumber,
		BeltRank:           student.BeltLevel.Label(),
		SubTotal:           doc.Totals.Obligated,
		AmountPaid:         doc.Totals.Paid,
		BalanceDue:         doc.Totals.Balance,
		PaidInFull:         doc.Status == models.PaymentStatusPaid,
	}
	for _, line := range doc.Lines {
		inv.Lines = append(inv.Lines, export.InvoiceLine{
			Period: line.Period,
			Plan:   line.Plan,
			Amount: line.View.Obligated,
		})
	}

	pdf, err := s.renderer.Render(inv)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render invoice")
	}
	s.logger.Info("invoice generated",
		zap.String("student_id", studentID),
		zap.String("invoice_number", doc.Number),
		zap.Int("periods", len(doc.Lines)))
	return &GeneratedInvoice{Document: doc, PDF: pdf}, nil
}
