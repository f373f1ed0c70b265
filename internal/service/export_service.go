package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mta-academy/academy-api/internal/ledger"
	"github.com/mta-academy/academy-api/internal/models"
	"github.com/mta-academy/academy-api/pkg/export"
	"github.com/mta-academy/academy-api/pkg/storage"
)

type exportAttendanceReader interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
}

type exportFeeReader interface {
	List(ctx context.Context, filter models.MonthlyFeeFilter) ([]models.MonthlyFeeDetail, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheetName string) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	attendance exportAttendanceReader
	fees       exportFeeReader
	storage    fileStorage
	csv        csvRenderer
	xlsx       xlsxRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(attendance exportAttendanceReader, fees exportFeeReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		attendance: attendance,
		fees:       fees,
		storage:    store,
		csv:        export.NewCSVExporter(),
		xlsx:       export.NewXLSXExporter(),
		pdf:        export.NewPDFExporter(),
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate builds the dataset for a job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, filename, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
		filename = swapExtension(filename, "csv")
	case models.ReportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, title)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		filename = swapExtension(filename, "pdf")
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL
// when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, string, error) {
	switch job.Type {
	case models.ReportTypeAttendance:
		return s.buildAttendanceDataset(ctx, job.Params)
	case models.ReportTypeFees:
		return s.buildFeeDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildAttendanceDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, string, error) {
	from, err := parseReportDate(params.DateFrom)
	if err != nil {
		return export.Dataset{}, "", "", err
	}
	to, err := parseReportDate(params.DateTo)
	if err != nil {
		return export.Dataset{}, "", "", err
	}
	if from == nil || to == nil {
		return export.Dataset{}, "", "", fmt.Errorf("attendance report requires dateFrom and dateTo")
	}

	filter := models.AttendanceFilter{
		DateFrom: from,
		DateTo:   to,
		PageSize: 200,
	}
	if params.StudentID != nil {
		filter.StudentID = *params.StudentID
	}
	if params.Status != nil {
		status := models.AttendanceStatus(*params.Status)
		if !status.Valid() {
			return export.Dataset{}, "", "", fmt.Errorf("unsupported attendance status %s", *params.Status)
		}
		filter.Status = &status
	}

	records := make([]models.AttendanceRecord, 0)
	for page := 1; ; page++ {
		filter.Page = page
		batch, total, err := s.attendance.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", "", err
		}
		records = append(records, batch...)
		if len(records) >= total || len(batch) == 0 {
			break
		}
	}

	dataset := ledger.BuildAttendanceExport(records, ledger.AttendanceExportFilter{
		DateFrom:  from,
		DateTo:    to,
		StudentID: filter.StudentID,
		Status:    filter.Status,
	})
	filename := ledger.AttendanceExportFilename(*from, *to)
	return dataset, "Attendance Report", filename, nil
}

func (s *ExportService) buildFeeDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, string, error) {
	if params.Month < 1 || params.Month > 12 || params.Year == 0 {
		return export.Dataset{}, "", "", fmt.Errorf("fee report requires month and year")
	}

	filter := models.MonthlyFeeFilter{
		Month:    params.Month,
		Year:     params.Year,
		PageSize: 200,
	}
	if params.Status != nil {
		status := models.PaymentStatus(*params.Status)
		if !status.Valid() {
			return export.Dataset{}, "", "", fmt.Errorf("unsupported payment status %s", *params.Status)
		}
		filter.Status = &status
	}

	fees := make([]models.MonthlyFeeDetail, 0)
	for page := 1; ; page++ {
		filter.Page = page
		batch, total, err := s.fees.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", "", err
		}
		fees = append(fees, batch...)
		if len(fees) >= total || len(batch) == 0 {
			break
		}
	}

	dataset, err := ledger.BuildFeeExport(fees)
	if err != nil {
		return export.Dataset{}, "", "", err
	}
	filename := ledger.FeeExportFilename(params.Month, params.Year)
	title := fmt.Sprintf("Fee Records %s %d", time.Month(params.Month), params.Year)
	return dataset, title, filename, nil
}

func parseReportDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", *raw, err)
	}
	return &parsed, nil
}

func swapExtension(filename, ext string) string {
	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		filename = filename[:idx]
	}
	return filename + "." + ext
}
