package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
	appErrors "github.com/brightpath-labs/engage-sync-api/pkg/errors"
	"github.com/brightpath-labs/engage-sync-api/pkg/export"
	"github.com/brightpath-labs/engage-sync-api/pkg/storage"
)

// ReportFormat enumerates supported run report formats.
type ReportFormat string

// Supported formats.
const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

type runReader interface {
	GetRun(ctx context.Context, id string) (*models.ReconciliationRun, error)
	RunOutcomes(ctx context.Context, runID string) ([]models.RunOutcome, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, summary []string) ([]byte, error)
}

// ExportResult carries a rendered run report.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
	Token       string
	ExpiresAt   time.Time
}

// ExportService renders run reports. Rendered files are also archived on
// disk with a signed download token so a report link can be shared without
// re-rendering.
type ExportService struct {
	runs      runReader
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	resultTTL time.Duration
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(runs runReader, store fileStorage, signer *storage.SignedURLSigner, resultTTL time.Duration, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resultTTL <= 0 {
		resultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		runs:      runs,
		storage:   store,
		csv:       csv,
		pdf:       pdf,
		signer:    signer,
		resultTTL: resultTTL,
		logger:    logger,
	}
}

// GenerateRunReport renders a run's outcomes in the requested format.
func (s *ExportService) GenerateRunReport(ctx context.Context, runID string, format ReportFormat) (*ExportResult, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	outcomes, err := s.runs.RunOutcomes(ctx, runID)
	if err != nil {
		return nil, err
	}

	dataset := buildRunDataset(outcomes)

	var payload []byte
	var contentType string
	switch format {
	case ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Reconciliation Run Report", runSummaryLines(run))
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to render run report")
	}

	result := &ExportResult{
		Filename:    fmt.Sprintf("run-%s-%s.%s", run.ID, run.StartedAt.UTC().Format("20060102T150405Z"), format),
		ContentType: contentType,
		Payload:     payload,
	}

	if s.storage != nil {
		relPath, saveErr := s.storage.Save(result.Filename, payload)
		if saveErr != nil {
			s.logger.Warn("failed to archive run report", zap.String("run_id", runID), zap.Error(saveErr))
		} else if s.signer != nil {
			token, expiresAt, signErr := s.signer.Generate(run.ID, relPath)
			if signErr != nil {
				s.logger.Warn("failed to sign run report token", zap.String("run_id", runID), zap.Error(signErr))
			} else {
				result.Token = token
				result.ExpiresAt = expiresAt
			}
		}
	}

	return result, nil
}

// ArchivedReport is an archived report opened for download.
type ArchivedReport struct {
	RunID       string
	Filename    string
	ContentType string
	File        *os.File
	Size        int64
}

// OpenArchivedReport validates a download token and opens the archived file
// it references.
func (s *ExportService) OpenArchivedReport(token string) (*ArchivedReport, error) {
	if s.signer == nil || s.storage == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report archiving is not configured")
	}
	runID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrUnauthorized, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report is no longer archived")
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to read archived report")
	}
	contentType := "application/octet-stream"
	switch filepath.Ext(relPath) {
	case ".csv":
		contentType = "text/csv"
	case ".pdf":
		contentType = "application/pdf"
	}
	return &ArchivedReport{
		RunID:       runID,
		Filename:    filepath.Base(relPath),
		ContentType: contentType,
		File:        file,
		Size:        info.Size(),
	}, nil
}

// CleanupExpired drops archived reports older than the configured TTL.
func (s *ExportService) CleanupExpired() {
	if s.storage == nil {
		return
	}
	deleted, err := s.storage.CleanupOlderThan(s.resultTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("expired run reports removed", zap.Int("count", len(deleted)))
	}
}

func buildRunDataset(outcomes []models.RunOutcome) export.Dataset {
	headers := []string{"Enrollment", "Learner", "Offering", "Contact", "Tags Applied", "Tags Removed", "Success", "Detail", "Evaluated At"}
	rows := make([]map[string]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, map[string]string{
			"Enrollment":   o.EnrollmentID,
			"Learner":      o.LearnerID,
			"Offering":     o.OfferingID,
			"Contact":      o.ContactEmail,
			"Tags Applied": strconv.Itoa(o.TagsApplied),
			"Tags Removed": strconv.Itoa(o.TagsRemoved),
			"Success":      strconv.FormatBool(o.Success),
			"Detail":       o.Detail,
			"Evaluated At": o.EvaluatedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func runSummaryLines(run *models.ReconciliationRun) []string {
	finished := "in progress"
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		fmt.Sprintf("Run %s (%s), triggered by %s", run.ID, strings.ToLower(string(run.Status)), run.TriggeredBy),
		fmt.Sprintf("Started %s, finished %s", run.StartedAt.UTC().Format(time.RFC3339), finished),
		fmt.Sprintf("Enrollments: %d total, %d succeeded, %d failed, %d skipped", run.Total, run.Succeeded, run.Failed, run.Skipped),
		fmt.Sprintf("Tags: %d applied, %d removed", run.TagsApplied, run.TagsRemoved),
	}
}
