package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tradeconv/internal"
	"tradeconv/internal/config"
	"tradeconv/internal/connectors"
	"tradeconv/internal/logger"
	"tradeconv/internal/storage"
	"tradeconv/internal/util"
)

// ProcessingService turns stored report emails into CSV files.
type ProcessingService struct {
	db        *storage.DB
	cfg       config.Config
	log       logger.Logger
	converter *ConvertService
}

func NewProcessingService(db *storage.DB, cfg config.Config, log logger.Logger) *ProcessingService {
	if log == nil {
		log = logger.Discard()
	}
	return &ProcessingService{
		db:        db,
		cfg:       cfg,
		log:       log,
		converter: NewConvertService(log, db),
	}
}

type ProcessResult struct {
	EmailID int
	Status  internal.EmailStatus
	Score   float64
	Output  string
	Rows    int
}

type PendingResult struct {
	Converted int
	Skipped   int
	Failed    int
	Rows      int
}

func (r PendingResult) Processed() int {
	return r.Converted + r.Skipped + r.Failed
}

func (s *ProcessingService) ProcessByProviderMessageID(provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(email)
}

// ProcessPending handles up to limit fetched emails of provider, or of every
// provider when it is empty. A failing email is marked failed and counted;
// only storage errors stop the batch.
func (s *ProcessingService) ProcessPending(limit int, provider string) (PendingResult, error) {
	if strings.TrimSpace(provider) != "" {
		p, err := connectors.NormalizeProvider(provider)
		if err != nil {
			return PendingResult{}, err
		}
		provider = p
	}

	pending, err := s.db.ListEmailsByStatus(internal.EmailFetched, provider, limit)
	if err != nil {
		return PendingResult{}, err
	}

	var out PendingResult
	for _, email := range pending {
		res, err := s.ProcessEmail(email)
		if err != nil {
			var convErr *conversionError
			if !errors.As(err, &convErr) {
				return out, err
			}
		}
		switch res.Status {
		case internal.EmailConverted:
			out.Converted++
			out.Rows += res.Rows
		case internal.EmailSkipped:
			out.Skipped++
		case internal.EmailFailed:
			out.Failed++
		}
	}
	return out, nil
}

// conversionError marks a per-email failure that has already been recorded.
type conversionError struct {
	emailID int
	err     error
}

func (e *conversionError) Error() string {
	return fmt.Sprintf("email %d: %v", e.emailID, e.err)
}

func (e *conversionError) Unwrap() error { return e.err }

func (s *ProcessingService) ProcessEmail(email internal.EmailRow) (ProcessResult, error) {
	log := s.log.With("email", email.ID, "provider", email.Provider)
	res := ProcessResult{EmailID: email.ID}

	fail := func(err error) (ProcessResult, error) {
		res.Status = internal.EmailFailed
		if uerr := s.db.UpdateEmailStatus(email.ID, internal.EmailFailed); uerr != nil {
			return res, uerr
		}
		log.Warn("email processing failed", "err", err)
		return res, &conversionError{emailID: email.ID, err: err}
	}

	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return fail(err)
	}

	env, att, attErr := ReportAttachment(raw)
	if env == nil {
		return fail(attErr)
	}

	subject := util.FirstNonEmpty(env.GetHeader("Subject"), email.Subject)
	detect := DetectFillReport(subject, env.Text, AttachmentNames(env), s.cfg.MailReportKeywords)
	res.Score = detect.Score
	log.Debug("detection", "subject", subject, "score", detect.Score, "reason", detect.Reason)

	if !detect.IsReport {
		res.Status = internal.EmailSkipped
		return res, s.db.UpdateEmailStatus(email.ID, internal.EmailSkipped)
	}
	if attErr != nil {
		return fail(attErr)
	}

	reportType, err := ParseReportType(s.cfg.DefaultReportType)
	if err != nil {
		return fail(err)
	}

	res.Output = MailOutputPath(s.cfg.OutputDir, email.ID, att.FileName)
	conv, err := s.converter.ConvertAttachment(email.ID, reportType, att, res.Output)
	if err != nil {
		return fail(err)
	}

	res.Status = internal.EmailConverted
	res.Rows = conv.Rows
	if err := s.db.UpdateEmailStatus(email.ID, internal.EmailConverted); err != nil {
		return res, err
	}
	return res, nil
}

// MailOutputPath places the CSV of an attachment under outputDir/mail,
// prefixed with the email id so names from different messages never clash.
func MailOutputPath(outputDir string, emailID int, attachmentName string) string {
	name := util.SanitizeFileName(util.ReplaceExt(filepath.Base(attachmentName), ".csv"))
	return filepath.Join(outputDir, "mail", fmt.Sprintf("%d_%s", emailID, name))
}
