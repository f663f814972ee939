package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"tradeconv/internal"
	"tradeconv/internal/converters/cqg"
	"tradeconv/internal/logger"
	"tradeconv/internal/util"
)

type Normalizer func(internal.Grid) (internal.Grid, error)

var normalizers = map[internal.ReportType]Normalizer{
	internal.ReportCQGFillReport: cqg.Normalize,
}

func ParseReportType(value string) (internal.ReportType, error) {
	rt := internal.ReportType(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := normalizers[rt]; !ok {
		return "", fmt.Errorf("unsupported report type: %s", value)
	}
	return rt, nil
}

func Convert(reportType internal.ReportType, grid internal.Grid) (internal.Grid, error) {
	normalize, ok := normalizers[reportType]
	if !ok {
		return nil, fmt.Errorf("unsupported report type: %s", reportType)
	}
	return normalize(grid)
}

// DefaultOutputPath is the input path with its extension replaced by .csv.
func DefaultOutputPath(input string) string {
	return util.ReplaceExt(input, ".csv")
}

// HistoryRecorder persists one entry per conversion attempt.
type HistoryRecorder interface {
	InsertConversion(row internal.ConversionRow) (int64, error)
}

type ConvertResult struct {
	TraceID    string
	ReportType internal.ReportType
	Input      string
	Output     string
	Rows       int
	Duration   time.Duration
}

type ConvertService struct {
	log     logger.Logger
	history HistoryRecorder
}

// NewConvertService builds a converter; history may be nil.
func NewConvertService(log logger.Logger, history HistoryRecorder) *ConvertService {
	if log == nil {
		log = logger.Discard()
	}
	return &ConvertService{log: log, history: history}
}

// ConvertFile reads input, converts it and writes the CSV. Nothing is written
// when any step fails.
func (s *ConvertService) ConvertFile(reportType internal.ReportType, input, output string) (ConvertResult, error) {
	if strings.TrimSpace(output) == "" {
		output = DefaultOutputPath(input)
	}
	res := ConvertResult{TraceID: traceID(), ReportType: reportType, Input: input, Output: output}
	log := s.log.With("trace", res.TraceID, "type", reportType)

	start := time.Now()
	err := s.convertFile(log, &res)
	res.Duration = time.Since(start)

	s.record(nil, res, err)
	if err != nil {
		log.Debug("conversion failed", "input", input, "err", err)
		return res, err
	}
	log.Info("conversion complete", "input", input, "output", output, "rows", res.Rows, "took", res.Duration)
	return res, nil
}

func (s *ConvertService) convertFile(log logger.Logger, res *ConvertResult) error {
	grid, err := ReadGrid(res.Input)
	if err != nil {
		return err
	}
	log.Debug("read grid", "input", res.Input, "rows", len(grid))

	out, err := Convert(res.ReportType, grid)
	if err != nil {
		return err
	}
	res.Rows = len(out) - 1

	return WriteCSV(res.Output, out)
}

// ConvertAttachment converts an in-memory report (e.g. a mail attachment).
func (s *ConvertService) ConvertAttachment(emailID int, reportType internal.ReportType, att Attachment, output string) (ConvertResult, error) {
	res := ConvertResult{TraceID: traceID(), ReportType: reportType, Input: att.FileName, Output: output}
	log := s.log.With("trace", res.TraceID, "type", reportType, "email", emailID)

	start := time.Now()
	err := func() error {
		grid, err := ReadGridFromBytes(att.Kind, att.Content)
		if err != nil {
			return err
		}
		out, err := Convert(reportType, grid)
		if err != nil {
			return err
		}
		res.Rows = len(out) - 1
		return WriteCSV(output, out)
	}()
	res.Duration = time.Since(start)

	s.record(util.IntPtr(emailID), res, err)
	if err != nil {
		log.Warn("attachment conversion failed", "attachment", att.FileName, "err", err)
		return res, err
	}
	log.Info("attachment converted", "attachment", att.FileName, "output", output, "rows", res.Rows)
	return res, nil
}

func (s *ConvertService) record(emailID *int, res ConvertResult, convErr error) {
	if s.history == nil {
		return
	}
	row := internal.ConversionRow{
		TraceID:    res.TraceID,
		EmailID:    emailID,
		ReportType: res.ReportType,
		InputPath:  res.Input,
		OutputPath: res.Output,
		Rows:       res.Rows,
		DurationMs: res.Duration.Milliseconds(),
	}
	if convErr != nil {
		row.Rows = 0
		row.Error = util.StringPtr(convErr.Error())
	}
	if _, err := s.history.InsertConversion(row); err != nil {
		s.log.Warn("failed to record conversion", "trace", res.TraceID, "err", err)
	}
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
