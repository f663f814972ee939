package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tradeconv/internal"
	"tradeconv/internal/converters"
)

type fakeHistory struct {
	rows []internal.ConversionRow
	err  error
}

func (f *fakeHistory) InsertConversion(row internal.ConversionRow) (int64, error) {
	f.rows = append(f.rows, row)
	return int64(len(f.rows)), f.err
}

func TestParseReportType(t *testing.T) {
	rt, err := ParseReportType(" CQG-Fill-Report ")
	require.NoError(t, err)
	assert.Equal(t, internal.ReportCQGFillReport, rt)

	_, err = ParseReportType("ibkr-flex")
	require.EqualError(t, err, "unsupported report type: ibkr-flex")
}

func TestConvert(t *testing.T) {
	_, err := Convert("unknown", internal.Grid{})
	require.EqualError(t, err, "unsupported report type: unknown")

	_, err = Convert(internal.ReportCQGFillReport, internal.Grid{{"only one row"}})
	kind, ok := converters.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, converters.KindStructural, kind)
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, "reports/fills.csv", DefaultOutputPath("reports/fills.xlsx"))
	assert.Equal(t, "fills.csv", DefaultOutputPath("fills"))
}

func TestConvertService_ConvertFile(t *testing.T) {
	t.Run("writes the csv next to the input by default", func(t *testing.T) {
		dir := t.TempDir()
		input := writeFile(t, dir, "fills.xlsx", fillReportWorkbook(t))
		history := &fakeHistory{}

		res, err := NewConvertService(nil, history).ConvertFile(internal.ReportCQGFillReport, input, "")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "fills.csv"), res.Output)
		assert.Equal(t, 2, res.Rows)
		assert.NotEmpty(t, res.TraceID)

		content, err := os.ReadFile(res.Output)
		require.NoError(t, err)
		assert.Equal(t, fillReportCSV, string(content))

		require.Len(t, history.rows, 1)
		assert.Equal(t, res.TraceID, history.rows[0].TraceID)
		assert.Nil(t, history.rows[0].EmailID)
		assert.Nil(t, history.rows[0].Error)
		assert.Equal(t, 2, history.rows[0].Rows)
	})

	t.Run("honors an explicit output path", func(t *testing.T) {
		dir := t.TempDir()
		input := writeFile(t, dir, "fills.xlsx", fillReportWorkbook(t))
		output := filepath.Join(dir, "out", "journal.csv")

		res, err := NewConvertService(nil, nil).ConvertFile(internal.ReportCQGFillReport, input, output)
		require.NoError(t, err)
		assert.Equal(t, output, res.Output)
		assert.FileExists(t, output)
	})

	t.Run("writes nothing when the report is invalid", func(t *testing.T) {
		dir := t.TempDir()
		content := workbookBytes(t, func(f *excelize.File, sheet string) {
			require.NoError(t, f.SetCellValue(sheet, "A1", "Fill Report as of 12/10/25"))
			require.NoError(t, f.SetCellValue(sheet, "A2", "Time"))
			require.NoError(t, f.SetCellValue(sheet, "B2", "Symbol"))
		})
		input := writeFile(t, dir, "fills.xlsx", content)
		history := &fakeHistory{}

		_, err := NewConvertService(nil, history).ConvertFile(internal.ReportCQGFillReport, input, "")
		var missing *converters.MissingColumnError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "could not find 'B (...)' column", err.Error())
		assert.NoFileExists(t, filepath.Join(dir, "fills.csv"))

		require.Len(t, history.rows, 1)
		require.NotNil(t, history.rows[0].Error)
		assert.Equal(t, err.Error(), *history.rows[0].Error)
		assert.Zero(t, history.rows[0].Rows)
	})

	t.Run("does not fail when history cannot be recorded", func(t *testing.T) {
		dir := t.TempDir()
		input := writeFile(t, dir, "fills.xlsx", fillReportWorkbook(t))

		_, err := NewConvertService(nil, &fakeHistory{err: errors.New("locked")}).ConvertFile(internal.ReportCQGFillReport, input, "")
		require.NoError(t, err)
	})
}

func TestConvertService_ConvertAttachment(t *testing.T) {
	out := filepath.Join(t.TempDir(), "mail", "7_fills.csv")
	history := &fakeHistory{}
	att := Attachment{FileName: "fills.xlsx", Kind: internal.InputXLSX, Content: fillReportWorkbook(t)}

	res, err := NewConvertService(nil, history).ConvertAttachment(7, internal.ReportCQGFillReport, att, out)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.FileExists(t, out)

	require.Len(t, history.rows, 1)
	require.NotNil(t, history.rows[0].EmailID)
	assert.Equal(t, 7, *history.rows[0].EmailID)
	assert.Equal(t, "fills.xlsx", history.rows[0].InputPath)
}
