package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"github.com/xuri/excelize/v2"

	"tradeconv/internal"
	"tradeconv/internal/util"
)

var ErrNoWorksheets = errors.New("no worksheets found")

var isoDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// InputKindFor picks the decoder for a file by its extension.
func InputKindFor(name string) (internal.InputKind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return internal.InputXLSX, nil
	case ".html", ".htm":
		return internal.InputHTML, nil
	case ".eml":
		return internal.InputEML, nil
	default:
		return "", fmt.Errorf("unsupported input type: %s", name)
	}
}

// ReadGrid decodes the first worksheet (or table) of the file at path.
func ReadGrid(path string) (internal.Grid, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	kind, err := InputKindFor(path)
	if err != nil {
		return nil, err
	}

	if kind == internal.InputXLSX {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		defer f.Close()
		return readWorkbook(f)
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadGridFromBytes(kind, blob)
}

func ReadGridFromBytes(kind internal.InputKind, content []byte) (internal.Grid, error) {
	switch kind {
	case internal.InputXLSX:
		f, err := excelize.OpenReader(bytes.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		defer f.Close()
		return readWorkbook(f)
	case internal.InputHTML:
		return readHTMLGrid(content)
	case internal.InputEML:
		_, att, err := ReportAttachment(content)
		if err != nil {
			return nil, err
		}
		if att.Kind == internal.InputEML {
			return nil, fmt.Errorf("nested message attachments are not supported: %s", att.FileName)
		}
		return ReadGridFromBytes(att.Kind, att.Content)
	default:
		return nil, fmt.Errorf("unsupported input type: %s", kind)
	}
}

func readWorkbook(f *excelize.File) (internal.Grid, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoWorksheets
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	grid := make(internal.Grid, 0, len(rows))
	for r, row := range rows {
		cells := make([]string, len(row))
		for c, raw := range row {
			if raw == "" {
				continue
			}
			cellName, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			cells[c] = renderCell(f, sheet, cellName, raw, date1904)
		}
		grid = append(grid, cells)
	}
	return trimToUsedRange(grid), nil
}

// renderCell turns a raw cell value into text. Date and time cells become
// HH:MM:SS, booleans become true/false, everything else stays as stored.
func renderCell(f *excelize.File, sheet, cellName, raw string, date1904 bool) string {
	cellType, err := f.GetCellType(sheet, cellName)
	if err != nil {
		return raw
	}

	switch cellType {
	case excelize.CellTypeBool:
		return strconv.FormatBool(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeDate:
		for _, layout := range isoDateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.Format("15:04:05")
			}
		}
		return raw
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if !hasDateFormat(f, sheet, cellName) {
			return raw
		}
		serial, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw
		}
		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return raw
		}
		return t.Round(time.Second).Format("15:04:05")
	default:
		return raw
	}
}

func hasDateFormat(f *excelize.File, sheet, cellName string) bool {
	styleID, err := f.GetCellStyle(sheet, cellName)
	if err != nil || styleID == 0 {
		return false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	return isBuiltInDateFormat(style.NumFmt)
}

func isBuiltInDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	default:
		return false
	}
}

// isDateFormatCode reports whether a custom number format renders a date or
// time. Quoted literals, escapes and bracketed colors/locales are ignored.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case inQuote:
			if ch == '"' {
				inQuote = false
			}
		case inBracket:
			if ch == ']' {
				inBracket = false
			}
		case ch == '"':
			inQuote = true
		case ch == '[':
			// Elapsed time sections such as [h] or [mm] are still time formats.
			if end := strings.IndexByte(code[i:], ']'); end > 0 {
				inner := strings.ToLower(code[i+1 : i+end])
				if strings.Trim(inner, "hms") == "" && inner != "" {
					b.WriteString(inner)
				}
			}
			inBracket = true
		case ch == '\\' || ch == '_' || ch == '*':
			i++
		default:
			b.WriteByte(ch)
		}
	}
	return strings.ContainsAny(strings.ToLower(b.String()), "ydhms")
}

// readHTMLGrid reads every table row in document order. Some brokers export
// spreadsheets as HTML tables with an .xls or .html name.
func readHTMLGrid(content []byte) (internal.Grid, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html report: %w", err)
	}

	grid := internal.Grid{}
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := []string{}
		row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, util.NormalizeSpaces(cell.Text()))
		})
		grid = append(grid, util.TrimTrailingBlank(cells))
	})
	if len(grid) == 0 {
		return nil, errors.New("no table rows found in html report")
	}
	return trimToUsedRange(grid), nil
}

type Attachment struct {
	FileName string
	Kind     internal.InputKind
	Content  []byte
}

// ReportAttachment returns the parsed envelope of a raw message together with
// its first attachment that can be decoded into a grid.
func ReportAttachment(raw []byte) (*enmime.Envelope, Attachment, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, Attachment{}, fmt.Errorf("failed to read message: %w", err)
	}

	parts := append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...)
	for _, part := range parts {
		name := strings.TrimSpace(part.FileName)
		if name == "" {
			continue
		}
		kind, err := InputKindFor(name)
		if err != nil {
			continue
		}
		return env, Attachment{FileName: name, Kind: kind, Content: part.Content}, nil
	}
	return env, Attachment{}, errors.New("no report attachment found in message")
}

func AttachmentNames(env *enmime.Envelope) []string {
	names := make([]string, 0, len(env.Attachments)+len(env.Inlines))
	for _, part := range append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...) {
		if name := strings.TrimSpace(part.FileName); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// trimToUsedRange drops leading blank rows and leading columns that are blank
// in every row, so the grid starts at the first used cell like the sheet's
// used range does.
func trimToUsedRange(grid internal.Grid) internal.Grid {
	start := 0
	for start < len(grid) && util.IsBlankRow(grid[start]) {
		start++
	}
	grid = grid[start:]

	offset := -1
	for _, row := range grid {
		for c, v := range row {
			if strings.TrimSpace(v) != "" {
				if offset < 0 || c < offset {
					offset = c
				}
				break
			}
		}
	}
	if offset <= 0 {
		return grid
	}
	out := make(internal.Grid, len(grid))
	for i, row := range grid {
		if len(row) > offset {
			out[i] = row[offset:]
		} else {
			out[i] = []string{}
		}
	}
	return out
}
