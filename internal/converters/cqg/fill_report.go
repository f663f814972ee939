// Package cqg converts CQG fill reports.
//
// A fill report sheet looks like:
//
//	Fills reported as of 12/10/25 8:20:27 PM for the following accounts: ac214461 (214461)
//	Time | Symbol | B (100) | S (100) | Fill P | ...
//	<fill rows>
//	<blank>
//	Disclaimer ...
package cqg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tradeconv/internal"
	"tradeconv/internal/converters"
	"tradeconv/internal/util"
)

const disclaimerMarker = "Disclaimer"

type headerIndices struct {
	time      int
	symbol    int
	buy       int
	sell      int
	fillPrice int
}

// Normalize converts a fill report grid into the Date, Time, Symbol,
// Quantity, Price, Side layout. Any failing row aborts the conversion.
func Normalize(rows internal.Grid) (internal.Grid, error) {
	if len(rows) < 2 {
		return nil, &converters.FormatError{Reason: "file must contain at least 2 rows (date line and header)"}
	}

	date, err := parseReportDate(firstCell(rows[0]))
	if err != nil {
		return nil, err
	}

	idx, err := resolveHeader(rows[1])
	if err != nil {
		return nil, err
	}

	end := dataEnd(rows)

	out := internal.Grid{append([]string(nil), internal.OutputHeader...)}
	for i := 2; i < end; i++ {
		row := rows[i]
		if util.IsBlankRow(row) {
			continue
		}
		converted, err := convertRow(i, row, date, idx)
		if err != nil {
			return nil, err
		}
		out = append(out, converted)
	}
	return out, nil
}

// parseReportDate pulls the date following "of" and widens two digit years.
func parseReportDate(line string) (string, error) {
	parts := strings.Fields(line)

	dateStr := ""
	found := false
	for i, p := range parts {
		if p == "of" {
			if i+1 < len(parts) {
				dateStr = parts[i+1]
				found = true
			}
			break
		}
	}
	if !found {
		return "", &converters.DateError{Reason: "could not find date in first line"}
	}

	dateParts := strings.Split(dateStr, "/")
	if len(dateParts) != 3 {
		return "", &converters.DateError{Value: dateStr, Reason: "invalid date format"}
	}

	month, day, year := dateParts[0], dateParts[1], dateParts[2]
	if len(year) == 2 {
		year = "20" + year
	}
	return fmt.Sprintf("%s/%s/%s", month, day, year), nil
}

func resolveHeader(header []string) (headerIndices, error) {
	timeIdx, symbolIdx, buyIdx, sellIdx, fillIdx := -1, -1, -1, -1, -1

	// Buy/sell labels carry the account size, e.g. "B (100)", so they match on prefix.
	for i, col := range header {
		c := strings.TrimSpace(col)
		switch {
		case c == "Time":
			timeIdx = i
		case c == "Symbol":
			symbolIdx = i
		case strings.HasPrefix(c, "B ("):
			buyIdx = i
		case strings.HasPrefix(c, "S ("):
			sellIdx = i
		case c == "Fill P":
			fillIdx = i
		}
	}

	checks := []struct {
		idx   int
		label string
	}{
		{timeIdx, "Time"},
		{symbolIdx, "Symbol"},
		{buyIdx, "B (...)"},
		{sellIdx, "S (...)"},
		{fillIdx, "Fill P"},
	}
	for _, c := range checks {
		if c.idx < 0 {
			return headerIndices{}, &converters.MissingColumnError{Label: c.label}
		}
	}

	return headerIndices{time: timeIdx, symbol: symbolIdx, buy: buyIdx, sell: sellIdx, fillPrice: fillIdx}, nil
}

// dataEnd returns the exclusive end of the fill rows. The row right above the
// last disclaimer is the blank separator and is excluded as well.
func dataEnd(rows internal.Grid) int {
	for i := len(rows) - 1; i >= 0; i-- {
		if len(rows[i]) > 0 && strings.HasPrefix(strings.TrimSpace(rows[i][0]), disclaimerMarker) {
			if i == 0 {
				return 0
			}
			return i - 1
		}
	}
	return len(rows)
}

func convertRow(rowNo int, row []string, date string, idx headerIndices) ([]string, error) {
	tm, err := convertTime(cell(row, idx.time))
	if err != nil {
		var te *converters.TimeError
		if errors.As(err, &te) {
			te.Row = rowNo
		}
		return nil, err
	}

	symbol := strings.TrimSpace(cell(row, idx.symbol))
	buyQty := strings.TrimSpace(cell(row, idx.buy))
	sellQty := strings.TrimSpace(cell(row, idx.sell))

	var side internal.Side
	var qty string
	switch {
	case buyQty != "" && buyQty != "0":
		side, qty = internal.SideBuy, buyQty
	case sellQty != "" && sellQty != "0":
		side, qty = internal.SideSell, sellQty
	default:
		return nil, &converters.AmbiguousSideError{Row: rowNo}
	}

	price := strings.TrimSpace(cell(row, idx.fillPrice))

	return []string{date, tm, symbol, qty, price, string(side)}, nil
}

// convertTime normalizes "9:30:15 AM", "14:30" and similar to HH:MM:SS.
func convertTime(value string) (string, error) {
	value = strings.TrimSpace(value)
	parts := strings.Fields(value)

	if len(parts) == 1 && strings.Count(value, ":") == 2 {
		return value, nil
	}
	if len(parts) == 0 {
		return "", &converters.TimeError{Value: value, Err: errors.New("empty time string")}
	}

	components := strings.Split(parts[0], ":")
	if len(components) < 2 {
		return "", &converters.TimeError{Value: value}
	}

	hour, err := strconv.Atoi(components[0])
	if err != nil {
		return "", &converters.TimeError{Value: value, Err: err}
	}
	minute, err := strconv.Atoi(components[1])
	if err != nil {
		return "", &converters.TimeError{Value: value, Err: err}
	}
	second := 0
	if len(components) >= 3 {
		if second, err = strconv.Atoi(components[2]); err != nil {
			return "", &converters.TimeError{Value: value, Err: err}
		}
	}

	if len(parts) > 1 {
		switch strings.ToUpper(parts[1]) {
		case "PM":
			if hour != 12 {
				hour += 12
			}
		case "AM":
			if hour == 12 {
				hour = 0
			}
		}
	}

	return fmt.Sprintf("%02d:%02d:%02d", hour, minute, second), nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func firstCell(row []string) string {
	return cell(row, 0)
}
