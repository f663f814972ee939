package pipeline

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// fillReportWorkbook builds a CQG fill report with one time-styled fill, one
// text time, a blank row, a totals row and the disclaimer block.
func fillReportWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	set := func(cell string, value any) {
		require.NoError(t, f.SetCellValue(sheet, cell, value))
	}

	set("A1", "Fill Report for account 1234 as of 12/10/25 8:20:27 PM EST")
	for i, label := range []string{"Time", "Symbol", "B (Qty)", "S (Qty)", "Fill P"} {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		require.NoError(t, err)
		set(cell, label)
	}

	set("A3", time.Date(2025, 12, 10, 9, 30, 55, 0, time.UTC))
	set("B3", "F.US.EPZ25")
	set("C3", 2)
	set("E3", 6850.25)

	set("A4", "9:31:02 PM")
	set("B4", "F.US.EPZ25")
	set("C4", 0)
	set("D4", 2)
	set("E4", 6851.5)

	set("A6", "Total")
	set("C6", 2)
	set("D6", 2)
	set("A7", "Disclaimer: fills are reported as received from the exchange.")

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

var fillReportCSV = "Date,Time,Symbol,Quantity,Price,Side\n" +
	"12/10/2025,09:30:55,F.US.EPZ25,2,6850.25,Buy\n" +
	"12/10/2025,21:31:02,F.US.EPZ25,2,6851.5,Sell\n"

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// buildEML wraps content as a base64 attachment of a multipart message.
func buildEML(subject, body, fileName string, content []byte) []byte {
	var b strings.Builder
	boundary := "fills-boundary"
	fmt.Fprintf(&b, "Message-ID: <fills@cqg.example>\r\n")
	fmt.Fprintf(&b, "From: CQG Reports <reports@cqg.example>\r\n")
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: Wed, 10 Dec 2025 20:20:27 -0500\r\n")
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	fmt.Fprintf(&b, "Content-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", body)

	if fileName != "" {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: application/octet-stream; name=%q\r\n", fileName)
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n", fileName)
		fmt.Fprintf(&b, "Content-Transfer-Encoding: base64\r\n\r\n")
		encoded := base64.StdEncoding.EncodeToString(content)
		for len(encoded) > 76 {
			b.WriteString(encoded[:76] + "\r\n")
			encoded = encoded[76:]
		}
		b.WriteString(encoded + "\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
