package listener

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tradeconv/internal"
	"tradeconv/internal/config"
	"tradeconv/internal/connectors"
	"tradeconv/internal/storage"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
	err      error
	calls    int
}

func (f *fakeConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	f.calls++
	return f.messages, f.err
}

func fillReportEML(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Fill Report as of 12/10/25 8:20:27 PM"},
		{"Time", "Symbol", "B (1)", "S (1)", "Fill P"},
		{"9:30:15 AM", "F.US.EPZ25", 1, "", 6850.25},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	return []byte("Subject: CQG Fill Report\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=b\r\n\r\n" +
		"--b\r\nContent-Type: text/plain\r\n\r\nattached\r\n" +
		"--b\r\nContent-Type: application/octet-stream\r\n" +
		"Content-Disposition: attachment; filename=\"fills.xlsx\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n\r\n" +
		base64.StdEncoding.EncodeToString(buf.Bytes()) + "\r\n--b--\r\n")
}

func newService(t *testing.T, conn connectors.MailConnector) (*Service, *storage.DB, config.Config) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		RawMailDir:               filepath.Join(dir, "raw"),
		OutputDir:                filepath.Join(dir, "out"),
		DefaultReportType:        string(internal.ReportCQGFillReport),
		MailListenerProvider:     "IMAP",
		MailListenerLabel:        "INBOX",
		MailListenerIntervalSec:  1,
		MailListenerFetchMax:     10,
		MailListenerProcessBatch: 10,
		MailReportKeywords:       []string{"fill report"},
	}
	svc := NewService(db, cfg, nil).WithConnectorFactory(func(string) (connectors.MailConnector, error) {
		return conn, nil
	})
	return svc, db, cfg
}

func TestService_RunCycle(t *testing.T) {
	t.Run("fetches, converts and remembers the cycle", func(t *testing.T) {
		conn := &fakeConnector{messages: []internal.FetchedMailMessage{
			{Provider: "imap", MessageID: "<1@cqg>", Subject: "CQG Fill Report", Raw: fillReportEML(t)},
			{Provider: "imap", MessageID: "<2@cqg>", Subject: "Hello", Raw: []byte("Subject: Hello\r\n\r\nhi\r\n")},
		}}
		svc, db, cfg := newService(t, conn)

		res, err := svc.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "imap", res.Provider)
		assert.Equal(t, 2, res.Fetched)
		assert.Equal(t, 1, res.Pending.Converted)
		assert.Equal(t, 1, res.Pending.Skipped)
		assert.Equal(t, 1, res.Pending.Rows)

		row, err := db.MustEmailByProviderMessageID("imap", "<1@cqg>")
		require.NoError(t, err)
		assert.Equal(t, internal.EmailConverted, row.Status)
		assert.FileExists(t, filepath.Join(cfg.OutputDir, "mail", "1_fills.csv"))

		last, err := db.GetMetadata(LastCycleKey)
		require.NoError(t, err)
		require.NotNil(t, last)
	})

	t.Run("reports fetch errors", func(t *testing.T) {
		svc, _, _ := newService(t, &fakeConnector{err: errors.New("auth failed")})
		_, err := svc.RunCycle(context.Background())
		require.EqualError(t, err, "fetch: auth failed")
	})

	t.Run("rejects unknown providers", func(t *testing.T) {
		svc, _, _ := newService(t, &fakeConnector{})
		svc.cfg.MailListenerProvider = "pop3"
		_, err := svc.RunCycle(context.Background())
		require.EqualError(t, err, "unsupported provider: pop3")
	})
}

func TestService_Run(t *testing.T) {
	t.Run("stops when the context is cancelled", func(t *testing.T) {
		conn := &fakeConnector{err: errors.New("offline")}
		svc, _, _ := newService(t, conn)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		require.NoError(t, svc.Run(ctx))
		assert.Equal(t, 1, conn.calls)
	})
}

func TestConnectorFactory(t *testing.T) {
	_, err := ConnectorFactory(config.Config{})("imap")
	require.ErrorContains(t, err, "IMAP_HOST")

	_, err = ConnectorFactory(config.Config{})("gmail")
	require.ErrorContains(t, err, "GMAIL_CLIENT_ID")

	_, err = ConnectorFactory(config.Config{})("pop3")
	require.EqualError(t, err, "unsupported provider: pop3")
}
