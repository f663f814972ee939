package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("IMAP_PORT", "not-a-number")
	t.Setenv("RECORD_HISTORY", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.LogLevel)
	assert.Equal(t, 993, cfg.IMAPPort)
	assert.False(t, cfg.RecordHistory)
	assert.Equal(t, "cqg-fill-report", cfg.DefaultReportType)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("RECORD_HISTORY", "yes")
	t.Setenv("IMAP_SECURE", "off")
	t.Setenv("MAIL_LISTENER_INTERVAL_SEC", "5")
	t.Setenv("MAIL_REPORT_KEYWORDS", " fills , , statement ")
	t.Setenv("GMAIL_REQUESTS_PER_SEC", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.True(t, cfg.RecordHistory)
	assert.False(t, cfg.IMAPSecure)
	assert.Equal(t, 5, cfg.MailListenerIntervalSec)
	assert.Equal(t, []string{"fills", "statement"}, cfg.MailReportKeywords)
	assert.Equal(t, 4, cfg.GmailRequestsPerSec)
}

func TestRequire(t *testing.T) {
	var cfg Config
	assert.EqualError(t, cfg.Require("IMAP_HOST", "  "), "missing required env var: IMAP_HOST")
	assert.NoError(t, cfg.Require("IMAP_HOST", "mail.example.com"))
}
