package connectors

import (
	"context"
	"fmt"
	"strings"

	"tradeconv/internal"
)

type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

// Factory builds a connector for one provider from the loaded config.
type Factory func(provider string) (MailConnector, error)

// NormalizeProvider lowercases the provider name and rejects unknown ones.
func NormalizeProvider(provider string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(provider))
	switch p {
	case "gmail", "imap":
		return p, nil
	default:
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}
}
