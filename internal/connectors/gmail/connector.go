package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"tradeconv/internal"
	"tradeconv/internal/config"
)

const providerName = "gmail"

// reportQuery narrows the listing to messages that can carry a report.
const reportQuery = "has:attachment"

type Connector struct {
	service *gmail.Service
	limiter *RateLimiter
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}

	ctx := context.Background()
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &Connector{service: svc, limiter: NewRateLimiter(cfg.GmailRequestsPerSec)}, nil
}

func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	if err := c.limiter.WaitTurn(ctx); err != nil {
		return nil, err
	}
	listResp, err := c.service.Users.Messages.List("me").
		LabelIds(label).
		Q(reportQuery).
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("gmail list: %w", err)
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, msgRef := range listResp.Messages {
		if msgRef.Id == "" {
			continue
		}

		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, err
		}
		rawResp, err := c.service.Users.Messages.Get("me", msgRef.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("gmail get %s: %w", msgRef.Id, err)
		}
		if rawResp.Raw == "" {
			continue
		}

		rawBytes, err := decodeBase64URL(rawResp.Raw)
		if err != nil {
			return nil, err
		}

		msg, err := toFetched(msgRef.Id, rawBytes, time.Now())
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}

	return out, nil
}

// toFetched reads the headers straight from the raw message, which saves a
// metadata round trip per message.
func toFetched(gmailID string, raw []byte, now time.Time) (internal.FetchedMailMessage, error) {
	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return internal.FetchedMailMessage{}, fmt.Errorf("parse gmail message %s: %w", gmailID, err)
	}
	headers := parsed.Header

	received := now.UTC().Format(time.RFC3339)
	if dateHeader := headers.Get("Date"); dateHeader != "" {
		if t, err := mail.ParseDate(dateHeader); err == nil {
			received = t.UTC().Format(time.RFC3339)
		} else if t, err := mailDateFallback(dateHeader); err == nil {
			received = t.UTC().Format(time.RFC3339)
		}
	}

	messageID := strings.TrimSpace(headers.Get("Message-ID"))
	if messageID == "" {
		messageID = gmailID
	}

	return internal.FetchedMailMessage{
		Provider:   providerName,
		MessageID:  messageID,
		Subject:    headers.Get("Subject"),
		From:       headers.Get("From"),
		ReceivedAt: received,
		Raw:        raw,
	}, nil
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}

func mailDateFallback(value string) (time.Time, error) {
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC850, time.ANSIC}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format")
}
