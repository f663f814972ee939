package connectors

import (
	"context"

	"tradeconv/internal/logger"
	"tradeconv/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	log       logger.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log logger.Logger) *FetchService {
	if log == nil {
		log = logger.Discard()
	}
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		log:       log,
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, msg := range messages {
		row, err := s.store.Store(msg)
		if err != nil {
			return FetchResult{Fetched: len(messages), Stored: stored}, err
		}
		s.log.Debug("stored message", "provider", msg.Provider, "messageId", msg.MessageID, "email", row.ID, "status", row.Status)
		stored++
	}

	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}
