package listener

import (
	"context"
	"fmt"
	"time"

	"tradeconv/internal/config"
	"tradeconv/internal/connectors"
	gmailconnector "tradeconv/internal/connectors/gmail"
	imapconnector "tradeconv/internal/connectors/imap"
	"tradeconv/internal/logger"
	"tradeconv/internal/pipeline"
	"tradeconv/internal/storage"
)

// LastCycleKey holds the RFC3339 time of the last completed cycle.
const LastCycleKey = "listener.lastCycle"

type Service struct {
	db         *storage.DB
	cfg        config.Config
	log        logger.Logger
	newConnect connectors.Factory
}

func NewService(db *storage.DB, cfg config.Config, log logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{db: db, cfg: cfg, log: log, newConnect: ConnectorFactory(cfg)}
}

// WithConnectorFactory replaces how mailbox connectors are built.
func (s *Service) WithConnectorFactory(factory connectors.Factory) *Service {
	s.newConnect = factory
	return s
}

type CycleResult struct {
	Provider string
	Fetched  int
	Stored   int
	Pending  pipeline.PendingResult
}

// Run polls the mailbox until ctx is cancelled. Cycle errors are logged and
// the next cycle runs on schedule.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	s.log.Info("listener started", "provider", s.cfg.MailListenerProvider, "label", s.cfg.MailListenerLabel, "interval", interval)

	for {
		if _, err := s.RunCycle(ctx); err != nil {
			s.log.Error("listener cycle error", "err", err)
		}

		select {
		case <-ctx.Done():
			s.log.Info("listener stopped")
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider, err := connectors.NormalizeProvider(s.cfg.MailListenerProvider)
	if err != nil {
		return CycleResult{}, err
	}
	res := CycleResult{Provider: provider}

	mailConnector, err := s.newConnect(provider)
	if err != nil {
		return res, err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector, s.log)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return res, fmt.Errorf("fetch: %w", err)
	}
	res.Fetched, res.Stored = fetchResult.Fetched, fetchResult.Stored

	processor := pipeline.NewProcessingService(s.db, s.cfg, s.log)
	res.Pending, err = processor.ProcessPending(s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return res, fmt.Errorf("process: %w", err)
	}

	if err := s.db.SetMetadata(LastCycleKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return res, err
	}

	s.log.Info("listener cycle done",
		"provider", provider,
		"fetched", res.Fetched,
		"stored", res.Stored,
		"converted", res.Pending.Converted,
		"skipped", res.Pending.Skipped,
		"failed", res.Pending.Failed,
	)
	return res, nil
}

// ConnectorFactory builds real IMAP or Gmail connectors from cfg.
func ConnectorFactory(cfg config.Config) connectors.Factory {
	return func(provider string) (connectors.MailConnector, error) {
		p, err := connectors.NormalizeProvider(provider)
		if err != nil {
			return nil, err
		}
		if p == "gmail" {
			return gmailconnector.NewConnector(cfg)
		}
		return imapconnector.NewConnector(cfg)
	}
}
