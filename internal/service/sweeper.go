package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cyberprint/internal/config"
	"cyberprint/internal/model"
	"cyberprint/internal/repository"
	"cyberprint/internal/retry"
	"cyberprint/internal/storage"
)

const sweepBatch = 100

// Sweeper expires documents that sat too long in a non-terminal status.
type Sweeper struct {
	store    repository.Store
	content  storage.Storage
	retrier  *retry.Retrier
	log      *zap.Logger
	metrics  *Metrics
	interval time.Duration
	rules    []sweepRule
	now      func() time.Time
}

type sweepRule struct {
	status model.Status
	maxAge time.Duration
}

// NewSweeper builds a sweeper from the print settings. Verified documents expire after
// ConfirmTimeout; pending and otp_issued ones after DocumentTTL.
func NewSweeper(store repository.Store, content storage.Storage, r *retry.Retrier, log *zap.Logger, m *Metrics, cfg config.PrintConfig) *Sweeper {
	return &Sweeper{
		store:    store,
		content:  content,
		retrier:  r,
		log:      log,
		metrics:  m,
		interval: cfg.SweepInterval,
		rules: []sweepRule{
			{status: model.StatusVerified, maxAge: cfg.ConfirmTimeout},
			{status: model.StatusOTPIssued, maxAge: cfg.DocumentTTL},
			{status: model.StatusPending, maxAge: cfg.DocumentTTL},
		},
		now: time.Now,
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.log.Info("sweeper_started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper_stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("sweep_failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one pass and returns how many documents it expired.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	total := 0
	for _, rule := range s.rules {
		if rule.maxAge <= 0 {
			continue
		}
		for {
			now := s.now().UTC()
			docs, err := s.store.Documents().ExpireStale(ctx, rule.status, now.Add(-rule.maxAge), now, sweepBatch)
			if err != nil {
				return total, internal("expire stale documents", err)
			}
			for i := range docs {
				s.retire(ctx, rule.status, &docs[i], now)
			}
			total += len(docs)
			if len(docs) < sweepBatch {
				break
			}
		}
	}
	if total > 0 {
		s.log.Info("sweep_completed", zap.Int("expired", total))
	}
	return total, nil
}

func (s *Sweeper) retire(ctx context.Context, from model.Status, doc *model.Document, now time.Time) {
	if _, err := s.store.Codes().InvalidateAll(ctx, doc.ID, model.ConsumeRevoked, now); err != nil {
		s.log.Warn("code_revoke_failed", zap.String("document_id", doc.ID), zap.Error(err))
	}
	purgeContent(ctx, s.content, s.retrier, s.log, doc)
	s.metrics.documentExpired(string(from))
	s.log.Info("document_expired",
		zap.String("document_id", doc.ID),
		zap.String("previous_status", string(from)))
}
