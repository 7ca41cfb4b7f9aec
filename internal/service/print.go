package service

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"cyberprint/internal/grant"
	"cyberprint/internal/model"
	"cyberprint/internal/repository"
	"cyberprint/internal/retry"
	"cyberprint/internal/storage"
)

// Session is one content delivery opened through a grant. The caller streams Reader to
// the operator and closes it.
type Session struct {
	Document    *model.Document
	Reader      io.ReadCloser
	Size        int64
	ContentType string
}

// PrintService delivers verified documents to the operator and records the print.
type PrintService interface {
	// Open redeems a grant. A grant yields content at most once.
	Open(ctx context.Context, p model.Principal, token string) (*Session, error)

	// MarkPrinted confirms the print of a delivered document.
	MarkPrinted(ctx context.Context, p model.Principal, documentID string) (*model.Document, error)
}

type printService struct {
	store   repository.Store
	content storage.Storage
	dir     DirectoryService
	grants  GrantStore
	retrier *retry.Retrier
	log     *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewPrintService constructs a PrintService.
func NewPrintService(store repository.Store, content storage.Storage, dir DirectoryService, grants GrantStore, r *retry.Retrier, log *zap.Logger, m *Metrics) PrintService {
	return &printService{
		store:   store,
		content: content,
		dir:     dir,
		grants:  grants,
		retrier: r,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

func (s *printService) Open(ctx context.Context, p model.Principal, token string) (*Session, error) {
	center, err := s.dir.CenterFor(ctx, p)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, s.reject("missing", ErrGrantInvalid)
	}

	g, err := s.grants.Claim(ctx, token)
	if err != nil {
		if errors.Is(err, grant.ErrNotFound) || errors.Is(err, grant.ErrInUse) {
			return nil, s.reject("invalid", ErrGrantInvalid)
		}
		return nil, s.reject("error", transient("claim grant", err))
	}
	if g.CenterID != center.ID {
		s.release(ctx, token)
		return nil, s.reject("wrong_center", ErrGrantInvalid)
	}
	if g.Expired(s.now()) {
		s.consume(ctx, token)
		return nil, s.reject("expired", ErrGrantInvalid)
	}

	doc, err := findDocument(ctx, s.store.Documents(), g.DocumentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.consume(ctx, token)
			return nil, s.reject("invalid", ErrGrantInvalid)
		}
		s.release(ctx, token)
		return nil, s.reject("error", err)
	}
	if doc.Status != model.StatusVerified {
		s.consume(ctx, token)
		return nil, s.reject("invalid", ErrGrantInvalid)
	}

	stream, err := fetchContent(ctx, s.content, s.retrier, doc)
	if err != nil {
		s.release(ctx, token)
		s.log.Warn("content_fetch_failed", zap.String("document_id", doc.ID), zap.Error(err))
		return nil, s.reject("unavailable", ErrContentUnavailable)
	}

	now := s.now().UTC()
	if err := s.store.Documents().MarkDelivered(ctx, doc.ID, now); err != nil {
		stream.reader.Close()
		if errors.Is(err, repository.ErrStaleState) || errors.Is(err, repository.ErrNotFound) {
			s.consume(ctx, token)
			return nil, s.reject("invalid", ErrGrantInvalid)
		}
		s.release(ctx, token)
		return nil, s.reject("error", internal("mark delivered", err))
	}
	// A consume failure leaves the grant claimed, and a claimed grant cannot be redeemed.
	s.consume(ctx, token)
	doc.DeliveredAt = &now

	size := stream.info.Size
	if size <= 0 {
		size = doc.Size
	}
	contentType := stream.info.ContentType
	if contentType == "" {
		contentType = doc.ContentType
	}

	s.metrics.delivery("success")
	s.log.Info("content_delivered",
		zap.String("document_id", doc.ID),
		zap.String("center_id", center.ID),
		zap.Int64("size", size))
	return &Session{Document: doc, Reader: stream.reader, Size: size, ContentType: contentType}, nil
}

func (s *printService) MarkPrinted(ctx context.Context, p model.Principal, documentID string) (*model.Document, error) {
	center, err := s.dir.CenterFor(ctx, p)
	if err != nil {
		return nil, err
	}

	var printed *model.Document
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		doc, err := lockDocument(ctx, tx.Documents(), documentID)
		if err != nil {
			return err
		}
		if doc.CenterID != center.ID {
			return ErrWrongCenter
		}
		switch {
		case doc.Status == model.StatusPrinted:
			return ErrAlreadyPrinted
		case doc.Status != model.StatusVerified:
			return ErrStaleState
		case doc.DeliveredAt == nil:
			return ErrNotDelivered
		}
		now := s.now().UTC()
		if err := tx.Documents().UpdateStatus(ctx, doc.ID, model.StatusVerified, model.StatusPrinted, now); err != nil {
			return stateError("mark printed", err)
		}
		doc.Status = model.StatusPrinted
		doc.UpdatedAt = now
		printed = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	purgeContent(ctx, s.content, s.retrier, s.log, printed)
	s.log.Info("document_printed", zap.String("document_id", printed.ID), zap.String("center_id", center.ID))
	return printed, nil
}

func (s *printService) reject(result string, err error) error {
	s.metrics.delivery(result)
	return err
}

func (s *printService) release(ctx context.Context, token string) {
	if err := s.grants.Release(ctx, token); err != nil {
		s.log.Warn("grant_release_failed", zap.Error(err))
	}
}

func (s *printService) consume(ctx context.Context, token string) {
	if err := s.grants.Consume(ctx, token); err != nil {
		s.log.Warn("grant_consume_failed", zap.Error(err))
	}
}
