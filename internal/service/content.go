package service

import (
	"context"
	"io"

	"go.uber.org/zap"

	"cyberprint/internal/model"
	"cyberprint/internal/retry"
	"cyberprint/internal/storage"
)

// purgeContent deletes the bytes of doc. Failures are logged and otherwise ignored:
// the record is already terminal and nothing can fetch the object anymore.
func purgeContent(ctx context.Context, content storage.Storage, r *retry.Retrier, log *zap.Logger, doc *model.Document) {
	if doc.StorageKey == "" {
		return
	}
	err := r.Do(ctx, "storage.delete", func(ctx context.Context) error {
		return storageErr(content.Delete(ctx, doc.StorageKey))
	})
	if err != nil {
		log.Warn("content_purge_failed",
			zap.String("document_id", doc.ID),
			zap.String("storage_key", doc.StorageKey),
			zap.Error(err))
	}
}

// storageErr marks storage failures that another attempt cannot fix as permanent.
func storageErr(err error) error {
	if storage.IsPermanent(err) {
		return retry.Permanent(err)
	}
	return err
}

// fetchContent opens doc's bytes. Missing objects and client errors are not retried.
func fetchContent(ctx context.Context, content storage.Storage, r *retry.Retrier, doc *model.Document) (*contentStream, error) {
	var out contentStream
	err := r.Do(ctx, "storage.get", func(ctx context.Context) error {
		rc, info, err := content.Get(ctx, doc.StorageKey)
		if err != nil {
			return storageErr(err)
		}
		out = contentStream{reader: rc, info: info}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type contentStream struct {
	reader io.ReadCloser
	info   storage.ObjectInfo
}
