package repository

import (
	"context"
	"time"

	"cyberprint/internal/model"
)

// CodeRepository defines data access for one-time codes.
type CodeRepository interface {
	// Create inserts a new code.
	Create(ctx context.Context, code *model.OneTimeCode) error

	// FindLatest returns the most recently issued code of a document, consumed or not.
	FindLatest(ctx context.Context, documentID string) (*model.OneTimeCode, error)

	// Consume marks an unconsumed code consumed. It returns ErrStaleState if the code
	// was already consumed.
	Consume(ctx context.Context, id string, reason model.ConsumeReason, at time.Time) error

	// IncrementAttempts records a failed verification and returns the new attempt count.
	IncrementAttempts(ctx context.Context, id string) (int, error)

	// InvalidateAll consumes every unconsumed code of a document with the given reason.
	InvalidateAll(ctx context.Context, documentID string, reason model.ConsumeReason, at time.Time) (int64, error)
}
