package repository

import (
	"context"
	"errors"
	"time"

	"cyberprint/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrStaleState is returned when a conditional update matched no row because the
	// record is no longer in the expected state.
	ErrStaleState = errors.New("record state changed")
)

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here, strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record and returns the stored row.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// LockByID returns a document and, inside a transaction, holds a row lock until commit.
	LockByID(ctx context.Context, id string) (*model.Document, error)

	// ListByCenter returns the documents of a center in any of the given statuses, newest first.
	ListByCenter(ctx context.Context, centerID string, statuses []model.Status) ([]model.Document, error)

	// ListByOwner returns a page of an owner's documents, excluding deleted ones.
	ListByOwner(ctx context.Context, ownerID string, pq PageQuery) (*PageResult[model.Document], error)

	// UpdateStatus moves a document from one status to another.
	// It returns ErrStaleState if the document is not currently in from.
	UpdateStatus(ctx context.Context, id string, from, to model.Status, at time.Time) error

	// MarkDelivered records the time the content was streamed to an operator.
	MarkDelivered(ctx context.Context, id string, at time.Time) error

	// ExpireStale moves every document in status whose last change is before cutoff to expired
	// and returns the affected rows.
	ExpireStale(ctx context.Context, status model.Status, cutoff, at time.Time, limit int) ([]model.Document, error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
