package repository

import (
	"context"

	"cyberprint/internal/model"
)

// CenterRepository defines data access for center accounts.
type CenterRepository interface {
	Create(ctx context.Context, c *model.Center) (*model.Center, error)
	FindByID(ctx context.Context, id string) (*model.Center, error)
	// FindByOwner returns the center operated by an account.
	FindByOwner(ctx context.Context, ownerAccountID string) (*model.Center, error)
	// ListActive returns a page of active centers ordered by name.
	ListActive(ctx context.Context, pq PageQuery) (*PageResult[model.Center], error)
}
