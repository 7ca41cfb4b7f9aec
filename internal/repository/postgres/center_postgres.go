package postgres

import (
	"context"
	"database/sql"
	"errors"

	"cyberprint/internal/model"
	"cyberprint/internal/repository"
)

const centerColumns = `id, name, address, owner_account_id, active, created_at`

// CenterPostgres is a PostgreSQL implementation of repository.CenterRepository.
type CenterPostgres struct {
	db querier
}

// NewCenterPostgres creates a new CenterPostgres repository over a *sql.DB or *sql.Tx.
func NewCenterPostgres(db querier) *CenterPostgres {
	return &CenterPostgres{db: db}
}

var _ repository.CenterRepository = (*CenterPostgres)(nil)

func scanCenter(s rowScanner) (*model.Center, error) {
	var c model.Center
	if err := s.Scan(&c.ID, &c.Name, &c.Address, &c.OwnerAccountID, &c.Active, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new center row.
func (r *CenterPostgres) Create(ctx context.Context, c *model.Center) (*model.Center, error) {
	q := `
		INSERT INTO centers (id, name, address, owner_account_id, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + centerColumns
	return scanCenter(r.db.QueryRowContext(ctx, q, c.ID, c.Name, c.Address, c.OwnerAccountID, c.Active, c.CreatedAt))
}

// FindByID fetches a center by its public ID.
func (r *CenterPostgres) FindByID(ctx context.Context, id string) (*model.Center, error) {
	q := `SELECT ` + centerColumns + ` FROM centers WHERE id = $1`
	return r.findOne(ctx, q, id)
}

// FindByOwner fetches the center operated by an account.
func (r *CenterPostgres) FindByOwner(ctx context.Context, ownerAccountID string) (*model.Center, error) {
	q := `SELECT ` + centerColumns + ` FROM centers WHERE owner_account_id = $1`
	return r.findOne(ctx, q, ownerAccountID)
}

func (r *CenterPostgres) findOne(ctx context.Context, q string, arg string) (*model.Center, error) {
	c, err := scanCenter(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListActive returns active centers ordered by name.
func (r *CenterPostgres) ListActive(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Center], error) {
	const qCount = `SELECT COUNT(*) FROM centers WHERE active`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT ` + centerColumns + ` FROM centers
		WHERE active
		ORDER BY name, id
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, q, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Center, 0)
	for rows.Next() {
		c, err := scanCenter(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Center]{Items: items, Total: total}, nil
}
