package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cyberprint/internal/model"
	"cyberprint/internal/repository"
)

const documentColumns = `id, center_id, owner_id, submitter_name, submitter_email, submitter_phone,
		filename, storage_key, size, content_type, status, created_at, updated_at, delivered_at`

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db querier
}

// NewDocumentPostgres creates a new DocumentPostgres repository over a *sql.DB or *sql.Tx.
func NewDocumentPostgres(db querier) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

func scanDocument(s rowScanner) (*model.Document, error) {
	var (
		d         model.Document
		owner     sql.NullString
		status    string
		delivered sql.NullTime
	)
	if err := s.Scan(
		&d.ID,
		&d.CenterID,
		&owner,
		&d.Submitter.Name,
		&d.Submitter.Email,
		&d.Submitter.Phone,
		&d.Filename,
		&d.StorageKey,
		&d.Size,
		&d.ContentType,
		&status,
		&d.CreatedAt,
		&d.UpdatedAt,
		&delivered,
	); err != nil {
		return nil, err
	}
	d.OwnerID = owner.String
	d.Status = model.Status(status)
	if !d.Status.Valid() {
		return nil, fmt.Errorf("document %s has unknown status %q", d.ID, status)
	}
	if delivered.Valid {
		t := delivered.Time
		d.DeliveredAt = &t
	}
	return &d, nil
}

func scanDocuments(rows *sql.Rows) ([]model.Document, error) {
	defer rows.Close()
	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, center_id, owner_id, submitter_name, submitter_email, submitter_phone,
			filename, storage_key, size, content_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.CenterID,
		nullString(doc.OwnerID),
		doc.Submitter.Name,
		doc.Submitter.Email,
		doc.Submitter.Phone,
		doc.Filename,
		doc.StorageKey,
		doc.Size,
		doc.ContentType,
		string(doc.Status),
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return r.findOne(ctx, q, id)
}

// LockByID fetches a document with SELECT ... FOR UPDATE.
func (r *DocumentPostgres) LockByID(ctx context.Context, id string) (*model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`
	return r.findOne(ctx, q, id)
}

func (r *DocumentPostgres) findOne(ctx context.Context, q string, args ...any) (*model.Document, error) {
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListByCenter returns a center's documents in the given statuses.
func (r *DocumentPostgres) ListByCenter(ctx context.Context, centerID string, statuses []model.Status) ([]model.Document, error) {
	if len(statuses) == 0 {
		return []model.Document{}, nil
	}
	args := []any{centerID}
	placeholders := make([]string, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, string(s))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	q := `SELECT ` + documentColumns + ` FROM documents
		WHERE center_id = $1 AND status IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

// ListByOwner returns an owner's documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) ListByOwner(ctx context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents WHERE owner_id = $1 AND status <> 'deleted'`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, ownerID).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT ` + documentColumns + ` FROM documents
		WHERE owner_id = $1 AND status <> 'deleted'
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, ownerID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	items, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

// UpdateStatus performs a compare-and-set on the status column.
func (r *DocumentPostgres) UpdateStatus(ctx context.Context, id string, from, to model.Status, at time.Time) error {
	const q = `UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, q, string(to), at, id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrStaleState
	}
	return nil
}

// MarkDelivered sets delivered_at on a verified document.
func (r *DocumentPostgres) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE documents SET delivered_at = $1 WHERE id = $2 AND status = 'verified'`
	res, err := r.db.ExecContext(ctx, q, at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrStaleState
	}
	return nil
}

// ExpireStale expires documents left in status since before cutoff.
func (r *DocumentPostgres) ExpireStale(ctx context.Context, status model.Status, cutoff, at time.Time, limit int) ([]model.Document, error) {
	q := `UPDATE documents SET status = 'expired', updated_at = $1
		WHERE id IN (
			SELECT id FROM documents
			WHERE status = $2 AND updated_at < $3
			ORDER BY updated_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		) AND status = $2
		RETURNING ` + documentColumns
	rows, err := r.db.QueryContext(ctx, q, at, string(status), cutoff, limit)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}
