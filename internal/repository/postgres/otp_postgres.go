package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cyberprint/internal/model"
	"cyberprint/internal/repository"
)

const codeColumns = `id, document_id, digest, issued_at, expires_at, attempts, consumed, consumed_at, consume_reason`

// CodePostgres is a PostgreSQL implementation of repository.CodeRepository.
type CodePostgres struct {
	db querier
}

// NewCodePostgres creates a new CodePostgres repository over a *sql.DB or *sql.Tx.
func NewCodePostgres(db querier) *CodePostgres {
	return &CodePostgres{db: db}
}

var _ repository.CodeRepository = (*CodePostgres)(nil)

// Create inserts a new one-time code.
func (r *CodePostgres) Create(ctx context.Context, code *model.OneTimeCode) error {
	const q = `
		INSERT INTO one_time_codes (id, document_id, digest, issued_at, expires_at, attempts, consumed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, q,
		code.ID,
		code.DocumentID,
		code.Digest,
		code.IssuedAt,
		code.ExpiresAt,
		code.Attempts,
		code.Consumed,
	)
	return err
}

// FindLatest returns the most recently issued code of a document.
func (r *CodePostgres) FindLatest(ctx context.Context, documentID string) (*model.OneTimeCode, error) {
	q := `SELECT ` + codeColumns + ` FROM one_time_codes
		WHERE document_id = $1
		ORDER BY issued_at DESC, id DESC
		LIMIT 1`
	var (
		c          model.OneTimeCode
		consumedAt sql.NullTime
		reason     sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, documentID).Scan(
		&c.ID,
		&c.DocumentID,
		&c.Digest,
		&c.IssuedAt,
		&c.ExpiresAt,
		&c.Attempts,
		&c.Consumed,
		&consumedAt,
		&reason,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if consumedAt.Valid {
		t := consumedAt.Time
		c.ConsumedAt = &t
	}
	c.ConsumeReason = model.ConsumeReason(reason.String)
	return &c, nil
}

// Consume sets consumed=true only if it was false, so concurrent callers cannot both succeed.
func (r *CodePostgres) Consume(ctx context.Context, id string, reason model.ConsumeReason, at time.Time) error {
	const q = `
		UPDATE one_time_codes SET consumed = TRUE, consumed_at = $1, consume_reason = $2
		WHERE id = $3 AND consumed = FALSE
	`
	res, err := r.db.ExecContext(ctx, q, at, string(reason), id)
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

// IncrementAttempts bumps the failed-attempt counter of an unconsumed code.
func (r *CodePostgres) IncrementAttempts(ctx context.Context, id string) (int, error) {
	const q = `
		UPDATE one_time_codes SET attempts = attempts + 1
		WHERE id = $1 AND consumed = FALSE
		RETURNING attempts
	`
	var attempts int
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrStaleState
		}
		return 0, err
	}
	return attempts, nil
}

// InvalidateAll consumes every live code of a document.
func (r *CodePostgres) InvalidateAll(ctx context.Context, documentID string, reason model.ConsumeReason, at time.Time) (int64, error) {
	const q = `
		UPDATE one_time_codes SET consumed = TRUE, consumed_at = $1, consume_reason = $2
		WHERE document_id = $3 AND consumed = FALSE
	`
	res, err := r.db.ExecContext(ctx, q, at, string(reason), documentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
