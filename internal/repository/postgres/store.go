package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"cyberprint/internal/repository"
)

// Store bundles the PostgreSQL repositories over one connection pool.
type Store struct {
	db      *sql.DB
	q       querier
	docs    *DocumentPostgres
	codes   *CodePostgres
	centers *CenterPostgres
}

// NewStore creates a Store over db.
func NewStore(db *sql.DB) *Store {
	return newStore(db, db)
}

func newStore(db *sql.DB, q querier) *Store {
	return &Store{
		db:      db,
		q:       q,
		docs:    NewDocumentPostgres(q),
		codes:   NewCodePostgres(q),
		centers: NewCenterPostgres(q),
	}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Documents() repository.DocumentRepository { return s.docs }
func (s *Store) Codes() repository.CodeRepository         { return s.codes }
func (s *Store) Centers() repository.CenterRepository     { return s.centers }

// WithinTx runs fn inside a READ COMMITTED transaction. Nested calls reuse the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(newStore(s.db, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w; rollback failed: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
