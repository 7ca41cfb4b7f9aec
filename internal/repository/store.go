// Package repository contains data access layer abstractions.
// Implementations live in subpackages (postgres, memory) inside this directory.
package repository

import "context"

// Store groups the repositories and runs units of work atomically.
type Store interface {
	Documents() DocumentRepository
	Codes() CodeRepository
	Centers() CenterRepository

	// WithinTx runs fn against a transactional view of the store. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
