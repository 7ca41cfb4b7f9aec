package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"cyberprint/internal/model"
	"cyberprint/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codeRowColumns = []string{"id", "document_id", "digest", "issued_at", "expires_at", "attempts", "consumed", "consumed_at", "consume_reason"}

func TestCodePostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCodePostgres(db)
	now := time.Now().UTC()
	code := &model.OneTimeCode{ID: "code-1", DocumentID: "doc-1", Digest: "abc", IssuedAt: now, ExpiresAt: now.Add(5 * time.Minute)}

	mock.ExpectExec("INSERT INTO one_time_codes").
		WithArgs("code-1", "doc-1", "abc", code.IssuedAt, code.ExpiresAt, 0, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Create(context.Background(), code))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCodePostgres_FindLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCodePostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("consumed code", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM one_time_codes WHERE document_id = \\$1 ORDER BY issued_at DESC").
			WithArgs("doc-1").
			WillReturnRows(sqlmock.NewRows(codeRowColumns).
				AddRow("code-1", "doc-1", "abc", now, now.Add(time.Minute), 1, true, now, "verified"))

		code, err := repo.FindLatest(ctx, "doc-1")

		require.NoError(t, err)
		assert.True(t, code.Consumed)
		assert.Equal(t, model.ConsumeVerified, code.ConsumeReason)
		require.NotNil(t, code.ConsumedAt)
		assert.Equal(t, 1, code.Attempts)
	})

	t.Run("live code", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM one_time_codes").
			WithArgs("doc-2").
			WillReturnRows(sqlmock.NewRows(codeRowColumns).
				AddRow("code-2", "doc-2", "def", now, now.Add(time.Minute), 0, false, nil, nil))

		code, err := repo.FindLatest(ctx, "doc-2")

		require.NoError(t, err)
		assert.False(t, code.Consumed)
		assert.Nil(t, code.ConsumedAt)
		assert.Empty(t, code.ConsumeReason)
	})

	t.Run("none", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM one_time_codes").
			WithArgs("doc-3").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.FindLatest(ctx, "doc-3")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCodePostgres_Consume(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCodePostgres(db)
	ctx := context.Background()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE one_time_codes SET consumed = TRUE, (.+) WHERE id = \\$3 AND consumed = FALSE").
		WithArgs(at, "verified", "code-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE one_time_codes SET consumed = TRUE").
		WithArgs(at, "verified", "code-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Consume(ctx, "code-1", model.ConsumeVerified, at))
	assert.ErrorIs(t, repo.Consume(ctx, "code-1", model.ConsumeVerified, at), repository.ErrStaleState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCodePostgres_IncrementAttempts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCodePostgres(db)
	ctx := context.Background()

	mock.ExpectQuery("UPDATE one_time_codes SET attempts = attempts \\+ 1").
		WithArgs("code-1").
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(3))
	mock.ExpectQuery("UPDATE one_time_codes SET attempts").
		WithArgs("code-2").
		WillReturnError(sql.ErrNoRows)

	n, err := repo.IncrementAttempts(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = repo.IncrementAttempts(ctx, "code-2")
	assert.ErrorIs(t, err, repository.ErrStaleState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCodePostgres_InvalidateAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCodePostgres(db)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE one_time_codes SET consumed = TRUE, (.+) WHERE document_id = \\$3").
		WithArgs(at, "superseded", "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.InvalidateAll(context.Background(), "doc-1", model.ConsumeSuperseded, at)

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
