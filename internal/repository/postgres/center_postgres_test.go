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

var centerRowColumns = []string{"id", "name", "address", "owner_account_id", "active", "created_at"}

func TestCenterPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCenterPostgres(db)
	now := time.Now().UTC()
	c := &model.Center{ID: "c1", Name: "Cyber One", Address: "Jl. Merdeka 1", OwnerAccountID: "acct-1", Active: true, CreatedAt: now}

	mock.ExpectQuery("INSERT INTO centers").
		WithArgs("c1", "Cyber One", "Jl. Merdeka 1", "acct-1", true, now).
		WillReturnRows(sqlmock.NewRows(centerRowColumns).AddRow("c1", "Cyber One", "Jl. Merdeka 1", "acct-1", true, now))

	got, err := repo.Create(context.Background(), c)

	require.NoError(t, err)
	assert.Equal(t, "acct-1", got.OwnerAccountID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCenterPostgres_Find(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCenterPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM centers WHERE id = \\$1").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(centerRowColumns).AddRow("c1", "Cyber One", "Addr", "acct-1", true, now))
	mock.ExpectQuery("SELECT (.+) FROM centers WHERE owner_account_id = \\$1").
		WithArgs("acct-9").
		WillReturnError(sql.ErrNoRows)

	c, err := repo.FindByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Cyber One", c.Name)

	_, err = repo.FindByOwner(ctx, "acct-9")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCenterPostgres_ListActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCenterPostgres(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM centers WHERE active").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT (.+) FROM centers WHERE active ORDER BY name").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(centerRowColumns).
			AddRow("c1", "A", "Addr", "acct-1", true, now).
			AddRow("c2", "B", "Addr", "acct-2", true, now))

	res, err := repo.ListActive(context.Background(), repository.PageQuery{Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Len(t, res.Items, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
