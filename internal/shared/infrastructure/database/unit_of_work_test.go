package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedApplication "github.com/felixgeelhaar/slotwise/internal/shared/application"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database/sqlite"
)

func openMemory(t *testing.T) database.Connection {
	t.Helper()
	conn, err := sqlite.NewConnection(context.Background(), database.Config{SQLitePath: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.Exec(context.Background(), `CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE)`)
	require.NoError(t, err)
	return conn
}

func countItems(t *testing.T, conn database.Connection) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow(context.Background(), `SELECT COUNT(*) FROM items`).Scan(&n))
	return n
}

func TestUnitOfWork_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)
	uow := database.NewUnitOfWork(conn)

	err := sharedApplication.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		assert.True(t, database.InTransaction(txCtx))
		_, err := database.ExecutorFromContext(txCtx, conn).Exec(txCtx, `INSERT INTO items (name) VALUES (?)`, "a")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countItems(t, conn))

	boom := errors.New("boom")
	err = sharedApplication.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		if _, err := database.ExecutorFromContext(txCtx, conn).Exec(txCtx, `INSERT INTO items (name) VALUES (?)`, "b"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, countItems(t, conn))
}

func TestUnitOfWork_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)
	uow := database.NewUnitOfWork(conn)

	err := sharedApplication.WithUnitOfWork(ctx, uow, func(outer context.Context) error {
		// The inner unit commits nothing on its own.
		if err := sharedApplication.WithUnitOfWork(outer, uow, func(inner context.Context) error {
			_, err := database.ExecutorFromContext(inner, conn).Exec(inner, `INSERT INTO items (name) VALUES (?)`, "inner")
			return err
		}); err != nil {
			return err
		}
		return errors.New("outer fails")
	})
	require.Error(t, err)
	assert.Equal(t, 0, countItems(t, conn))
}

func TestUnitOfWork_CommitWithoutTransaction(t *testing.T) {
	uow := database.NewUnitOfWork(openMemory(t))
	assert.ErrorIs(t, uow.Commit(context.Background()), database.ErrNoTransaction)
	assert.ErrorIs(t, uow.Rollback(context.Background()), database.ErrNoTransaction)
}

func TestUniqueViolation_SQLite(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)

	_, err := conn.Exec(ctx, `INSERT INTO items (name) VALUES (?)`, "dup")
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `INSERT INTO items (name) VALUES (?)`, "dup")
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
}
