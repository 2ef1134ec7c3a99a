package migrations_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/migrations"
)

func openMemory(t *testing.T) database.Connection {
	t.Helper()
	conn, err := sqlite.NewConnection(context.Background(), database.Config{SQLitePath: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestUp_SQLiteCreatesSchema(t *testing.T) {
	conn := openMemory(t)
	require.NoError(t, migrations.Up(conn, nil))

	ctx := context.Background()
	for _, table := range []string{
		"slots", "reservation_locks", "slot_assignments", "reschedule_requests",
		"action_tokens", "outbox_notifications", "notification_logs",
	} {
		var name string
		err := conn.QueryRow(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestUp_IsIdempotent(t *testing.T) {
	conn := openMemory(t)
	require.NoError(t, migrations.Up(conn, nil))
	require.NoError(t, migrations.Up(conn, nil))

	// The connection must survive migrations.
	require.NoError(t, conn.Ping(context.Background()))
}

func TestUp_SQLiteOverlapTrigger(t *testing.T) {
	conn := openMemory(t)
	require.NoError(t, migrations.Up(conn, nil))
	ctx := context.Background()

	insert := `INSERT INTO slots (owner_id, location_id, start_at, end_at, duration_min, timezone, status, purpose, capacity, created_at, updated_at)
		VALUES (1, 1, ?, ?, 30, 'UTC', ?, 'interview', 1, '2026-01-01 00:00:00+00:00', '2026-01-01 00:00:00+00:00')`

	_, err := conn.Exec(ctx, insert, "2026-05-04 10:00:00+00:00", "2026-05-04 10:30:00+00:00", "FREE")
	require.NoError(t, err)

	// Adjacent windows do not overlap.
	_, err = conn.Exec(ctx, insert, "2026-05-04 10:30:00+00:00", "2026-05-04 11:00:00+00:00", "FREE")
	require.NoError(t, err)

	_, err = conn.Exec(ctx, insert, "2026-05-04 10:15:00+00:00", "2026-05-04 10:45:00+00:00", "FREE")
	require.Error(t, err)
	assert.True(t, database.IsConstraint(err, "slots_no_overlap"))

	// Cancelled slots are ignored by the rule.
	_, err = conn.Exec(ctx, insert, "2026-05-04 10:15:00+00:00", "2026-05-04 10:45:00+00:00", "CANCELED")
	require.NoError(t, err)
}
