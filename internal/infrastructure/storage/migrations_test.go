package storage

import (
	"context"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectedSchemaVersion is the highest migration version.
// Update this when adding new migrations
const expectedSchemaVersion = 3

// TestMigrations_FreshDatabase tests running migrations on a fresh database
func TestMigrations_FreshDatabase(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(expectedSchemaVersion), version)
}

// TestMigrations_Idempotency tests that migrations can be run multiple times
func TestMigrations_Idempotency(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)

	_, err = store.UpsertBill(context.Background(), BillUpsert{CycleDate: "2024-01-15", SeenAt: time.Now()})
	require.NoError(t, err)
	store.Close()

	// Reopening must not re-apply anything or lose data
	store, err = NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(expectedSchemaVersion), version)

	bills, err := store.ListBills(context.Background())
	require.NoError(t, err)
	assert.Len(t, bills, 1)
}

// TestMigrations_Schema tests that the correct schema is created
func TestMigrations_Schema(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	for _, table := range []string{"bills", "payments", "payee_users", "user_cards", "balance_snapshots", "sync_runs", "goose_db_version"} {
		err = store.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(new(int))
		assert.NoError(t, err, "%s table should exist", table)
	}
}

// TestMigrations_ForeignKeyConstraints tests that foreign keys are enforced
func TestMigrations_ForeignKeyConstraints(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	var fkEnabled int
	err = store.db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled)
	require.NoError(t, err)
	assert.Equal(t, 1, fkEnabled, "Foreign keys should be enabled")

	_, err = store.db.Exec(`
		INSERT INTO user_cards (payee_id, last_four, label, added_at)
		VALUES (99999, '1234', '', CURRENT_TIMESTAMP)
	`)
	assert.Error(t, err, "Should fail to insert a card for a non-existent payee")
	assert.True(t, isForeignKeyViolation(err))
}

// TestMigrations_StatusCheck tests the attribution status constraint
func TestMigrations_StatusCheck(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.Exec(`
		INSERT INTO payments (payment_date, content_hash, attribution_status, first_seen, last_seen)
		VALUES ('2024-01-01', 'abc', 'bogus', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`)
	assert.Error(t, err)
}

func TestMigrations_JournalMode(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	var mode string
	require.NoError(t, store.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

// createTempDB creates a temporary database file for testing
func createTempDB(t *testing.T) string {
	tmpFile, err := os.CreateTemp("", "test_*.db")
	require.NoError(t, err)
	tmpFile.Close()
	return tmpFile.Name()
}
