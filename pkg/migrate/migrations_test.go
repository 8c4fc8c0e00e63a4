package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/forkcast-backend/pkg/migrate"
)

func TestMigrationsAreValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
	require.NoError(t, migrate.ValidateEmbedded())
}

func TestPartyGuestsMigrationContainsKeys(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_party_guests_table.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no party guests migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS party_guests",
		"REFERENCES parties (code) ON DELETE CASCADE",
		"PRIMARY KEY (party_code, guest_id)",
		"DROP TABLE IF EXISTS party_guests",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestRunEmbeddedOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrate.RunEmbedded(context.Background(), sqlDB, "sqlite3", "up"))

	for _, table := range []string{"parties", "party_guests", "party_combined_preferences", "party_results", "outbox_events"} {
		require.Truef(t, conn.Migrator().HasTable(table), "expected table %s", table)
	}

	require.NoError(t, migrate.RunEmbedded(context.Background(), sqlDB, "sqlite3", "reset"))
	require.False(t, conn.Migrator().HasTable("parties"))
}

func TestDialect(t *testing.T) {
	got, err := migrate.Dialect("sqlite")
	require.NoError(t, err)
	require.Equal(t, "sqlite3", got)

	_, err = migrate.Dialect("firestore")
	require.Error(t, err)
}
