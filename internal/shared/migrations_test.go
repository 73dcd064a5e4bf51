package shared

import (
	"database/sql"
	"testing"
)

func migratedDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n); err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}
		if len(migrations) != 2 {
			t.Fatalf("expected 2 migrations, got %d", len(migrations))
		}

		for i, m := range migrations {
			if m.Version != i {
				t.Errorf("expected version %d at index %d, got %d", i, i, m.Version)
			}
			if m.Up == "" || m.Down == "" {
				t.Errorf("migration %d is missing up or down SQL", m.Version)
			}
		}
	})

	t.Run("Schema", func(t *testing.T) {
		db := migratedDB(t)

		for _, table := range []string{"users", "tasks", "balances", "exchange_accounts"} {
			if !tableExists(t, db, table) {
				t.Errorf("expected table %s after migrations", table)
			}
		}

		applied, err := AppliedVersions(db)
		if err != nil {
			t.Fatalf("AppliedVersions failed: %v", err)
		}
		if !applied[0] || !applied[1] {
			t.Errorf("expected versions 0 and 1 applied, got %v", applied)
		}
	})

	t.Run("Rollback", func(t *testing.T) {
		db := migratedDB(t)

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to roll back: %v", err)
		}
		if tableExists(t, db, "exchange_accounts") {
			t.Error("expected exchange_accounts to be dropped")
		}
		if !tableExists(t, db, "tasks") {
			t.Error("expected tasks to survive the first rollback")
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to roll back base schema: %v", err)
		}
		if tableExists(t, db, "users") {
			t.Error("expected users to be dropped")
		}

		if err := RollbackMigration(db); err == nil {
			t.Error("expected error with nothing left to roll back")
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to re-apply migrations: %v", err)
		}
		if !tableExists(t, db, "exchange_accounts") {
			t.Error("expected exchange_accounts after re-applying")
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		db := migratedDB(t)

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 recorded migrations, got %d", count)
		}
	})
}
