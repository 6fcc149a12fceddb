package runstore

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// openBareStore opens a store with no schema applied.
func openBareStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenDB(filepath.Join(t.TempDir(), "bare.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// setupTestMigrations writes a two-version migration set to a temp
// directory and returns it as an fs.FS.
func setupTestMigrations(t *testing.T) fs.FS {
	t.Helper()
	tmpDir := filepath.Join(t.TempDir(), "migrations")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		t.Fatalf("Failed to create temp migrations dir: %v", err)
	}

	migrations := map[string]string{
		"000001_create_test_table.up.sql": `
			CREATE TABLE IF NOT EXISTS test_table (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL
			);
		`,
		"000001_create_test_table.down.sql": `
			DROP TABLE IF EXISTS test_table;
		`,
		"000002_add_test_column.up.sql": `
			ALTER TABLE test_table ADD COLUMN description TEXT;
		`,
		"000002_add_test_column.down.sql": `
			ALTER TABLE test_table DROP COLUMN description;
		`,
	}
	for filename, content := range migrations {
		if err := os.WriteFile(filepath.Join(tmpDir, filename), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write migration file %s: %v", filename, err)
		}
	}

	return os.DirFS(tmpDir)
}

func TestMigrateUp(t *testing.T) {
	s := openBareStore(t)
	fsys := setupTestMigrations(t)

	if err := s.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	version, dirty, err := s.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("Expected version 2, got %d", version)
	}
	if dirty {
		t.Error("Expected clean state after migration")
	}

	var n int
	if err := s.QueryRow("SELECT COUNT(*) FROM test_table").Scan(&n); err != nil {
		t.Errorf("Expected test_table to exist: %v", err)
	}
}

func TestMigrateUpIdempotent(t *testing.T) {
	s := openBareStore(t)
	fsys := setupTestMigrations(t)

	if err := s.MigrateUp(fsys); err != nil {
		t.Fatalf("First MigrateUp failed: %v", err)
	}
	// ErrNoChange is swallowed.
	if err := s.MigrateUp(fsys); err != nil {
		t.Fatalf("Second MigrateUp failed: %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	s := openBareStore(t)
	fsys := setupTestMigrations(t)

	if err := s.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := s.MigrateDown(fsys); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}

	version, dirty, err := s.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected version 1 after one rollback, got %d", version)
	}
	if dirty {
		t.Error("Expected clean state after rollback")
	}
}

func TestMigrateVersionFreshDB(t *testing.T) {
	s := openBareStore(t)
	fsys := setupTestMigrations(t)

	version, dirty, err := s.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("Expected 0/clean on fresh database, got %d/%v", version, dirty)
	}
}

func TestMigrateTo(t *testing.T) {
	s := openBareStore(t)
	fsys := setupTestMigrations(t)

	if err := s.MigrateTo(fsys, 1); err != nil {
		t.Fatalf("MigrateTo(1) failed: %v", err)
	}
	version, _, _ := s.MigrateVersion(fsys)
	if version != 1 {
		t.Errorf("Expected version 1, got %d", version)
	}

	if err := s.MigrateTo(fsys, 2); err != nil {
		t.Fatalf("MigrateTo(2) failed: %v", err)
	}
	version, _, _ = s.MigrateVersion(fsys)
	if version != 2 {
		t.Errorf("Expected version 2, got %d", version)
	}
}

func TestMigrateForce(t *testing.T) {
	s := openBareStore(t)
	fsys := setupTestMigrations(t)

	if err := s.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := s.MigrateForce(fsys, 1); err != nil {
		t.Fatalf("MigrateForce failed: %v", err)
	}

	version, _, _ := s.MigrateVersion(fsys)
	if version != 1 {
		t.Errorf("Expected forced version 1, got %d", version)
	}
}

func TestLatestMigrationVersion(t *testing.T) {
	fsys := setupTestMigrations(t)

	latest, err := LatestMigrationVersion(fsys)
	if err != nil {
		t.Fatalf("LatestMigrationVersion failed: %v", err)
	}
	if latest != 2 {
		t.Errorf("Expected latest version 2, got %d", latest)
	}

	if _, err := LatestMigrationVersion(os.DirFS(t.TempDir())); err == nil {
		t.Error("Expected error for empty migration source")
	}
}

func TestStatus(t *testing.T) {
	s := openBareStore(t)
	fsys := setupTestMigrations(t)

	st, err := s.Status(fsys)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.CurrentVersion != 0 || st.LatestVersion != 2 || st.Pending != 2 {
		t.Errorf("Expected 0/2 with 2 pending, got %+v", st)
	}

	if err := s.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	st, err = s.Status(fsys)
	if err != nil {
		t.Fatalf("Status after up failed: %v", err)
	}
	if st.CurrentVersion != 2 || st.Pending != 0 {
		t.Errorf("Expected 2/0 pending after up, got %+v", st)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	fsys, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations failed: %v", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		t.Fatalf("Failed to read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("Expected embedded migration files")
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") && !strings.HasSuffix(name, ".down.sql") {
			t.Errorf("Unexpected file in migration source: %s", name)
		}
	}

	// Every up migration pairs with a down migration.
	ups, _ := fs.Glob(fsys, "*.up.sql")
	downs, _ := fs.Glob(fsys, "*.down.sql")
	if len(ups) == 0 || len(ups) != len(downs) {
		t.Errorf("Expected matching up/down pairs, got %d up and %d down", len(ups), len(downs))
	}

	latest, err := LatestMigrationVersion(fsys)
	if err != nil {
		t.Fatalf("LatestMigrationVersion on embedded source failed: %v", err)
	}
	if latest != uint(len(ups)) {
		t.Errorf("Expected latest version %d, got %d", len(ups), latest)
	}
}
