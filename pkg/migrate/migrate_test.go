package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigrationsDirIsValid(t *testing.T) {
	versions, err := listVersions("migrations")
	if err != nil {
		t.Fatalf("listVersions() error: %v", err)
	}
	if len(versions) != 2 || versions[0] >= versions[1] {
		t.Fatalf("expected two ordered versions, got %v", versions)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "create_orders.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_order_line_items.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no order line items migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS order_line_items",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"CHECK (price >= 0)",
		"PRIMARY KEY (order_id, line_no)",
		"DROP TABLE IF EXISTS order_line_items",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestRunUpAndDownOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_test?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	defer sqlDB.Close()

	ctx := context.Background()
	if err := Run(ctx, sqlDB, "sqlite3", "migrations", "up"); err != nil {
		t.Fatalf("goose up: %v", err)
	}

	for _, table := range []string{"orders", "order_line_items"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("expected table %s after up", table)
		}
	}

	if err := Run(ctx, sqlDB, "sqlite3", "migrations", "reset"); err != nil {
		t.Fatalf("goose reset: %v", err)
	}
	if conn.Migrator().HasTable("orders") {
		t.Fatalf("orders table should be dropped after reset")
	}
}

func TestRunRequiresDB(t *testing.T) {
	if err := Run(context.Background(), nil, "", "migrations", "up"); err == nil {
		t.Fatal("expected error without db")
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Order Notes")
	if err != nil {
		t.Fatalf("CreateSQLMigration() error: %v", err)
	}
	if !strings.HasSuffix(path, "_add_order_notes.sql") {
		t.Fatalf("unexpected migration path %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}
