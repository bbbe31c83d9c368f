package db

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
)

// newTestDB opens a throwaway SQLite database.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "migrate_test.db")
	database, err := Open("sqlite://" + path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestMigrateUp_FreshDatabase(t *testing.T) {
	database := newTestDB(t)

	if err := MigrateUp(database); err != nil {
		t.Fatalf("MigrateUp failed on fresh database: %v", err)
	}

	// Every schema table must exist, including the ones created by
	// statements preceded by comment blocks.
	for _, table := range []string{"api_keys", "rules", "coupons", "migrations"} {
		var name string
		err := database.Get(&name,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		if err != nil {
			t.Errorf("table %s missing after MigrateUp: %v", table, err)
		}
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	database := newTestDB(t)

	if err := MigrateUp(database); err != nil {
		t.Fatalf("first MigrateUp failed: %v", err)
	}
	if err := MigrateUp(database); err != nil {
		t.Fatalf("second MigrateUp failed: %v", err)
	}

	var count int
	if err := database.Get(&count, "SELECT COUNT(*) FROM migrations"); err != nil {
		t.Fatalf("failed to count migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("migration recorded %d times, want 1", count)
	}
}

func TestMigrateStatus(t *testing.T) {
	database := newTestDB(t)

	statuses, err := MigrateStatus(database)
	if err != nil {
		t.Fatalf("MigrateStatus before migration failed: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Applied {
		t.Fatalf("statuses before migration = %+v, want one pending", statuses)
	}

	if err := MigrateUp(database); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	statuses, err = MigrateStatus(database)
	if err != nil {
		t.Fatalf("MigrateStatus after migration failed: %v", err)
	}
	if len(statuses) != 1 || !statuses[0].Applied {
		t.Fatalf("statuses after migration = %+v, want one applied", statuses)
	}
	if statuses[0].AppliedAt == nil {
		t.Error("applied migration has no AppliedAt timestamp")
	}
}

func TestStripLineComments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "comment block before statement",
			in:   "-- header\n-- more header\nCREATE TABLE t (id TEXT)",
			want: "CREATE TABLE t (id TEXT)",
		},
		{
			name: "comment only",
			in:   "-- nothing but comments\n-- here",
			want: "",
		},
		{
			name: "plain statement untouched",
			in:   "CREATE INDEX idx ON t(id)",
			want: "CREATE INDEX idx ON t(id)",
		},
		{
			name: "interleaved comment lines",
			in:   "CREATE TABLE t (\n    -- key\n    id TEXT\n)",
			want: "CREATE TABLE t (\n    id TEXT\n)",
		},
		{
			name: "whitespace only",
			in:   "  \n\t\n",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripLineComments(tt.in); got != tt.want {
				t.Errorf("stripLineComments(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
