package db_test

import (
	"testing"

	"github.com/notifyhub/safety-dispatch/internal/db"
)

func TestMigrationURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost:5432/safety":   "pgx5://u:p@localhost:5432/safety",
		"postgresql://u:p@localhost:5432/safety": "pgx5://u:p@localhost:5432/safety",
		"pgx5://already":                         "pgx5://already",
	}
	for in, want := range tests {
		if got := db.MigrationURL(in); got != want {
			t.Errorf("MigrationURL(%q) = %q, want %q", in, got, want)
		}
	}
}
