package database

import (
	"io/fs"
	"strings"
	"testing"
)

func TestLatestVersion_MatchesEmbeddedFiles(t *testing.T) {
	v, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion: %v", err)
	}
	if v != 3 {
		t.Errorf("LatestVersion = %d, want 3 (users, sessions, babies/houses)", v)
	}
}

func TestMigrations_EveryUpHasDown(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(ups) == 0 {
		t.Fatal("no up migrations embedded")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(migrationsFS, down); err != nil {
			t.Errorf("%s has no matching %s", up, down)
		}
	}
}
