// Package database はPostgreSQL接続と、埋め込んだスキーマのマイグレーションを提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema は前回のマイグレーションが途中で失敗したままであることを示す。
var ErrDirtySchema = errors.New("schema is dirty")

// MigrationStatus はマイグレーション後のスキーマのバージョン。
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

func newSource() (source.Driver, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return src, nil
}

// NewMigrator は埋め込みマイグレーションを使うmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	src, err := newSource()
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// LatestVersion はこのバイナリに埋め込まれた最新のマイグレーション番号を返す。
func LatestVersion() (uint, error) {
	src, err := newSource()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("no embedded migrations: %w", err)
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read migration after %d: %w", v, err)
		}
		v = next
	}
}

// RunMigrations は未適用のマイグレーションをすべて適用し、適用後のバージョンを返す。
// 最新なら何もしない。dirtyなスキーマには手を付けずErrDirtySchemaを返す。
func RunMigrations(databaseURL string) (MigrationStatus, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer m.Close()

	if v, dirty, err := m.Version(); err == nil && dirty {
		return MigrationStatus{Version: v, Dirty: true},
			fmt.Errorf("%w at version %d: fix it and run migrate force", ErrDirtySchema, v)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationStatus{}, fmt.Errorf("failed to run migrations: %w", err)
	}

	v, dirty, err := m.Version()
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	return MigrationStatus{Version: v, Dirty: dirty}, nil
}
