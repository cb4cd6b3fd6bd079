// Package client owns the local database bootstrap: it opens the sqlite
// file, applies the embedded migrations, and hands back the repository set
// everything else is built on.
package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/avdeyev/catchdex/internal/client/migrations"
	"github.com/avdeyev/catchdex/internal/client/repositories/actions"
	"github.com/avdeyev/catchdex/internal/client/repositories/catalog"
	"github.com/avdeyev/catchdex/internal/client/repositories/metadata"
	"github.com/avdeyev/catchdex/internal/client/repositories/owned"
	"github.com/avdeyev/catchdex/internal/client/repositories/profile"
)

// Repositories bundles every local-store collection plus the raw handle
// (needed for multi-repo transactions).
type Repositories struct {
	DB       *sql.DB
	Catalog  catalog.Repository
	Owned    owned.Repository
	Actions  actions.Repository
	Profile  profile.Repository
	Metadata metadata.Repository
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the sqlite database at dsn (":memory:" works for
// tests), migrates it, and returns the repository set.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Repositories{
		DB:       db,
		Catalog:  catalog.NewSQLiteRepository(db),
		Owned:    owned.NewSQLiteRepository(db),
		Actions:  actions.NewSQLiteRepository(db),
		Profile:  profile.NewSQLiteRepository(db),
		Metadata: metadata.NewSQLiteRepository(db),
	}, nil
}
