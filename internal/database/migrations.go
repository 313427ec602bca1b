package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations applies every .sql file from the embedded migration set, in
// name order, that has no row in schema_migrations yet. Each file runs in
// its own transaction so a failing migration leaves earlier ones applied.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, files fs.FS) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	versions, err := migrationVersions(files)
	if err != nil {
		return err
	}

	for _, version := range versions {
		var applied bool
		err := pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)", version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if applied {
			continue
		}

		if err := applyMigration(ctx, pool, files, version); err != nil {
			return err
		}
		slog.Info("applied migration", "version", version)
	}

	return nil
}

// migrationVersions lists the .sql files in apply order.
func migrationVersions(files fs.FS) ([]string, error) {
	versions, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("glob migration files: %w", err)
	}
	sort.Strings(versions)
	return versions, nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, files fs.FS, version string) error {
	sql, err := fs.ReadFile(files, version)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", version, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx for %s: %w", version, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("execute migration %s: %w", version, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}
