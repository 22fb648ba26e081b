package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ApplyMigrations применяет встроенные sql-файлы по порядку имён, каждый в своей транзакции.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	return applyMigrations(ctx, db, migrationsFS)
}

func applyMigrations(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	files, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, f := range files {
		name := f[strings.LastIndex(f, "/")+1:]

		var exists bool
		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename = $1)`, name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", name, err)
		}
		if exists {
			continue
		}

		body, err := fs.ReadFile(fsys, f)
		if err != nil {
			return err
		}
		text := strings.TrimSpace(string(body))
		if text == "" {
			return fmt.Errorf("empty migration: %s", name)
		}

		if err := applyOne(ctx, db, name, text); err != nil {
			return err
		}
		slog.Info("migration applied", "file", name)
	}
	return nil
}

func applyOne(ctx context.Context, db *sql.DB, name, text string) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { rollback(tx, "ApplyMigrations", err) }()

	if _, err = tx.ExecContext(ctx, text); err != nil {
		return fmt.Errorf("migration %s failed: %w", name, err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
		return err
	}
	return tx.Commit()
}
