package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const schemaMigrationsDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`

// Migration is one embedded SQL file.
type Migration struct {
	Version string
	SQL     string
}

// Migrations returns embedded migrations ordered by version.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	result := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		body, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		result = append(result, Migration{
			Version: strings.TrimSuffix(entry.Name(), ".sql"),
			SQL:     string(body),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}

// Migrate applies pending migrations, each in its own transaction, and returns the applied versions.
func Migrate(ctx context.Context, db *sqlx.DB, migrations []Migration, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	var done []string
	if err := db.SelectContext(ctx, &done, `SELECT version FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	applied := make(map[string]struct{}, len(done))
	for _, version := range done {
		applied[version] = struct{}{}
	}

	var ran []string
	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return ran, err
		}
		logger.Info("migration applied", zap.String("version", m.Version))
		ran = append(ran, m.Version)
	}
	return ran, nil
}

func apply(ctx context.Context, db *sqlx.DB, m Migration) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("apply migration %s: %w", m.Version, err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.Version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.Version, err)
	}
	return nil
}
