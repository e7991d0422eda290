package store

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
)

const bootstrapSQL = `
CREATE SCHEMA IF NOT EXISTS mrf;
CREATE TABLE IF NOT EXISTS mrf.schema_migrations (
    filename   text PRIMARY KEY,
    applied_at timestamptz NOT NULL DEFAULT now()
);`

// Migrate applies every embedded SQL migration that has not run yet, in
// filename order, recording each in mrf.schema_migrations. The DDL itself is
// also idempotent, so a lost tracking table does not break re-runs.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, bootstrapSQL); err != nil {
		return fmt.Errorf("bootstrap migration tracking: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	applied := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var done bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM mrf.schema_migrations WHERE filename = $1)`, name,
		).Scan(&done)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if done {
			continue
		}

		data, err := fs.ReadFile(migrationFS, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		s.log.Info().Str("migration", name).Msg("applying migration")
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO mrf.schema_migrations (filename) VALUES ($1)`, name,
		); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
		applied++
	}

	s.log.Info().Int("applied", applied).Int("total", len(entries)).Msg("migrations up to date")
	return nil
}
