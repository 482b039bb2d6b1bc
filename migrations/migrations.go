// Package migrations embeds the PostgreSQL schema and applies it in order.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/fleetpay/fleetpay/internal/platform/db"
)

// Files embeds the SQL migrations.
//
//go:embed *.sql
var Files embed.FS

// Names lists the embedded migrations in apply order.
func Names() ([]string, error) {
	names, err := fs.Glob(Files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Apply runs every migration not yet recorded in schema_migrations. Each file
// runs in its own transaction.
func Apply(ctx context.Context, b db.Beginner) ([]string, error) {
	names, err := Names()
	if err != nil {
		return nil, err
	}
	var applied []string
	err = db.WithTx(ctx, b, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("migrations: bootstrap: %w", err)
	}
	for _, name := range names {
		body, err := Files.ReadFile(name)
		if err != nil {
			return applied, err
		}
		ran := false
		err = db.WithTx(ctx, b, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
			if _, err := tx.Exec(ctx, string(body)); err != nil {
				return err
			}
			ran = true
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("migrations: apply %s: %w", name, err)
		}
		if ran {
			applied = append(applied, name)
		}
	}
	return applied, nil
}
