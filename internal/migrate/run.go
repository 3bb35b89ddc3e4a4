// Package migrate applies the embedded profile schema.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// lockKey serializes concurrent migrators across processes.
const lockKey int64 = 0x62656c6c73 // "bells"

const versionTable = "bellsbank_schema_migrations"

// Migration is one embedded SQL file.
type Migration struct {
	Version string
	file    string
}

// Migrator applies embedded migrations that are not yet recorded.
type Migrator struct {
	db     *sql.DB
	source fs.FS
	logger *slog.Logger
}

// Options configures a Migrator.
type Options struct {
	DB     *sql.DB      // Required
	Logger *slog.Logger // Optional
	// Source overrides the embedded migrations (tests only).
	Source fs.FS
}

// New creates a Migrator.
func New(opts Options) (*Migrator, error) {
	if opts.DB == nil {
		return nil, errors.New("migrate: DB is required")
	}
	source := opts.Source
	if source == nil {
		sub, err := fs.Sub(migrationsFS, "migrations")
		if err != nil {
			return nil, fmt.Errorf("migrate: open embedded migrations: %w", err)
		}
		source = sub
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: opts.DB, source: source, logger: logger.With("component", "migrations")}, nil
}

// Run applies every pending embedded migration. It is safe to call repeatedly
// and from several processes at once.
func Run(ctx context.Context, db *sql.DB) error {
	m, err := New(Options{DB: db})
	if err != nil {
		return err
	}
	_, err = m.Up(ctx)
	return err
}

// Available lists the migrations in version order.
func (m *Migrator) Available() ([]Migration, error) {
	entries, err := fs.ReadDir(m.source, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var out []Migration
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		out = append(out, Migration{Version: strings.TrimSuffix(e.Name(), ".sql"), file: e.Name()})
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}

// Pending lists migrations that have not been recorded as applied.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	if err := ensureTable(ctx, m.db); err != nil {
		return nil, err
	}
	all, err := m.Available()
	if err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx, m.db)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(mg Migration) bool { return applied[mg.Version] }), nil
}

// Up applies pending migrations in one transaction held under an advisory
// lock, and returns the versions it applied.
func (m *Migrator) Up(ctx context.Context) (_ []string, err error) {
	all, err := m.Available()
	if err != nil {
		return nil, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			m.logger.ErrorContext(ctx, "rollback migrations failed", "error", rbErr)
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	if err = ensureTable(ctx, tx); err != nil {
		return nil, err
	}
	// Read under the lock so a concurrent migrator's work is visible.
	applied, err := m.applied(ctx, tx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, mg := range all {
		if applied[mg.Version] {
			continue
		}
		if err = m.apply(ctx, tx, mg); err != nil {
			return nil, err
		}
		done = append(done, mg.Version)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit migrations: %w", err)
	}
	if len(done) > 0 {
		m.logger.InfoContext(ctx, "migrations applied", "versions", done)
	}
	return done, nil
}

func (m *Migrator) apply(ctx context.Context, tx *sql.Tx, mg Migration) error {
	body, err := fs.ReadFile(m.source, mg.file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", mg.file, err)
	}
	m.logger.InfoContext(ctx, "applying migration", "version", mg.Version)
	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return fmt.Errorf("exec migration %s: %w", mg.file, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+versionTable+` (version) VALUES ($1)`, mg.Version); err != nil {
		return fmt.Errorf("record migration %s: %w", mg.file, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureTable(ctx context.Context, db execer) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+versionTable+` (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create %s: %w", versionTable, err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (m *Migrator) applied(ctx context.Context, q querier) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT version FROM `+versionTable)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		out[v] = true
	}
	return out, rows.Err()
}
