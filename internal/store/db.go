// Package store provides the SQLite-backed persistence the picker sync
// controller reads and writes through: the media and album_media tables,
// the single-key user preference (the selected cloud provider authority),
// and the per-provider sync preferences (cached collection state and
// resume tokens) that make incremental sync possible.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sync/atomic"

	"github.com/pressly/goose/v3"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite" // pure Go SQLite driver, registers as "sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// walJournalSizeLimit caps the WAL file at 64 MiB before a checkpoint is
// forced, matching the teacher's conservative default for a small,
// frequently-written database.
const walJournalSizeLimit = 67108864

// DB wraps a *sql.DB opened against the picker database with the
// prepared-statement groups each facade (media, prefs) needs. Statements
// are grouped by domain rather than kept as one flat list of fields.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger

	media mediaStatements
	prefs prefsStatements

	// cloudAuthority is the facade's single settable cloud-visibility
	// switch: empty means cloud rows are hidden from queries, any other
	// value must equal the currently Set cloud provider authority. It is
	// process-lifetime, in-memory state, not persisted.
	cloudAuthority atomic.Pointer[string]
}

// Open opens (creating if necessary) the SQLite database at path, applies
// pending migrations, and prepares all statement groups. Use ":memory:"
// in tests.
func Open(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	logger.Info("opening picker database", "path", path)

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	if err := setPragmas(ctx, conn, logger); err != nil {
		conn.Close()
		return nil, err
	}

	if err := runMigrations(ctx, conn, logger); err != nil {
		conn.Close()
		return nil, err
	}

	d := &DB{conn: conn, logger: logger}

	if err := d.prepareMediaStmts(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: prepare media statements: %w", err)
	}

	if err := d.preparePrefsStmts(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: prepare prefs statements: %w", err)
	}

	logger.Info("picker database ready", "path", path)

	return d, nil
}

func setPragmas(ctx context.Context, conn *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = NORMAL", "synchronous NORMAL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("store: set pragma %s: %w", p.desc, err)
		}

		logger.Debug("pragma set", "pragma", p.desc)
	}

	return nil
}

// runMigrations applies embedded SQL migrations with goose's Provider API.
func runMigrations(ctx context.Context, conn *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, subFS)
	if err != nil {
		return fmt.Errorf("store: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("store: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// SetCloudAuthority switches cloud-row visibility: an empty string disables
// cloud queries entirely, any other value enables them for that authority.
// The sync orchestrator forces this to empty for the duration of a cloud
// sync and only restores it if the active cloud provider hasn't changed.
func (d *DB) SetCloudAuthority(authority string) {
	d.cloudAuthority.Store(&authority)
}

// CloudAuthority returns the facade's current cloud-visibility switch.
func (d *DB) CloudAuthority() string {
	if p := d.cloudAuthority.Load(); p != nil {
		return *p
	}

	return ""
}

// Checkpoint forces a WAL checkpoint, consolidating the WAL into the main
// database file.
func (d *DB) Checkpoint(ctx context.Context) error {
	_, err := d.conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return fmt.Errorf("store: wal checkpoint: %w", err)
	}

	return nil
}

// Close closes all prepared statements and the underlying connection,
// combining any failures so a problem closing one statement group doesn't
// hide a problem closing another.
func (d *DB) Close() error {
	d.logger.Info("closing picker database")

	err := multierr.Combine(d.closeMediaStmts(), d.closePrefsStmts(), d.conn.Close())
	if err != nil {
		return fmt.Errorf("store: close: %w", err)
	}

	return nil
}
