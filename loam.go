package loam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loamdb/loam/internal/catalog"
	"github.com/loamdb/loam/internal/ddl"
	"github.com/loamdb/loam/migrate"
	"github.com/loamdb/loam/schema"
)

// Config describes one database and the models that own it.
type Config struct {
	// Path is the SQLite database file. In-memory databases are
	// rejected: every pooled connection would see its own empty one.
	Path string

	// Models declare the target schema.
	Models []Model

	// MigrationsDir, when set, makes Setup apply the persisted
	// artifacts found there. When empty, Setup diffs the live schema
	// against the models and applies the result directly, with no
	// artifact and no bookkeeping row.
	MigrationsDir string

	// Serialize funnels all queries through a single worker.
	Serialize bool

	// Logger receives migration and reconciliation activity.
	// Defaults to slog.Default.
	Logger *slog.Logger
}

// DB is an open database whose schema matches its declared models.
type DB struct {
	db       *sql.DB
	exec     Executor
	registry *Registry
	log      *slog.Logger
	serial   *SerialExecutor
}

// Open opens a SQLite database file and applies the connection
// pragmas the rest of the package expects.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("opening database: empty path")
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") || strings.HasPrefix(path, "file::memory:") {
		return nil, errors.New("opening database: in-memory databases are not supported, use a file path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring database: %w", err)
	}
	return db, nil
}

// Setup opens the database, brings its schema in line with the
// declared models and returns a handle ready for queries. With
// MigrationsDir set it runs the migration runner over the persisted
// artifacts; without it the computed diff is applied directly. The
// two paths are mutually exclusive per call, and no query should be
// issued until Setup returns.
func Setup(ctx context.Context, cfg Config) (*DB, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	registry, err := NewRegistry(cfg.Models...)
	if err != nil {
		return nil, err
	}
	db, err := Open(cfg.Path)
	if err != nil {
		return nil, err
	}

	if cfg.MigrationsDir != "" {
		artifacts, err := migrate.DirSource{Dir: cfg.MigrationsDir}.List()
		if err != nil {
			db.Close()
			return nil, err
		}
		runner := &migrate.Runner{DB: db, Logger: log}
		if _, err := runner.Run(ctx, artifacts); err != nil {
			db.Close()
			return nil, err
		}
	} else if err := autoApply(ctx, db, registry.Target(), log); err != nil {
		db.Close()
		return nil, err
	}

	d := &DB{db: db, registry: registry, log: log}
	if cfg.Serialize {
		d.serial = NewSerialExecutor(db)
		d.exec = d.serial
	} else {
		d.exec = db
	}
	return d, nil
}

// autoApply reconciles the live schema straight against the declared
// target. Destructive operations are applied, not blocked: dropping a
// model column drops its data, and that is the caller's call to make.
func autoApply(ctx context.Context, db *sql.DB, target schema.Snapshot, log *slog.Logger) error {
	current, err := catalog.Read(ctx, db)
	if err != nil {
		return err
	}
	d := schema.Compare(current, target)
	if d.Empty() {
		log.Debug("schema already matches declared models")
		return nil
	}
	for _, op := range d.Operations {
		if op.Kind == schema.OpDropTable || op.Kind == schema.OpDropColumn {
			log.Warn("applying destructive schema change", "change", op.String())
		}
		statements, err := ddl.Render(op)
		if err != nil {
			return err
		}
		for _, stmt := range statements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying %s: %w", op, err)
			}
		}
		log.Info("applied schema change", "change", op.String())
	}
	return nil
}

// Plan reports the operations Setup's auto-apply path would run right
// now, without touching the database.
func (d *DB) Plan(ctx context.Context) (schema.Diff, error) {
	current, err := catalog.Read(ctx, d.db)
	if err != nil {
		return schema.Diff{}, err
	}
	return schema.Compare(current, d.registry.Target()), nil
}

// Registry returns the model registry the database was set up with.
func (d *DB) Registry() *Registry {
	return d.registry
}

// Close releases the worker, if any, and the underlying pool.
func (d *DB) Close() error {
	if d.serial != nil {
		if err := d.serial.Close(); err != nil {
			d.db.Close()
			return err
		}
	}
	return d.db.Close()
}
