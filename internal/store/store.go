package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/qindex/internal/ir"
	"github.com/roach88/qindex/internal/schema"
)

// DefaultSchemaName prefixes every table when no schema name is configured.
const DefaultSchemaName = "qindex"

// ErrNotInitialized is returned by operations that need a registry before
// InitConnection has succeeded.
var ErrNotInitialized = errors.New("store: InitConnection has not completed")

// Options configure a Store.
type Options struct {
	// Model is the type model to index.
	Model ir.Model

	// SchemaName scopes every table. Defaults to DefaultSchemaName.
	SchemaName string

	// AppVersion is recorded in the schema and fed to Policy on restart.
	// Defaults to the model fingerprint.
	AppVersion string

	// Policy decides whether a stored schema must be rebuilt.
	// Defaults to schema.VersionChangePolicy.
	Policy schema.ReindexPolicy

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger

	// Metrics is optional.
	Metrics *Metrics

	// Now stamps entity rows whose state has no modification time.
	// Defaults to time.Now.
	Now func() time.Time
}

// Store indexes entity state into a relational schema and answers
// compiled queries against it.
type Store struct {
	db      *sql.DB
	dialect schema.Dialect
	opts    Options
	log     *zap.Logger

	// reg is the published registry snapshot; nil until InitConnection.
	reg atomic.Pointer[schema.Registry]
}

// Open opens a database through the named driver ("sqlite3" or "pgx")
// and wraps it in a Store. InitConnection must run before indexing or
// querying.
//
// SQLite databases are limited to a single open connection; SQLite
// only supports one writer at a time.
func Open(driver, dsn string, opts Options) (*Store, error) {
	name, err := driverFor(driver)
	if err != nil {
		return nil, err
	}
	d, err := schema.DialectByName(name)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if name == SQLiteDriver {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	return New(db, d, opts), nil
}

// New wraps an open database. The caller keeps ownership of the dialect
// choice; Close closes db. A SQLite db must come from SQLiteDriver or
// provide the same foreign key enforcement and regexp function;
// InitConnection rejects it otherwise.
func New(db *sql.DB, d schema.Dialect, opts Options) *Store {
	if opts.SchemaName == "" {
		opts.SchemaName = DefaultSchemaName
	}
	if opts.Policy == nil {
		opts.Policy = schema.VersionChangePolicy
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		db:      db,
		dialect: d,
		opts:    opts,
		log:     opts.Logger.With(zap.String("schema", opts.SchemaName)),
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect of the database.
func (s *Store) Dialect() schema.Dialect {
	return s.dialect
}

// Registry returns the current registry snapshot, or nil before
// InitConnection.
func (s *Store) Registry() *schema.Registry {
	return s.reg.Load()
}

func (s *Store) registry() (*schema.Registry, error) {
	reg := s.reg.Load()
	if reg == nil {
		return nil, ErrNotInitialized
	}
	return reg, nil
}

func (s *Store) table(name string) string {
	return s.dialect.Table(s.opts.SchemaName, name)
}
