package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/qindex/internal/ir"
	"github.com/roach88/qindex/internal/schema"
)

// InitResult reports what InitConnection did.
type InitResult struct {
	// Created is true when the schema did not exist before.
	Created bool

	// ReindexRequired is true when stored values were dropped. The caller
	// must feed every entity again (as UPDATED) to repopulate the index.
	ReindexRequired bool

	// ApplicationVersion is the version recorded in the schema.
	ApplicationVersion string

	// NewQNames counts the value tables created by this call.
	NewQNames int

	// Skipped members have unsupported types and are not indexed.
	Skipped []schema.SkippedMember

	// Drift lists stored qualified names whose shape no longer matched
	// the model and forced the rebuild.
	Drift []ir.QualifiedName
}

// InitConnection creates, reconciles or rebuilds the schema for the
// configured model and publishes the registry snapshot.
//
// On a fresh database every table and dictionary is created. On restart
// the dictionaries are read back so existing table names and ids are
// kept, and only new qualified names, types, classes and enum constants
// are added. When the reindex policy asks for it, the stored layout
// version differs, or a stored qualified name changed shape, all value,
// join and dictionary tables are dropped (entities are kept) and rebuilt.
//
// DDL runs in autocommit mode; any failure aborts initialization.
func (s *Store) InitConnection(ctx context.Context) (*InitResult, error) {
	if err := schema.ValidateSchemaName(s.opts.SchemaName); err != nil {
		return nil, err
	}
	if err := s.checkBackend(ctx); err != nil {
		return nil, err
	}
	appVersion := s.opts.AppVersion
	if appVersion == "" {
		fp, err := ir.ModelFingerprint(s.opts.Model)
		if err != nil {
			return nil, fmt.Errorf("init connection: %w", err)
		}
		appVersion = fp
	}
	res := &InitResult{ApplicationVersion: appVersion}

	exists, err := s.tableExists(ctx, schema.TableAppVersion)
	if err != nil {
		return nil, fmt.Errorf("init connection: %w", err)
	}

	var existing *schema.Assignments
	switch {
	case !exists:
		res.Created = true
	default:
		stored, layout, err := s.readAppVersion(ctx)
		if err != nil {
			return nil, fmt.Errorf("init connection: %w", err)
		}
		if layout != ir.LayoutVersion || s.opts.Policy.NeedsReindex(stored, appVersion) {
			s.log.Info("rebuilding schema",
				zap.String("stored_version", stored),
				zap.String("version", appVersion),
				zap.String("stored_layout", layout))
			if err := s.dropSchema(ctx); err != nil {
				return nil, fmt.Errorf("init connection: %w", err)
			}
			res.ReindexRequired = true
			break
		}
		existing, err = s.readAssignments(ctx)
		if err != nil {
			return nil, fmt.Errorf("init connection: %w", err)
		}
	}

	reg, delta, err := s.build(appVersion, existing)
	if err != nil {
		return nil, err
	}
	if len(delta.Drift) > 0 {
		s.log.Warn("stored qualified names changed shape; rebuilding schema",
			zap.Strings("qnames", qnameStrings(delta.Drift)))
		res.Drift = delta.Drift
		if err := s.dropSchema(ctx); err != nil {
			return nil, fmt.Errorf("init connection: %w", err)
		}
		res.ReindexRequired = true
		if reg, delta, err = s.build(appVersion, nil); err != nil {
			return nil, err
		}
	}

	if err := s.execDDL(ctx, schema.BaseTableDDL(s.dialect, s.opts.SchemaName)); err != nil {
		return nil, fmt.Errorf("init connection: %w", err)
	}
	for _, info := range delta.NewQNames {
		if err := s.execDDL(ctx, schema.QNameTableDDL(s.dialect, s.opts.SchemaName, info)); err != nil {
			return nil, fmt.Errorf("init connection: create %s: %w", info.QName, err)
		}
	}
	if err := s.writeDictionaries(ctx, delta, appVersion); err != nil {
		return nil, fmt.Errorf("init connection: %w", err)
	}

	for _, sk := range delta.Skipped {
		s.log.Warn("member not indexed", zap.Stringer("qname", sk.QName), zap.String("reason", sk.Reason))
	}
	res.NewQNames = len(delta.NewQNames)
	res.Skipped = delta.Skipped

	s.reg.Store(reg)
	s.log.Info("schema ready",
		zap.Bool("created", res.Created),
		zap.Bool("reindex_required", res.ReindexRequired),
		zap.Int("new_qnames", res.NewQNames),
		zap.Int("qnames", len(reg.QNames())))
	return res, nil
}

// checkBackend verifies that a SQLite connection has foreign key
// enforcement on and a regexp function. Updates clear stale values through
// ON DELETE CASCADE and containment filters collection rows with REGEXP;
// both come with the SQLiteDriver connect hook and are missing from a
// plain sqlite3 handle passed to New.
func (s *Store) checkBackend(ctx context.Context) error {
	if s.dialect.Name() != (schema.SQLite{}).Name() {
		return nil
	}
	var fk int
	if err := s.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		return fmt.Errorf("init connection: read foreign_keys: %w", err)
	}
	if fk != 1 {
		return schema.NewUnsupportedBackendError("foreign_keys",
			"foreign key enforcement is off; open the database with driver %q", SQLiteDriver)
	}
	var matched bool
	if err := s.db.QueryRowContext(ctx, "SELECT 'a' REGEXP '^a$'").Scan(&matched); err != nil {
		return schema.NewUnsupportedBackendError("regexp",
			"regexp function is unavailable (%v); open the database with driver %q", err, SQLiteDriver)
	}
	return nil
}

func (s *Store) build(appVersion string, existing *schema.Assignments) (*schema.Registry, *schema.Delta, error) {
	return schema.Build(s.opts.Model, schema.BuildOptions{
		SchemaName: s.opts.SchemaName,
		Dialect:    s.dialect,
		AppVersion: appVersion,
		Existing:   existing,
	})
}

func (s *Store) execDDL(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ddl %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func (s *Store) tableExists(ctx context.Context, table string) (bool, error) {
	query, args := s.dialect.TableExistsQuery(s.opts.SchemaName, table)
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...).Scan(&n); err != nil {
		return false, fmt.Errorf("probe %s: %w", table, err)
	}
	return n > 0, nil
}

func (s *Store) readAppVersion(ctx context.Context) (appVersion, layout string, err error) {
	query := fmt.Sprintf("SELECT %s, %s FROM %s", schema.ColAppVersion, schema.ColLayoutVersion, s.table(schema.TableAppVersion))
	err = s.db.QueryRowContext(ctx, query).Scan(&appVersion, &layout)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("read app version: %w", err)
	}
	return appVersion, layout, nil
}

// dropSchema drops every table except entities. Value tables are found
// through the qualified-name dictionary.
func (s *Store) dropSchema(ctx context.Context) error {
	var tables []string
	exists, err := s.tableExists(ctx, schema.TableQNames)
	if err != nil {
		return err
	}
	if exists {
		query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", schema.ColTableName, s.table(schema.TableQNames), schema.ColTableName)
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("list value tables: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				return fmt.Errorf("scan value table: %w", err)
			}
			tables = append(tables, t)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate value tables: %w", err)
		}
		rows.Close()
	}
	s.log.Debug("dropping schema", zap.Int("value_tables", len(tables)))
	return s.execDDL(ctx, schema.DropDDL(s.dialect, s.opts.SchemaName, tables))
}

// readAssignments reads the dictionary tables back into assignments.
func (s *Store) readAssignments(ctx context.Context) (*schema.Assignments, error) {
	a := schema.NewAssignments()

	query := fmt.Sprintf("SELECT %s, %s, %s, %s, %s FROM %s",
		schema.ColQName, schema.ColTableName, schema.ColMemberKind, schema.ColCollDepth, schema.ColFinalType,
		s.table(schema.TableQNames))
	err := s.scanRows(ctx, query, func(rows *sql.Rows) error {
		var qname, table, kind, final string
		var depth int
		if err := rows.Scan(&qname, &table, &kind, &depth, &final); err != nil {
			return err
		}
		q, err := ir.ParseQualifiedName(qname)
		if err != nil {
			return err
		}
		k, err := ir.ParseMemberKind(kind)
		if err != nil {
			return err
		}
		a.QNames[q] = schema.StoredQName{Table: table, Kind: k, CollectionDepth: depth, FinalType: final}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read qnames: %w", err)
	}

	dicts := []struct {
		table, idCol, nameCol string
		into                  map[string]int64
	}{
		{schema.TableEntityTypes, schema.ColEntityTypeID, schema.ColEntityTypeName, a.EntityTypes},
		{schema.TableUsedClasses, schema.ColClassID, schema.ColClassName, a.Classes},
		{schema.TableEnumLookup, schema.ColEnumID, schema.ColEnumValue, a.Enums},
	}
	for _, d := range dicts {
		query := fmt.Sprintf("SELECT %s, %s FROM %s", d.idCol, d.nameCol, s.table(d.table))
		err := s.scanRows(ctx, query, func(rows *sql.Rows) error {
			var id int64
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				return err
			}
			d.into[name] = id
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", d.table, err)
		}
	}
	return a, nil
}

func (s *Store) scanRows(ctx context.Context, query string, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// writeDictionaries persists the delta and the current version in one
// transaction.
func (s *Store) writeDictionaries(ctx context.Context, delta *schema.Delta, appVersion string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write dictionaries: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	exec := func(query string, args ...any) error {
		_, err := tx.ExecContext(ctx, s.dialect.Rebind(query), args...)
		return err
	}

	insertQName := fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s, %s) VALUES (?, ?, ?, ?, ?)",
		s.table(schema.TableQNames),
		schema.ColQName, schema.ColTableName, schema.ColMemberKind, schema.ColCollDepth, schema.ColFinalType)
	for _, info := range delta.NewQNames {
		if err := exec(insertQName, info.QName.String(), info.Table, info.Kind.String(),
			info.CollectionDepth, schema.FinalTypeName(info)); err != nil {
			return fmt.Errorf("write dictionaries: qname %s: %w", info.QName, err)
		}
	}

	insertPair := func(table, idCol, nameCol string, id int64, name string) error {
		return exec(fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)", s.table(table), idCol, nameCol), id, name)
	}
	for _, t := range delta.NewEntityTypes {
		if err := insertPair(schema.TableEntityTypes, schema.ColEntityTypeID, schema.ColEntityTypeName, t.ID, t.Name); err != nil {
			return fmt.Errorf("write dictionaries: entity type %s: %w", t.Name, err)
		}
	}
	for _, c := range delta.NewClasses {
		if err := insertPair(schema.TableUsedClasses, schema.ColClassID, schema.ColClassName, c.ID, c.Name); err != nil {
			return fmt.Errorf("write dictionaries: class %s: %w", c.Name, err)
		}
	}
	for _, e := range delta.NewEnums {
		if err := insertPair(schema.TableEnumLookup, schema.ColEnumID, schema.ColEnumValue, e.ID, e.Key); err != nil {
			return fmt.Errorf("write dictionaries: enum %s: %w", e.Key, err)
		}
	}

	if err := exec("DELETE FROM " + s.table(schema.TableAppVersion)); err != nil {
		return fmt.Errorf("write dictionaries: clear version: %w", err)
	}
	if err := exec(fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)",
		s.table(schema.TableAppVersion), schema.ColAppVersion, schema.ColLayoutVersion),
		appVersion, ir.LayoutVersion); err != nil {
		return fmt.Errorf("write dictionaries: version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write dictionaries: commit: %w", err)
	}
	return nil
}

func qnameStrings(qs []ir.QualifiedName) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.String()
	}
	return out
}

func firstLine(stmt string) string {
	for i, ch := range stmt {
		if ch == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
