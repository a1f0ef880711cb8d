package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnType is the logical type of a value column or query parameter.
type ColumnType int

const (
	ColText ColumnType = iota
	ColInt
	ColFloat
	ColBool
	// ColTime values are stored as UTC unix nanoseconds.
	ColTime
)

// String returns the logical column type name.
func (c ColumnType) String() string {
	switch c {
	case ColText:
		return "text"
	case ColInt:
		return "int"
	case ColFloat:
		return "float"
	case ColBool:
		return "bool"
	case ColTime:
		return "time"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(c))
	}
}

// Dialect isolates the SQL differences between backends.
//
// Statements are written with "?" placeholders; Rebind converts them to
// the backend's native form just before execution.
type Dialect interface {
	// Name returns the dialect name ("sqlite3", "pgx").
	Name() string

	// Table returns the quoted, schema-scoped name of a table.
	Table(schemaName, table string) string

	// Index returns the quoted name to use when creating an index.
	Index(schemaName, name string) string

	// SQLType maps a logical column type to a column definition type.
	SQLType(ColumnType) string

	// AutoIncrementKey returns the column definition of an auto-assigned
	// integer primary key.
	AutoIncrementKey(column string) string

	// RegexpOperator returns the infix operator matching a value against
	// a regular expression: value OP pattern.
	RegexpOperator() string

	// Rebind converts "?" placeholders to the native form.
	Rebind(query string) string

	// LimitOffset returns the paging clause and its parameters.
	// limit <= 0 means unlimited; offset <= 0 means none.
	LimitOffset(limit, offset int) (string, []any)

	// NullsOrder returns the clause appended after ASC or DESC so that
	// NULL sort values come first ascending and last descending.
	NullsOrder(descending bool) string

	// TableExistsQuery returns a query counting tables with the given name.
	TableExistsQuery(schemaName, table string) (string, []any)

	// CreateSchema returns statements creating the schema namespace, if any.
	CreateSchema(schemaName string) []string
}

// SQLite is the dialect for github.com/mattn/go-sqlite3. SQLite has no
// schema namespaces, so the schema name prefixes table names.
//
// REGEXP requires a registered regexp(pattern, value) function.
type SQLite struct{}

var _ Dialect = SQLite{}

// Name implements Dialect.
func (SQLite) Name() string { return "sqlite3" }

// Table implements Dialect.
func (SQLite) Table(schemaName, table string) string {
	return quoteIdent(schemaName + "_" + table)
}

// Index implements Dialect.
func (SQLite) Index(schemaName, name string) string {
	return quoteIdent(schemaName + "_" + name)
}

// SQLType implements Dialect.
func (SQLite) SQLType(c ColumnType) string {
	switch c {
	case ColInt, ColTime:
		return "INTEGER"
	case ColFloat:
		return "REAL"
	case ColBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// AutoIncrementKey implements Dialect.
func (SQLite) AutoIncrementKey(column string) string {
	return column + " INTEGER PRIMARY KEY AUTOINCREMENT"
}

// RegexpOperator implements Dialect.
func (SQLite) RegexpOperator() string { return "REGEXP" }

// Rebind implements Dialect.
func (SQLite) Rebind(query string) string { return query }

// LimitOffset implements Dialect. SQLite requires LIMIT before OFFSET.
func (SQLite) LimitOffset(limit, offset int) (string, []any) {
	switch {
	case limit > 0 && offset > 0:
		return " LIMIT ? OFFSET ?", []any{limit, offset}
	case limit > 0:
		return " LIMIT ?", []any{limit}
	case offset > 0:
		return " LIMIT -1 OFFSET ?", []any{offset}
	default:
		return "", nil
	}
}

// TableExistsQuery implements Dialect.
// NullsOrder returns nothing; SQLite already treats NULL as the smallest
// value.
func (SQLite) NullsOrder(bool) string { return "" }

func (SQLite) TableExistsQuery(schemaName, table string) (string, []any) {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		[]any{schemaName + "_" + table}
}

// CreateSchema implements Dialect.
func (SQLite) CreateSchema(string) []string { return nil }

// Postgres is the dialect for github.com/jackc/pgx/v5/stdlib.
type Postgres struct{}

var _ Dialect = Postgres{}

// Name implements Dialect.
func (Postgres) Name() string { return "pgx" }

// Table implements Dialect.
func (Postgres) Table(schemaName, table string) string {
	return quoteIdent(schemaName) + "." + quoteIdent(table)
}

// Index implements Dialect. Postgres creates indexes in the table's schema.
func (Postgres) Index(_, name string) string {
	return quoteIdent(name)
}

// SQLType implements Dialect.
func (Postgres) SQLType(c ColumnType) string {
	switch c {
	case ColInt, ColTime:
		return "BIGINT"
	case ColFloat:
		return "DOUBLE PRECISION"
	case ColBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// AutoIncrementKey implements Dialect.
func (Postgres) AutoIncrementKey(column string) string {
	return column + " BIGSERIAL PRIMARY KEY"
}

// RegexpOperator implements Dialect.
func (Postgres) RegexpOperator() string { return "~" }

// Rebind implements Dialect. Placeholders inside single-quoted literals
// are left alone.
func (Postgres) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// LimitOffset implements Dialect.
func (Postgres) LimitOffset(limit, offset int) (string, []any) {
	var clause string
	var params []any
	if limit > 0 {
		clause += " LIMIT ?"
		params = append(params, limit)
	}
	if offset > 0 {
		clause += " OFFSET ?"
		params = append(params, offset)
	}
	return clause, params
}

// TableExistsQuery implements Dialect.
// NullsOrder is explicit because Postgres treats NULL as the largest
// value.
func (Postgres) NullsOrder(descending bool) string {
	if descending {
		return " NULLS LAST"
	}
	return " NULLS FIRST"
}

func (Postgres) TableExistsQuery(schemaName, table string) (string, []any) {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?",
		[]any{schemaName, table}
}

// CreateSchema implements Dialect.
func (Postgres) CreateSchema(schemaName string) []string {
	return []string{"CREATE SCHEMA IF NOT EXISTS " + quoteIdent(schemaName)}
}

// DialectByName returns the dialect for a database/sql driver name.
func DialectByName(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite3_qindex":
		return SQLite{}, nil
	case "pgx", "postgres":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
