package store

import (
	"database/sql"
	"fmt"
	"regexp"
	"sync"

	"github.com/mattn/go-sqlite3"

	// Registers the "pgx" driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// SQLiteDriver is the driver name registered for SQLite databases.
const SQLiteDriver = "sqlite3_qindex"

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

func init() {
	sql.Register(SQLiteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("regexp", regexpMatch, true); err != nil {
				return fmt.Errorf("register regexp: %w", err)
			}
			for _, p := range pragmas {
				if _, err := conn.Exec(p, nil); err != nil {
					return fmt.Errorf("failed to execute %q: %w", p, err)
				}
			}
			return nil
		},
	})
}

var regexpCache sync.Map

// regexpMatch backs "value REGEXP pattern", which SQLite evaluates as
// regexp(pattern, value). A NULL or non-text value never matches.
func regexpMatch(pattern, value interface{}) (bool, error) {
	p, ok := asText(pattern)
	if !ok {
		return false, fmt.Errorf("regexp: pattern is %T, not text", pattern)
	}
	v, ok := asText(value)
	if !ok {
		return false, nil
	}

	var re *regexp.Regexp
	if cached, ok := regexpCache.Load(p); ok {
		re = cached.(*regexp.Regexp)
	} else {
		compiled, err := regexp.Compile(p)
		if err != nil {
			return false, fmt.Errorf("regexp: %w", err)
		}
		regexpCache.Store(p, compiled)
		re = compiled
	}
	return re.MatchString(v), nil
}

func asText(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

// driverFor maps a configured driver name to the registered driver.
func driverFor(name string) (string, error) {
	switch name {
	case "", "sqlite", "sqlite3", SQLiteDriver:
		return SQLiteDriver, nil
	case "pgx", "postgres", "postgresql":
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported driver %q (want sqlite3 or pgx)", name)
	}
}
