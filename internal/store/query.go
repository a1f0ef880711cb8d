package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/qindex/internal/queryir"
	"github.com/roach88/qindex/internal/querysql"
)

// Match is one query result.
type Match struct {
	PK       int64
	Identity string
}

// ConstructQuery validates and compiles q against the current registry
// snapshot without touching the database.
func (s *Store) ConstructQuery(q querysql.Query) (*querysql.Compiled, error) {
	reg, err := s.registry()
	if err != nil {
		return nil, err
	}
	if result := queryir.Validate(q.Where, q.OrderBy...); !result.IsValid {
		return nil, fmt.Errorf("construct query: invalid predicate: %s", strings.Join(result.Problems, "; "))
	}
	compiled, err := querysql.NewCompiler(reg).Compile(q)
	if err != nil {
		return nil, fmt.Errorf("construct query: %w", err)
	}
	s.opts.Metrics.compiled()
	s.log.Debug("query compiled", zap.String("type", q.ResultType), zap.Int("params", len(compiled.Params)))
	return compiled, nil
}

// Find runs q and returns the matching entities in query order.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Find(ctx context.Context, q querysql.Query) ([]Match, error) {
	q.CountOnly = false
	compiled, err := s.ConstructQuery(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, compiled.SQL, compiled.Args()...)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.PK, &m.Identity); err != nil {
			return nil, fmt.Errorf("find: scan: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find: iterate: %w", err)
	}
	return matches, nil
}

// FindIdentities runs q and returns the identities of the matches.
func (s *Store) FindIdentities(ctx context.Context, q querysql.Query) ([]string, error) {
	matches, err := s.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.Identity
	}
	return ids, nil
}

// Count returns the number of entities matching q.
func (s *Store) Count(ctx context.Context, q querysql.Query) (int64, error) {
	q.CountOnly = true
	compiled, err := s.ConstructQuery(q)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, compiled.SQL, compiled.Args()...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
