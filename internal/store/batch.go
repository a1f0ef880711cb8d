package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/qindex/internal/schema"
)

type queuedStmt struct {
	query string
	args  []any
}

// stmtBatch queues statements for one transaction and executes them in
// order on flush. Each distinct statement text is prepared once.
type stmtBatch struct {
	tx      *sql.Tx
	dialect schema.Dialect
	stmts   map[string]*sql.Stmt
	queue   []queuedStmt

	// executed counts statements run so far.
	executed int
}

func newStmtBatch(tx *sql.Tx, d schema.Dialect) *stmtBatch {
	return &stmtBatch{tx: tx, dialect: d, stmts: make(map[string]*sql.Stmt)}
}

// add queues query. Placeholders are "?"; they are rebound on prepare.
func (b *stmtBatch) add(query string, args ...any) {
	b.queue = append(b.queue, queuedStmt{query: query, args: args})
}

func (b *stmtBatch) pending() int { return len(b.queue) }

// flush executes every queued statement in order. The queue is cleared
// even on failure; the transaction must then be rolled back.
func (b *stmtBatch) flush(ctx context.Context) error {
	queue := b.queue
	b.queue = b.queue[:0]
	for _, q := range queue {
		stmt, err := b.prepare(ctx, q.query)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, q.args...); err != nil {
			return fmt.Errorf("exec %q: %w", q.query, err)
		}
		b.executed++
	}
	return nil
}

func (b *stmtBatch) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	if stmt, ok := b.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := b.tx.PrepareContext(ctx, b.dialect.Rebind(query))
	if err != nil {
		return nil, fmt.Errorf("prepare %q: %w", query, err)
	}
	b.stmts[query] = stmt
	return stmt, nil
}

// close releases the prepared statements.
func (b *stmtBatch) close() {
	for _, stmt := range b.stmts {
		stmt.Close()
	}
	b.stmts = nil
}
