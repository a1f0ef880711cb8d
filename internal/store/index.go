package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/qindex/internal/ir"
	"github.com/roach88/qindex/internal/schema"
)

// removeChunk bounds the identity list of one batched delete.
const removeChunk = 500

// IndexStats reports what one IndexEntities call applied.
type IndexStats struct {
	// Applied counts states by the status actually applied, after LOADED
	// states are dropped and repeated identities collapse to their last
	// state. An UPDATED state for an unknown identity counts as NEW; a
	// REMOVED state counts whether or not the entity existed.
	Applied map[ir.EntityStatus]int
}

// Total returns the number of states applied.
func (st *IndexStats) Total() int {
	n := 0
	for _, c := range st.Applied {
		n += c
	}
	return n
}

// IndexEntities applies a batch of entity state changes.
//
// REMOVED states delete the entity and, through cascading foreign keys,
// its type rows and values; associations pointing at it become null.
// UPDATED states replace the entity row, type rows and values (an unknown
// identity is inserted as NEW). NEW states insert the entity. LOADED
// states are ignored. When one identity appears several times the last
// state wins, preceded by a delete when an earlier state removed it.
//
// The whole batch runs in one transaction on one pinned connection;
// on any failure nothing is visible and the error is returned.
func (s *Store) IndexEntities(ctx context.Context, states []ir.EntityState) error {
	_, err := s.IndexEntitiesStats(ctx, states)
	return err
}

// IndexEntitiesStats is IndexEntities that also reports the applied
// statuses of a committed batch.
func (s *Store) IndexEntitiesStats(ctx context.Context, states []ir.EntityState) (_ *IndexStats, err error) {
	reg, err := s.registry()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	counts := make(map[ir.EntityStatus]int)

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("index entities: acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("index entities: begin tx: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Error("rollback failed", zap.Error(rbErr))
		}
		s.log.Error("index batch rolled back", zap.Int("states", len(states)), zap.Error(err))
		s.opts.Metrics.batch("rolled_back", time.Since(start).Seconds(), nil)
	}()

	ix := &indexer{
		store: s,
		reg:   reg,
		tx:    tx,
		batch: newStmtBatch(tx, s.dialect),
		sql:   make(map[*schema.QNameInfo]string),
	}
	defer ix.batch.close()

	if err := ix.apply(ctx, states, counts); err != nil {
		return nil, fmt.Errorf("index entities: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("index entities: commit: %w", err)
	}
	committed = true

	s.opts.Metrics.batch("committed", time.Since(start).Seconds(), counts)
	s.log.Debug("index batch committed",
		zap.Int("states", len(states)),
		zap.Int("statements", ix.batch.executed),
		zap.Duration("elapsed", time.Since(start)))
	return &IndexStats{Applied: counts}, nil
}

// indexer carries the state of one IndexEntities call.
type indexer struct {
	store *Store
	reg   *schema.Registry
	tx    *sql.Tx
	batch *stmtBatch

	// sql caches the insert statement of each value table.
	sql map[*schema.QNameInfo]string
}

// pending is an entity whose values still need writing.
type pending struct {
	pk     int64
	entity *ir.EntityDescriptor
	state  ir.EntityState
}

func (ix *indexer) apply(ctx context.Context, states []ir.EntityState, counts map[ir.EntityStatus]int) error {
	plan, err := ix.collapse(states)
	if err != nil {
		return err
	}

	if err := ix.remove(ctx, plan.removed); err != nil {
		return err
	}
	for _, st := range plan.final {
		if st.Status == ir.StatusRemoved {
			counts[st.Status]++
		}
	}

	var writes []pending
	for _, st := range plan.final {
		if st.Status == ir.StatusRemoved {
			continue
		}
		entity, _ := ix.reg.Entity(st.Type)
		pk, status, err := ix.upsert(ctx, entity, st)
		if err != nil {
			return fmt.Errorf("%s %s: %w", st.Status, st.Identity, err)
		}
		counts[status]++
		writes = append(writes, pending{pk: pk, entity: entity, state: st})
	}

	for _, w := range writes {
		rows, err := flatten(ix.reg, w.entity, w.state)
		if err != nil {
			return fmt.Errorf("%s %s: %w", w.state.Status, w.state.Identity, err)
		}
		for _, r := range rows {
			ix.writeRow(w.pk, r)
		}
	}
	return ix.batch.flush(ctx)
}

type batchPlan struct {
	removed []string
	final   []ir.EntityState
}

// collapse validates the states and reduces them to one final state per
// identity, in first-appearance order.
func (ix *indexer) collapse(states []ir.EntityState) (*batchPlan, error) {
	plan := &batchPlan{}
	pos := make(map[string]int)
	removedBefore := make(map[string]bool)
	for _, st := range states {
		if st.Status == ir.StatusLoaded {
			continue
		}
		if st.Identity == "" {
			return nil, schema.NewInvalidValueError(st.Type, "%s state without identity", st.Status)
		}
		st.Identity = schema.EncodeIdentity(st.Identity)
		if st.Status != ir.StatusRemoved {
			if _, ok := ix.reg.Entity(st.Type); !ok {
				return nil, fmt.Errorf("%s: %w", st.Identity, schema.NewUnknownEntityTypeError(st.Type))
			}
		}

		i, seen := pos[st.Identity]
		if !seen {
			pos[st.Identity] = len(plan.final)
			plan.final = append(plan.final, st)
			continue
		}
		if plan.final[i].Status == ir.StatusRemoved {
			removedBefore[st.Identity] = true
		}
		plan.final[i] = st
	}

	for _, st := range plan.final {
		if st.Status == ir.StatusRemoved || removedBefore[st.Identity] {
			plan.removed = append(plan.removed, st.Identity)
		}
	}
	return plan, nil
}

// remove deletes entities by identity in chunks.
func (ix *indexer) remove(ctx context.Context, identities []string) error {
	for len(identities) > 0 {
		n := min(len(identities), removeChunk)
		chunk := identities[:n]
		identities = identities[n:]

		args := make([]any, n)
		for i, id := range chunk {
			args[i] = id
		}
		ix.batch.add(fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
			ix.reg.Table(schema.TableEntities), schema.ColIdentity, placeholders(n)), args...)
	}
	return ix.batch.flush(ctx)
}

// upsert writes the entity row and its type rows and clears old values.
// It returns the entity_pk and the status actually applied.
func (ix *indexer) upsert(ctx context.Context, entity *ir.EntityDescriptor, st ir.EntityState) (int64, ir.EntityStatus, error) {
	typeID, err := ix.reg.EntityTypeID(st.Type)
	if err != nil {
		return 0, st.Status, err
	}
	modified := st.LastModified
	if modified.IsZero() {
		modified = ix.store.opts.Now()
	}
	stamp := modified.UTC().UnixNano()
	appVersion := ix.reg.ApplicationVersion()
	entities := ix.reg.Table(schema.TableEntities)

	status := st.Status
	var pk int64
	if status == ir.StatusUpdated {
		found, err := ix.lookup(ctx, st.Identity)
		if err != nil {
			return 0, status, err
		}
		if found == 0 {
			status = ir.StatusNew
		}
		pk = found
	}

	switch status {
	case ir.StatusNew:
		if err := ix.batch.flush(ctx); err != nil {
			return 0, status, err
		}
		query := fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s, %s) VALUES (?, ?, ?, ?, ?) RETURNING %s",
			entities, schema.ColEntityTypeID, schema.ColIdentity, schema.ColModified,
			schema.ColEntityVersion, schema.ColAppVersion, schema.ColEntityPK)
		err := ix.tx.QueryRowContext(ctx, ix.reg.Dialect().Rebind(query),
			typeID, st.Identity, stamp, st.Version, appVersion).Scan(&pk)
		if err != nil {
			return 0, status, fmt.Errorf("insert entity: %w", err)
		}
	case ir.StatusUpdated:
		ix.batch.add(fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
			ix.reg.Table(schema.TableAllQNames), schema.ColEntityPK), pk)
		ix.batch.add(fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
			ix.reg.Table(schema.TableEntityTypesJoin), schema.ColEntityPK), pk)
		ix.batch.add(fmt.Sprintf("UPDATE %s SET %s = ?, %s = ?, %s = ?, %s = ? WHERE %s = ?",
			entities, schema.ColEntityTypeID, schema.ColModified, schema.ColEntityVersion,
			schema.ColAppVersion, schema.ColEntityPK),
			typeID, stamp, st.Version, appVersion, pk)
	default:
		return 0, status, fmt.Errorf("unexpected status %s", status)
	}

	closure, err := ix.reg.TypeClosure(entity.Name)
	if err != nil {
		return 0, status, err
	}
	insertType := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)",
		ix.reg.Table(schema.TableEntityTypesJoin), schema.ColEntityPK, schema.ColEntityTypeID)
	for _, t := range closure {
		id, err := ix.reg.EntityTypeID(t)
		if err != nil {
			return 0, status, err
		}
		ix.batch.add(insertType, pk, id)
	}
	return pk, status, nil
}

// lookup returns the entity_pk of identity, or 0 when absent.
func (ix *indexer) lookup(ctx context.Context, identity string) (int64, error) {
	if err := ix.batch.flush(ctx); err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		schema.ColEntityPK, ix.reg.Table(schema.TableEntities), schema.ColIdentity)
	var pk int64
	err := ix.tx.QueryRowContext(ctx, ix.reg.Dialect().Rebind(query), identity).Scan(&pk)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup entity: %w", err)
	}
	return pk, nil
}

// writeRow queues the all_qnames row and the value row.
func (ix *indexer) writeRow(pk int64, r valueRow) {
	ix.batch.add(fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)",
		ix.reg.Table(schema.TableAllQNames), schema.ColQNameID, schema.ColEntityPK), r.qnameID, pk)

	args := []any{r.qnameID, pk, r.parent}
	switch {
	case r.info.Kind == ir.MemberProperty && r.info.CollectionDepth > 0:
		args = append(args, r.path, r.value)
	case r.info.Kind == ir.MemberProperty:
		args = append(args, r.value)
	case r.info.Kind == ir.MemberAssociation:
		args = append(args, r.target)
	default:
		args = append(args, r.target, r.index)
	}
	ix.batch.add(ix.insertSQL(r.info), args...)
}

// insertSQL returns the insert statement of a value table. Association
// targets resolve through a subquery, so a target missing from the
// entity table yields a null link.
func (ix *indexer) insertSQL(info *schema.QNameInfo) string {
	if q, ok := ix.sql[info]; ok {
		return q
	}
	cols := []string{schema.ColQNameID, schema.ColEntityPK, schema.ColParentQName}
	vals := []string{"?", "?", "?"}
	target := fmt.Sprintf("(SELECT %s FROM %s WHERE %s = ?)",
		schema.ColEntityPK, ix.reg.Table(schema.TableEntities), schema.ColIdentity)

	switch info.Kind {
	case ir.MemberProperty:
		if info.CollectionDepth > 0 {
			cols = append(cols, schema.ColCollectionPath)
			vals = append(vals, "?")
		}
		cols = append(cols, schema.ColValue)
		vals = append(vals, "?")
	case ir.MemberAssociation:
		cols = append(cols, schema.ColTargetPK)
		vals = append(vals, target)
	case ir.MemberManyAssociation:
		cols = append(cols, schema.ColTargetPK, schema.ColIndex)
		vals = append(vals, target, "?")
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ix.reg.Table(info.Table), strings.Join(cols, ", "), strings.Join(vals, ", "))
	ix.sql[info] = q
	return q
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
