package harness

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/qindex/internal/compiler"
	"github.com/roach88/qindex/internal/store"
	"github.com/roach88/qindex/internal/testutil"
)

// Options tune a scenario run.
type Options struct {
	// Logger defaults to zap.NewNop().
	Logger *zap.Logger

	// Metrics is passed to the store; optional.
	Metrics *store.Metrics
}

// Harness is the scenario execution engine.
// It runs scenarios with a deterministic clock and identity generator.
type Harness struct {
	store   *store.Store
	decoder *Decoder
	logger  *zap.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Load and validate the CUE model
// 2. Create and initialize a fresh in-memory database
// 3. Index every batch in order, checking expected failures
// 4. Run every query and check its expectation
//
// The returned error reports a scenario that could not run at all; a
// failed expectation is reported through Result.
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.With(zap.String("scenario", scenario.Name))

	loaded, err := compiler.LoadModelDir(scenario.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	clock := testutil.NewDeterministicClock()
	st, err := store.Open(store.SQLiteDriver, ":memory:", store.Options{
		Model:      *loaded.Model,
		AppVersion: scenario.AppVersion,
		Logger:     logger,
		Metrics:    opts.Metrics,
		Now:        clock.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if _, err := st.InitConnection(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	decoder := NewDecoder(loaded.Model)
	decoder.NewIdentity = testutil.NewIdentityGenerator(scenario.IdentityPrefix).Generate

	h := &Harness{store: st, decoder: decoder, logger: logger}
	result := NewResult()
	if err := h.executeBatches(ctx, scenario.Batches, result); err != nil {
		return nil, err
	}
	h.executeQueries(ctx, scenario.Queries, result)
	return result, nil
}

// executeBatches indexes every batch in order.
func (h *Harness) executeBatches(ctx context.Context, batches []Batch, result *Result) error {
	for i, b := range batches {
		states, err := h.decoder.States(b.States)
		if err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}

		err = h.store.IndexEntities(ctx, states)
		for _, msg := range CheckBatch(i, b, err) {
			result.AddError(msg)
		}
		if err == nil {
			result.Indexed++
		}
		h.logger.Debug("batch executed",
			zap.Int("batch", i),
			zap.Int("states", len(states)),
			zap.Error(err),
		)
	}
	return nil
}

// executeQueries runs every query; decode and compilation failures are
// outcomes, so expect.error can match them.
func (h *Harness) executeQueries(ctx context.Context, cases []QueryCase, result *Result) {
	for _, c := range cases {
		out := h.executeQuery(ctx, c)
		for _, msg := range CheckQuery(c, out) {
			result.AddError(msg)
		}
		result.Queries = append(result.Queries, out)
		h.logger.Debug("query executed",
			zap.String("query", c.Name),
			zap.Int("matches", len(out.Identities)),
			zap.String("error", out.Error),
		)
	}
}

func (h *Harness) executeQuery(ctx context.Context, c QueryCase) QueryOutcome {
	out := QueryOutcome{Name: c.Name}

	q, err := h.decoder.Query(c.QuerySpec)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	compiled, err := h.store.ConstructQuery(q)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.SQL = compiled.SQL

	if q.CountOnly {
		n, err := h.store.Count(ctx, q)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		out.Count = &n
		return out
	}

	ids, err := h.store.FindIdentities(ctx, q)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Identities = ids
	return out
}
