package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/corpuslab/psyrag/core/consolidate"
	"github.com/corpuslab/psyrag/core/retrieval"
	"github.com/corpuslab/psyrag/database"
	"github.com/corpuslab/psyrag/helper"
	"github.com/corpuslab/psyrag/model"
)

// Runner drives a query through its retrieval stages. Each stage checks
// the query status before doing any work and persists its artifact together
// with the status advance, so a failed stage leaves the query untouched.
//
// Stage order is embed, retrieve, consolidate. Retrieve and consolidate can
// be re-run on a ready query; re-running one stage never clears the other
// stage's artifact.
type Runner struct {
	queries      database.QueriesDBHandlerFunctions
	engine       *retrieval.Engine
	consolidator *consolidate.Consolidator
	embed        EmbedFunc
	rerank       retrieval.RerankFunc
	intentBias   retrieval.IntentBiasStrategy
	config       model.RetrievalConfig
	retry        helper.RetryConfig
	logger       *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewRunner validates the configuration and wires the stage dependencies.
func NewRunner(
	queries database.QueriesDBHandlerFunctions,
	engine *retrieval.Engine,
	consolidator *consolidate.Consolidator,
	embed EmbedFunc,
	rerank retrieval.RerankFunc,
	config model.RetrievalConfig,
	logger *slog.Logger,
) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, helper.NewConfigurationError("validating retrieval config", err)
	}
	if queries == nil || engine == nil || consolidator == nil {
		return nil, helper.NewConfigurationError("wiring runner", fmt.Errorf("queries, engine and consolidator are required"))
	}
	if embed == nil || rerank == nil {
		return nil, helper.NewConfigurationError("wiring runner", fmt.Errorf("embed and rerank functions are required"))
	}
	return &Runner{
		queries:      queries,
		engine:       engine,
		consolidator: consolidator,
		embed:        embed,
		rerank:       rerank,
		intentBias:   retrieval.NoopIntentBias{},
		config:       config,
		retry:        helper.DefaultRetryConfig(),
		logger:       logger,
	}, nil
}

// SetIntentBias replaces the intent bias strategy applied after reranking.
func (r *Runner) SetIntentBias(strategy retrieval.IntentBiasStrategy) {
	if strategy == nil {
		strategy = retrieval.NoopIntentBias{}
	}
	r.intentBias = strategy
}

// lock serializes stage runs per query id within this process. The database
// version check still guards against stages racing across processes.
func (r *Runner) lock(queryID int64) func() {
	r.mu.Lock()
	if r.locks == nil {
		r.locks = map[int64]*sync.Mutex{}
	}
	lock, ok := r.locks[queryID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[queryID] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Embed generates one embedding per query variant in a single batched model
// call and stores them, advancing the query to needs_retrieval.
func (r *Runner) Embed(ctx context.Context, rid uuid.UUID) (*model.Query, error) {
	query, err := r.queries.SelectQuery(rid)
	if err != nil {
		return nil, err
	}

	unlock := r.lock(query.ID)
	defer unlock()

	query, err = r.queries.SelectQuery(rid)
	if err != nil {
		return nil, err
	}

	if query.Status != model.StatusNeedsEmbeddings {
		return nil, helper.NewStateError(
			"embedding query",
			fmt.Errorf("query %v has status %v, want %v", rid, query.Status, model.StatusNeedsEmbeddings),
		)
	}
	variants := query.Variants()
	if len(variants) == 0 {
		return nil, helper.NewStateError("embedding query", fmt.Errorf("query %v has no variants to embed", rid))
	}

	vectors, err := helper.Retry(ctx, r.retry, func() ([][]float32, error) {
		vs, err := r.embed(variants)
		if err != nil {
			return nil, helper.NewExternalServiceError("generating variant embeddings", err)
		}
		return vs, nil
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(variants) {
		return nil, helper.NewExternalServiceError(
			"generating variant embeddings",
			fmt.Errorf("expected %d embeddings, got %d", len(variants), len(vectors)),
		)
	}

	embeddings := make([]model.VariantEmbedding, len(variants))
	for i, text := range variants {
		embeddings[i] = model.VariantEmbedding{Index: i, Text: text, Embedding: vectors[i]}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.queries.ReplaceEmbeddings(ctx, query, embeddings); err != nil {
		return nil, err
	}

	r.logger.Info("embedded query variants", slog.String("query", rid.String()), slog.Int("variants", len(variants)))
	return r.queries.SelectQuery(rid)
}

// Retrieve runs hybrid retrieval for all query variants, fuses the ranked
// lists, enriches short chunks, reranks and biases the pool, and stores the
// selected top candidates, advancing the query to needs_consolidation.
func (r *Runner) Retrieve(ctx context.Context, rid uuid.UUID) (*model.Query, error) {
	query, err := r.queries.SelectQuery(rid)
	if err != nil {
		return nil, err
	}

	unlock := r.lock(query.ID)
	defer unlock()

	query, err = r.queries.SelectQuery(rid)
	if err != nil {
		return nil, err
	}

	if query.Status != model.StatusNeedsRetrieval && query.Status != model.StatusReady {
		return nil, helper.NewStateError(
			"retrieving query context",
			fmt.Errorf("query %v has status %v, want %v or %v", rid, query.Status, model.StatusNeedsRetrieval, model.StatusReady),
		)
	}

	embeddings, err := r.queries.SelectQueryEmbeddings(query.ID)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(query.Variants()) {
		return nil, helper.NewStateError(
			"retrieving query context",
			fmt.Errorf("query %v has %d stored embeddings for %d variants", rid, len(embeddings), len(query.Variants())),
		)
	}

	candidates, err := r.engine.RetrieveCandidates(ctx, query, embeddings, &r.config)
	if err != nil {
		return nil, err
	}
	if err := r.engine.EnrichCandidates(ctx, candidates, &r.config); err != nil {
		return nil, err
	}
	if err := retrieval.RerankCandidates(ctx, r.rerank, query.OriginalQuery, candidates, &r.config); err != nil {
		return nil, err
	}
	retrieval.ApplyEntityBias(candidates, query.Entities, r.config.EntityBoost, r.config.EntityBoostCap)
	retrieval.ApplyIntentBias(candidates, query.Intent, r.intentBias)

	artifact := retrieval.SelectTopN(candidates, r.config.TopNFinal)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.queries.UpdateRetrievedContext(ctx, query, artifact); err != nil {
		return nil, err
	}

	r.logger.Info("retrieved query context",
		slog.String("query", rid.String()),
		slog.Int("candidates", len(candidates)),
		slog.Int("selected", len(artifact)),
	)
	return r.queries.SelectQuery(rid)
}

// Consolidate groups the raw retrieval artifact by section ancestry, merges
// adjacent members, and stores the clean context, advancing the query to
// ready.
func (r *Runner) Consolidate(ctx context.Context, rid uuid.UUID) (*model.Query, error) {
	query, err := r.queries.SelectQuery(rid)
	if err != nil {
		return nil, err
	}

	unlock := r.lock(query.ID)
	defer unlock()

	query, err = r.queries.SelectQuery(rid)
	if err != nil {
		return nil, err
	}

	if query.Status != model.StatusNeedsConsolidation && query.Status != model.StatusReady {
		return nil, helper.NewStateError(
			"consolidating query context",
			fmt.Errorf("query %v has status %v, want %v or %v", rid, query.Status, model.StatusNeedsConsolidation, model.StatusReady),
		)
	}
	if query.RetrievedContext == nil {
		return nil, helper.NewStateError(
			"consolidating query context",
			fmt.Errorf("query %v has no retrieved context to consolidate", rid),
		)
	}

	groups, err := r.consolidator.Consolidate(ctx, query.RetrievedContext, &r.config)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.queries.UpdateCleanContext(ctx, query, groups); err != nil {
		return nil, err
	}

	r.logger.Info("consolidated query context",
		slog.String("query", rid.String()),
		slog.Int("groups", len(groups)),
	)
	return r.queries.SelectQuery(rid)
}

// Run advances the query through all remaining stages until it is ready.
// A ready query is returned unchanged.
func (r *Runner) Run(ctx context.Context, rid uuid.UUID) (*model.Query, error) {
	query, err := r.queries.SelectQuery(rid)
	if err != nil {
		return nil, err
	}

	for query.Status != model.StatusReady {
		switch query.Status {
		case model.StatusNeedsEmbeddings:
			query, err = r.Embed(ctx, rid)
		case model.StatusNeedsRetrieval:
			query, err = r.Retrieve(ctx, rid)
		case model.StatusNeedsConsolidation:
			query, err = r.Consolidate(ctx, rid)
		default:
			return nil, helper.NewStateError("running query stages", fmt.Errorf("query %v has unknown status %v", rid, query.Status))
		}
		if err != nil {
			return nil, err
		}
	}

	return query, nil
}
