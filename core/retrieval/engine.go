package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/corpuslab/psyrag/helper"
	"github.com/corpuslab/psyrag/model"
)

// Engine runs the retrieve stage: concurrent dense and lexical sub-queries
// for every query variant, fused into a single deduplicated candidate list.
type Engine struct {
	store SearchStore
	docs  DocumentAccessor
	retry helper.RetryConfig
}

// NewEngine creates a new retrieval engine
func NewEngine(store SearchStore, docs DocumentAccessor) *Engine {
	return &Engine{
		store: store,
		docs:  docs,
		retry: helper.DefaultRetryConfig(),
	}
}

// RetrieveCandidates fans out one dense sub-query per variant embedding and
// one lexical sub-query per lexical variant, then joins all result lists
// with Reciprocal Rank Fusion.
//
// All sub-queries run concurrently. Any single failure cancels the rest and
// fails the whole stage; no partial lists are ever fused. Transient store
// errors are retried with backoff before giving up.
func (e *Engine) RetrieveCandidates(
	ctx context.Context,
	query *model.Query,
	embeddings []model.VariantEmbedding,
	config *model.RetrievalConfig,
) ([]*model.Candidate, error) {
	lexicalVariants := query.LexicalVariants()
	lists := make([]RankedList, len(embeddings)+len(lexicalVariants))

	group, groupCtx := errgroup.WithContext(ctx)

	for i, ve := range embeddings {
		group.Go(func() error {
			chunks, err := helper.Retry(groupCtx, e.retry, func() ([]*model.Chunk, error) {
				return e.store.SelectChunksBySimilarity(ve.Embedding, config.DenseLimit)
			})
			if err != nil {
				return helper.NewExternalServiceError(
					fmt.Sprintf("dense retrieval for variant %d", ve.Index), err,
				)
			}
			lists[i] = RankedList{
				Method:       model.RetrievalMethodDense,
				VariantIndex: ve.Index,
				Chunks:       chunks,
			}
			return nil
		})
	}

	for i, text := range lexicalVariants {
		group.Go(func() error {
			chunks, err := helper.Retry(groupCtx, e.retry, func() ([]*model.Chunk, error) {
				return e.store.SearchChunksByText(text, config.LexicalLimit)
			})
			if err != nil {
				return helper.NewExternalServiceError(
					fmt.Sprintf("lexical retrieval for variant %d", i), err,
				)
			}
			lists[len(embeddings)+i] = RankedList{
				Method:       model.RetrievalMethodLexical,
				VariantIndex: i,
				Chunks:       chunks,
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return FuseRankedLists(lists, config.RRFK, config.TopKRRF), nil
}
