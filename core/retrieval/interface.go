package retrieval

import (
	"context"

	"github.com/corpuslab/psyrag/model"
)

// VectorSearcher performs nearest-neighbor search over chunk embeddings.
// Results are ordered ascending by distance (closest first).
type VectorSearcher interface {
	SelectChunksBySimilarity(embedding []float32, limit int) ([]*model.Chunk, error)
}

// LexicalSearcher performs full-text search over chunk content.
// Results are ordered descending by text rank (best match first).
type LexicalSearcher interface {
	SearchChunksByText(query string, limit int) ([]*model.Chunk, error)
}

// SearchStore combines both retrieval signals of the chunk storage.
type SearchStore interface {
	VectorSearcher
	LexicalSearcher
}

// DocumentAccessor reads surrounding sentences of a chunk from the full
// document text. Used to pad short candidates before reranking.
type DocumentAccessor interface {
	SurroundingText(ctx context.Context, documentID int64, startLine int, endLine int, sentencesBefore int, sentencesAfter int) (string, string, error)
}

// RerankFunc scores (query, text) pairs with a secondary relevance model.
// It must return exactly one score per input text, in input order.
type RerankFunc func(query string, texts []string) ([]float64, error)

// IntentBiasStrategy adjusts a candidate's score based on the query intent.
// The returned delta is added to the candidate's biased score.
type IntentBiasStrategy interface {
	Bias(intent model.QueryIntent, candidate *model.Candidate) float64
}

// NoopIntentBias is the default intent bias: it does nothing. Intent-aware
// scoring is deliberately left to a future strategy implementation.
type NoopIntentBias struct{}

// Bias returns zero for every candidate.
func (NoopIntentBias) Bias(intent model.QueryIntent, candidate *model.Candidate) float64 {
	return 0
}
