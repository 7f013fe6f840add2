package model

import (
	"time"

	"github.com/google/uuid"
)

// QueryIntent classifies what kind of answer a query is after.
type QueryIntent string

const (
	IntentDefinition  QueryIntent = "DEFINITION"
	IntentMechanism   QueryIntent = "MECHANISM"
	IntentComparison  QueryIntent = "COMPARISON"
	IntentApplication QueryIntent = "APPLICATION"
	IntentStudyDetail QueryIntent = "STUDY_DETAIL"
	IntentCritique    QueryIntent = "CRITIQUE"
)

// QueryStatus is the lifecycle state of a query in the retrieval pipeline.
type QueryStatus string

const (
	StatusNeedsEmbeddings    QueryStatus = "needs_embeddings"
	StatusNeedsRetrieval     QueryStatus = "needs_retrieval"
	StatusNeedsConsolidation QueryStatus = "needs_consolidation"
	StatusReady              QueryStatus = "ready"
)

// Query represents one user question after query expansion, together with
// the artifacts each pipeline stage persists for it.
type Query struct {
	ID              int64       `json:"id"`
	RID             uuid.UUID   `json:"rid"`
	OriginalQuery   string      `json:"original_query"`
	ExpandedQueries []string    `json:"expanded_queries"`
	HydeAnswer      string      `json:"hyde_answer"`
	Intent          QueryIntent `json:"intent"`
	Entities        []string    `json:"entities"`
	Status          QueryStatus `json:"status"`
	// Version guards concurrent stage invocations for the same query.
	// Every status/artifact write increments it via compare-and-swap.
	Version          int                 `json:"version"`
	RetrievedContext []RetrievedChunk    `json:"retrieved_context,omitempty"`
	CleanContext     []ConsolidatedGroup `json:"clean_retrieval_context,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Variants returns all texts that get embedded for dense retrieval:
// the original query, the multi-query expansions and the HyDE answer.
func (q *Query) Variants() []string {
	variants := make([]string, 0, len(q.ExpandedQueries)+2)
	variants = append(variants, q.OriginalQuery)
	variants = append(variants, q.ExpandedQueries...)
	if q.HydeAnswer != "" {
		variants = append(variants, q.HydeAnswer)
	}
	return variants
}

// LexicalVariants returns the texts used for lexical retrieval. The HyDE
// answer is excluded, it is generated prose rather than a search query.
func (q *Query) LexicalVariants() []string {
	variants := make([]string, 0, len(q.ExpandedQueries)+1)
	variants = append(variants, q.OriginalQuery)
	variants = append(variants, q.ExpandedQueries...)
	return variants
}

// VariantEmbedding is the stored embedding of one query variant, indexed
// by the variant's position in Variants().
type VariantEmbedding struct {
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// RetrievedChunk is one entry of the raw retrieval artifact: a selected
// chunk with its (possibly enriched) content and all scoring signals.
type RetrievedChunk struct {
	ChunkID     int     `json:"chunk_id"`
	ParentID    *int    `json:"parent_id,omitempty"`
	DocumentID  int64   `json:"document_id"`
	Content     string  `json:"content"`
	StartLine   int     `json:"start_line"`
	EndLine     int     `json:"end_line"`
	RRFScore    float64 `json:"rrf_score"`
	RerankScore float64 `json:"rerank_score"`
	BiasedScore float64 `json:"biased_score"`
}

// ConsolidatedGroup is one entry of the clean retrieval artifact: selected
// chunks sharing a structural ancestor, merged into generation-ready blocks.
type ConsolidatedGroup struct {
	AncestorKey    int     `json:"ancestor_key"`
	MemberChunkIDs []int   `json:"member_chunk_ids"`
	MergedContent  string  `json:"merged_content"`
	Coverage       float64 `json:"coverage"`
	LowCoverage    bool    `json:"low_coverage,omitempty"`
	TopScore       float64 `json:"top_score"`
}
