package model

// SourceRank records where a candidate appeared in one (retrieval method,
// query variant) result list. Rank is 1-indexed.
type SourceRank struct {
	Method       RetrievalMethod `json:"method"`
	VariantIndex int             `json:"variant_index"`
	Rank         int             `json:"rank"`
}

// RetrievalMethod names the retrieval signal a ranked list came from.
type RetrievalMethod string

const (
	RetrievalMethodDense   RetrievalMethod = "dense"
	RetrievalMethodLexical RetrievalMethod = "lexical"
)

// Candidate is an in-memory chunk candidate flowing through fusion,
// enrichment, reranking and selection. Content may be enriched with
// surrounding document text; chunk storage is never written back.
type Candidate struct {
	ChunkID     int          `json:"chunk_id"`
	ParentID    *int         `json:"parent_id,omitempty"`
	DocumentID  int64        `json:"document_id"`
	Content     string       `json:"content"`
	StartLine   int          `json:"start_line"`
	EndLine     int          `json:"end_line"`
	SourceRanks []SourceRank `json:"source_ranks"`
	RRFScore    float64      `json:"rrf_score"`
	RerankScore float64      `json:"rerank_score"`
	BiasedScore float64      `json:"biased_score"`
}

// MinRank returns the best (lowest) rank the candidate reached in any
// contributing list. Used as the first RRF tie-breaker.
func (c *Candidate) MinRank() int {
	if len(c.SourceRanks) == 0 {
		return 0
	}
	min := c.SourceRanks[0].Rank
	for _, sr := range c.SourceRanks[1:] {
		if sr.Rank < min {
			min = sr.Rank
		}
	}
	return min
}

// Retrieved converts the candidate into its persisted artifact form.
func (c *Candidate) Retrieved() RetrievedChunk {
	return RetrievedChunk{
		ChunkID:     c.ChunkID,
		ParentID:    c.ParentID,
		DocumentID:  c.DocumentID,
		Content:     c.Content,
		StartLine:   c.StartLine,
		EndLine:     c.EndLine,
		RRFScore:    c.RRFScore,
		RerankScore: c.RerankScore,
		BiasedScore: c.BiasedScore,
	}
}
