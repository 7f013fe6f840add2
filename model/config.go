package model

import "fmt"

// RetrievalConfig is the read-only preset steering the retrieval pipeline.
type RetrievalConfig struct {
	// Per-variant result list sizes
	DenseLimit   int `json:"dense_limit"`
	LexicalLimit int `json:"lexical_limit"`

	// Reciprocal rank fusion
	RRFK    float64 `json:"rrf_k"`
	TopKRRF int     `json:"top_k_rrf"`

	// Final selection
	TopNFinal int `json:"top_n_final"`

	// Enrichment of short candidates
	MinContentLength int `json:"min_content_length"`
	EnrichSentences  int `json:"enrich_sentences"` // Sentences fetched before and after the chunk

	// Reranking
	RerankerBatchSize int `json:"reranker_batch_size"`
	RerankerMaxLength int `json:"reranker_max_length"`

	// Bias
	EntityBoost    float64 `json:"entity_boost"`
	EntityBoostCap float64 `json:"entity_boost_cap"` // Upper bound on summed entity boosts, 0 disables the cap

	// Consolidation
	LineGap           int     `json:"line_gap"`
	CoverageThreshold float64 `json:"coverage_threshold"`
	EnrichFromMd      bool    `json:"enrich_from_md"`
	DropLowCoverage   bool    `json:"drop_low_coverage"` // Default is to flag, not drop
}

// DefaultRetrievalConfig returns the preset used in production.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		DenseLimit:        15,
		LexicalLimit:      10,
		RRFK:              60,
		TopKRRF:           60,
		TopNFinal:         12,
		MinContentLength:  350,
		EnrichSentences:   5,
		RerankerBatchSize: 8,
		RerankerMaxLength: 512,
		EntityBoost:       0.05,
		EntityBoostCap:    0.15,
		LineGap:           7,
		CoverageThreshold: 0.5,
		EnrichFromMd:      true,
		DropLowCoverage:   false,
	}
}

// Validate checks that all preset values are usable.
func (c *RetrievalConfig) Validate() error {
	if c.DenseLimit <= 0 {
		return fmt.Errorf("dense_limit must be positive, got %d", c.DenseLimit)
	}
	if c.LexicalLimit <= 0 {
		return fmt.Errorf("lexical_limit must be positive, got %d", c.LexicalLimit)
	}
	if c.RRFK <= 0 {
		return fmt.Errorf("rrf_k must be positive, got %v", c.RRFK)
	}
	if c.TopKRRF <= 0 {
		return fmt.Errorf("top_k_rrf must be positive, got %d", c.TopKRRF)
	}
	if c.TopNFinal <= 0 {
		return fmt.Errorf("top_n_final must be positive, got %d", c.TopNFinal)
	}
	if c.MinContentLength < 0 {
		return fmt.Errorf("min_content_length must not be negative, got %d", c.MinContentLength)
	}
	if c.EnrichSentences < 0 {
		return fmt.Errorf("enrich_sentences must not be negative, got %d", c.EnrichSentences)
	}
	if c.RerankerBatchSize <= 0 {
		return fmt.Errorf("reranker_batch_size must be positive, got %d", c.RerankerBatchSize)
	}
	if c.RerankerMaxLength <= 0 {
		return fmt.Errorf("reranker_max_length must be positive, got %d", c.RerankerMaxLength)
	}
	if c.EntityBoost < 0 {
		return fmt.Errorf("entity_boost must not be negative, got %v", c.EntityBoost)
	}
	if c.EntityBoostCap < 0 {
		return fmt.Errorf("entity_boost_cap must not be negative, got %v", c.EntityBoostCap)
	}
	if c.LineGap < 0 {
		return fmt.Errorf("line_gap must not be negative, got %d", c.LineGap)
	}
	if c.CoverageThreshold < 0 || c.CoverageThreshold > 1 {
		return fmt.Errorf("coverage_threshold must be in [0, 1], got %v", c.CoverageThreshold)
	}
	return nil
}
