package retrieval

import (
	"context"
	"fmt"

	"github.com/corpuslab/psyrag/helper"
	"github.com/corpuslab/psyrag/model"
)

// RerankCandidates scores every candidate against the single original user
// query (never the expanded variants) with the secondary relevance model.
// Candidates are sent in fixed-size batches; inputs longer than
// RerankerMaxLength runes are truncated. Scores are mapped back to their
// candidates by position, so candidate identity survives batching.
func RerankCandidates(
	ctx context.Context,
	rerank RerankFunc,
	originalQuery string,
	candidates []*model.Candidate,
	config *model.RetrievalConfig,
) error {
	for start := 0; start < len(candidates); start += config.RerankerBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + config.RerankerBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		texts := make([]string, len(batch))
		for i, candidate := range batch {
			texts[i] = truncateRunes(candidate.Content, config.RerankerMaxLength)
		}

		scores, err := rerank(originalQuery, texts)
		if err != nil {
			return helper.NewExternalServiceError(
				fmt.Sprintf("rerank batch starting at candidate %d", start), err,
			)
		}
		if len(scores) != len(batch) {
			return helper.NewExternalServiceError(
				"rerank batch",
				fmt.Errorf("got %d scores for %d texts", len(scores), len(batch)),
			)
		}

		for i, candidate := range batch {
			candidate.RerankScore = scores[i]
			candidate.BiasedScore = scores[i]
		}
	}

	return nil
}

func truncateRunes(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength])
}
