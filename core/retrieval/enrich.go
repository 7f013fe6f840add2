package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/corpuslab/psyrag/helper"
	"github.com/corpuslab/psyrag/model"
)

// EnrichCandidates pads short candidates with surrounding document text.
// Candidates whose content is at least MinContentLength characters pass
// through untouched. Shorter ones get up to EnrichSentences sentences of
// context before and after the chunk, each block separated from the core
// content by one blank line.
//
// The transform is in-memory only; chunk storage is never written back.
func (e *Engine) EnrichCandidates(ctx context.Context, candidates []*model.Candidate, config *model.RetrievalConfig) error {
	for _, candidate := range candidates {
		if len(candidate.Content) >= config.MinContentLength {
			continue
		}

		before, after, err := e.docs.SurroundingText(
			ctx,
			candidate.DocumentID,
			candidate.StartLine,
			candidate.EndLine,
			config.EnrichSentences,
			config.EnrichSentences,
		)
		if err != nil {
			if helper.IsKind(err, helper.KindNotFound) {
				return err
			}
			return helper.NewExternalServiceError(
				fmt.Sprintf("surrounding text for chunk %d", candidate.ChunkID), err,
			)
		}

		candidate.Content = composeEnriched(before, candidate.Content, after)
	}

	return nil
}

func composeEnriched(before string, content string, after string) string {
	var parts []string
	if before != "" {
		parts = append(parts, before)
	}
	parts = append(parts, content)
	if after != "" {
		parts = append(parts, after)
	}
	return strings.Join(parts, "\n\n")
}
