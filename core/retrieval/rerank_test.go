package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpuslab/psyrag/helper"
	"github.com/corpuslab/psyrag/model"
)

func rerankConfig() *model.RetrievalConfig {
	config := model.DefaultRetrievalConfig()
	return &config
}

func TestRerankCandidates(t *testing.T) {
	t.Run("Scores map back to candidates across batches", func(t *testing.T) {
		var candidates []*model.Candidate
		for i := 0; i < 20; i++ {
			candidates = append(candidates, &model.Candidate{ChunkID: i, Content: fmt.Sprintf("text %d", i)})
		}

		var batchSizes []int
		rerank := func(query string, texts []string) ([]float64, error) {
			batchSizes = append(batchSizes, len(texts))
			scores := make([]float64, len(texts))
			for i, text := range texts {
				// Score encodes the text so identity is checkable
				var id int
				fmt.Sscanf(text, "text %d", &id)
				scores[i] = float64(id) / 100.0
			}
			return scores, nil
		}

		err := RerankCandidates(context.Background(), rerank, "query", candidates, rerankConfig())

		require.NoError(t, err)
		assert.Equal(t, []int{8, 8, 4}, batchSizes)
		for i, candidate := range candidates {
			assert.InDelta(t, float64(i)/100.0, candidate.RerankScore, 1e-12)
			assert.Equal(t, candidate.RerankScore, candidate.BiasedScore)
		}
	})

	t.Run("Always scores against the original query", func(t *testing.T) {
		candidates := []*model.Candidate{{Content: "a"}}

		var gotQuery string
		rerank := func(query string, texts []string) ([]float64, error) {
			gotQuery = query
			return []float64{0.5}, nil
		}

		err := RerankCandidates(context.Background(), rerank, "what is working memory", candidates, rerankConfig())

		require.NoError(t, err)
		assert.Equal(t, "what is working memory", gotQuery)
	})

	t.Run("Long content is truncated to the model limit", func(t *testing.T) {
		candidates := []*model.Candidate{{Content: strings.Repeat("é", 600)}}

		var gotLen int
		rerank := func(query string, texts []string) ([]float64, error) {
			gotLen = len([]rune(texts[0]))
			return []float64{0.5}, nil
		}

		err := RerankCandidates(context.Background(), rerank, "query", candidates, rerankConfig())

		require.NoError(t, err)
		assert.Equal(t, 512, gotLen)
		// Candidate content itself stays untouched
		assert.Len(t, []rune(candidates[0].Content), 600)
	})

	t.Run("Score count mismatch is an error", func(t *testing.T) {
		candidates := []*model.Candidate{{Content: "a"}, {Content: "b"}}

		rerank := func(query string, texts []string) ([]float64, error) {
			return []float64{0.5}, nil
		}

		err := RerankCandidates(context.Background(), rerank, "query", candidates, rerankConfig())

		require.Error(t, err)
		assert.True(t, helper.IsKind(err, helper.KindExternalService))
	})

	t.Run("Model failure is an external service error", func(t *testing.T) {
		candidates := []*model.Candidate{{Content: "a"}}

		rerank := func(query string, texts []string) ([]float64, error) {
			return nil, fmt.Errorf("model crashed")
		}

		err := RerankCandidates(context.Background(), rerank, "query", candidates, rerankConfig())

		require.Error(t, err)
		assert.True(t, helper.IsKind(err, helper.KindExternalService))
	})

	t.Run("Cancelled context stops batching", func(t *testing.T) {
		candidates := []*model.Candidate{{Content: "a"}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := RerankCandidates(ctx, func(query string, texts []string) ([]float64, error) {
			t.Fatal("rerank should not run after cancellation")
			return nil, nil
		}, "query", candidates, rerankConfig())

		assert.ErrorIs(t, err, context.Canceled)
	})
}
