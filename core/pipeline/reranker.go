package pipeline

import (
	"fmt"

	"github.com/knights-analytics/hugot"

	"github.com/corpuslab/psyrag/core/retrieval"
	"github.com/corpuslab/psyrag/helper"
)

// DefaultReranker creates a cross-encoder reranker.
// Uses the ms-marco-MiniLM-L-6-v2 model which scores query/passage
// relevance with a single relevance logit per pair.
func DefaultReranker() (retrieval.RerankFunc, error) {
	// Prepare model (download if needed)
	modelName := "cross-encoder/ms-marco-MiniLM-L-6-v2"
	modelPath, err := helper.PrepareModel(modelName, "model.onnx")
	if err != nil {
		return nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	// Create text classification pipeline for pair scoring
	config := hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      "reranker-pipeline",
	}
	rerankPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create reranker pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create reranker pipeline: %w", err)
	}

	return func(query string, texts []string) ([]float64, error) {
		if len(texts) == 0 {
			return nil, nil
		}

		// Cross-encoders consume query and passage as one sequence
		pairs := make([]string, len(texts))
		for i, text := range texts {
			pairs[i] = query + " [SEP] " + text
		}

		result, err := rerankPipeline.RunPipeline(pairs)
		if err != nil {
			return nil, fmt.Errorf("failed to run reranker: %w", err)
		}

		if len(result.ClassificationOutputs) != len(texts) {
			return nil, fmt.Errorf("expected %d reranker outputs, got %d", len(texts), len(result.ClassificationOutputs))
		}

		scores := make([]float64, len(texts))
		for i, outputs := range result.ClassificationOutputs {
			if len(outputs) == 0 {
				return nil, fmt.Errorf("empty reranker output for pair %d", i)
			}
			scores[i] = float64(outputs[0].Score)
		}

		return scores, nil
	}, nil
}
