package retrieval

import (
	"sort"

	"github.com/corpuslab/psyrag/model"
)

// SelectTopN sorts candidates by final biased score descending and returns
// the top n as the raw retrieval artifact. Ties are broken by fused RRF
// score descending, then by chunk id ascending.
func SelectTopN(candidates []*model.Candidate, n int) []model.RetrievedChunk {
	sorted := make([]*model.Candidate, len(candidates))
	copy(sorted, candidates)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].BiasedScore != sorted[j].BiasedScore {
			return sorted[i].BiasedScore > sorted[j].BiasedScore
		}
		if sorted[i].RRFScore != sorted[j].RRFScore {
			return sorted[i].RRFScore > sorted[j].RRFScore
		}
		return sorted[i].ChunkID < sorted[j].ChunkID
	})

	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}

	artifact := make([]model.RetrievedChunk, len(sorted))
	for i, candidate := range sorted {
		artifact[i] = candidate.Retrieved()
	}

	return artifact
}
