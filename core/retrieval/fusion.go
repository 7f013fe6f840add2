package retrieval

import (
	"sort"

	"github.com/corpuslab/psyrag/model"
)

// RankedList is one (retrieval method, query variant) result list feeding
// fusion. Chunks are ordered best-first; ranks are 1-indexed positions.
type RankedList struct {
	Method       model.RetrievalMethod
	VariantIndex int
	Chunks       []*model.Chunk
}

// FuseRankedLists merges all ranked lists with Reciprocal Rank Fusion.
// For a chunk d, score(d) = sum over lists L containing d of 1/(k + rank).
// A chunk is identified by its id across all lists; rank contributions of
// the same chunk are summed, never duplicated. The fused result is ordered
// descending by score and truncated to topK.
//
// Ties are broken by the lower minimum rank across any contributing list,
// then by lower chunk id, so identical inputs always fuse identically.
func FuseRankedLists(lists []RankedList, k float64, topK int) []*model.Candidate {
	byID := make(map[int]*model.Candidate)

	for _, list := range lists {
		for i, chunk := range list.Chunks {
			rank := i + 1

			candidate, exists := byID[chunk.ID]
			if !exists {
				candidate = &model.Candidate{
					ChunkID:    chunk.ID,
					ParentID:   chunk.ParentID,
					DocumentID: chunk.DocumentID,
					Content:    chunk.Content,
					StartLine:  chunk.StartLine,
					EndLine:    chunk.EndLine,
				}
				byID[chunk.ID] = candidate
			}

			candidate.SourceRanks = append(candidate.SourceRanks, model.SourceRank{
				Method:       list.Method,
				VariantIndex: list.VariantIndex,
				Rank:         rank,
			})
			candidate.RRFScore += 1.0 / (k + float64(rank))
		}
	}

	fused := make([]*model.Candidate, 0, len(byID))
	for _, candidate := range byID {
		fused = append(fused, candidate)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].RRFScore != fused[j].RRFScore {
			return fused[i].RRFScore > fused[j].RRFScore
		}
		minI, minJ := fused[i].MinRank(), fused[j].MinRank()
		if minI != minJ {
			return minI < minJ
		}
		return fused[i].ChunkID < fused[j].ChunkID
	})

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}

	return fused
}
