package consolidate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/corpuslab/psyrag/helper"
	"github.com/corpuslab/psyrag/model"
)

// ChunkStore resolves chunks by id, used to walk parent chains and to read
// ancestor section extents.
type ChunkStore interface {
	SelectChunk(id int) (*model.Chunk, error)
}

// DocumentStore reads full documents so merged blocks can be re-read as
// one continuous span of source text.
type DocumentStore interface {
	SelectDocumentByID(id int64) (*model.Document, error)
}

// Consolidator turns the raw retrieval artifact into generation-ready
// context blocks: selected chunks are partitioned by their top-level
// structural ancestor, near-adjacent members are merged, and each group
// gets a coverage metric relative to its full section.
type Consolidator struct {
	chunks ChunkStore
	docs   DocumentStore
}

// NewConsolidator creates a new consolidator
func NewConsolidator(chunks ChunkStore, docs DocumentStore) *Consolidator {
	return &Consolidator{
		chunks: chunks,
		docs:   docs,
	}
}

type member struct {
	chunk model.RetrievedChunk
}

// block is a continuous run of merged members within one group.
type block struct {
	startLine int
	endLine   int
	memberIDs []int
	fragments []string
}

// Consolidate groups the raw artifact by structural ancestry and merges
// members whose line gap is within config.LineGap. Every selected chunk id
// appears in exactly one output group. Groups are ordered by their highest
// member score, descending. Groups whose coverage falls below
// config.CoverageThreshold are flagged, or dropped when
// config.DropLowCoverage is set.
func (c *Consolidator) Consolidate(
	ctx context.Context,
	artifact []model.RetrievedChunk,
	config *model.RetrievalConfig,
) ([]model.ConsolidatedGroup, error) {
	if len(artifact) == 0 {
		return []model.ConsolidatedGroup{}, nil
	}

	ancestorCache := make(map[int]int)
	groups := make(map[int][]member)
	topScores := make(map[int]float64)

	for _, rc := range artifact {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key, err := c.topAncestor(rc, ancestorCache)
		if err != nil {
			return nil, err
		}

		groups[key] = append(groups[key], member{chunk: rc})
		if score, ok := topScores[key]; !ok || rc.BiasedScore > score {
			topScores[key] = rc.BiasedScore
		}
	}

	result := make([]model.ConsolidatedGroup, 0, len(groups))
	for key, members := range groups {
		group, err := c.buildGroup(key, members, config)
		if err != nil {
			return nil, err
		}
		group.TopScore = topScores[key]

		if group.Coverage < config.CoverageThreshold {
			group.LowCoverage = true
			if config.DropLowCoverage {
				continue
			}
		}

		result = append(result, group)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TopScore != result[j].TopScore {
			return result[i].TopScore > result[j].TopScore
		}
		return result[i].AncestorKey < result[j].AncestorKey
	})

	return result, nil
}

// topAncestor walks the parent chain of a retrieved chunk up to the
// highest structural ancestor. Chunks without a parent are their own
// ancestor key.
func (c *Consolidator) topAncestor(rc model.RetrievedChunk, cache map[int]int) (int, error) {
	if rc.ParentID == nil {
		return rc.ChunkID, nil
	}

	id := *rc.ParentID
	var path []int
	for {
		if key, ok := cache[id]; ok {
			id = key
			break
		}
		path = append(path, id)

		chunk, err := c.chunks.SelectChunk(id)
		if err != nil {
			return 0, helper.NewError(fmt.Sprintf("resolve ancestor of chunk %d", rc.ChunkID), err)
		}
		if chunk.ParentID == nil {
			break
		}
		id = *chunk.ParentID
	}

	for _, visited := range path {
		cache[visited] = id
	}
	cache[rc.ChunkID] = id

	return id, nil
}

func (c *Consolidator) buildGroup(key int, members []member, config *model.RetrievalConfig) (model.ConsolidatedGroup, error) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].chunk.StartLine != members[j].chunk.StartLine {
			return members[i].chunk.StartLine < members[j].chunk.StartLine
		}
		return members[i].chunk.ChunkID < members[j].chunk.ChunkID
	})

	var blocks []block
	for _, m := range members {
		rc := m.chunk
		if len(blocks) > 0 {
			last := &blocks[len(blocks)-1]
			if rc.StartLine-last.endLine <= config.LineGap {
				if rc.EndLine > last.endLine {
					last.endLine = rc.EndLine
				}
				last.memberIDs = append(last.memberIDs, rc.ChunkID)
				last.fragments = append(last.fragments, rc.Content)
				continue
			}
		}
		blocks = append(blocks, block{
			startLine: rc.StartLine,
			endLine:   rc.EndLine,
			memberIDs: []int{rc.ChunkID},
			fragments: []string{rc.Content},
		})
	}

	documentID := members[0].chunk.DocumentID

	var contents []string
	var memberIDs []int
	coveredLines := 0
	for _, b := range blocks {
		content, err := c.blockContent(b, documentID, config)
		if err != nil {
			return model.ConsolidatedGroup{}, err
		}
		contents = append(contents, content)
		memberIDs = append(memberIDs, b.memberIDs...)
		coveredLines += b.endLine - b.startLine + 1
	}

	coverage, err := c.coverage(key, coveredLines, members)
	if err != nil {
		return model.ConsolidatedGroup{}, err
	}

	return model.ConsolidatedGroup{
		AncestorKey:    key,
		MemberChunkIDs: memberIDs,
		MergedContent:  strings.Join(contents, "\n\n"),
		Coverage:       coverage,
	}, nil
}

// blockContent returns the text of one merged block. With enrich_from_md
// the block is re-read as a single continuous span from the source
// document, avoiding duplicated or missing text at fragment seams.
func (c *Consolidator) blockContent(b block, documentID int64, config *model.RetrievalConfig) (string, error) {
	if !config.EnrichFromMd || len(b.memberIDs) == 1 {
		return strings.Join(b.fragments, "\n\n"), nil
	}

	doc, err := c.docs.SelectDocumentByID(documentID)
	if err != nil {
		return "", helper.NewError(fmt.Sprintf("read document %d for merge", documentID), err)
	}

	lines := doc.Lines()
	start := b.startLine
	end := b.endLine
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return strings.Join(b.fragments, "\n\n"), nil
	}

	return strings.Join(lines[start-1:end], "\n"), nil
}

// coverage relates the merged line extent to the full extent of the
// ancestor section. When the section extent cannot be resolved the group
// counts as fully covered rather than falsely flagged.
func (c *Consolidator) coverage(key int, coveredLines int, members []member) (float64, error) {
	ancestor, err := c.chunks.SelectChunk(key)
	if err != nil {
		if helper.IsKind(err, helper.KindNotFound) {
			return 1, nil
		}
		return 0, helper.NewError(fmt.Sprintf("resolve section extent of ancestor %d", key), err)
	}

	sectionLines := ancestor.EndLine - ancestor.StartLine + 1
	if sectionLines <= 0 {
		return 1, nil
	}

	coverage := float64(coveredLines) / float64(sectionLines)
	if coverage > 1 {
		coverage = 1
	}
	return coverage, nil
}
