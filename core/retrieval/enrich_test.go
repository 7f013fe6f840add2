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

func TestEnrichCandidates(t *testing.T) {
	t.Run("Long content passes through untouched", func(t *testing.T) {
		docs := &fakeDocumentAccessor{before: "before.", after: "after."}
		engine := NewEngine(&fakeSearchStore{}, docs)
		content := strings.Repeat("x", 350)
		candidates := []*model.Candidate{{ChunkID: 1, Content: content}}
		config := model.DefaultRetrievalConfig()

		err := engine.EnrichCandidates(context.Background(), candidates, &config)

		require.NoError(t, err)
		assert.Equal(t, content, candidates[0].Content)
		assert.Equal(t, 0, docs.calls)
	})

	t.Run("Short content gains surrounding text", func(t *testing.T) {
		docs := &fakeDocumentAccessor{before: "The sentence before.", after: "The sentence after."}
		engine := NewEngine(&fakeSearchStore{}, docs)
		candidates := []*model.Candidate{{ChunkID: 1, Content: "Short chunk."}}
		config := model.DefaultRetrievalConfig()

		err := engine.EnrichCandidates(context.Background(), candidates, &config)

		require.NoError(t, err)
		assert.Equal(t, "The sentence before.\n\nShort chunk.\n\nThe sentence after.", candidates[0].Content)
		assert.Equal(t, 1, docs.calls)
	})

	t.Run("Missing context blocks are skipped in the join", func(t *testing.T) {
		docs := &fakeDocumentAccessor{before: "", after: "Only after."}
		engine := NewEngine(&fakeSearchStore{}, docs)
		candidates := []*model.Candidate{{ChunkID: 1, Content: "Short chunk."}}
		config := model.DefaultRetrievalConfig()

		err := engine.EnrichCandidates(context.Background(), candidates, &config)

		require.NoError(t, err)
		assert.Equal(t, "Short chunk.\n\nOnly after.", candidates[0].Content)
	})

	t.Run("Document read failure is an external service error", func(t *testing.T) {
		docs := &fakeDocumentAccessor{err: fmt.Errorf("read failed")}
		engine := NewEngine(&fakeSearchStore{}, docs)
		candidates := []*model.Candidate{{ChunkID: 1, Content: "Short chunk."}}
		config := model.DefaultRetrievalConfig()

		err := engine.EnrichCandidates(context.Background(), candidates, &config)

		require.Error(t, err)
		assert.True(t, helper.IsKind(err, helper.KindExternalService))
	})

	t.Run("Missing document keeps its not found kind", func(t *testing.T) {
		docs := &fakeDocumentAccessor{err: helper.NewNotFoundError("select document", fmt.Errorf("no rows"))}
		engine := NewEngine(&fakeSearchStore{}, docs)
		candidates := []*model.Candidate{{ChunkID: 1, Content: "Short chunk."}}
		config := model.DefaultRetrievalConfig()

		err := engine.EnrichCandidates(context.Background(), candidates, &config)

		require.Error(t, err)
		assert.True(t, helper.IsKind(err, helper.KindNotFound))
	})
}
