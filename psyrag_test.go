package psyrag

import (
	"context"
	"log"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/corpuslab/psyrag/helper"
	"github.com/corpuslab/psyrag/model"
)

var dbPort string

func TestMain(m *testing.M) {
	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, dbPort, err = helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	m.Run()

	if teardown != nil && teardown(context.Background()) != nil {
		log.Fatalf("error tearing down postgres container: %v", err)
	}
}

func testDatabaseConfig() *helper.DatabaseConfiguration {
	return &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		User:     "psyrag",
		Password: "psyrag",
		Name:     "psyrag_test",
		SSLMode:  "disable",
	}
}

// fakeEmbed maps texts to small fixed-size vectors keyed on term presence,
// so related texts land near each other without a real model.
func fakeEmbed(texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vectors[i] = []float32{
			float32(strings.Count(lower, "memory")),
			float32(strings.Count(lower, "therapy")),
			1,
		}
	}
	return vectors, nil
}

// fakeRerank scores by shared lowercase words between query and text.
func fakeRerank(query string, texts []string) ([]float64, error) {
	queryWords := map[string]bool{}
	for _, word := range strings.Fields(strings.ToLower(query)) {
		queryWords[word] = true
	}

	scores := make([]float64, len(texts))
	for i, text := range texts {
		shared := 0
		for _, word := range strings.Fields(strings.ToLower(text)) {
			if queryWords[word] {
				shared++
			}
		}
		scores[i] = float64(shared)
	}
	return scores, nil
}

func fakeExtract(text string) ([]string, error) {
	if strings.Contains(strings.ToLower(text), "baddeley") {
		return []string{"Baddeley"}, nil
	}
	return nil, nil
}

const testDocument = `# Working Memory

Working memory is the system that holds information available for processing.

## Components

Baddeley and Hitch proposed a phonological loop and a visuospatial sketchpad.
The central executive coordinates both subsystems during complex tasks.

## Capacity Limits

Most adults hold around four chunks of information in working memory at once.
Capacity estimates depend heavily on the chunking strategy of the person.
`

func newTestPsyRAG(t *testing.T) *PsyRAG {
	t.Helper()

	p, err := NewPsyRAG(testDatabaseConfig(), 3)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	require.NoError(t, p.SetModels(fakeEmbed, fakeRerank, fakeExtract))
	return p
}

func TestProcessAndInsertDocument(t *testing.T) {
	p := newTestPsyRAG(t)

	doc := &model.Document{
		Title:    "Working Memory Primer",
		Source:   "working_memory.md",
		Content:  testDocument,
		Metadata: model.Metadata{"topic": "memory"},
	}

	numChunks, err := p.ProcessAndInsertDocument(doc)

	require.NoError(t, err)
	assert.Equal(t, 3, numChunks)
	defer p.Documents.DeleteDocument(doc.RID)

	chunks, err := p.Chunks.SelectChunksByDocument(doc.RID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	// The two subsections point at the top section as parent
	var roots, children int
	for _, chunk := range chunks {
		if chunk.ParentID == nil {
			roots++
		} else {
			children++
		}
	}
	assert.Equal(t, 1, roots)
	assert.Equal(t, 2, children)
}

func TestQueryLifecycle(t *testing.T) {
	p := newTestPsyRAG(t)

	doc := &model.Document{
		Title:    "Working Memory Primer",
		Source:   "working_memory.md",
		Content:  testDocument,
		Metadata: model.Metadata{},
	}
	_, err := p.ProcessAndInsertDocument(doc)
	require.NoError(t, err)
	defer p.Documents.DeleteDocument(doc.RID)

	query, err := p.CreateQuery(
		"What did Baddeley say about working memory capacity?",
		[]string{"working memory capacity limits", "phonological loop components"},
		"Working memory holds about four chunks.",
		model.IntentStudyDetail,
	)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNeedsEmbeddings, query.Status)
	assert.Equal(t, []string{"Baddeley"}, query.Entities)

	t.Run("Stages must run in order", func(t *testing.T) {
		_, err := p.RetrieveQuery(context.Background(), query.RID)
		require.Error(t, err)
		assert.True(t, helper.IsKind(err, helper.KindState))

		_, err = p.ConsolidateQuery(context.Background(), query.RID)
		require.Error(t, err)
		assert.True(t, helper.IsKind(err, helper.KindState))
	})

	t.Run("Run advances to ready with both artifacts", func(t *testing.T) {
		result, err := p.RunQuery(context.Background(), query.RID)

		require.NoError(t, err)
		assert.Equal(t, model.StatusReady, result.Status)
		assert.NotEmpty(t, result.RetrievedContext)
		assert.NotEmpty(t, result.CleanContext)

		// Groups carry merged text from the document
		assert.Contains(t, result.CleanContext[0].MergedContent, "memory")
	})

	t.Run("Embed cannot run again on a ready query", func(t *testing.T) {
		_, err := p.EmbedQuery(context.Background(), query.RID)

		require.Error(t, err)
		assert.True(t, helper.IsKind(err, helper.KindState))
	})

	t.Run("Retrieve can be re-run from ready", func(t *testing.T) {
		result, err := p.RetrieveQuery(context.Background(), query.RID)

		require.NoError(t, err)
		assert.Equal(t, model.StatusNeedsConsolidation, result.Status)
		assert.NotEmpty(t, result.CleanContext)

		result, err = p.ConsolidateQuery(context.Background(), query.RID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusReady, result.Status)
	})

	t.Run("GetQuery returns the stored state", func(t *testing.T) {
		stored, err := p.GetQuery(query.RID)

		require.NoError(t, err)
		assert.Equal(t, model.StatusReady, stored.Status)
		assert.NotEmpty(t, stored.RetrievedContext)
	})
}

func TestRunnerRequiresModels(t *testing.T) {
	p, err := NewPsyRAG(testDatabaseConfig(), 3)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.RunQuery(context.Background(), uuid.Nil)

	require.Error(t, err)
	assert.True(t, helper.IsKind(err, helper.KindConfiguration))
}
