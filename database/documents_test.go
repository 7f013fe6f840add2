package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpuslab/psyrag/helper"
	"github.com/corpuslab/psyrag/model"
)

func TestDocumentsNewDocumentsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewDocumentsDBHandler", func(t *testing.T) {
		documentsDbHandler, err := NewDocumentsDBHandler(database, true)
		assert.NoError(t, err, "Expected NewDocumentsDBHandler to not return an error")
		require.NotNil(t, documentsDbHandler, "Expected NewDocumentsDBHandler to return a non-nil instance")
		require.NotNil(t, documentsDbHandler.db, "Expected NewDocumentsDBHandler to have a non-nil database instance")
	})

	t.Run("Invalid call NewDocumentsDBHandler with nil database", func(t *testing.T) {
		_, err := NewDocumentsDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating DocumentsDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestDocumentsInsert(t *testing.T) {
	database := initDB(t)

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err, "Expected NewDocumentsDBHandler to not return an error")

	t.Run("Insert document with content", func(t *testing.T) {
		doc := &model.Document{
			Title:    "Attachment Theory",
			Source:   "attachment.md",
			Content:  "# Attachment Theory\n\nBowlby described attachment as a lasting bond.",
			Metadata: map[string]interface{}{"author": "Test Author", "year": 2024},
		}

		err := documentsDbHandler.InsertDocument(doc)
		assert.NoError(t, err, "Expected Insert to not return an error")
		assert.NotEmpty(t, doc.RID, "Expected inserted document to have a RID")
		assert.NotZero(t, doc.ID, "Expected inserted document to have an ID")
		assert.WithinDuration(t, doc.CreatedAt, time.Now(), 2*time.Second, "Expected CreatedAt to be set")

		// Cleanup
		err = documentsDbHandler.DeleteDocument(doc.RID)
		assert.NoError(t, err)
	})
}

func TestDocumentsSelect(t *testing.T) {
	database := initDB(t)

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)

	doc := &model.Document{
		Title:    "Memory Systems",
		Source:   "memory.md",
		Content:  "Short text about memory.",
		Metadata: map[string]interface{}{"topic": "memory"},
	}
	err = documentsDbHandler.InsertDocument(doc)
	require.NoError(t, err)
	defer documentsDbHandler.DeleteDocument(doc.RID)

	t.Run("Select document by RID round-trips content", func(t *testing.T) {
		selected, err := documentsDbHandler.SelectDocument(doc.RID)

		require.NoError(t, err)
		assert.Equal(t, doc.Title, selected.Title)
		assert.Equal(t, doc.Content, selected.Content)
		assert.Equal(t, "memory", selected.Metadata["topic"])
	})

	t.Run("Select document by numeric id", func(t *testing.T) {
		selected, err := documentsDbHandler.SelectDocumentByID(doc.ID)

		require.NoError(t, err)
		assert.Equal(t, doc.RID, selected.RID)
	})

	t.Run("Unknown RID is not found", func(t *testing.T) {
		_, err := documentsDbHandler.SelectDocument(uuid.New())

		require.Error(t, err)
		assert.True(t, helper.IsKind(err, helper.KindNotFound))
	})

	t.Run("Unknown id is not found", func(t *testing.T) {
		_, err := documentsDbHandler.SelectDocumentByID(999999999)

		require.Error(t, err)
		assert.True(t, helper.IsKind(err, helper.KindNotFound))
	})
}

func TestDocumentsSurroundingText(t *testing.T) {
	database := initDB(t)

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)

	// Lines 1-3 precede the chunk, lines 4-5 are the chunk, line 6 follows
	doc := &model.Document{
		Title:  "Sentence Context",
		Source: "context.md",
		Content: "First sentence before. Second sentence before.\n" +
			"Third sentence before.\n" +
			"\n" +
			"The chunk starts here.\n" +
			"The chunk ends here.\n" +
			"First sentence after. Second sentence after.",
		Metadata: map[string]interface{}{},
	}
	err = documentsDbHandler.InsertDocument(doc)
	require.NoError(t, err)
	defer documentsDbHandler.DeleteDocument(doc.RID)

	t.Run("Returns sentences around the chunk", func(t *testing.T) {
		before, after, err := documentsDbHandler.SurroundingText(context.Background(), doc.ID, 4, 5, 2, 1)

		require.NoError(t, err)
		assert.Equal(t, "Second sentence before. Third sentence before.", before)
		assert.Equal(t, "First sentence after.", after)
	})

	t.Run("Chunk at document start has nothing before", func(t *testing.T) {
		before, _, err := documentsDbHandler.SurroundingText(context.Background(), doc.ID, 1, 2, 5, 5)

		require.NoError(t, err)
		assert.Empty(t, before)
	})

	t.Run("Chunk at document end has nothing after", func(t *testing.T) {
		_, after, err := documentsDbHandler.SurroundingText(context.Background(), doc.ID, 4, 6, 5, 5)

		require.NoError(t, err)
		assert.Empty(t, after)
	})

	t.Run("Unknown document is not found", func(t *testing.T) {
		_, _, err := documentsDbHandler.SurroundingText(context.Background(), 999999999, 1, 2, 5, 5)

		require.Error(t, err)
		assert.True(t, helper.IsKind(err, helper.KindNotFound))
	})
}
