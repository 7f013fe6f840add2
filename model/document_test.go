package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentFromFile(t *testing.T) {
	t.Run("Reads markdown file into a document", func(t *testing.T) {
		tmpDir := t.TempDir()
		filePath := filepath.Join(tmpDir, "working_memory.md")
		content := "# Working Memory\n\nBaddeley and Hitch proposed a multicomponent model."
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))

		metadata := Metadata{"journal": "Psychological Review", "year": 1974}
		doc, err := NewDocumentFromFile(filePath, metadata)

		require.NoError(t, err)
		assert.Equal(t, "working_memory", doc.Title, "Title should be filename without extension")
		assert.Equal(t, filePath, doc.Source, "Source should be the file path")
		assert.Equal(t, content, doc.Content)
		assert.Equal(t, "Psychological Review", doc.Metadata.StringValue("journal"))
	})

	t.Run("Returns error for non-existent file", func(t *testing.T) {
		doc, err := NewDocumentFromFile("/non/existent/paper.md", nil)

		require.Error(t, err)
		assert.Nil(t, doc)
	})

	t.Run("Handles empty file", func(t *testing.T) {
		tmpDir := t.TempDir()
		filePath := filepath.Join(tmpDir, "empty.md")
		require.NoError(t, os.WriteFile(filePath, []byte(""), 0644))

		doc, err := NewDocumentFromFile(filePath, nil)

		require.NoError(t, err)
		assert.Equal(t, "empty", doc.Title)
		assert.Equal(t, "", doc.Content)
		assert.Nil(t, doc.Metadata)
	})

	t.Run("Strips only the last extension from the title", func(t *testing.T) {
		tmpDir := t.TempDir()
		filePath := filepath.Join(tmpDir, "miller.1956.review.md")
		require.NoError(t, os.WriteFile(filePath, []byte("The magical number seven."), 0644))

		doc, err := NewDocumentFromFile(filePath, nil)

		require.NoError(t, err)
		assert.Equal(t, "miller.1956.review", doc.Title)
	})

	t.Run("Preserves unicode content", func(t *testing.T) {
		tmpDir := t.TempDir()
		filePath := filepath.Join(tmpDir, "unicode.md")
		content := "Ebbinghaus (Über das Gedächtnis), 记忆, память"
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))

		doc, err := NewDocumentFromFile(filePath, nil)

		require.NoError(t, err)
		assert.Equal(t, content, doc.Content)
	})
}

func TestDocument_Lines(t *testing.T) {
	t.Run("Splits content into lines", func(t *testing.T) {
		doc := &Document{Content: "first\nsecond\nthird"}

		lines := doc.Lines()

		require.Len(t, lines, 3)
		assert.Equal(t, "first", lines[0])
		assert.Equal(t, "third", lines[2])
	})

	t.Run("Normalizes CRLF line endings", func(t *testing.T) {
		doc := &Document{Content: "first\r\nsecond"}

		lines := doc.Lines()

		require.Len(t, lines, 2)
		assert.Equal(t, "first", lines[0])
		assert.Equal(t, "second", lines[1])
	})

	t.Run("Empty content has no lines", func(t *testing.T) {
		doc := &Document{Content: ""}

		assert.Empty(t, doc.Lines())
	})
}
