package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	t.Run("Splits on terminal punctuation", func(t *testing.T) {
		sentences := SplitSentences("First sentence. Second sentence! Third sentence? Fourth.")

		require.Len(t, sentences, 4)
		assert.Equal(t, "First sentence.", sentences[0])
		assert.Equal(t, "Second sentence!", sentences[1])
		assert.Equal(t, "Third sentence?", sentences[2])
		assert.Equal(t, "Fourth.", sentences[3])
	})

	t.Run("Splits across newlines", func(t *testing.T) {
		sentences := SplitSentences("First sentence.\nSecond sentence.")

		require.Len(t, sentences, 2)
		assert.Equal(t, "Second sentence.", sentences[1])
	})

	t.Run("Blank text has no sentences", func(t *testing.T) {
		assert.Nil(t, SplitSentences("   "))
	})
}

func TestFirstSentences(t *testing.T) {
	text := "One. Two. Three. Four."

	assert.Equal(t, "One. Two.", FirstSentences(text, 2))
	assert.Equal(t, "One. Two. Three. Four.", FirstSentences(text, 10))
	assert.Equal(t, "", FirstSentences(text, 0))
}

func TestLastSentences(t *testing.T) {
	text := "One. Two. Three. Four."

	assert.Equal(t, "Three. Four.", LastSentences(text, 2))
	assert.Equal(t, "One. Two. Three. Four.", LastSentences(text, 10))
	assert.Equal(t, "", LastSentences(text, 0))
}
