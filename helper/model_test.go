package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareModel(t *testing.T) {
	t.Run("Return existing model path when model exists", func(t *testing.T) {
		modelName := "test/mock-reranker"
		modelPath := filepath.Join("./models", "test_mock-reranker")

		err := os.MkdirAll(modelPath, 0750)
		require.NoError(t, err, "Expected directory creation to succeed")
		defer os.RemoveAll(modelPath)

		path, err := PrepareModel(modelName, "")
		assert.NoError(t, err, "Expected PrepareModel to not return an error for existing model")
		assert.Equal(t, modelPath, path, "Expected returned path to match existing model path")
	})

	t.Run("Sanitize model name with slashes", func(t *testing.T) {
		modelName := "org/sub/model"
		modelPath := filepath.Join("./models", "org_sub_model")

		err := os.MkdirAll(modelPath, 0750)
		require.NoError(t, err, "Expected directory creation to succeed")
		defer os.RemoveAll(modelPath)

		path, err := PrepareModel(modelName, "onnx/model.onnx")
		assert.NoError(t, err, "Expected PrepareModel to not return an error")
		assert.Equal(t, modelPath, path, "Expected sanitized path for model name with slashes")
	})
}
