package model

import (
	"time"

	"github.com/google/uuid"
)

// Chunk represents a stored unit of document content with positional
// (line range) and structural (parent chunk) metadata.
type Chunk struct {
	ID          int       `json:"id"`
	DocumentID  int64     `json:"document_id"`
	DocumentRID uuid.UUID `json:"document_rid"`
	ParentID    *int      `json:"parent_id,omitempty"` // Structural ancestor, nil for top-level sections
	Content     string    `json:"content"`
	StartLine   int       `json:"start_line"`
	EndLine     int       `json:"end_line"`
	Embedding   []float32 `json:"embedding,omitempty"`
	ChunkIndex  *int      `json:"chunk_index,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	// Results
	Distance float64 `json:"distance,omitempty"` // Vector distance from a dense query
	TextRank float64 `json:"text_rank,omitempty"`
}
