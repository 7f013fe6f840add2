package psyrag

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/corpuslab/psyrag/core/consolidate"
	"github.com/corpuslab/psyrag/core/pipeline"
	"github.com/corpuslab/psyrag/core/retrieval"
	"github.com/corpuslab/psyrag/database"
	"github.com/corpuslab/psyrag/helper"
	"github.com/corpuslab/psyrag/model"
	loadSql "github.com/corpuslab/psyrag/sql"
)

// PsyRAG provides a unified interface to document ingestion and the
// query retrieval pipeline
type PsyRAG struct {
	DB        *helper.Database
	Documents *database.DocumentsDBHandler
	Chunks    *database.ChunksDBHandler
	Queries   *database.QueriesDBHandler
	Engine    *retrieval.Engine
	Runner    *pipeline.Runner // Set once models are wired

	config          model.RetrievalConfig
	consolidator    *consolidate.Consolidator
	embed           pipeline.EmbedFunc
	rerank          retrieval.RerankFunc
	extractEntities pipeline.EntityExtractFunc
	// Logging
	log *slog.Logger
}

// NewPsyRAG creates a new PsyRAG instance with all handlers initialized
func NewPsyRAG(config *helper.DatabaseConfiguration, embeddingDim int) (*PsyRAG, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("psyrag", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers in the correct order (documents first, then chunks)
	// force=false to not reload if functions already exist
	documents, err := database.NewDocumentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	queries, err := database.NewQueriesDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create queries handler", err)
	}

	engine := retrieval.NewEngine(chunks, documents)
	consolidator := consolidate.NewConsolidator(chunks, documents)

	return &PsyRAG{
		DB:           db,
		Documents:    documents,
		Chunks:       chunks,
		Queries:      queries,
		Engine:       engine,
		config:       model.DefaultRetrievalConfig(),
		consolidator: consolidator,
		log:          logger,
	}, nil
}

// Close closes the database connection
func (p *PsyRAG) Close() error {
	if p.DB != nil && p.DB.Instance != nil {
		return p.DB.Instance.Close()
	}
	return nil
}

// SetRetrievalConfig replaces the retrieval configuration for all
// later stage runs
func (p *PsyRAG) SetRetrievalConfig(config *model.RetrievalConfig) error {
	if err := config.Validate(); err != nil {
		return helper.NewConfigurationError("set retrieval config", err)
	}
	p.config = *config
	if p.embed != nil && p.rerank != nil {
		return p.buildRunner()
	}
	return nil
}

// SetModels wires the embedding, reranking and entity extraction models.
// The entity extractor may be nil, new queries then carry no entities.
func (p *PsyRAG) SetModels(embed pipeline.EmbedFunc, rerank retrieval.RerankFunc, extract pipeline.EntityExtractFunc) error {
	if embed == nil || rerank == nil {
		return helper.NewConfigurationError("set models", fmt.Errorf("embed and rerank functions are required"))
	}
	p.embed = embed
	p.rerank = rerank
	p.extractEntities = extract
	return p.buildRunner()
}

// UseDefaultModels wires the default ONNX models:
// all-MiniLM-L6-v2 embeddings (384 dimensions), the ms-marco-MiniLM-L-6-v2
// cross-encoder and distilbert-NER entity extraction.
func (p *PsyRAG) UseDefaultModels() error {
	embed, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}
	rerank, err := pipeline.DefaultReranker()
	if err != nil {
		return helper.NewError("create default reranker", err)
	}
	extract, err := pipeline.DefaultEntityExtractor()
	if err != nil {
		return helper.NewError("create default entity extractor", err)
	}
	return p.SetModels(embed, rerank, extract)
}

// SetIntentBias replaces the intent bias strategy used during retrieval
func (p *PsyRAG) SetIntentBias(strategy retrieval.IntentBiasStrategy) error {
	if p.Runner == nil {
		return helper.NewConfigurationError("set intent bias", fmt.Errorf("models not set, use SetModels() or UseDefaultModels() first"))
	}
	p.Runner.SetIntentBias(strategy)
	return nil
}

func (p *PsyRAG) buildRunner() error {
	runner, err := pipeline.NewRunner(p.Queries, p.Engine, p.consolidator, p.embed, p.rerank, p.config, p.log)
	if err != nil {
		return err
	}
	p.Runner = runner
	return nil
}

// ProcessAndInsertDocument processes a markdown document by:
// 1. Inserting the document with its full content
// 2. Splitting the content into heading sections with line positions
// 3. Embedding all section texts in one batched model call
// 4. Inserting one chunk per section, wiring parent ids along the
// heading hierarchy
// Returns the number of chunks inserted and any error encountered.
func (p *PsyRAG) ProcessAndInsertDocument(doc *model.Document) (int, error) {
	if p.embed == nil {
		return 0, helper.NewConfigurationError("process document", fmt.Errorf("models not set, use SetModels() or UseDefaultModels() first"))
	}
	if doc.Content == "" {
		return 0, helper.NewError("process document", fmt.Errorf("document content is empty"))
	}

	if err := p.Documents.InsertDocument(doc); err != nil {
		return 0, helper.NewError("insert document", err)
	}

	p.log.Info("Inserted document", slog.String("document_id", doc.RID.String()), slog.String("title", doc.Title))

	sections := pipeline.ChunkMarkdown(doc.Content)
	flat := flattenSections(sections, -1)
	if len(flat) == 0 {
		return 0, helper.NewError("process document", fmt.Errorf("document has no sections"))
	}

	texts := make([]string, len(flat))
	for i, fs := range flat {
		texts[i] = fs.section.Content
	}
	embeddings, err := p.embed(texts)
	if err != nil {
		return 0, helper.NewExternalServiceError("embed document sections", err)
	}
	if len(embeddings) != len(flat) {
		return 0, helper.NewExternalServiceError("embed document sections", fmt.Errorf("expected %d embeddings, got %d", len(flat), len(embeddings)))
	}

	// Insert in tree order, a parent always precedes its children
	ids := make([]int, len(flat))
	for i, fs := range flat {
		chunkIndex := i
		chunk := &model.Chunk{
			DocumentID: doc.ID,
			Content:    fs.section.Content,
			StartLine:  fs.section.StartLine,
			EndLine:    fs.section.EndLine,
			Embedding:  embeddings[i],
			ChunkIndex: &chunkIndex,
			Metadata:   map[string]interface{}{"title": fs.section.Title, "level": fs.section.Level},
		}
		if fs.parent >= 0 {
			parentID := ids[fs.parent]
			chunk.ParentID = &parentID
		}
		if err := p.Chunks.InsertChunk(chunk); err != nil {
			return i, helper.NewError(fmt.Sprintf("insert chunk %d", i), err)
		}
		ids[i] = chunk.ID
	}

	p.log.Info("Processed document into chunks", slog.Int("num_chunks", len(flat)), slog.String("document_id", doc.RID.String()))
	return len(flat), nil
}

type flatSection struct {
	section *pipeline.Section
	parent  int
}

// flattenSections lists a section tree depth first, keeping the index of
// each section's parent so inserts can wire parent ids in one pass.
func flattenSections(sections []*pipeline.Section, parent int) []flatSection {
	var flat []flatSection
	var walk func(sections []*pipeline.Section, parent int)
	walk = func(sections []*pipeline.Section, parent int) {
		for _, section := range sections {
			flat = append(flat, flatSection{section: section, parent: parent})
			walk(section.Children, len(flat)-1)
		}
	}
	walk(sections, parent)
	return flat
}

// CreateQuery stores a new query with its expansion variants and HyDE
// answer. Entities are extracted from the original query text when an
// entity extractor is wired. The query starts at needs_embeddings.
func (p *PsyRAG) CreateQuery(originalQuery string, expandedQueries []string, hydeAnswer string, intent model.QueryIntent) (*model.Query, error) {
	if originalQuery == "" {
		return nil, helper.NewError("create query", fmt.Errorf("original query is empty"))
	}

	var entities []string
	if p.extractEntities != nil {
		var err error
		entities, err = p.extractEntities(originalQuery)
		if err != nil {
			return nil, helper.NewExternalServiceError("extract query entities", err)
		}
	}

	query := &model.Query{
		OriginalQuery:   originalQuery,
		ExpandedQueries: expandedQueries,
		HydeAnswer:      hydeAnswer,
		Intent:          intent,
		Entities:        entities,
	}
	if err := p.Queries.InsertQuery(query); err != nil {
		return nil, helper.NewError("insert query", err)
	}

	p.log.Info("Created query", slog.String("query", query.RID.String()), slog.Int("variants", len(query.Variants())))
	return query, nil
}

// GetQuery loads a query with its stored stage artifacts
func (p *PsyRAG) GetQuery(rid uuid.UUID) (*model.Query, error) {
	return p.Queries.SelectQuery(rid)
}

// EmbedQuery runs the embedding stage for a query
func (p *PsyRAG) EmbedQuery(ctx context.Context, rid uuid.UUID) (*model.Query, error) {
	if p.Runner == nil {
		return nil, helper.NewConfigurationError("embed query", fmt.Errorf("models not set, use SetModels() or UseDefaultModels() first"))
	}
	return p.Runner.Embed(ctx, rid)
}

// RetrieveQuery runs the hybrid retrieval stage for a query
func (p *PsyRAG) RetrieveQuery(ctx context.Context, rid uuid.UUID) (*model.Query, error) {
	if p.Runner == nil {
		return nil, helper.NewConfigurationError("retrieve query", fmt.Errorf("models not set, use SetModels() or UseDefaultModels() first"))
	}
	return p.Runner.Retrieve(ctx, rid)
}

// ConsolidateQuery runs the context consolidation stage for a query
func (p *PsyRAG) ConsolidateQuery(ctx context.Context, rid uuid.UUID) (*model.Query, error) {
	if p.Runner == nil {
		return nil, helper.NewConfigurationError("consolidate query", fmt.Errorf("models not set, use SetModels() or UseDefaultModels() first"))
	}
	return p.Runner.Consolidate(ctx, rid)
}

// RunQuery advances a query through all remaining stages until ready
func (p *PsyRAG) RunQuery(ctx context.Context, rid uuid.UUID) (*model.Query, error) {
	if p.Runner == nil {
		return nil, helper.NewConfigurationError("run query", fmt.Errorf("models not set, use SetModels() or UseDefaultModels() first"))
	}
	return p.Runner.Run(ctx, rid)
}
