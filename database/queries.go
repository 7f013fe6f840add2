package database

import (
	"context"
	dbsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/corpuslab/psyrag/helper"
	"github.com/corpuslab/psyrag/model"
	loadSql "github.com/corpuslab/psyrag/sql"
)

// QueriesDBHandlerFunctions defines the interface for Queries database operations.
type QueriesDBHandlerFunctions interface {
	InsertQuery(query *model.Query) error
	SelectQuery(rid uuid.UUID) (*model.Query, error)
	SelectQueryEmbeddings(queryID int64) ([]model.VariantEmbedding, error)
	ReplaceEmbeddings(ctx context.Context, query *model.Query, embeddings []model.VariantEmbedding) error
	UpdateRetrievedContext(ctx context.Context, query *model.Query, artifact []model.RetrievedChunk) error
	UpdateCleanContext(ctx context.Context, query *model.Query, artifact []model.ConsolidatedGroup) error
}

// QueriesDBHandler handles query-related database operations
type QueriesDBHandler struct {
	db *helper.Database
}

// NewQueriesDBHandler creates a new queries database handler.
// It initializes the database connection and loads query-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewQueriesDBHandler(db *helper.Database, embeddingDim int, force bool) (*QueriesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	queriesDbHandler := &QueriesDBHandler{
		db: db,
	}

	err := loadSql.LoadQueriesSql(queriesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load queries sql", err)
	}

	err = queriesDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized QueriesDBHandler")

	return queriesDbHandler, nil
}

// CreateTable creates the 'queries' and 'query_embeddings' tables.
// If the tables already exist, it does not create them again.
func (h *QueriesDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_queries($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing queries table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table queries")

	return nil
}

// InsertQuery inserts a new query produced by query expansion.
// The query starts in status needs_embeddings with version 0.
func (h *QueriesDBHandler) InsertQuery(query *model.Query) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_query($1, $2, $3, $4, $5)`,
		query.OriginalQuery,
		pq.Array(query.ExpandedQueries),
		query.HydeAnswer,
		string(query.Intent),
		pq.Array(query.Entities),
	)

	err := scanQuery(row, query)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectQuery retrieves a query by RID including both persisted artifacts
func (h *QueriesDBHandler) SelectQuery(rid uuid.UUID) (*model.Query, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_query($1)`,
		rid,
	)

	query := &model.Query{}
	err := scanQuery(row, query)
	if err != nil {
		if errors.Is(err, dbsql.ErrNoRows) || isNoDataFound(err) {
			return nil, helper.NewNotFoundError("select query", fmt.Errorf("query %s not found", rid))
		}
		return nil, err
	}

	return query, nil
}

// SelectQueryEmbeddings retrieves the stored variant embeddings ordered by variant index
func (h *QueriesDBHandler) SelectQueryEmbeddings(queryID int64) ([]model.VariantEmbedding, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_query_embeddings($1)`,
		queryID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var embeddings []model.VariantEmbedding
	for rows.Next() {
		var ve model.VariantEmbedding
		err := rows.Scan(
			&ve.Index,
			&ve.Text,
			pq.Array(&ve.Embedding),
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		embeddings = append(embeddings, ve)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return embeddings, nil
}

// ReplaceEmbeddings atomically replaces all variant embeddings of the query
// and advances its status to needs_retrieval. The write is guarded by the
// version the caller read; a concurrent stage invocation fails the whole
// transaction and nothing is persisted.
func (h *QueriesDBHandler) ReplaceEmbeddings(ctx context.Context, query *model.Query, embeddings []model.VariantEmbedding) error {
	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `SELECT delete_query_embeddings($1)`, query.ID)
	if err != nil {
		return helper.NewError("delete query embeddings", err)
	}

	for _, ve := range embeddings {
		_, err = tx.ExecContext(
			ctx,
			`SELECT insert_query_embedding($1, $2, $3, $4)`,
			query.ID,
			ve.Index,
			ve.Text,
			pq.Array(ve.Embedding),
		)
		if err != nil {
			return helper.NewError(fmt.Sprintf("insert query embedding %d", ve.Index), err)
		}
	}

	row := tx.QueryRowContext(
		ctx,
		`SELECT * FROM update_query_stage($1, $2, $3, false, NULL, false, NULL)`,
		query.ID,
		query.Version,
		string(model.StatusNeedsRetrieval),
	)
	err = scanQuery(row, query)
	if err != nil {
		if isSerializationFailure(err) {
			return helper.NewStateError("advance to needs_retrieval", err)
		}
		return helper.NewError("scan", err)
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit transaction", err)
	}

	return nil
}

// UpdateRetrievedContext persists the raw retrieval artifact and advances
// the status to needs_consolidation in one atomic, version-guarded update.
// The clean artifact is left untouched.
func (h *QueriesDBHandler) UpdateRetrievedContext(ctx context.Context, query *model.Query, artifact []model.RetrievedChunk) error {
	artifactJSON, err := json.Marshal(artifact)
	if err != nil {
		return helper.NewError("marshal retrieved context", err)
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM update_query_stage($1, $2, $3, true, $4, false, NULL)`,
		query.ID,
		query.Version,
		string(model.StatusNeedsConsolidation),
		artifactJSON,
	)
	err = scanQuery(row, query)
	if err != nil {
		if isSerializationFailure(err) {
			return helper.NewStateError("advance to needs_consolidation", err)
		}
		return helper.NewError("scan", err)
	}

	return nil
}

// UpdateCleanContext persists the consolidated artifact and advances the
// status to ready in one atomic, version-guarded update. The raw artifact
// is left untouched.
func (h *QueriesDBHandler) UpdateCleanContext(ctx context.Context, query *model.Query, artifact []model.ConsolidatedGroup) error {
	artifactJSON, err := json.Marshal(artifact)
	if err != nil {
		return helper.NewError("marshal clean context", err)
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM update_query_stage($1, $2, $3, false, NULL, true, $4)`,
		query.ID,
		query.Version,
		string(model.StatusReady),
		artifactJSON,
	)
	err = scanQuery(row, query)
	if err != nil {
		if isSerializationFailure(err) {
			return helper.NewStateError("advance to ready", err)
		}
		return helper.NewError("scan", err)
	}

	return nil
}

func scanQuery(row rowScanner, query *model.Query) error {
	var intent string
	var status string
	var retrievedJSON []byte
	var cleanJSON []byte

	err := row.Scan(
		&query.ID,
		&query.RID,
		&query.OriginalQuery,
		pq.Array(&query.ExpandedQueries),
		&query.HydeAnswer,
		&intent,
		pq.Array(&query.Entities),
		&status,
		&query.Version,
		&retrievedJSON,
		&cleanJSON,
		&query.CreatedAt,
		&query.UpdatedAt,
	)
	if err != nil {
		return err
	}

	query.Intent = model.QueryIntent(intent)
	query.Status = model.QueryStatus(status)

	query.RetrievedContext = nil
	if len(retrievedJSON) > 0 {
		if err := json.Unmarshal(retrievedJSON, &query.RetrievedContext); err != nil {
			return helper.NewDataIntegrityError("unmarshal retrieved context", err)
		}
	}

	query.CleanContext = nil
	if len(cleanJSON) > 0 {
		if err := json.Unmarshal(cleanJSON, &query.CleanContext); err != nil {
			return helper.NewDataIntegrityError("unmarshal clean context", err)
		}
	}

	return nil
}
