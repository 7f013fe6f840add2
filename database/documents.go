package database

import (
	"context"
	dbsql "database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/corpuslab/psyrag/helper"
	"github.com/corpuslab/psyrag/model"
	loadSql "github.com/corpuslab/psyrag/sql"
)

// DocumentsDBHandlerFunctions defines the interface for Documents database operations.
type DocumentsDBHandlerFunctions interface {
	InsertDocument(doc *model.Document) error
	SelectDocument(rid uuid.UUID) (*model.Document, error)
	SelectDocumentByID(id int64) (*model.Document, error)
	SelectAllDocuments() ([]*model.Document, error)
	DeleteDocument(rid uuid.UUID) error
	SurroundingText(ctx context.Context, documentID int64, startLine int, endLine int, sentencesBefore int, sentencesAfter int) (string, string, error)
}

// DocumentsDBHandler handles document-related database operations
type DocumentsDBHandler struct {
	db *helper.Database
}

// NewDocumentsDBHandler creates a new documents database handler.
// It initializes the database connection and loads document-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewDocumentsDBHandler(db *helper.Database, force bool) (*DocumentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	documentsDbHandler := &DocumentsDBHandler{
		db: db,
	}

	err := loadSql.LoadDocumentsSql(documentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load documents sql", err)
	}

	err = documentsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized DocumentsDBHandler")

	return documentsDbHandler, nil
}

// CreateTable creates the 'documents' table in the database.
// If the table already exists, it does not create it again.
func (h *DocumentsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_documents();`)
	if err != nil {
		log.Panicf("error initializing documents table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table documents")

	return nil
}

// InsertDocument inserts a new document including its full text content
func (h *DocumentsDBHandler) InsertDocument(doc *model.Document) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_document($1, $2, $3, $4)`,
		doc.Title,
		doc.Source,
		doc.Content,
		doc.Metadata,
	)

	err := scanDocument(row, doc)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectDocument retrieves a document by RID
func (h *DocumentsDBHandler) SelectDocument(rid uuid.UUID) (*model.Document, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_document($1)`,
		rid,
	)

	doc := &model.Document{}
	err := scanDocument(row, doc)
	if err != nil {
		if errors.Is(err, dbsql.ErrNoRows) || isNoDataFound(err) {
			return nil, helper.NewNotFoundError("select document", fmt.Errorf("document %s not found", rid))
		}
		return nil, helper.NewError("scan", err)
	}

	return doc, nil
}

// SelectDocumentByID retrieves a document by its numeric id
func (h *DocumentsDBHandler) SelectDocumentByID(id int64) (*model.Document, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_document_by_id($1)`,
		id,
	)

	doc := &model.Document{}
	err := scanDocument(row, doc)
	if err != nil {
		if errors.Is(err, dbsql.ErrNoRows) || isNoDataFound(err) {
			return nil, helper.NewNotFoundError("select document", fmt.Errorf("document %d not found", id))
		}
		return nil, helper.NewError("scan", err)
	}

	return doc, nil
}

// SelectAllDocuments retrieves all documents
func (h *DocumentsDBHandler) SelectAllDocuments() ([]*model.Document, error) {
	rows, err := h.db.Instance.Query(`SELECT * FROM select_all_documents()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var docs []*model.Document
	for rows.Next() {
		doc := &model.Document{}
		err := scanDocument(rows, doc)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		docs = append(docs, doc)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return docs, nil
}

// DeleteDocument deletes a document by RID
func (h *DocumentsDBHandler) DeleteDocument(rid uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_document($1)`,
		rid,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SurroundingText returns up to sentencesBefore sentences of document text
// immediately preceding startLine and up to sentencesAfter sentences
// immediately following endLine. Lines are 1-indexed.
func (h *DocumentsDBHandler) SurroundingText(
	ctx context.Context,
	documentID int64,
	startLine int,
	endLine int,
	sentencesBefore int,
	sentencesAfter int,
) (string, string, error) {
	doc, err := h.SelectDocumentByID(documentID)
	if err != nil {
		return "", "", err
	}

	lines := doc.Lines()
	before := helper.LastSentences(linesBefore(lines, startLine), sentencesBefore)
	after := helper.FirstSentences(linesAfter(lines, endLine), sentencesAfter)

	return before, after, nil
}

func linesBefore(lines []string, startLine int) string {
	if startLine <= 1 || len(lines) == 0 {
		return ""
	}
	end := startLine - 1
	if end > len(lines) {
		end = len(lines)
	}
	return joinLines(lines[:end])
}

func linesAfter(lines []string, endLine int) string {
	if endLine >= len(lines) || endLine < 0 {
		return ""
	}
	return joinLines(lines[endLine:])
}

func joinLines(lines []string) string {
	joined := ""
	for i, line := range lines {
		if i > 0 {
			joined += "\n"
		}
		joined += line
	}
	return joined
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner, doc *model.Document) error {
	return row.Scan(
		&doc.ID,
		&doc.RID,
		&doc.Title,
		&doc.Source,
		&doc.Content,
		&doc.Metadata,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
}
