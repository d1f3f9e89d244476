package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

// StoredDocument is a document row plus the extraction reveal bookkeeping:
// the extraction is withheld until the document has been read RevealAfter times.
type StoredDocument struct {
	entity.Document
	RevealAfter int
	Polls       int
}

// Visible returns the document as a client may see it now.
func (d StoredDocument) Visible() entity.Document {
	doc := d.Document
	if d.Polls < d.RevealAfter {
		doc.Extraction = nil
	}
	return doc
}

type NewDocument struct {
	UserID       int64
	DocumentType constants.DocumentType
	FilePath     string
	Extraction   *entity.ExtractionOutcome
	RevealAfter  int
}

type DocumentRepository interface {
	List(ctx context.Context, userID int64) ([]StoredDocument, error)
	Create(ctx context.Context, d NewDocument) (*StoredDocument, error)
	// Poll reads one document and counts the read toward its reveal threshold.
	Poll(ctx context.Context, userID, id int64) (*StoredDocument, error)
	Delete(ctx context.Context, userID, id int64) (*StoredDocument, error)
}

type documentRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewDocumentRepository(db *sql.DB, logger *slog.Logger) DocumentRepository {
	return &documentRepository{db: db, logger: logger, now: time.Now}
}

const documentColumns = `id, user_id, document_type, file_path, extracted_data, reveal_after, polls, uploaded_at`

func (r *documentRepository) List(ctx context.Context, userID int64) ([]StoredDocument, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM tax_documents WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		r.logger.Error("failed to list documents", "user_id", userID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := []StoredDocument{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *documentRepository) Create(ctx context.Context, d NewDocument) (*StoredDocument, error) {
	var extraction any
	if d.Extraction != nil {
		b, err := json.Marshal(d.Extraction)
		if err != nil {
			return nil, fmt.Errorf("encode extraction: %w", err)
		}
		extraction = string(b)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tax_documents (user_id, document_type, file_path, extracted_data, reveal_after, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		d.UserID, string(d.DocumentType), d.FilePath, extraction, d.RevealAfter, stamp(r.now()))
	if err != nil {
		r.logger.Error("failed to create document", "user_id", d.UserID, "error", err)
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.get(ctx, d.UserID, id)
}

func (r *documentRepository) Poll(ctx context.Context, userID, id int64) (*StoredDocument, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tax_documents SET polls = polls + 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound("document", id)
	}
	return r.get(ctx, userID, id)
}

func (r *documentRepository) Delete(ctx context.Context, userID, id int64) (*StoredDocument, error) {
	d, err := r.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tax_documents WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		r.logger.Error("failed to delete document", "document_id", id, "error", err)
		return nil, err
	}
	return d, nil
}

func (r *documentRepository) get(ctx context.Context, userID, id int64) (*StoredDocument, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM tax_documents WHERE id = ? AND user_id = ?`, id, userID)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("document", id)
	}
	return d, err
}

func scanDocument(s scanner) (*StoredDocument, error) {
	var (
		d          StoredDocument
		docType    string
		extraction sql.NullString
		uploaded   string
	)
	if err := s.Scan(&d.ID, &d.UserID, &docType, &d.FilePath, &extraction, &d.RevealAfter, &d.Polls, &uploaded); err != nil {
		return nil, err
	}
	d.DocumentType = constants.DocumentType(docType)
	if extraction.Valid && extraction.String != "" {
		var out entity.ExtractionOutcome
		if err := json.Unmarshal([]byte(extraction.String), &out); err != nil {
			return nil, fmt.Errorf("decode extraction for document %d: %w", d.ID, err)
		}
		d.Extraction = &out
	}
	var err error
	if d.UploadedAt, err = parseStamp(uploaded); err != nil {
		return nil, err
	}
	return &d, nil
}
