package devserver

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
	"github.com/joseph-ayodele/tax-portal/internal/repository"
)

// maxRequestBytes leaves room for form fields around a maximum-size file.
const maxRequestBytes = constants.MaxUploadBytes + 1<<20

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type savedFile struct {
	path    string
	content []byte
}

// saveUpload reads the "file" part and stores it under UploadDir/<kind>.
// On failure it writes the response itself and returns ok=false.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request, kind string) (savedFile, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(maxRequestBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return savedFile{}, false
		}
		writeError(w, http.StatusBadRequest, "No file provided")
		return savedFile{}, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return savedFile{}, false
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return savedFile{}, false
	}
	if !constants.IsAllowedExt(filepath.Ext(header.Filename)) {
		writeError(w, http.StatusBadRequest, "Invalid file type")
		return savedFile{}, false
	}

	saved, err := s.store(file, header, kind)
	if err != nil {
		s.logger.Error("devserver.upload.store_fail", "file", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Could not store file")
		return savedFile{}, false
	}
	return saved, true
}

func (s *Server) store(file multipart.File, header *multipart.FileHeader, kind string) (savedFile, error) {
	content, err := io.ReadAll(file)
	if err != nil {
		return savedFile{}, err
	}
	dir := filepath.Join(s.cfg.UploadDir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return savedFile{}, err
	}
	name := unsafeName.ReplaceAllString(filepath.Base(header.Filename), "_")
	name = fmt.Sprintf("%s_%s", s.now().UTC().Format("20060102_150405.000000"), name)
	if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
		return savedFile{}, err
	}
	return savedFile{path: filepath.ToSlash(filepath.Join("uploads", kind, name)), content: content}, nil
}

func (s *Server) diskPath(stored string) string {
	return filepath.Join(s.cfg.UploadDir, strings.TrimPrefix(filepath.FromSlash(stored), "uploads"+string(filepath.Separator)))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List(r.Context(), userID(r))
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	out := make([]entity.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Visible())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	saved, ok := s.saveUpload(w, r, "documents")
	if !ok {
		return
	}
	docType := constants.DocumentOther
	if v := r.FormValue("document_type"); v != "" {
		t, valid := constants.ParseDocumentType(v)
		if !valid {
			writeError(w, http.StatusBadRequest, "Invalid document type")
			return
		}
		docType = t
	}

	doc, err := s.documents.Create(r.Context(), repository.NewDocument{
		UserID:       userID(r),
		DocumentType: docType,
		FilePath:     saved.path,
		Extraction:   fakeExtract(saved.content, docType),
		RevealAfter:  s.cfg.ExtractionDelayPolls,
	})
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	s.logger.Info("devserver.document.created", "document_id", doc.ID, "type", docType, "reveal_after", doc.RevealAfter)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "Document uploaded successfully",
		"document": doc.Visible(),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	doc, err := s.documents.Poll(r.Context(), userID(r), id)
	if err != nil {
		s.writeFailure(w, r, err, "Document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc.Visible())
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	doc, err := s.documents.Delete(r.Context(), userID(r), id)
	if err != nil {
		s.writeFailure(w, r, err, "Document not found")
		return
	}
	if err := os.Remove(s.diskPath(doc.FilePath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("devserver.document.remove_file_fail", "document_id", id, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted successfully"})
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	recs, err := s.receipts.ListReceipts(r.Context(), userID(r), nil, nil)
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	saved, ok := s.saveUpload(w, r, "receipts")
	if !ok {
		return
	}

	category := strings.TrimSpace(r.FormValue("category"))
	if category == "" {
		category = "general"
	}
	amountText := r.FormValue("amount")
	if amountText == "" {
		amountText = "0.00"
	}
	amount, err := entity.NewMoney(amountText)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}
	date := entity.DateOf(s.now())
	if v := r.FormValue("date"); v != "" {
		if date, err = entity.ParseYMD(v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date")
			return
		}
	}

	rec, err := s.receipts.Create(r.Context(), repository.NewReceipt{
		UserID:   userID(r),
		FilePath: saved.path,
		Category: category,
		Amount:   amount,
		Date:     date,
	})
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Receipt uploaded successfully",
		"receipt": rec,
	})
}
