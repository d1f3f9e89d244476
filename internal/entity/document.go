package entity

import (
	"strings"

	"github.com/joseph-ayodele/tax-portal/constants"
)

// Document is a stored tax document as returned by the backend.
type Document struct {
	ID           int64                  `json:"id"`
	UserID       int64                  `json:"user_id"`
	DocumentType constants.DocumentType `json:"document_type"`
	FilePath     string                 `json:"file_path"`
	Extraction   *ExtractionOutcome     `json:"extracted_data"`
	UploadedAt   Timestamp              `json:"uploaded_at"`
}

// ExtractionOutcome is the OCR result attached to a document. Both parts are
// optional and independently absent.
type ExtractionOutcome struct {
	RawText *string   `json:"raw_text,omitempty"`
	Fields  *FieldSet `json:"extracted_data,omitempty"`
}

// Pending reports whether OCR has not produced a result yet. A stored
// extracted_data of {} decodes with both parts absent; a finished but empty
// result carries the keys.
func (e *ExtractionOutcome) Pending() bool {
	return e == nil || (e.RawText == nil && e.Fields == nil)
}

// HasRawText reports whether raw text with at least one non-space character is present.
func (e *ExtractionOutcome) HasRawText() bool {
	return e != nil && e.RawText != nil && strings.TrimSpace(*e.RawText) != ""
}
