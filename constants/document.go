package constants

import "strings"

// DocumentType classifies an uploaded tax document.
type DocumentType string

const (
	DocumentW2      DocumentType = "w-2"
	Document1099    DocumentType = "1099"
	Document1040    DocumentType = "1040"
	DocumentReceipt DocumentType = "receipt"
	DocumentInvoice DocumentType = "invoice"
	DocumentOther   DocumentType = "other"
)

var allDocumentTypes = []DocumentType{
	DocumentW2,
	Document1099,
	Document1040,
	DocumentReceipt,
	DocumentInvoice,
	DocumentOther,
}

var documentLabels = map[DocumentType]string{
	DocumentW2:      "W-2 Form",
	Document1099:    "1099 Form",
	Document1040:    "1040 Form",
	DocumentReceipt: "Receipt",
	DocumentInvoice: "Invoice",
	DocumentOther:   "Other",
}

// DocumentTypes returns the classification options in display order.
func DocumentTypes() []DocumentType {
	out := make([]DocumentType, len(allDocumentTypes))
	copy(out, allDocumentTypes)
	return out
}

// Label is the human readable name of the document type.
func (t DocumentType) Label() string {
	if l, ok := documentLabels[t]; ok {
		return l
	}
	return string(t)
}

// Valid reports whether t is one of the known classifications.
func (t DocumentType) Valid() bool {
	_, ok := documentLabels[t]
	return ok
}

// ParseDocumentType accepts the wire value in any case ("W-2", "w2" also map to w-2).
func ParseDocumentType(s string) (DocumentType, bool) {
	n := strings.ToLower(strings.TrimSpace(s))
	if n == "w2" {
		n = string(DocumentW2)
	}
	t := DocumentType(n)
	return t, t.Valid()
}
