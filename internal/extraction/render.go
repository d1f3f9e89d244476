// Package extraction turns OCR extraction payloads into display rows.
package extraction

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

// Row is one extracted field ready for display.
type Row struct {
	Key   string
	Label string
	Value string
}

// View is the rendered form of an ExtractionOutcome.
type View struct {
	Rows []Row
	// RawText is set only when the outcome carries non-blank raw text.
	RawText string
}

// HasRawText reports whether the raw-text panel should be shown.
func (v View) HasRawText() bool {
	return v.RawText != ""
}

// Empty reports whether there is nothing to show at all.
func (v View) Empty() bool {
	return len(v.Rows) == 0 && !v.HasRawText()
}

// Render maps an outcome to rows in source order. A nil outcome, or one
// without fields, yields no rows. The outcome is not modified.
func Render(outcome *entity.ExtractionOutcome) View {
	var v View
	if outcome == nil {
		return v
	}
	for _, f := range outcome.Fields.Fields() {
		v.Rows = append(v.Rows, Row{
			Key:   f.Key,
			Label: Label(f.Key),
			Value: ScalarText(f.Value),
		})
	}
	if outcome.HasRawText() {
		v.RawText = *outcome.RawText
	}
	return v
}

// Label replaces every underscore with a space and upper-cases the first
// letter of each space-separated word. Other letters keep their case.
func Label(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// ScalarText renders a raw JSON value without reformatting it: strings lose
// their quotes, numbers and booleans keep their literal text, null is empty.
// Objects and arrays are shown as compact JSON.
func ScalarText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}
	return string(trimmed)
}
