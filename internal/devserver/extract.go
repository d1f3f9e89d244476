package devserver

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

type fieldPattern struct {
	key string
	re  *regexp.Regexp
}

func patterns(pairs ...string) []fieldPattern {
	out := make([]fieldPattern, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, fieldPattern{key: pairs[i], re: regexp.MustCompile(`(?i)` + pairs[i+1])})
	}
	return out
}

var (
	w2Patterns = patterns(
		"employer_name", `(?:employer|company)[:\s]*([A-Za-z\s&,.-]+?)(?:\n|$)`,
		"employee_name", `(?:employee|name)[:\s]*([A-Za-z\s,.-]+?)(?:\n|$)`,
		"wages", `(?:wages|box\s*1)[:\s]*\$?([0-9,]+\.?[0-9]*)`,
		"federal_tax", `(?:federal.*tax|box\s*2)[:\s]*\$?([0-9,]+\.?[0-9]*)`,
		"social_security_wages", `(?:social.*security.*wages|box\s*3)[:\s]*\$?([0-9,]+\.?[0-9]*)`,
		"medicare_wages", `(?:medicare.*wages|box\s*5)[:\s]*\$?([0-9,]+\.?[0-9]*)`,
		"ein", `(?:ein|employer.*id)[:\s]*([0-9-]+)`,
	)
	form1099Patterns = patterns(
		"payer_name", `(?:payer|company)[:\s]*([A-Za-z\s&,.-]+?)(?:\n|$)`,
		"recipient_name", `(?:recipient|payee)[:\s]*([A-Za-z\s,.-]+?)(?:\n|$)`,
		"nonemployee_compensation", `(?:nonemployee.*compensation|box\s*1)[:\s]*\$?([0-9,]+\.?[0-9]*)`,
		"federal_tax", `(?:federal.*tax|box\s*4)[:\s]*\$?([0-9,]+\.?[0-9]*)`,
		"payer_tin", `(?:payer.*tin|ein)[:\s]*([0-9-]+)`,
	)
	receiptPatterns = patterns(
		"merchant_name", `^([A-Za-z\s&,.-]+?)(?:\n|$)`,
		"total_amount", `(?:total|amount)[:\s]*\$?([0-9,]+\.?[0-9]*)`,
		"date", `(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`,
		"tax_amount", `(?:tax)[:\s]*\$?([0-9,]+\.?[0-9]*)`,
	)
)

// pdfLiteral matches a literal string operand in an uncompressed PDF content stream.
var pdfLiteral = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)\s*T[jJ]`)

// fakeExtract stands in for OCR: it pulls text shown by uncompressed PDFs and
// applies per-type field patterns. Images and other content yield empty text
// and no fields.
func fakeExtract(content []byte, docType constants.DocumentType) *entity.ExtractionOutcome {
	text := pdfText(content)
	fields := entity.NewFieldSet()
	if text != "" {
		var set []fieldPattern
		switch docType {
		case constants.DocumentW2:
			set = w2Patterns
		case constants.Document1099:
			set = form1099Patterns
		case constants.DocumentReceipt:
			set = receiptPatterns
		}
		var found []entity.Field
		for _, p := range set {
			if m := p.re.FindStringSubmatch(text); m != nil {
				found = append(found, entity.Field{Key: p.key, Value: quote(strings.TrimSpace(m[1]))})
			}
		}
		fields = entity.NewFieldSet(found...)
	}
	return &entity.ExtractionOutcome{RawText: &text, Fields: fields}
}

func pdfText(content []byte) string {
	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		return ""
	}
	var lines []string
	for _, m := range pdfLiteral.FindAllSubmatch(content, -1) {
		s := strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`).Replace(string(m[1]))
		lines = append(lines, s)
	}
	return strings.Join(lines, "\n")
}

func quote(s string) []byte {
	b, _ := json.Marshal(s)
	return b
}
