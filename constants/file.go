package constants

import "strings"

// MaxUploadBytes is the default upper bound for a single uploaded file.
const MaxUploadBytes int64 = 10 << 20

// AllowedExtensions holds the file extensions accepted for documents and receipts.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// extensionMIME maps an allowed extension to the MIME types a sniffed file may report.
var extensionMIME = map[string][]string{
	"pdf":  {"application/pdf"},
	"jpg":  {"image/jpeg"},
	"jpeg": {"image/jpeg"},
	"png":  {"image/png"},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without a leading dot) is on the allow-list.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// MIMETypesFor returns the MIME types a file with this extension may sniff as.
func MIMETypesFor(ext string) []string {
	return extensionMIME[NormalizeExt(ext)]
}

// AcceptList renders the allow-list the way file pickers expect it.
func AcceptList() string {
	return ".pdf,.jpg,.jpeg,.png"
}
