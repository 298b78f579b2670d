// Package extract turns uploaded study material into plain text.
package extract

import (
	"path/filepath"
	"strings"
)

// File is an uploaded document: its original name and raw bytes.
type File struct {
	Name string
	Data []byte
}

// SupportedExtensions lists the file extensions FromFile understands.
var SupportedExtensions = []string{".pdf", ".docx", ".html", ".htm", ".txt", ".md"}

// Supported reports whether name has an extension FromFile can extract.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// FromFile extracts plain text from a document, choosing the parser by file
// extension. Unsupported extensions and empty data yield "" without error;
// a document that claims a supported format but cannot be parsed is an
// error.
func FromFile(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return fromPDF(data)
	case ".docx":
		return fromDOCX(data)
	case ".html", ".htm":
		return fromHTML(data)
	case ".txt", ".md":
		return string(data), nil
	default:
		return "", nil
	}
}

// Clean normalizes line endings, trims every line, drops blank lines and
// joins the rest with "\n".
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, ln := range lines {
		if ln = strings.TrimSpace(ln); ln != "" {
			kept = append(kept, ln)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Select picks the study text for one action. Pasted text wins whenever it
// is non-blank; otherwise the file is extracted. The result is cleaned.
func Select(pasted string, file *File) (string, error) {
	if strings.TrimSpace(pasted) != "" {
		return Clean(pasted), nil
	}
	if file == nil {
		return "", nil
	}
	text, err := FromFile(file.Name, file.Data)
	if err != nil {
		return "", err
	}
	return Clean(text), nil
}
