// Package export renders a study result for download, as JSON or as plain
// text.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/studyrag/internal/grounded"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// JSON returns the result as indented JSON with non-ASCII and HTML
// characters left as is.
func JSON(r *grounded.Result) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// FileName names an export taken at ts, e.g.
// study_assistant_result_20260102_150405.json.
func FileName(ts time.Time, ext string) string {
	return "study_assistant_result_" + ts.Format("20060102_150405") + "." + strings.TrimPrefix(ext, ".")
}

// Render returns the result in the requested format ("json" or "txt") with
// its content type.
func Render(r *grounded.Result, format string) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case "", "json":
		b, err := JSON(r)
		return b, ContentTypeJSON, err
	case "txt", "text":
		return []byte(Text(r)), ContentTypeText, nil
	}
	return nil, "", fmt.Errorf("unknown export format %q: want json or txt", format)
}
