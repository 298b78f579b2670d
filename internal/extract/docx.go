package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

// fromDOCX reads word/document.xml out of the package and returns one line
// per non-empty paragraph.
func fromDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening docx: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("opening docx: %s missing", docxBody)
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", docxBody, err)
	}
	defer rc.Close()

	paras, err := docxParagraphs(rc)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", docxBody, err)
	}
	return strings.Join(paras, "\n"), nil
}

// docxParagraphs walks WordprocessingML and collects the trimmed text of
// each w:p. Runs (w:t) are concatenated, w:tab becomes a tab and w:br or
// w:cr a newline.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paras []string
		cur   strings.Builder
		inT   bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				cur.Reset()
			case "t":
				inT = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inT = false
			case "p":
				if s := strings.TrimSpace(cur.String()); s != "" {
					paras = append(paras, s)
				}
				cur.Reset()
			}
		case xml.CharData:
			if inT {
				cur.Write(t)
			}
		}
	}
	return paras, nil
}
