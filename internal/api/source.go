package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/kalambet/studyrag/internal/extract"
	"github.com/kalambet/studyrag/internal/pipeline"
)

const (
	maxUploadSize = 32 << 20 // 32MB
	maxFormMemory = 8 << 20
)

// studyRequest is the body of /index, /ask and /recall. As JSON, a file is
// sent base64 encoded in file_content; as multipart/form-data, in the
// "file" part.
type studyRequest struct {
	Text        string `json:"text"`
	FileName    string `json:"file_name"`
	FileContent string `json:"file_content"`
	Question    string `json:"question"`
	Query       string `json:"query"`
	Mode        string `json:"mode"`
	Model       string `json:"model"`
	TopK        int    `json:"top_k"`

	file *extract.File
}

func (s studyRequest) source() pipeline.Source {
	return pipeline.Source{PastedText: s.Text, File: s.file}
}

func (s studyRequest) ask() pipeline.AskRequest {
	return pipeline.AskRequest{Question: s.Question, Mode: s.Mode, Model: s.Model, TopK: s.TopK}
}

func parseStudyRequest(w http.ResponseWriter, r *http.Request) (studyRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	defer r.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return parseMultipart(r)
	}

	var req studyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %v", err)
	}
	if req.FileContent != "" {
		data, err := base64.StdEncoding.DecodeString(req.FileContent)
		if err != nil {
			return req, fmt.Errorf("invalid base64 file_content")
		}
		req.file = &extract.File{Name: req.FileName, Data: data}
	}
	return req, nil
}

func parseMultipart(r *http.Request) (studyRequest, error) {
	var req studyRequest
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return req, fmt.Errorf("invalid multipart body: %v", err)
	}
	req.Text = r.FormValue("text")
	req.Question = r.FormValue("question")
	req.Query = r.FormValue("query")
	req.Mode = r.FormValue("mode")
	req.Model = r.FormValue("model")
	if v := r.FormValue("top_k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid top_k %q", v)
		}
		req.TopK = k
	}

	f, hdr, err := r.FormFile("file")
	if err == http.ErrMissingFile {
		return req, nil
	}
	if err != nil {
		return req, fmt.Errorf("reading file: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return req, fmt.Errorf("reading file: %v", err)
	}
	req.file = &extract.File{Name: hdr.Filename, Data: data}
	return req, nil
}
