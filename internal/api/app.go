// Package api exposes the study pipeline over HTTP and MCP.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/studyrag/internal/export"
	"github.com/kalambet/studyrag/internal/pipeline"
	"github.com/kalambet/studyrag/internal/retrieval"
	"github.com/kalambet/studyrag/internal/storage"
)

type AppDeps struct {
	Pipeline *pipeline.Pipeline
	Session  *pipeline.Session
	Token    string
	// Now stamps export file names; nil means time.Now.
	Now func() time.Time
}

func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/index", handleIndex(deps))
		r.Post("/ask", handleAsk(deps))
		r.Post("/recall", handleRecall(deps))
		r.Get("/session", handleSession(deps))
		r.Get("/result", handleResult(deps))
		r.Get("/documents", handleListDocuments(deps))
		r.Delete("/documents/{hash}", handleDeleteDocument(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleIndex(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseStudyRequest(w, r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		info, err := deps.Session.Index(r.Context(), req.source())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, info)
	}
}

func handleAsk(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseStudyRequest(w, r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		res, err := deps.Session.Ask(r.Context(), req.source(), req.ask())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, res)
	}
}

func handleRecall(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseStudyRequest(w, r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		query := req.Query
		if query == "" {
			query = req.Question
		}

		res, err := deps.Pipeline.Recall(r.Context(), query, req.TopK)
		if err != nil {
			writeError(w, err)
			return
		}
		sources := res.Sources
		if sources == nil {
			sources = []retrieval.Source{}
		}
		writeJSON(w, map[string]any{"context": res.Context, "sources": sources})
	}
}

func handleSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.Session.State())
	}
}

func handleResult(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := deps.Session.LastResult()
		if res == nil {
			httpError(w, http.StatusNotFound, "not_found", "no result yet: ask a question first")
			return
		}

		format := r.URL.Query().Get("format")
		body, contentType, err := export.Render(res, format)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		ext := "json"
		if contentType == export.ContentTypeText {
			ext = "txt"
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(deps.Now(), ext)+`"`)
		w.Write(body)
	}
}

func handleListDocuments(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 500)

		docs, err := deps.Pipeline.Documents(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}
		if docs == nil {
			docs = []storage.Document{}
		}
		writeJSON(w, docs)
	}
}

func handleDeleteDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")

		n, err := deps.Pipeline.DeleteDocument(r.Context(), hash)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete document: %v", err)
			return
		}
		deps.Session.Forget(hash)

		writeJSON(w, map[string]any{"status": "deleted", "chunks": n})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
