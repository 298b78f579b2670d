package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kalambet/studyrag/internal/engine"
	"github.com/kalambet/studyrag/internal/grounded"
	"github.com/kalambet/studyrag/internal/pipeline"
	"github.com/kalambet/studyrag/internal/storage"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// writeError maps a pipeline error to a status code and error type. The
// message is the full error text.
func writeError(w http.ResponseWriter, err error) {
	code, errType := http.StatusInternalServerError, "api_error"
	switch {
	case pipeline.IsUserError(err):
		code, errType = http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, storage.ErrNotFound):
		code, errType = http.StatusNotFound, "not_found"
	case errors.Is(err, engine.ErrTimeout):
		code, errType = http.StatusGatewayTimeout, "timeout_error"
	case errors.Is(err, grounded.ErrMalformedOutput):
		code, errType = http.StatusBadGateway, "model_output_error"
	case errors.Is(err, engine.ErrRunnerFailed):
		code, errType = http.StatusBadGateway, "runner_error"
	}
	if code >= 500 {
		slog.Error("api: request failed", "status", code, "error", err)
	}
	httpError(w, code, errType, "%s", err.Error())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}
