package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrModelMissing is returned by EnsureReady when a required model is not
// available locally.
var ErrModelMissing = errors.New("model not available")

// EnsureReady checks that the Engine is reachable and that the chat and
// embedding models are available, writing one status line per model to w.
// Models are never pulled; a missing one is reported with the command that
// fetches it.
func EnsureReady(ctx context.Context, e Engine, chatModel, embedModel string, w io.Writer) error {
	if !e.IsRunning(ctx) {
		return fmt.Errorf("Ollama is not running. Start it with: ollama serve")
	}

	models := make([]string, 0, 2)
	if chatModel != "" {
		models = append(models, chatModel)
	}
	if embedModel != "" && embedModel != chatModel {
		models = append(models, embedModel)
	}

	var missing []string
	for _, model := range models {
		if !e.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: missing\n", model)
			missing = append(missing, model)
			continue
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}
	if len(missing) == 0 {
		return nil
	}

	pulls := make([]string, len(missing))
	for i, m := range missing {
		pulls[i] = "ollama pull " + m
	}
	return fmt.Errorf("%w: %s. Fetch with: %s", ErrModelMissing, strings.Join(missing, ", "), strings.Join(pulls, " && "))
}
