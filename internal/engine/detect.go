package engine

import "fmt"

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Backend       string
	OllamaBaseURL string
	OllamaBinary  string
}

// Detect returns the Engine for the configured backend: "http" (or empty)
// talks to the Ollama REST API, "cli" shells out to `ollama run`.
func Detect(cfg DetectConfig) (Engine, error) {
	switch cfg.Backend {
	case "", "http":
		return NewOllamaEngine(cfg.OllamaBaseURL), nil
	case "cli":
		return NewCLIEngine(cfg.OllamaBinary, cfg.OllamaBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown engine backend %q", cfg.Backend)
	}
}
