package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server     ServerConfig
	Ollama     OllamaConfig
	Engine     EngineConfig
	Storage    StorageConfig
	Retrieval  RetrievalConfig
	Embedding  EmbeddingConfig
	Generation GenerationConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port  int
	Token string
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
	Binary     string
}

// EngineConfig selects how the chat model is invoked: "http" talks to the
// Ollama REST API, "cli" runs `ollama run` as a subprocess.
type EngineConfig struct {
	Backend string
}

type StorageConfig struct {
	DataDir string
}

type RetrievalConfig struct {
	TopK         int
	ChunkSize    int
	ChunkOverlap int
	ScopeToNotes bool
}

type EmbeddingConfig struct {
	BatchSize   int
	Concurrency int
	CacheSize   int
}

type GenerationConfig struct {
	Timeout         string
	MaxContextChars int
	VerifyEvidence  bool
}

type LogConfig struct {
	Level string
}

// TimeoutDuration parses Generation.Timeout, falling back to 120s.
func (g GenerationConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(g.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "mistral:7b",
			EmbedModel: "nomic-embed-text",
			Binary:     "ollama",
		},
		Engine: EngineConfig{
			Backend: "http",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			ChunkSize:    900,
			ChunkOverlap: 150,
			ScopeToNotes: true,
		},
		Embedding: EmbeddingConfig{
			BatchSize:   16,
			Concurrency: 1,
			CacheSize:   256,
		},
		Generation: GenerationConfig{
			Timeout:         "120s",
			MaxContextChars: 8000,
			VerifyEvidence:  true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file at
// $XDG_CONFIG_HOME/studyrag/config.json and applies STUDYRAG_* environment
// overrides on top of it.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Retrieval.TopK < 1 {
		return fmt.Errorf("invalid config: retrieval.top_k must be >= 1, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.ChunkSize < 1 {
		return fmt.Errorf("invalid config: retrieval.chunk_size must be >= 1, got %d", cfg.Retrieval.ChunkSize)
	}
	if cfg.Retrieval.ChunkOverlap < 0 || cfg.Retrieval.ChunkOverlap >= cfg.Retrieval.ChunkSize {
		return fmt.Errorf("invalid config: retrieval.chunk_overlap must be in [0, %d), got %d",
			cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	}
	if cfg.Generation.MaxContextChars < 1 {
		return fmt.Errorf("invalid config: generation.max_context_chars must be >= 1, got %d", cfg.Generation.MaxContextChars)
	}
	if _, err := time.ParseDuration(cfg.Generation.Timeout); err != nil {
		return fmt.Errorf("invalid config: generation.timeout %q: %w", cfg.Generation.Timeout, err)
	}
	switch cfg.Engine.Backend {
	case "http", "cli":
	default:
		return fmt.Errorf("invalid config: engine.backend must be \"http\" or \"cli\", got %q", cfg.Engine.Backend)
	}
	return nil
}
