package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "STUDYRAG_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "STUDYRAG_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "ollama.base_url", typ: kString, env: "STUDYRAG_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "STUDYRAG_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "STUDYRAG_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "ollama.binary", typ: kString, env: "STUDYRAG_OLLAMA_BINARY",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Binary = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Binary },
	},
	{
		key: "engine.backend", typ: kString, env: "STUDYRAG_ENGINE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Engine.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.Backend },
	},
	{
		key: "storage.data_dir", typ: kString, env: "STUDYRAG_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "STUDYRAG_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "retrieval.chunk_size", typ: kInt, env: "STUDYRAG_RETRIEVAL_CHUNK_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.ChunkSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.ChunkSize },
	},
	{
		key: "retrieval.chunk_overlap", typ: kInt, env: "STUDYRAG_RETRIEVAL_CHUNK_OVERLAP",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.ChunkOverlap = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.ChunkOverlap },
	},
	{
		key: "retrieval.scope_to_notes", typ: kBool, env: "STUDYRAG_RETRIEVAL_SCOPE_TO_NOTES",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.ScopeToNotes = v.(bool) },
		extract: func(cfg Config) any { return cfg.Retrieval.ScopeToNotes },
	},
	{
		key: "embedding.batch_size", typ: kInt, env: "STUDYRAG_EMBEDDING_BATCH_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Embedding.BatchSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Embedding.BatchSize },
	},
	{
		key: "embedding.concurrency", typ: kInt, env: "STUDYRAG_EMBEDDING_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Embedding.Concurrency },
	},
	{
		key: "embedding.cache_size", typ: kInt, env: "STUDYRAG_EMBEDDING_CACHE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Embedding.CacheSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Embedding.CacheSize },
	},
	{
		key: "generation.timeout", typ: kString, env: "STUDYRAG_GENERATION_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Generation.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.Timeout },
	},
	{
		key: "generation.max_context_chars", typ: kInt, env: "STUDYRAG_GENERATION_MAX_CONTEXT_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Generation.MaxContextChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.MaxContextChars },
	},
	{
		key: "generation.verify_evidence", typ: kBool, env: "STUDYRAG_GENERATION_VERIFY_EVIDENCE",
		apply:   func(cfg *Config, v any) { cfg.Generation.VerifyEvidence = v.(bool) },
		extract: func(cfg Config) any { return cfg.Generation.VerifyEvidence },
	},
	{
		key: "log.level", typ: kString, env: "STUDYRAG_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
