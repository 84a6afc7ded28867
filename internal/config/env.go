package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// applyEnvOverrides lets ATHENA_* variables override file settings.
func applyEnvOverrides(cfg *AppConfig) error {
	envMappings := map[string]func(string) error{
		"ATHENA_CHUNK_SIZE":    func(v string) error { return parseInt(v, &cfg.Chunker.ChunkSize) },
		"ATHENA_CHUNK_OVERLAP": func(v string) error { return parseInt(v, &cfg.Chunker.Overlap) },

		"ATHENA_EMBEDDER_TYPE":       func(v string) error { cfg.Embedder.Type = v; return nil },
		"ATHENA_EMBEDDER_BATCH_SIZE": func(v string) error { return parseInt(v, &cfg.Embedder.BatchSize) },
		"ATHENA_OPENAI_BASE_URL":     func(v string) error { cfg.openAI().BaseURL = v; return nil },
		"ATHENA_OPENAI_MODEL":        func(v string) error { cfg.openAI().Model = v; return nil },
		"ATHENA_OLLAMA_BASE_URL":     func(v string) error { cfg.ollama().BaseURL = v; return nil },
		"ATHENA_OLLAMA_MODEL":        func(v string) error { cfg.ollama().Model = v; return nil },

		"ATHENA_SEARCH_K":              func(v string) error { return parseInt(v, &cfg.Search.K) },
		"ATHENA_SEARCH_MIN_SIMILARITY": func(v string) error { return parseFloat(v, &cfg.Search.MinSimilarity) },

		"ATHENA_SNAPSHOT_BACKEND": func(v string) error { cfg.Snapshot.Backend = v; return nil },
		"ATHENA_SNAPSHOT_PATH":    func(v string) error { cfg.Snapshot.Path = v; return nil },

		"ATHENA_QDRANT_URL":        func(v string) error { cfg.qdrant().URL = v; return nil },
		"ATHENA_QDRANT_API_KEY":    func(v string) error { cfg.qdrant().APIKey = v; return nil },
		"ATHENA_QDRANT_COLLECTION": func(v string) error { cfg.qdrant().Collection = v; return nil },

		"ATHENA_LOG_VERBOSE": func(v string) error { return parseBool(v, &cfg.Log.Verbose) },
	}

	for envVar, setter := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			if err := setter(value); err != nil {
				return fmt.Errorf("invalid value for %s: %w", envVar, err)
			}
		}
	}

	// comma-separated list
	if exts := os.Getenv("ATHENA_EXTRACTORS"); exts != "" {
		cfg.Capabilities.Extractors = nil
		for _, name := range strings.Split(exts, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Capabilities.Extractors = append(cfg.Capabilities.Extractors, name)
			}
		}
	}
	return nil
}

func parseInt(s string, dst *int) error {
	val, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseFloat(s string, dst *float64) error {
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseBool(s string, dst *bool) error {
	val, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}
