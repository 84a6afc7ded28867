package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NormalizerConfig tunes the text repair pass run before chunking.
type NormalizerConfig struct {
	MaxPasses            int     `yaml:"max_passes"`
	MinRetainedRatio     float64 `yaml:"min_retained_ratio"`
	SplitCaseTransitions bool    `yaml:"split_case_transitions"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize  int      `yaml:"chunk_size"`
	Overlap    int      `yaml:"overlap"`
	Separators []string `yaml:"separators,omitempty"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

func (c *OpenAIEmbedderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// OllamaEmbedderConfig holds configuration for a local Ollama server.
type OllamaEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

func (c *OllamaEmbedderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	BatchSize int                   `yaml:"batch_size"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Ollama    *OllamaEmbedderConfig `yaml:"ollama,omitempty"`
}

// SearchConfig holds the query defaults shared by every search path.
type SearchConfig struct {
	K             int     `yaml:"k"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

// SnapshotConfig selects where built indexes are persisted.
type SnapshotConfig struct {
	Backend string `yaml:"backend"` // bolt|sqlite
	Path    string `yaml:"path"`
}

// VectorStoreConfig selects an optional remote mirror for built indexes.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"` // none|qdrant
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

func (c *QdrantConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// CapabilitiesConfig lists the optional collaborators enabled at startup.
type CapabilitiesConfig struct {
	Extractors []string `yaml:"extractors"`
	Summarizer string   `yaml:"summarizer"`
}

type LogConfig struct {
	Verbose bool `yaml:"verbose"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Normalizer   NormalizerConfig   `yaml:"normalizer"`
	Chunker      ChunkerConfig      `yaml:"chunker"`
	Embedder     EmbedderConfig     `yaml:"embedder"`
	Search       SearchConfig       `yaml:"search"`
	Snapshot     SnapshotConfig     `yaml:"snapshot"`
	VectorStore  VectorStoreConfig  `yaml:"vector_store"`
	Summarizer   SummarizerConfig   `yaml:"summarizer"`
	Capabilities CapabilitiesConfig `yaml:"capabilities"`
	Log          LogConfig          `yaml:"log"`
}

// DefaultConfig returns the configuration used when no file is present. Build
// and query paths both read their chunking and search defaults from here.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Normalizer: NormalizerConfig{MaxPasses: 15, MinRetainedRatio: 0.2},
		Chunker:    ChunkerConfig{ChunkSize: 500, Overlap: 100},
		Embedder:   EmbedderConfig{Type: "tfidf", BatchSize: 32},
		Search:     SearchConfig{K: 10, MinSimilarity: 0.3},
		Snapshot:   SnapshotConfig{Backend: "bolt", Path: "~/.cache/athena/index.db"},
		VectorStore: VectorStoreConfig{
			Type: "none",
		},
		Summarizer:   SummarizerConfig{Type: "frequency", MaxSentences: 5},
		Capabilities: CapabilitiesConfig{Extractors: []string{"text"}, Summarizer: "frequency"},
	}
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/athena/config.yaml.
// If neither exists, it writes defaults to ~/.config/athena/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, DefaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "athena", "config.yaml"), nil
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	switch cfg.Embedder.Type {
	case "openai":
		o := cfg.openAI()
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	case "ollama":
		o := cfg.ollama()
		if o.BaseURL == "" {
			o.BaseURL = "http://localhost:11434"
		}
		if o.Model == "" {
			o.Model = "nomic-embed-text"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 5
		}
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "none"
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.Collection == "" {
			q.Collection = "athena"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 10
		}
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}
	if cfg.Capabilities.Summarizer == "" {
		cfg.Capabilities.Summarizer = cfg.Summarizer.Type
	}
	cfg.Snapshot.Path = ExpandPath(cfg.Snapshot.Path)
}

func (cfg *AppConfig) openAI() *OpenAIEmbedderConfig {
	if cfg.Embedder.OpenAI == nil {
		cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
	}
	return cfg.Embedder.OpenAI
}

func (cfg *AppConfig) ollama() *OllamaEmbedderConfig {
	if cfg.Embedder.Ollama == nil {
		cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
	}
	return cfg.Embedder.Ollama
}

func (cfg *AppConfig) qdrant() *QdrantConfig {
	if cfg.VectorStore.Qdrant == nil {
		cfg.VectorStore.Qdrant = &QdrantConfig{}
	}
	return cfg.VectorStore.Qdrant
}

// Validate reports the first invalid setting.
func (cfg *AppConfig) Validate() error {
	if r := cfg.Normalizer.MinRetainedRatio; math.IsNaN(r) || r < 0 || r > 1 {
		return fmt.Errorf("normalizer.min_retained_ratio must be in [0, 1], got %v", r)
	}
	if cfg.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("chunker.chunk_size must be greater than 0")
	}
	if cfg.Chunker.Overlap < 0 || cfg.Chunker.Overlap >= cfg.Chunker.ChunkSize {
		return fmt.Errorf("chunker.overlap must be in [0, chunk_size)")
	}
	switch cfg.Embedder.Type {
	case "tfidf", "openai", "ollama":
	default:
		return fmt.Errorf("invalid embedder type: %s (must be one of: tfidf, openai, ollama)", cfg.Embedder.Type)
	}
	if cfg.Embedder.BatchSize < 1 {
		return fmt.Errorf("embedder.batch_size must be greater than 0")
	}
	if cfg.Search.K < 1 {
		return fmt.Errorf("search.k must be greater than 0")
	}
	if m := cfg.Search.MinSimilarity; math.IsNaN(m) || m < 0 || m > 1 {
		return fmt.Errorf("search.min_similarity must be in [0, 1], got %v", m)
	}
	switch cfg.Snapshot.Backend {
	case "bolt", "sqlite":
	default:
		return fmt.Errorf("invalid snapshot backend: %s (must be one of: bolt, sqlite)", cfg.Snapshot.Backend)
	}
	switch cfg.VectorStore.Type {
	case "none":
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil || cfg.VectorStore.Qdrant.URL == "" {
			return fmt.Errorf("vector_store.qdrant.url is required for the qdrant mirror")
		}
	default:
		return fmt.Errorf("invalid vector store type: %s (must be one of: none, qdrant)", cfg.VectorStore.Type)
	}
	return nil
}
