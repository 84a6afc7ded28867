// Package embedding builds the configured embedding provider.
package embedding

import (
	"encoding"
	"fmt"
	"strings"

	"github.com/Instinct7439/Athena-V2/internal/config"
	"github.com/Instinct7439/Athena-V2/internal/domain"
	"github.com/Instinct7439/Athena-V2/internal/embedding/ollama"
	"github.com/Instinct7439/Athena-V2/internal/embedding/openai"
	"github.com/Instinct7439/Athena-V2/internal/embedding/tfidf"
)

// New creates the embedder selected by cfg.Type.
func New(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "", "tfidf":
		return tfidf.NewEmbedder(), nil
	case "openai":
		o := cfg.OpenAI
		if o == nil {
			o = &config.OpenAIEmbedderConfig{}
		}
		return openai.NewClient(openai.Config{
			BaseURL:    o.BaseURL,
			APIKeyEnv:  o.APIKeyEnv,
			Model:      o.Model,
			Dimensions: o.Dimensions,
			Timeout:    o.Timeout(),
		})
	case "ollama":
		o := cfg.Ollama
		if o == nil {
			o = &config.OllamaEmbedderConfig{}
		}
		return ollama.NewClient(ollama.Config{
			BaseURL:    o.BaseURL,
			Model:      o.Model,
			Timeout:    o.Timeout(),
			MaxRetries: o.MaxRetries,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedder type: %s", cfg.Type)
	}
}

// Restore recreates the embedder that built a persisted index. name is the
// embedder's Name() at build time; state is its MarshalBinary output, if any.
func Restore(cfg config.EmbedderConfig, name string, state []byte) (domain.Embedder, error) {
	kind, _, _ := strings.Cut(name, ":")
	cfg.Type = kind
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if e.Name() != name {
		return nil, fmt.Errorf("index was built with %s but config selects %s", name, e.Name())
	}
	if len(state) == 0 {
		return e, nil
	}
	u, ok := e.(encoding.BinaryUnmarshaler)
	if !ok {
		return nil, fmt.Errorf("embedder %s does not accept saved state", name)
	}
	if err := u.UnmarshalBinary(state); err != nil {
		return nil, err
	}
	return e, nil
}
