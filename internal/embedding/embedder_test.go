package embedding

import (
	"context"
	"encoding"
	"testing"

	"github.com/Instinct7439/Athena-V2/internal/config"
	"github.com/Instinct7439/Athena-V2/internal/domain"
)

func TestNew(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "sk-test")
	tests := []struct {
		name     string
		cfg      config.EmbedderConfig
		wantName string
		wantErr  bool
	}{
		{"default", config.EmbedderConfig{}, "tfidf", false},
		{"tfidf", config.EmbedderConfig{Type: "tfidf"}, "tfidf", false},
		{"openai", config.EmbedderConfig{Type: "openai", OpenAI: &config.OpenAIEmbedderConfig{APIKeyEnv: "TEST_EMBED_KEY", Model: "m"}}, "openai:m", false},
		{"ollama", config.EmbedderConfig{Type: "ollama", Ollama: &config.OllamaEmbedderConfig{Model: "nomic"}}, "ollama:nomic", false},
		{"unknown", config.EmbedderConfig{Type: "bert"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if e.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", e.Name(), tt.wantName)
			}
		})
	}
}

func TestRestoreTFIDF(t *testing.T) {
	base, _ := New(config.EmbedderConfig{Type: "tfidf"})
	fitted, err := base.(domain.CorpusFitter).Fit(context.Background(), []string{"alpha beta", "gamma delta"})
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	state, err := fitted.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}

	restored, err := Restore(config.EmbedderConfig{Type: "openai"}, fitted.Name(), state)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored.Dimension() != fitted.Dimension() {
		t.Errorf("Dimension() = %d, want %d", restored.Dimension(), fitted.Dimension())
	}
}

func TestRestoreModelMismatch(t *testing.T) {
	cfg := config.EmbedderConfig{Type: "ollama", Ollama: &config.OllamaEmbedderConfig{Model: "other"}}
	if _, err := Restore(cfg, "ollama:nomic-embed-text", nil); err == nil {
		t.Error("expected error when the configured model differs from the index model")
	}
}
