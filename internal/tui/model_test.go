package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Instinct7439/Athena-V2/internal/domain"
)

func TestHighlightBestSentence(t *testing.T) {
	text := "Cats sleep a lot. Quantum computers use qubits. Dogs bark."
	got := highlightBestSentence(text, "what are qubits")
	want := "Cats sleep a lot. " + highlightStyle.Render("Quantum computers use qubits.") + " Dogs bark."
	if got != want {
		t.Errorf("highlightBestSentence() = %q, want %q", got, want)
	}

	if got := highlightBestSentence(text, "unrelated"); got != text {
		t.Errorf("no overlap should leave text unchanged, got %q", got)
	}
}

func TestEnterRunsSearch(t *testing.T) {
	var gotQuery string
	results := []domain.SearchResult{
		{Chunk: domain.Chunk{DocumentID: "doc", Text: "first"}, Score: 0.8, Distance: 0.25},
		{Chunk: domain.Chunk{DocumentID: "doc", Index: 1, Text: "second"}, Score: 0.5, Distance: 1},
	}
	s := SearcherFunc(func(_ context.Context, q string) ([]domain.SearchResult, error) {
		gotQuery = q
		return results, nil
	})

	m := New(s, Settings{K: 10, MinSimilarity: 0.3, Embedder: "tfidf"}, "")
	m.input.SetValue("  quantum  ")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	if gotQuery != "quantum" {
		t.Errorf("query = %q, want trimmed", gotQuery)
	}
	if len(m.results) != 2 || !strings.Contains(m.status, "2 results") {
		t.Errorf("status = %q, results = %d", m.status, len(m.results))
	}
	if out := m.renderCurrentResult(); !strings.Contains(out, "similarity=0.800") || !strings.Contains(out, "distance=0.250") {
		t.Errorf("render = %q", out)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if next.(Model).cursor != 0 {
		t.Errorf("cursor should wrap to 0")
	}
}

func TestEnterShowsErrorsAndEmptyResults(t *testing.T) {
	tests := []struct {
		name   string
		res    []domain.SearchResult
		err    error
		status string
	}{
		{"error", nil, errors.New("embedding_failure"), "Error: embedding_failure"},
		{"empty", nil, nil, "above similarity 0.30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SearcherFunc(func(context.Context, string) ([]domain.SearchResult, error) { return tt.res, tt.err })
			m := New(s, Settings{K: 5, MinSimilarity: 0.3}, "")
			m.input.SetValue("q")
			next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
			if got := next.(Model).status; !strings.Contains(got, tt.status) {
				t.Errorf("status = %q, want containing %q", got, tt.status)
			}
		})
	}
}
