package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Instinct7439/Athena-V2/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTextExtractor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	writeFile(t, path, "quantum computing notes")

	doc, err := NewTextExtractor().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if doc.Content != "quantum computing notes" || doc.Source != path {
		t.Errorf("Extract() = %+v", doc)
	}
	if doc.ID != DocumentID(path) || len(doc.ID) != 16 {
		t.Errorf("ID = %q", doc.ID)
	}
}

func TestTextExtractorErrors(t *testing.T) {
	dir := t.TempDir()
	blank := filepath.Join(dir, "blank.md")
	writeFile(t, blank, " \n\t ")

	_, err := NewTextExtractor().Extract(context.Background(), blank)
	if !errors.Is(err, domain.ErrEmptyInput) {
		t.Errorf("blank file error = %v, want EmptyInput", err)
	}

	_, err = NewTextExtractor().Extract(context.Background(), filepath.Join(dir, "missing.txt"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want not-exist", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewTextExtractor().Extract(ctx, blank); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled error = %v", err)
	}
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.md")
	nested := filepath.Join(dir, "sub", "c.txt")
	hidden := filepath.Join(dir, ".git", "HEAD")
	for _, p := range []string{a, b, nested, hidden} {
		writeFile(t, p, "x")
	}
	missing := filepath.Join(dir, "nope.txt")

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{"glob", []string{filepath.Join(dir, "*.txt")}, []string{a}},
		{"directory walk skips hidden", []string{dir}, []string{a, b, nested}},
		{"duplicates removed", []string{a, a, filepath.Join(dir, "a.*")}, []string{a}},
		{"missing kept verbatim", []string{missing}, []string{missing}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPaths(tt.patterns)
			if err != nil {
				t.Fatalf("ExpandPaths() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandPaths() = %v, want %v", got, tt.want)
			}
		})
	}
}
