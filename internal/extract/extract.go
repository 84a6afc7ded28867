// Package extract turns files on disk into documents for ingestion.
package extract

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Instinct7439/Athena-V2/internal/domain"
)

// Extractor reads one file into a document.
type Extractor interface {
	Extract(ctx context.Context, path string) (domain.Document, error)
	// Extensions lists the lower-case file extensions handled, with the dot.
	Extensions() []string
}

// TextExtractor reads plain text and markdown files as-is.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

func (TextExtractor) Extensions() []string { return []string{".txt", ".md"} }

func (TextExtractor) Extract(ctx context.Context, path string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return domain.Document{}, domain.NewError(domain.KindEmptyInput, "extract", "%s has no text", path)
	}
	return domain.Document{ID: DocumentID(path), Source: path, Content: string(data)}, nil
}

// DocumentID derives a stable short id from a file path.
func DocumentID(path string) string {
	h := sha1.Sum([]byte(path))
	return hex.EncodeToString(h[:8])
}

// ExpandPaths resolves glob patterns and walks directories. Patterns with no
// match are kept verbatim so the caller reports the missing file. The result
// is sorted and free of duplicates.
func ExpandPaths(patterns []string) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if matches == nil {
			matches = []string{pattern}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.IsDir() {
				add(m)
				continue
			}
			err = filepath.WalkDir(m, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					if p != m && strings.HasPrefix(d.Name(), ".") {
						return filepath.SkipDir
					}
					return nil
				}
				add(p)
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Ext returns the lower-cased extension of path.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
