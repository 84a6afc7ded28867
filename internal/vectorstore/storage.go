package vectorstore

import (
	"context"

	"github.com/Instinct7439/Athena-V2/internal/domain"
)

// Mirror copies a built index to an external vector database and queries it.
// The in-process Index stays the source of truth.
type Mirror interface {
	Publish(ctx context.Context, idx *Index) error
	Search(ctx context.Context, query domain.Vector, k int) ([]Hit, error)
}
