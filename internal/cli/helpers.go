package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/Instinct7439/Athena-V2/internal/capability"
	"github.com/Instinct7439/Athena-V2/internal/config"
	"github.com/Instinct7439/Athena-V2/internal/domain"
	"github.com/Instinct7439/Athena-V2/internal/extract"
	"github.com/Instinct7439/Athena-V2/internal/logger"
	"github.com/Instinct7439/Athena-V2/internal/normalizer"
	"github.com/Instinct7439/Athena-V2/internal/service"
	"github.com/Instinct7439/Athena-V2/internal/snapshot"
	"github.com/Instinct7439/Athena-V2/internal/vectorstore/qdrant"
)

func resolveCapabilities() (*capability.Set, error) {
	set, err := capability.Default().Resolve(appCfg.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("capabilities: %w", err)
	}
	return set, nil
}

func newPipeline(opts ...service.Option) (*service.Pipeline, error) {
	opts = append([]service.Option{service.WithLogger(appLog.WithComponent("pipeline"))}, opts...)
	return service.NewPipelineFromConfig(appCfg, opts...)
}

// collectDocuments expands patterns and extracts every supported file.
// Unsupported and empty files are skipped; read errors abort.
func collectDocuments(ctx context.Context, caps *capability.Set, patterns []string) ([]domain.Document, error) {
	paths, err := extract.ExpandPaths(patterns)
	if err != nil {
		return nil, err
	}
	var docs []domain.Document
	for _, p := range paths {
		if !caps.Supports(p) {
			appLog.Debug("skipping unsupported file", logger.F("path", p))
			continue
		}
		doc, err := caps.Extract(ctx, p)
		if errors.Is(err, domain.ErrEmptyInput) {
			appLog.Warn("empty document, skipping", logger.F("path", p))
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no supported documents found in %v", patterns)
	}
	return docs, nil
}

func snapshotConfig(db string) config.SnapshotConfig {
	cfg := appCfg.Snapshot
	if db != "" {
		cfg.Path = config.ExpandPath(db)
	}
	return cfg
}

func saveCorpus(ctx context.Context, corpus *service.Corpus, db string) error {
	snap, err := snapshot.Capture(corpus)
	if err != nil {
		return err
	}
	store, err := snapshot.Open(snapshotConfig(db))
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(ctx, snap)
}

func loadCorpus(ctx context.Context, db string) (*service.Corpus, error) {
	cfg := snapshotConfig(db)
	store, err := snapshot.Open(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	snap, err := store.Load(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return nil, fmt.Errorf("no index at %s, run `athena ingest` first", cfg.Path)
	}
	if err != nil {
		return nil, err
	}
	return snapshot.RestoreCorpus(snap, appCfg.Embedder)
}

func qdrantClient() (*qdrant.Client, error) {
	q := appCfg.VectorStore.Qdrant
	if appCfg.VectorStore.Type != "qdrant" || q == nil {
		return nil, errors.New("vector_store.type must be qdrant to use the remote mirror")
	}
	return qdrant.NewClient(qdrant.Config{
		URL:        q.URL,
		APIKey:     q.APIKey,
		Collection: q.Collection,
		Timeout:    q.Timeout(),
	}), nil
}

func newNormalizer() *normalizer.Normalizer {
	return normalizer.New(normalizer.Options{
		MaxPasses:            appCfg.Normalizer.MaxPasses,
		MinRetainedRatio:     appCfg.Normalizer.MinRetainedRatio,
		SplitCaseTransitions: appCfg.Normalizer.SplitCaseTransitions,
	})
}

func documentSources(corpus *service.Corpus) map[string]string {
	m := make(map[string]string, len(corpus.Documents))
	for _, d := range corpus.Documents {
		m[d.ID] = d.Source
	}
	return m
}
