package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Instinct7439/Athena-V2/internal/logger"
	"github.com/Instinct7439/Athena-V2/internal/service"
)

func newIngestCommand() *cobra.Command {
	var (
		db      string
		publish bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <paths...>",
		Short: "Build an index from documents and save it",
		Long: `Extract, normalize, chunk and embed the given files, directories or glob
patterns, then save the resulting index as a snapshot.

An existing snapshot at the same location is replaced.`,
		Example: `  athena ingest ./docs
  athena ingest --db ./athena.db "notes/*.md"
  athena ingest --publish ./docs`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			caps, err := resolveCapabilities()
			if err != nil {
				return err
			}
			docs, err := collectDocuments(ctx, caps, args)
			if err != nil {
				return err
			}
			p, err := newPipeline()
			if err != nil {
				return err
			}
			corpus, err := p.Ingest(ctx, docs...)
			if err != nil {
				return err
			}
			if err := saveCorpus(ctx, corpus, db); err != nil {
				return fmt.Errorf("save snapshot: %w", err)
			}
			printIngestSummary(cmd, corpus)

			if publish {
				client, err := qdrantClient()
				if err != nil {
					return err
				}
				start := time.Now()
				if err := client.Publish(ctx, corpus.Index); err != nil {
					return fmt.Errorf("publish to qdrant: %w", err)
				}
				appLog.Info("published to qdrant", logger.Count(corpus.Index.Len()), logger.Duration(time.Since(start)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "snapshot path (default from config)")
	cmd.Flags().BoolVar(&publish, "publish", false, "mirror the index to the configured Qdrant collection")
	return cmd
}

func printIngestSummary(cmd *cobra.Command, corpus *service.Corpus) {
	out := cmd.OutOrStdout()
	for _, d := range corpus.Documents {
		note := ""
		switch {
		case d.Skipped:
			note = warnStyle.Render(" skipped: no text")
		case d.Reverted:
			note = warnStyle.Render(" cleanup reverted")
		}
		fmt.Fprintf(out, "%-6s %4d chunks %7d runes  %s%s\n", d.Size, d.Chunks, d.Runes, d.Source, note)
	}
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("indexed %d chunks from %d documents with %s (dimension %d)",
		corpus.Index.Len(), len(corpus.Documents), corpus.Embedder.Name(), corpus.Index.Dimension())))
}
