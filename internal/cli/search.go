package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Instinct7439/Athena-V2/internal/domain"
	"github.com/Instinct7439/Athena-V2/internal/logger"
	"github.com/Instinct7439/Athena-V2/internal/observer"
	"github.com/Instinct7439/Athena-V2/internal/scoring"
	"github.com/Instinct7439/Athena-V2/internal/service"
	"github.com/Instinct7439/Athena-V2/internal/summarizer"
)

func newSearchCommand() *cobra.Command {
	var (
		db            string
		k             int
		minSimilarity float64
		summarize     bool
		trace         bool
		remote        bool
	)

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Query a saved index",
		Example: `  athena search quantum error correction
  athena search -k 3 --min-similarity 0.5 "release date"
  athena search --summarize --trace solar power`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flag("k").Changed {
				k = appCfg.Search.K
			}
			if !cmd.Flag("min-similarity").Changed {
				minSimilarity = appCfg.Search.MinSimilarity
			}
			query := strings.Join(args, " ")
			ctx := cmd.Context()

			corpus, err := loadCorpus(ctx, db)
			if err != nil {
				return err
			}

			var opts []service.Option
			if trace {
				tl := logger.New("athena", true)
				tl.SetOutput(cmd.ErrOrStderr())
				opts = append(opts, service.WithObserver(observer.NewLogObserver(tl)))
			}
			opts = append(opts, service.WithLogger(appLog.WithComponent("search")))

			var results []domain.SearchResult
			if remote {
				results, err = remoteSearch(ctx, corpus, query, k, minSimilarity)
			} else {
				results, err = corpus.SearchWithThreshold(ctx, query, k, minSimilarity, opts...)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("no results above similarity %.2f", minSimilarity)))
				return nil
			}
			printResults(out, results, documentSources(corpus))

			if summarize {
				caps, err := resolveCapabilities()
				if err != nil {
					return err
				}
				if caps.Summarizer == nil {
					return fmt.Errorf("no summarizer enabled in capabilities")
				}
				summary, err := summarizer.SummarizeResults(ctx, caps.Summarizer, results, appCfg.Summarizer.MaxSentences)
				if err != nil {
					return fmt.Errorf("summarize: %w", err)
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, titleStyle.Render("Summary"))
				fmt.Fprintln(out, summary)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "snapshot path (default from config)")
	cmd.Flags().IntVarP(&k, "k", "k", 10, "number of nearest chunks to consider")
	cmd.Flags().Float64Var(&minSimilarity, "min-similarity", 0.3, "drop results scoring below this value")
	cmd.Flags().BoolVar(&summarize, "summarize", false, "summarize the retrieved chunks")
	cmd.Flags().BoolVar(&trace, "trace", false, "log pipeline events to stderr")
	cmd.Flags().BoolVar(&remote, "remote", false, "query the Qdrant mirror instead of the local index")
	return cmd
}

// remoteSearch embeds the query locally and ranks the mirror's hits the same
// way local hits are ranked.
func remoteSearch(ctx context.Context, corpus *service.Corpus, query string, k int, minSimilarity float64) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, domain.NewError(domain.KindInvalidParams, "search", "k must be positive, got %d", k)
	}
	if _, err := scoring.FilterByThreshold(nil, minSimilarity); err != nil {
		return nil, err
	}
	client, err := qdrantClient()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		appLog.WithComponent("search").Warn("empty query, returning no results")
		return []domain.SearchResult{}, nil
	}
	vec, err := corpus.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.KindEmbeddingFailure, "search", err, "embed query")
	}
	hits, err := client.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	return scoring.FilterByThreshold(scoring.Rank(hits), minSimilarity)
}
