package cli

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Instinct7439/Athena-V2/internal/domain"
	"github.com/Instinct7439/Athena-V2/internal/logger"
	"github.com/Instinct7439/Athena-V2/internal/tui"
)

func newInteractiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "interactive <paths...>",
		Aliases: []string{"tui"},
		Short:   "Index documents in memory and search them interactively",
		Args:    cobra.MinimumNArgs(1),
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

			summary := ""
			if caps.Summarizer != nil {
				texts := make([]string, len(docs))
				for i, d := range docs {
					texts[i] = d.Content
				}
				summary, err = caps.Summarizer.Summarize(ctx, strings.Join(texts, "\n"), appCfg.Summarizer.MaxSentences)
				if err != nil {
					appLog.Warn("summary failed", logger.Error(err))
				}
			}

			searcher := tui.SearcherFunc(func(ctx context.Context, q string) ([]domain.SearchResult, error) {
				return p.Query(ctx, corpus, q)
			})
			m := tui.New(searcher, tui.Settings{
				K:             appCfg.Search.K,
				MinSimilarity: appCfg.Search.MinSimilarity,
				Embedder:      corpus.Embedder.Name(),
			}, summary)
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
}
