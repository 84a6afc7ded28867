package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Instinct7439/Athena-V2/internal/logger"
	"github.com/Instinct7439/Athena-V2/internal/service"
	"github.com/Instinct7439/Athena-V2/internal/watch"
)

func newWatchCommand() *cobra.Command {
	var db string

	cmd := &cobra.Command{
		Use:   "watch <paths...>",
		Short: "Rebuild and save the index whenever documents change",
		Long: `Build the index once, then watch the given files and directories and rebuild
it after every change. Each rebuild replaces the saved snapshot.

Press Ctrl+C to stop watching.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			caps, err := resolveCapabilities()
			if err != nil {
				return err
			}
			p, err := newPipeline()
			if err != nil {
				return err
			}

			w, err := watch.New(watch.Config{
				Paths: args,
				Rebuild: func(ctx context.Context) (*service.Corpus, error) {
					docs, err := collectDocuments(ctx, caps, args)
					if err != nil {
						return nil, err
					}
					return p.Ingest(ctx, docs...)
				},
				OnRebuild: func(c *service.Corpus) {
					if err := saveCorpus(ctx, c, db); err != nil {
						appLog.Error("failed to save snapshot", logger.Error(err))
						return
					}
					fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(fmt.Sprintf("%s indexed %d chunks from %d documents",
						c.BuiltAt.Format("15:04:05"), c.Index.Len(), len(c.Documents))))
				},
				Filter: caps.Supports,
				Log:    appLog.WithComponent("watch"),
			})
			if err != nil {
				return err
			}
			defer w.Close()

			if err := w.Rebuild(ctx); err != nil {
				return err
			}
			appLog.Info("watching for changes", logger.F("paths", args))
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "snapshot path (default from config)")
	return cmd
}
