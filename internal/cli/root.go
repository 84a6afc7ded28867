// Package cli implements the athena command line.
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Instinct7439/Athena-V2/internal/config"
	"github.com/Instinct7439/Athena-V2/internal/logger"
)

var (
	cfgFile string
	verbose bool

	appCfg *config.AppConfig
	appLog = logger.Nop()
)

// NewRootCommand creates the root command
func NewRootCommand(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "athena",
		Short: "Semantic search over your documents",
		Long: `Athena repairs extracted document text, splits it into overlapping chunks,
embeds each chunk and answers free-text queries with the most similar chunks.

Indexes are saved to a local snapshot (bbolt or SQLite) so searches do not
re-embed the corpus, and can optionally be mirrored to Qdrant.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return loadConfig(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./config.yaml or ~/.config/athena/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(newNormalizeCommand())
	rootCmd.AddCommand(newChunkCommand())
	rootCmd.AddCommand(newIngestCommand())
	rootCmd.AddCommand(newSearchCommand())
	rootCmd.AddCommand(newInteractiveCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, date))

	return rootCmd
}

func loadConfig(cmd *cobra.Command) error {
	var (
		cfg  *config.AppConfig
		path = cfgFile
		err  error
	)
	if path == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Log.Verbose = true
	}
	appCfg = cfg
	appLog = logger.New("athena", cfg.Log.Verbose)
	appLog.SetOutput(cmd.ErrOrStderr())
	appLog.Debug("config loaded", logger.F("path", path))
	return nil
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			if version == "dev" || version == "" {
				version = "development"
			}
			if commit == "none" || commit == "" {
				commit = "local-build"
			}
			if date == "unknown" || date == "" {
				date = "local-build"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Athena %s (%s) built on %s\n", version, commit, date)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
