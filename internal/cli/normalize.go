package cli

import (
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"
)

func newNormalizeCommand() *cobra.Command {
	var stats bool

	cmd := &cobra.Command{
		Use:   "normalize <file>",
		Short: "Print the repaired text of a document",
		Long: `Repair extraction artifacts such as letter-spaced ("M a y  2 0 2 5") runs
and missing spaces after punctuation, and print the result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caps, err := resolveCapabilities()
			if err != nil {
				return err
			}
			doc, err := caps.Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res := newNormalizer().Run(doc.Content)
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)

			if stats {
				fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render(fmt.Sprintf("runes %d -> %d, passes %d",
					utf8.RuneCountInString(doc.Content), utf8.RuneCountInString(res.Text), res.Passes)))
			}
			if res.Reverted {
				fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("cleanup removed too much text, original kept"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&stats, "stats", false, "print rune counts and pass count to stderr")
	return cmd
}
