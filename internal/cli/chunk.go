package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Instinct7439/Athena-V2/internal/chunker"
)

func newChunkCommand() *cobra.Command {
	var (
		size    int
		overlap int
		raw     bool
	)

	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Show how a document is split into chunks",
		Example: `  athena chunk notes.txt
  athena chunk --size 300 --overlap 50 notes.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flag("size").Changed {
				size = appCfg.Chunker.ChunkSize
			}
			if !cmd.Flag("overlap").Changed {
				overlap = appCfg.Chunker.Overlap
			}
			caps, err := resolveCapabilities()
			if err != nil {
				return err
			}
			doc, err := caps.Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !raw {
				doc.Content = newNormalizer().Normalize(doc.Content)
			}
			c, err := chunker.NewRecursiveChunker(size, overlap, appCfg.Chunker.Separators)
			if err != nil {
				return err
			}
			chunks, err := c.Chunk(doc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%5s %7s %6s %7s  %s", "#", "offset", "length", "overlap", "text")))
			for _, ch := range chunks {
				fmt.Fprintf(out, "%5d %7d %6d %7d  %s\n", ch.Index, ch.Offset, ch.Length, ch.Overlap, preview(ch.Text, previewRunes))
			}
			fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%d chunks (size %d, overlap %d)", len(chunks), size, overlap)))
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "size", chunker.DefaultChunkSize, "maximum chunk length in runes")
	cmd.Flags().IntVar(&overlap, "overlap", chunker.DefaultOverlap, "runes repeated from the previous chunk")
	cmd.Flags().BoolVar(&raw, "raw", false, "skip text normalization")
	return cmd
}
