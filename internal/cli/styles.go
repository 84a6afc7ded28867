package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Instinct7439/Athena-V2/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	scoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

const previewRunes = 72

// preview flattens whitespace and truncates to n runes.
func preview(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	r := []rune(flat)
	if len(r) <= n {
		return flat
	}
	return string(r[:n-1]) + "…"
}

func printResults(w io.Writer, results []domain.SearchResult, sources map[string]string) {
	for i, r := range results {
		src := r.Chunk.DocumentID
		if s, ok := sources[src]; ok {
			src = s
		}
		fmt.Fprintf(w, "%s %s %s\n",
			titleStyle.Render(fmt.Sprintf("%2d.", i+1)),
			scoreStyle.Render(fmt.Sprintf("%.3f", r.Score)),
			dimStyle.Render(fmt.Sprintf("distance=%.3f %s #%d", r.Distance, src, r.Chunk.Index)),
		)
		fmt.Fprintf(w, "    %s\n", preview(r.Chunk.Text, 240))
	}
}
