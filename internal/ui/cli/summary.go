package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"wrapgen/internal/core/ports"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// formatSummary renders the outcome of one GenerateAll call. Results with
// an empty RunID never started and are skipped.
func formatSummary(results []ports.GenerateResult, err error, elapsed time.Duration) string {
	var b strings.Builder
	rule := strings.Repeat("-", 40)
	b.WriteString(rule + "\n")

	for _, res := range results {
		if res.RunID == "" {
			continue
		}
		stats := res.Stats
		b.WriteString(successStyle.Render("✅ "+res.Module) + fmt.Sprintf(
			": %d modules, %d classes, %d methods, %d functions, %d enums\n",
			stats.Modules, stats.Classes, stats.Methods, stats.Functions, stats.Enums))
		for _, f := range res.Files {
			state := "written"
			if !f.Written {
				state = "unchanged"
			}
			b.WriteString(fmt.Sprintf("   %s %s\n", f.Path, statusStyle.Render("("+state+")")))
		}
		if n := len(res.Warnings); n > 0 {
			b.WriteString(warningStyle.Render(fmt.Sprintf("⚠️  %d symbols without documentation", n)) + "\n")
		}
		if n := len(res.Opaque); n > 0 {
			b.WriteString(statusStyle.Render(fmt.Sprintf("   %d opaque types: %s", n, strings.Join(res.Opaque, ", "))) + "\n")
		}
	}

	if err != nil {
		b.WriteString(errorStyle.Render("❌ generation failed") + "\n")
		b.WriteString("   " + err.Error() + "\n")
	}
	if elapsed > 0 {
		b.WriteString(statusStyle.Render(fmt.Sprintf("done in %v", elapsed.Round(time.Millisecond))) + "\n")
	}
	b.WriteString(rule + "\n")
	return b.String()
}
