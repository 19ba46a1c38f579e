package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"wrapgen/internal/core/config"
	"wrapgen/internal/core/ports"
	"wrapgen/internal/data/history"
)

// printHistory lists the newest runs for the configured module, or for
// every module when none is set.
func printHistory(cfg *config.Config, limit int, stdout io.Writer) int {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		slog.Error("failed to open history", "path", cfg.History.Path, "error", err)
		return exitError
	}
	defer store.Close()

	runs, err := history.NewAdapter(store).LoadRuns(cfg.Module.Name, limit)
	if err != nil {
		slog.Error("failed to load history", "error", err)
		return exitError
	}
	fmt.Fprint(stdout, formatHistory(runs))
	return exitOK
}

func formatHistory(runs []ports.RunRecord) string {
	if len(runs) == 0 {
		return statusStyle.Render("no recorded runs") + "\n"
	}
	var b strings.Builder
	for _, run := range runs {
		ts := run.Timestamp.Local().Format(time.DateTime)
		status := successStyle.Render("ok  ")
		detail := fmt.Sprintf("%d classes, %d functions, %d written", run.Stats.Classes, run.Stats.Functions, run.Written)
		if run.Status != "success" {
			status = errorStyle.Render("fail")
			detail = fmt.Sprintf("%s at %s", run.ErrorCode, run.Stage)
		}
		fmt.Fprintf(&b, "%s %s %-16s %s %s\n", ts, status, run.Module, detail,
			statusStyle.Render(run.Duration.Round(time.Millisecond).String()))
	}
	return b.String()
}
