package app

import (
	"log/slog"
	"time"

	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/core/ports"
)

// recordRun stores a summary of res. A failing store only logs; it never
// fails the run.
func (a *App) recordRun(res ports.GenerateResult, runErr error, logger *slog.Logger) {
	if a.history == nil {
		return
	}
	rec := ports.RunRecord{
		RunID:     res.RunID,
		Module:    res.Module,
		Timestamp: time.Now().UTC(),
		Status:    "success",
		Duration:  res.Duration,
		Stats:     res.Stats,
		Warnings:  len(res.Warnings),
		Opaque:    len(res.Opaque),
	}
	if runErr != nil {
		rec.Status = "failure"
		rec.Stage = string(domainerrors.StageOf(runErr))
		rec.ErrorCode = string(domainerrors.CodeOf(runErr))
	}
	for _, f := range res.Files {
		if f.Written {
			rec.Written++
		} else {
			rec.Unchanged++
		}
	}
	if err := a.history.SaveRun(rec); err != nil {
		logger.Warn("failed to record run history", "error", err)
	}
}

// History returns the configured history store, or nil.
func (a *App) History() ports.HistoryStore {
	return a.history
}
