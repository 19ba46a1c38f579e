package app

import (
	"context"
	"log/slog"

	"wrapgen/internal/core/ports"
	"wrapgen/internal/core/watcher"
	"wrapgen/internal/shared/util"
)

// Plan produces the requests for one watch-mode run. It is called again
// after every change so edits to the config file take effect.
type Plan func() ([]ports.GenerateRequest, error)

// Watch regenerates whenever an input of the initial plan changes, until ctx
// is done. Bursts are debounced by the watcher and runs are spaced by
// watch.rate. Each run is reported through the update handler.
func (a *App) Watch(ctx context.Context, plan Plan, extra ...string) error {
	reqs, err := plan()
	if err != nil {
		return err
	}

	changes := make(chan []string, 1)
	var pending []string
	w, err := watcher.NewWatcher(a.Config.Watch.Debounce, a.Config.Watch.Exclude, func(paths []string) {
		a.invalidateCaches(paths)
		select {
		case changes <- paths:
		default:
			// A run is already queued; it will see these files too.
			slog.Debug("change coalesced", "paths", paths)
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	inputs := append(WatchInputs(reqs), extra...)
	if err := w.Watch(inputs); err != nil {
		return err
	}
	slog.Info("watching inputs", "count", len(inputs))

	limiter := util.NewIntervalLimiter(a.Config.Watch.Rate, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case pending = <-changes:
		}
		if !limiter.Allow(1) {
			slog.Debug("regeneration throttled", "rate", a.Config.Watch.Rate)
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		slog.Info("inputs changed, regenerating", "paths", pending)
		next, err := plan()
		if err != nil {
			a.emitUpdate(Update{Changed: pending, Err: err})
			continue
		}
		results, err := a.GenerateAll(ctx, next)
		a.emitUpdate(Update{Changed: pending, Results: results, Err: err})
	}
}
