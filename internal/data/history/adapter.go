package history

import (
	"time"

	"wrapgen/internal/core/ports"
	"wrapgen/internal/engine/binding"
)

// Adapter bridges Store to the core HistoryStore port.
type Adapter struct {
	store *Store
}

var _ ports.HistoryStore = (*Adapter)(nil)

func NewAdapter(store *Store) *Adapter {
	return &Adapter{store: store}
}

func (a *Adapter) SaveRun(rec ports.RunRecord) error {
	return a.store.SaveRun(Run{
		RunID:      rec.RunID,
		Module:     rec.Module,
		Timestamp:  rec.Timestamp,
		Status:     rec.Status,
		Stage:      rec.Stage,
		ErrorCode:  rec.ErrorCode,
		DurationMS: rec.Duration.Milliseconds(),
		Modules:    rec.Stats.Modules,
		Classes:    rec.Stats.Classes,
		Methods:    rec.Stats.Methods,
		Functions:  rec.Stats.Functions,
		Enums:      rec.Stats.Enums,
		Warnings:   rec.Warnings,
		Opaque:     rec.Opaque,
		Written:    rec.Written,
		Unchanged:  rec.Unchanged,
	})
}

func (a *Adapter) LoadRuns(module string, limit int) ([]ports.RunRecord, error) {
	runs, err := a.store.LoadRuns(module, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ports.RunRecord, len(runs))
	for i, run := range runs {
		out[i] = ports.RunRecord{
			RunID:     run.RunID,
			Module:    run.Module,
			Timestamp: run.Timestamp,
			Status:    run.Status,
			Stage:     run.Stage,
			ErrorCode: run.ErrorCode,
			Duration:  time.Duration(run.DurationMS) * time.Millisecond,
			Stats: binding.Stats{
				Modules:   run.Modules,
				Classes:   run.Classes,
				Methods:   run.Methods,
				Functions: run.Functions,
				Enums:     run.Enums,
			},
			Warnings:  run.Warnings,
			Opaque:    run.Opaque,
			Written:   run.Written,
			Unchanged: run.Unchanged,
		}
	}
	return out, nil
}
