package app

import (
	"context"
	"time"

	"entitlements/domain/table"
	"entitlements/internal"
	"entitlements/internal/errors"
	"entitlements/internal/normalize"
	"entitlements/ports"
)

// RunState is the per-run context handed from stage to stage. It is created
// by Run and never outlives it.
type RunState struct {
	Source   string
	Table    *table.Table
	Metadata table.Metadata
}

// RunReport is what a completed run produced
type RunReport struct {
	Source        string                    `json:"source"`
	Metadata      table.Metadata            `json:"metadata"`
	Dates         normalize.DateReport      `json:"dates"`
	NullsReplaced int                       `json:"nulls_replaced"`
	Outputs       []ports.MaterializeResult `json:"outputs"`
	Summary       Summary                   `json:"summary"`
	Duration      time.Duration             `json:"duration"`
}

// Pipeline loads a source, normalizes it once and hands the same table to
// every materializer in order
type Pipeline struct {
	loader        ports.TableLoader
	materializers []ports.Materializer
	logger        *internal.Logger
	now           func() time.Time
}

// NewPipeline creates a pipeline
func NewPipeline(loader ports.TableLoader, logger *internal.Logger, materializers ...ports.Materializer) *Pipeline {
	return &Pipeline{
		loader:        loader,
		materializers: materializers,
		logger:        internal.OrDefault(logger).With("Pipeline"),
		now:           time.Now,
	}
}

// WithClock replaces the clock used for generated_at
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Run executes one full re-materialization of source. Load failures abort
// before any output is written; a failing materializer aborts the remaining ones.
func (p *Pipeline) Run(ctx context.Context, source string) (*RunReport, error) {
	start := time.Now()
	if p.loader == nil {
		return nil, errors.ConfigInvalid("pipeline has no table loader")
	}
	if len(p.materializers) == 0 {
		return nil, errors.ConfigInvalid("pipeline has no materializers")
	}

	p.logger.Info("Reading source: %s", source)
	loaded, err := p.loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Successfully read %d rows", loaded.Len())
	p.logger.Info("Columns found: %d", len(loaded.Columns))

	state, report := p.normalize(source, loaded)
	p.logger.Debug("Replaced %d missing values", report.NullsReplaced)

	for _, m := range p.materializers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := m.Materialize(ctx, state.Table, state.Metadata)
		if err != nil {
			if errors.IsAppError(err) {
				return nil, errors.Wrapf(err, "%s output failed", m.Name())
			}
			return nil, errors.MaterializeFailed(m.Target(), err)
		}
		p.logger.Info("Successfully converted %d records to %s: %s", result.Records, result.Name, result.Target)
		report.Outputs = append(report.Outputs, result)
	}

	report.Summary = Summarize(state.Table, report.Outputs)
	report.Duration = time.Since(start)
	return report, nil
}

// normalize runs the date and null passes and derives the run metadata
func (p *Pipeline) normalize(source string, loaded *table.Table) (*RunState, *RunReport) {
	dated, dates := normalize.Dates(loaded, p.logger)
	clean, replaced := normalize.Nulls(dated)

	state := &RunState{
		Source:   source,
		Table:    clean,
		Metadata: table.NewMetadata(clean, source, p.now()),
	}
	report := &RunReport{
		Source:        source,
		Metadata:      state.Metadata,
		Dates:         dates,
		NullsReplaced: replaced,
	}
	return state, report
}
