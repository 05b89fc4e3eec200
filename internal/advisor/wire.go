package advisor

import (
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/advisor/config"
	"github.com/mohammad-safakhou/advisor/internal/audit"
	"github.com/mohammad-safakhou/advisor/internal/composer"
	"github.com/mohammad-safakhou/advisor/internal/executor"
	"github.com/mohammad-safakhou/advisor/internal/llm"
	"github.com/mohammad-safakhou/advisor/internal/planner"
	"github.com/mohammad-safakhou/advisor/internal/store"
	"github.com/mohammad-safakhou/advisor/internal/telemetry"
	"github.com/mohammad-safakhou/advisor/internal/tools"
)

// Runtime is a configured Service plus the resources it owns.
type Runtime struct {
	*Service
	index   *tools.PackageIndex
	closers []func() error
}

// Close releases the package index and any connections opened by Open.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.index != nil {
		errs = append(errs, r.index.Close())
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// Build wires the tool registry, planner, executor and composer from cfg.
// st may be nil, in which case the data tools serve sample data and
// SanitizeAndRun reports ErrNoDatabase.
func Build(cfg *config.Config, client llm.Client, st *store.Store, rec audit.Recorder, metrics *telemetry.Metrics) (*Runtime, error) {
	packages := tools.DefaultPackages()
	index, err := tools.NewPackageIndex(packages)
	if err != nil {
		return nil, fmt.Errorf("package index: %w", err)
	}
	deps := tools.Deps{Packages: packages, Index: index}
	if st != nil {
		deps.Profiles = st
		deps.Transactions = st
	}
	registry, err := tools.NewRegistry(tools.Builtin(deps)...)
	if err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("tool registry: %w", err)
	}

	gen := planner.NewGenerator(client, registry,
		planner.WithPlanSettings(settings(cfg.LLM.Planner)),
		planner.WithDecisionSettings(settings(cfg.LLM.Router)),
	)
	exec := executor.New(registry,
		executor.WithMetrics(metrics.ExecutorMetrics()),
		executor.WithStepTimeout(cfg.General.DefaultTimeout),
	)
	comp := composer.New(client, composer.WithSettings(cfg.LLM.Answerer.MaxTokens, cfg.LLM.Answerer.Temperature))

	svc := New(Deps{
		Registry: registry,
		Planner:  gen,
		Executor: exec,
		Composer: comp,
		LLM:      client,
		Recorder: rec,
		Metrics:  metrics,
	}, WithQuerySettings(QuerySettings{
		Generation:    settings(cfg.LLM.SQL),
		DefaultLimit:  cfg.Query.DefaultLimit,
		SchemaColumns: cfg.Query.SchemaColumns,
	}))
	if st != nil {
		svc.Queries = st
		svc.Schema = st
	}
	return &Runtime{Service: svc, index: index}, nil
}

func settings(g config.Generation) planner.Settings {
	return planner.Settings{MaxTokens: g.MaxTokens, Temperature: g.Temperature}
}
