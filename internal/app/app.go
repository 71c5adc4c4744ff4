package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/clelom/titan/internal/config"
	"github.com/clelom/titan/internal/ctxlog"
	"github.com/clelom/titan/internal/metrics"
	"github.com/clelom/titan/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	cfg        *Config
	logger     *slog.Logger
	kinds      *registry.Registry
	model      *config.Model
	metrics    *metrics.Metrics
	httpServer *http.Server
	summary    *Summary
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry
// of task kinds.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW, cfg.LogFile)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	// Load all configuration into the format-agnostic model first.
	model, err := loader.Load(ctx, cfg.TopologyPath)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load topology: %w", err))
	}
	logger.Debug("Topology loaded.", "nodes", len(model.Nodes), "configurations", len(model.Configurations))

	kinds := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(kinds)
	}
	logger.Debug("All task kinds registered.", "count", len(kinds.KindUIDs(nil)))

	a := &App{
		outW:    outW,
		cfg:     cfg,
		logger:  logger,
		kinds:   kinds,
		model:   model,
		metrics: metrics.New(),
	}

	// Every configuration must compile against the registered kinds. A
	// mismatch between topology and build is a programmer error.
	for _, c := range model.Configurations {
		if _, _, err := a.compile(c); err != nil {
			panic(fmt.Errorf("failed to compile configuration %q: %w", c.Name, err))
		}
	}
	logger.Debug("Configurations compiled.")

	for _, s := range model.Samplers {
		if err := a.checkSampler(s); err != nil {
			panic(fmt.Errorf("invalid sampler %q: %w", s.Name, err))
		}
	}

	return a
}

// checkSampler makes sure every task a sampler can feed takes external input.
func (a *App) checkSampler(s *config.Sampler) error {
	for _, c := range a.model.Configurations {
		if c.Target != s.Node {
			continue
		}
		i, ok := c.TaskIndex(s.Task)
		if !ok {
			continue
		}
		kind := c.Tasks[i].Kind
		if k, ok := a.kinds.KindByName(kind); ok && !k.External {
			return fmt.Errorf("task %q of configuration %q is a %s, which takes no external input", s.Task, c.Name, kind)
		}
	}
	return nil
}

// Registry returns the registered task kinds. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.kinds
}

// Model returns the loaded topology.
func (a *App) Model() *config.Model {
	return a.model
}

// Summary returns the outcome of the last Run, or nil before it finished.
func (a *App) Summary() *Summary {
	return a.summary
}
