package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/clelom/titan/internal/config"
	"github.com/clelom/titan/internal/ctxlog"
	"github.com/clelom/titan/internal/master"
	"golang.org/x/sync/errgroup"
)

// Run builds the simulated network, pushes every configuration, starts the
// samplers and runs until cfg.Duration elapsed or ctx is done. The outcome
// is rendered to the output writer and kept for Summary.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer(ctx)
	defer a.closeHealthCheckServer(ctx)

	net, err := a.buildNetwork(ctx)
	if err != nil {
		return fmt.Errorf("failed to build network: %w", err)
	}
	defer net.close(ctx)

	runCtx := ctx
	if a.cfg.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.cfg.Duration)
		defer cancel()
	}

	a.logger.Info("🚀 Starting simulation...", "duration", a.cfg.Duration)
	g, gctx := errgroup.WithContext(runCtx)
	for _, n := range net.nodes {
		g.Go(func() error { return n.node.Run(gctx) })
	}
	g.Go(func() error { return net.master.Run(gctx) })
	g.Go(func() error {
		if err := a.configure(gctx, net); err != nil {
			return err
		}
		for _, s := range a.model.Samplers {
			g.Go(func() error { return a.runSampler(gctx, net, s) })
		}
		return nil
	})

	err = g.Wait()
	a.summary = a.summarize(net)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("simulation failed: %w", err)
	}
	a.logger.Info("🏁 Simulation finished.")

	if err := renderReport(a.outW, a.summary); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

// configure pushes every configuration and waits for the outcome of each
// push. Delayed configurations are started once their node acknowledged
// them.
func (a *App) configure(ctx context.Context, net *network) error {
	logger := ctxlog.FromContext(ctx)
	type key struct {
		node     uint16
		configID uint8
	}
	delayed := make(map[key]bool)
	failed := make(chan master.Result, len(a.model.Configurations))

	for _, c := range a.model.Configurations {
		target, cfg, err := a.compile(c)
		if err != nil {
			return fmt.Errorf("configuration %q: %w", c.Name, err)
		}
		if c.Delayed {
			delayed[key{target, c.ConfigID}] = true
		}
		net.master.Do(func(ctx context.Context) {
			push := net.master.Configure
			if c.Cache {
				push = net.master.ConfigureFromCache
			}
			if _, err := push(ctx, target, cfg); err != nil {
				failed <- master.Result{Node: target, ConfigID: cfg.ConfigID, Err: err}
			}
		})
		logger.Debug("Configuration queued.", "name", c.Name, "node", target, "config", c.ConfigID)
	}

	for range a.model.Configurations {
		var r master.Result
		select {
		case <-ctx.Done():
			logger.Warn("Simulation ended before every configuration was answered.", "answered", len(net.results))
			return nil
		case r = <-net.master.Results():
		case r = <-failed:
		}
		net.results = append(net.results, r)
		if r.OK && delayed[key{r.Node, r.ConfigID}] {
			net.master.Do(func(ctx context.Context) {
				net.master.Start(ctx, r.Node, r.ConfigID)
			})
		}
	}
	logger.Info("All configurations answered.", "count", len(net.results))
	return nil
}

// configuration looks up the block a result belongs to.
func (a *App) configuration(r master.Result) *config.Configuration {
	for _, c := range a.model.Configurations {
		target, ok := a.model.NodeByName(c.Target)
		if ok && target.ID == r.Node && c.ConfigID == r.ConfigID {
			return c
		}
	}
	return nil
}
