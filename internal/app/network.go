package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clelom/titan/internal/config"
	"github.com/clelom/titan/internal/configcache"
	"github.com/clelom/titan/internal/ctxlog"
	"github.com/clelom/titan/internal/master"
	"github.com/clelom/titan/internal/node"
	"github.com/clelom/titan/internal/radio"
	"github.com/clelom/titan/internal/store"
)

// simNode is one node of the simulated network.
type simNode struct {
	spec *config.Node
	node *node.Node
}

// network is every endpoint of a running simulation.
type network struct {
	master  *master.Master
	nodes   []*simNode
	radios  []radio.Transceiver
	db      *store.Store
	unit    time.Duration
	results []master.Result
}

// buildNetwork attaches the master and every node to the configured radio.
// Node caches are restored from the cache database when one is configured.
func (a *App) buildNetwork(ctx context.Context) (_ *network, err error) {
	logger := ctxlog.FromContext(ctx)
	net := &network{unit: a.model.Master.TimeUnit}
	if a.cfg.TimeUnit > 0 {
		net.unit = a.cfg.TimeUnit
	}
	defer func() {
		if err != nil {
			net.close(ctx)
		}
	}()

	if a.cfg.CacheDB != "" {
		db, err := store.New(a.cfg.CacheDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache database: %w", err)
		}
		net.db = db
		logger.Info("Cache database opened.", "path", a.cfg.CacheDB)
	}

	attach := a.radioAttacher(ctx)

	masterRadio, err := attach(a.model.Master.ID)
	if err != nil {
		return nil, err
	}
	net.radios = append(net.radios, masterRadio)
	net.master = master.New(ctx, master.Options{
		ID:       a.model.Master.ID,
		Radio:    masterRadio,
		TimeUnit: net.unit,
		Metrics:  a.metrics,
	})

	for _, spec := range a.model.Nodes {
		r, err := attach(spec.ID)
		if err != nil {
			return nil, err
		}
		net.radios = append(net.radios, r)

		var cache *configcache.Cache
		if net.db != nil {
			cache = configcache.New(net.db.NodeCache(spec.ID))
			if err := cache.Restore(ctx); err != nil {
				return nil, fmt.Errorf("failed to restore cache of node %q: %w", spec.Name, err)
			}
		} else {
			cache = configcache.New(nil)
		}

		n := node.New(ctx, node.Options{
			ID:       spec.ID,
			Kinds:    a.kinds,
			Radio:    r,
			TimeUnit: net.unit,
			Cache:    cache,
			Metrics:  a.metrics,
		})
		net.nodes = append(net.nodes, &simNode{spec: spec, node: n})
		logger.Debug("Node attached.", "name", spec.Name, "id", spec.ID, "cached", cache.Len())
	}
	logger.Info("Network built.", "radio", a.cfg.Radio, "nodes", len(net.nodes), "time_unit", net.unit)
	return net, nil
}

// radioAttacher returns the function creating one endpoint of the
// configured radio.
func (a *App) radioAttacher(ctx context.Context) func(id uint16) (radio.Transceiver, error) {
	logger := ctxlog.FromContext(ctx)
	if a.cfg.Radio == RadioSocketIO {
		return func(id uint16) (radio.Transceiver, error) {
			r, err := radio.DialSocketIO(ctx, logger, id, radio.SocketIOOptions{URL: a.cfg.RadioURL})
			if err != nil {
				return nil, fmt.Errorf("failed to connect endpoint %d: %w", id, err)
			}
			return r, nil
		}
	}
	medium := radio.NewMedium(logger)
	return func(id uint16) (radio.Transceiver, error) {
		p, err := medium.Attach(id)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func (net *network) nodeByName(name string) (*simNode, bool) {
	for _, n := range net.nodes {
		if n.spec.Name == name {
			return n, true
		}
	}
	return nil, false
}

func (net *network) close(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	var errs []error
	for _, r := range net.radios {
		errs = append(errs, r.Close())
	}
	if net.db != nil {
		errs = append(errs, net.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("Network shutdown incomplete.", "error", err)
	}
}
