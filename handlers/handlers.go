// Package handlers executes task payloads for the orchestrator.
package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/rayos/conductor/common/stats"
	"github.com/rayos/conductor/domain"
)

const (
	maintenanceDuration = 50 * time.Millisecond
	minIndexDuration    = 10 * time.Millisecond
)

type Config struct {
	// Directory searched by Search payloads; see ResolveSearchRoot.
	SearchRoot string
	Optimizer  Optimizer
	Pool       *BlockingPool
	Stats      stats.StatsReceiver
}

// Dispatcher routes each payload kind to its handler.
type Dispatcher struct {
	searchRoot string
	optimizer  Optimizer
	pool       *BlockingPool
	stat       stats.StatsReceiver
}

func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{
		searchRoot: ResolveSearchRoot(cfg.SearchRoot),
		optimizer:  cfg.Optimizer,
		pool:       cfg.Pool,
		stat:       cfg.Stats,
	}
	if d.stat == nil {
		d.stat = stats.NilStatsReceiver()
	}
	if d.optimizer == nil {
		d.optimizer = NewGate(false, uint64(time.Now().UnixNano()), d.stat)
	}
	if d.pool == nil {
		d.pool = NewBlockingPool(1, d.stat)
	}
	log.WithFields(log.Fields{"searchRoot": d.searchRoot}).Info("Created task dispatcher")
	return d
}

func (d *Dispatcher) Execute(ctx context.Context, payload domain.Payload) (string, error) {
	switch p := payload.(type) {
	case domain.Compute:
		return d.compute(ctx, p)
	case domain.IndexFile:
		return d.indexFile(ctx, p)
	case domain.Search:
		return d.search(ctx, p)
	case domain.Optimize:
		return d.optimize(ctx, p)
	case domain.Maintenance:
		return d.maintenance(ctx, p)
	}
	return "", errors.Errorf("unsupported payload %T", payload)
}

func (d *Dispatcher) compute(ctx context.Context, p domain.Compute) (string, error) {
	log.WithFields(log.Fields{"name": p.Name}).Debug("Executing compute task")
	if err := sleep(ctx, p.EstimatedDuration); err != nil {
		return "", err
	}
	return "OK", nil
}

func (d *Dispatcher) indexFile(ctx context.Context, p domain.IndexFile) (string, error) {
	fi, err := runBlocking(ctx, d.pool, func() (os.FileInfo, error) { return os.Stat(p.Path) })
	if err != nil {
		log.WithFields(log.Fields{"path": p.Path}).Errorf("Failed to index file: %v", err)
		return "", errors.Wrap(err, "index failed")
	}
	size := fi.Size()
	wait := time.Duration(size/1000) * time.Millisecond
	if wait < minIndexDuration {
		wait = minIndexDuration
	}
	if err := sleep(ctx, wait); err != nil {
		return "", err
	}
	log.WithFields(log.Fields{"path": p.Path, "size": humanize.Bytes(uint64(size))}).Info("Indexed file")
	return fmt.Sprintf("Indexed %d bytes (%s)", size, humanize.Bytes(uint64(size))), nil
}

func (d *Dispatcher) search(ctx context.Context, p domain.Search) (string, error) {
	matches, err := runBlocking(ctx, d.pool, func() ([]searchMatch, error) {
		return searchPaths(d.searchRoot, p.Query, p.Limit), nil
	})
	if err != nil {
		return "", errors.Wrap(err, "search failed")
	}
	log.WithFields(log.Fields{"query": p.Query, "matches": len(matches)}).Info("Search completed")
	return formatSearchResult(p.Query, matches), nil
}

func (d *Dispatcher) optimize(ctx context.Context, p domain.Optimize) (string, error) {
	st, err := d.optimizer.Optimize(ctx, p.Target)
	if err != nil {
		return "", err
	}
	log.WithFields(log.Fields{
		"target":     p.Target,
		"mutations":  st.TotalMutations,
		"successful": st.SuccessfulMutations,
		"patches":    st.ActivePatches,
	}).Info("Optimization completed")
	return fmt.Sprintf("Optimization complete (mutations=%d, successful=%d, active_patches=%d)",
		st.TotalMutations, st.SuccessfulMutations, st.ActivePatches), nil
}

func (d *Dispatcher) maintenance(ctx context.Context, p domain.Maintenance) (string, error) {
	log.WithFields(log.Fields{"type": p.Type}).Debug("Running maintenance")
	if err := sleep(ctx, maintenanceDuration); err != nil {
		return "", err
	}
	return fmt.Sprintf("Maintenance %s complete", p.Type), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
