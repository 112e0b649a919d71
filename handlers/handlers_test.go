package handlers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayos/conductor/domain"
)

type fakeOptimizer struct {
	st  OptimizerStats
	err error
	got []domain.OptimizationTarget
}

func (f *fakeOptimizer) Optimize(_ context.Context, target domain.OptimizationTarget) (OptimizerStats, error) {
	f.got = append(f.got, target)
	return f.st, f.err
}

func newTestDispatcher(t *testing.T, root string, opt Optimizer) *Dispatcher {
	pool := NewBlockingPool(2, nil)
	t.Cleanup(pool.Close)
	return NewDispatcher(Config{SearchRoot: root, Optimizer: opt, Pool: pool})
}

func TestDispatchCompute(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir(), nil)

	out, err := d.Execute(context.Background(), domain.Compute{Name: "c", EstimatedDuration: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "OK", out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Execute(ctx, domain.Compute{Name: "slow", EstimatedDuration: time.Hour})
	assert.Equal(t, context.Canceled, err)
}

func TestDispatchIndexFile(t *testing.T) {
	root := writeTree(t, map[string]string{"data.txt": strings.Repeat("z", 2500)})
	d := newTestDispatcher(t, root, nil)

	start := time.Now()
	out, err := d.Execute(context.Background(), domain.IndexFile{Path: root + "/data.txt"})
	require.NoError(t, err)
	assert.Equal(t, "Indexed 2500 bytes (2.5 kB)", out)
	assert.True(t, time.Since(start) >= minIndexDuration)

	_, err = d.Execute(context.Background(), domain.IndexFile{Path: root + "/missing.txt"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "index failed"))
}

func TestDispatchSearch(t *testing.T) {
	root := writeTree(t, map[string]string{"docs/kernel_notes.md": "# Kernel notes"})
	d := newTestDispatcher(t, root, nil)

	out, err := d.Execute(context.Background(), domain.Search{Query: "kernel notes", Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, "Search: 1 match(es): docs/kernel_notes.md — # Kernel notes", out)

	out, err = d.Execute(context.Background(), domain.Search{Query: "absent", Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, "Search: no matches for 'absent'", out)
}

func TestDispatchOptimize(t *testing.T) {
	opt := &fakeOptimizer{st: OptimizerStats{TotalMutations: 2, SuccessfulMutations: 1, ActivePatches: 1}}
	d := newTestDispatcher(t, t.TempDir(), opt)

	out, err := d.Execute(context.Background(), domain.Optimize{Target: domain.SystemOptimization()})
	require.NoError(t, err)
	assert.Equal(t, "Optimization complete (mutations=2, successful=1, active_patches=1)", out)
	assert.Equal(t, []domain.OptimizationTarget{domain.SystemOptimization()}, opt.got)

	opt.err = errors.New("busy")
	_, err = d.Execute(context.Background(), domain.Optimize{Target: domain.SystemOptimization()})
	assert.EqualError(t, err, "busy")
}

func TestDispatchOptimizeDisabledByDefault(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir(), nil)
	_, err := d.Execute(context.Background(), domain.Optimize{Target: domain.SystemOptimization()})
	assert.Equal(t, ErrOptimizerDisabled, err)
}

func TestDispatchMaintenance(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir(), nil)
	out, err := d.Execute(context.Background(), domain.Maintenance{Type: domain.CacheFlush})
	require.NoError(t, err)
	assert.Equal(t, "Maintenance cache_flush complete", out)
}
