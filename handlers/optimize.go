package handlers

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/rayos/conductor/common/stats"
	"github.com/rayos/conductor/domain"
)

var ErrOptimizerDisabled = errors.New("self-optimization is disabled")

const (
	maxMutationHistory = 1000
	mutationRate       = 0.01
	moduleFunctions    = 5
	moduleFunctionSize = 256
	systemImageSize    = 4096
)

// Function prologue searched for in module images: push rbp; mov rbp, rsp.
var prologue = []byte{0x55, 0x48, 0x89}

// Byte patterns a mutation must never introduce: syscall, int 0x80.
var unsafePatterns = [][]byte{{0x0f, 0x05}, {0xcd, 0x80}}

// OptimizerStats summarizes the mutation history.
type OptimizerStats struct {
	TotalMutations      int     `json:"total_mutations"`
	SuccessfulMutations int     `json:"successful_mutations"`
	ActivePatches       int     `json:"active_patches"`
	AvgImprovement      float64 `json:"avg_improvement"`
}

// Optimizer runs one self-optimization cycle against a target.
type Optimizer interface {
	Optimize(ctx context.Context, target domain.OptimizationTarget) (OptimizerStats, error)
}

type mutation struct {
	target      string
	original    time.Duration
	mutated     time.Duration
	improvement float64
	safe        bool
}

func (m mutation) isImprovement() bool {
	return m.safe && m.improvement > 1.0
}

// Gate is the default Optimizer. It refuses to run while disabled, runs one
// cycle at a time, and keeps a bounded history of trial mutations. A
// mutation is accepted as a patch when its estimated cost drops and it
// introduces no unsafe instruction pattern.
type Gate struct {
	enabled atomic.Bool
	cycle   *semaphore.Weighted
	stat    stats.StatsReceiver

	mu      sync.Mutex
	rng     *rand.Rand
	history *deque.Deque[mutation]
	patches map[string]float64
	system  []byte
}

func NewGate(enabled bool, seed uint64, stat stats.StatsReceiver) *Gate {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	g := &Gate{
		cycle:   semaphore.NewWeighted(1),
		stat:    stat,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		history: deque.New[mutation](),
		patches: map[string]float64{},
	}
	g.system = make([]byte, systemImageSize)
	for i := range g.system {
		g.system[i] = byte(g.rng.UintN(256))
	}
	g.SetEnabled(enabled)
	return g
}

func (g *Gate) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
	if enabled {
		log.Warn("Self-optimization enabled, the optimizer will apply patches")
	} else {
		log.Info("Self-optimization disabled")
	}
}

func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}

func (g *Gate) Optimize(ctx context.Context, target domain.OptimizationTarget) (OptimizerStats, error) {
	if !g.Enabled() {
		g.stat.Counter(stats.HandlerOptimizeDisabledCounter).Inc(1)
		return OptimizerStats{}, ErrOptimizerDisabled
	}
	if err := g.cycle.Acquire(ctx, 1); err != nil {
		return OptimizerStats{}, errors.Wrap(err, "waiting for optimization cycle")
	}
	defer g.cycle.Release(1)
	g.stat.Counter(stats.HandlerOptimizeCycleCounter).Inc(1)
	log.WithFields(log.Fields{"target": target}).Info("Starting optimization cycle")

	switch target.Kind {
	case domain.FunctionTarget:
		g.optimizeFunction(target.Name, append([]byte(nil), target.Binary...))
	case domain.ModuleTarget:
		image, err := os.ReadFile(target.Path)
		if err != nil {
			return g.Stats(), errors.Wrapf(err, "reading module %s", target.Path)
		}
		funcs := findFunctions(image, moduleFunctions)
		log.WithFields(log.Fields{"module": target.Path, "functions": len(funcs)}).Info("Optimizing module")
		for i, offset := range funcs {
			if err := ctx.Err(); err != nil {
				return g.Stats(), err
			}
			end := offset + moduleFunctionSize
			if end > len(image) {
				end = len(image)
			}
			g.optimizeFunction(target.Path+"#func_"+strconv.Itoa(i), image[offset:end])
		}
	default:
		g.mu.Lock()
		image := append([]byte(nil), g.system...)
		g.mu.Unlock()
		if m := g.optimizeFunction("system", image); m.isImprovement() {
			g.mu.Lock()
			g.system = image
			g.mu.Unlock()
		}
	}
	return g.Stats(), nil
}

// Stats summarizes the mutation history.
func (g *Gate) Stats() OptimizerStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := OptimizerStats{TotalMutations: g.history.Len(), ActivePatches: len(g.patches), AvgImprovement: 1}
	sum := 0.0
	for i := 0; i < g.history.Len(); i++ {
		if m := g.history.At(i); m.isImprovement() {
			st.SuccessfulMutations++
			sum += m.improvement
		}
	}
	if st.SuccessfulMutations > 0 {
		st.AvgImprovement = sum / float64(st.SuccessfulMutations)
	}
	return st
}

// optimizeFunction mutates code in place when the trial is accepted.
func (g *Gate) optimizeFunction(name string, code []byte) mutation {
	g.mu.Lock()
	mutated := g.mutate(code)
	g.mu.Unlock()

	m := mutation{
		target:   name,
		original: estimateCost(code),
		mutated:  estimateCost(mutated),
		safe:     !containsUnsafe(mutated),
	}
	if m.mutated > 0 {
		m.improvement = float64(m.original) / float64(m.mutated)
	}

	g.mu.Lock()
	g.history.PushBack(m)
	if g.history.Len() > maxMutationHistory {
		g.history.PopFront()
	}
	if m.isImprovement() {
		g.patches[name] = m.improvement
		copy(code, mutated)
	}
	g.mu.Unlock()

	fields := log.Fields{"target": name, "improvement": m.improvement, "safe": m.safe}
	if m.isImprovement() {
		log.WithFields(fields).Info("Applied optimization patch")
	} else {
		log.WithFields(fields).Debug("Rejected mutation")
	}
	return m
}

// mutate returns a copy of code with one of three mutations applied:
// random bit flips, a swap of two 4-byte words, or small tweaks to
// little-endian 32-bit constants. Callers hold g.mu.
func (g *Gate) mutate(code []byte) []byte {
	out := append([]byte(nil), code...)
	switch g.rng.IntN(3) {
	case 0:
		for i := range out {
			if g.rng.Float64() < mutationRate {
				out[i] ^= 1 << g.rng.UintN(8)
			}
		}
	case 1:
		words := len(out) / 4
		if words >= 2 {
			a, b := g.rng.IntN(words)*4, g.rng.IntN(words)*4
			for i := 0; i < 4; i++ {
				out[a+i], out[b+i] = out[b+i], out[a+i]
			}
		}
	default:
		for i := 0; i+4 < len(out); i++ {
			if g.rng.Float64() < mutationRate {
				v := uint32(out[i]) | uint32(out[i+1])<<8 | uint32(out[i+2])<<16 | uint32(out[i+3])<<24
				v = uint32(int32(v) + int32(g.rng.IntN(21)-10))
				out[i], out[i+1], out[i+2], out[i+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
			}
		}
	}
	return out
}

// estimateCost models execution time: a fixed overhead, 2ns per 4-byte
// instruction and 100µs per jump opcode.
func estimateCost(code []byte) time.Duration {
	cost := 10 * time.Microsecond
	cost += time.Duration(len(code)/4) * 2 * time.Nanosecond
	for i := 0; i+4 <= len(code); i++ {
		if code[i] == 0xe9 || code[i] == 0xeb {
			cost += 100 * time.Microsecond
		}
	}
	return cost
}

func containsUnsafe(code []byte) bool {
	for _, p := range unsafePatterns {
		if bytes.Contains(code, p) {
			return true
		}
	}
	return false
}

func findFunctions(image []byte, max int) []int {
	var offsets []int
	for i := 0; i+len(prologue) <= len(image) && len(offsets) < max; i++ {
		if bytes.Equal(image[i:i+len(prologue)], prologue) {
			offsets = append(offsets, i)
		}
	}
	return offsets
}
