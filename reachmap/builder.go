package reachmap

import (
	"context"
	"math/rand"
	"runtime"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/reachmap/referenceframe"
)

const defaultBatchSize = 1024

// Large odd constant used to decorrelate per-worker random streams derived from one seed.
const workerSeedStride uint64 = 0x9E3779B97F4A7C15

// workerSeed derives a distinct seed per worker. The mix is done in uint64 so the stride
// multiplication wraps instead of overflowing.
func workerSeed(seed int64, worker int) int64 {
	return int64(uint64(seed) + uint64(worker)*workerSeedStride)
}

// BuildOptions configures a map build.
type BuildOptions struct {
	// Samples is the total number of configuration draws. Draws that fail kinematics or
	// reduce outside the grid still count toward this budget; they are reported in
	// BuildStats rather than silently dropped.
	Samples int

	// Workers is the size of the parallel worker pool. Defaults to runtime.NumCPU().
	// Together with Seed it determines the exact sample set, so identical
	// (Seed, Workers, Samples) produce identical grids.
	Workers int

	// Seed controls all random draws.
	Seed int64

	// BatchSize is the number of draws a worker performs between cancellation checks and
	// stopping-policy evaluations.
	BatchSize int

	// MinSamplesPerCell, if positive, stops the build early once every cell in the grid
	// holds at least this many samples. Checked between batches.
	MinSamplesPerCell int

	// Feasible, if set, is consulted for each sampled configuration; only configurations
	// it accepts count as reachable evidence. Typical predicates check self-collision or
	// singularity. It must be safe for concurrent use.
	Feasible func([]referenceframe.Input) bool

	// Axes fixes the grid shape directly. If unset, extents are derived from MaxReach.
	Axes [4]Axis

	// MaxReach is the robot's physical reach, used with Bins when Axes is unset.
	MaxReach float64

	// Bins is the per-axis resolution used with MaxReach when Axes is unset.
	// Defaults to 40, 20, 12, 16.
	Bins [4]int
}

func (o *BuildOptions) fillDefaults() {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.Bins == ([4]int{}) {
		o.Bins = [4]int{40, 20, 12, 16}
	}
}

func (o *BuildOptions) grid() (*GridIndex, error) {
	if o.Axes != ([4]Axis{}) {
		return NewGridIndex(o.Axes)
	}
	return NewGridIndexForReach(o.MaxReach, o.Bins)
}

// BuildStats accounts for every draw of a build. Samples is the total number of draws;
// OutOfRange and KinematicFailures are the discarded subsets, Reachable the feasible ones.
type BuildStats struct {
	Samples           uint64
	Reachable         uint64
	OutOfRange        uint64
	KinematicFailures uint64
}

func (s *BuildStats) add(other BuildStats) {
	s.Samples += other.Samples
	s.Reachable += other.Reachable
	s.OutOfRange += other.OutOfRange
	s.KinematicFailures += other.KinematicFailures
}

// Build samples the frame's configuration space and accumulates reachability evidence into
// a new grid. Sampling-phase failures (kinematic errors, out-of-range reductions) never
// abort the build; they are counted in BuildStats.
//
// The build proceeds in rounds of batches. Each worker owns a private partial grid and a
// private random stream, and partial grids are merged by summation between rounds, so no
// cell counter is ever contended and the result is deterministic for a fixed seed, worker
// count and sample budget.
//
// Cancelling the context stops the build between rounds. The grid and stats built so far
// are returned along with the context's error; they are internally consistent.
func Build(
	ctx context.Context,
	frame referenceframe.Frame,
	opts BuildOptions,
	logger golog.Logger,
) (*GridIndex, BuildStats, error) {
	opts.fillDefaults()
	if logger == nil {
		logger = golog.NewLogger("reachmap")
	}
	if frame == nil {
		return nil, BuildStats{}, errors.New("frame cannot be nil")
	}
	if opts.Samples < 0 {
		return nil, BuildStats{}, errors.Errorf("sample budget cannot be negative, got %d", opts.Samples)
	}
	grid, err := opts.grid()
	if err != nil {
		return nil, BuildStats{}, err
	}

	workers := make([]*buildWorker, opts.Workers)
	for i := range workers {
		partial, err := opts.grid()
		if err != nil {
			return nil, BuildStats{}, err
		}
		workers[i] = &buildWorker{
			frame:    frame,
			feasible: opts.Feasible,
			//nolint:gosec
			rng:  rand.New(rand.NewSource(workerSeed(opts.Seed, i))),
			grid: partial,
		}
	}

	var stats BuildStats
	remaining := opts.Samples
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			logger.Debugw("build cancelled", "drawn", stats.Samples, "remaining", remaining)
			return grid, stats, err
		}

		// Deterministic quota split for this round.
		quotas := roundQuotas(remaining, opts.Workers, opts.BatchSize)

		group, _ := errgroup.WithContext(ctx)
		for i, w := range workers {
			quota := quotas[i]
			if quota == 0 {
				continue
			}
			group.Go(func() error {
				w.run(quota)
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return grid, stats, err
		}

		// Merge this round's partials in worker order.
		for _, w := range workers {
			if err := grid.MergeFrom(w.grid); err != nil {
				return nil, BuildStats{}, err
			}
			stats.add(w.stats)
			w.reset()
		}
		for _, q := range quotas {
			remaining -= q
		}

		if opts.MinSamplesPerCell > 0 && grid.minSamples() >= uint32(opts.MinSamplesPerCell) {
			logger.Debugw("per-cell sample threshold met, stopping early",
				"threshold", opts.MinSamplesPerCell, "drawn", stats.Samples)
			break
		}
	}

	logger.Infow("reachability map built",
		"samples", stats.Samples,
		"reachable", stats.Reachable,
		"outOfRange", stats.OutOfRange,
		"kinematicFailures", stats.KinematicFailures,
	)
	return grid, stats, nil
}

// roundQuotas splits one round of work across workers: each worker draws at most batch
// samples, and the round never exceeds what remains of the budget.
func roundQuotas(remaining, workers, batch int) []int {
	quotas := make([]int, workers)
	roundTotal := min(remaining, workers*batch)
	base := roundTotal / workers
	extra := roundTotal % workers
	for i := range quotas {
		quotas[i] = base
		if i < extra {
			quotas[i]++
		}
	}
	return quotas
}

type buildWorker struct {
	frame    referenceframe.Frame
	feasible func([]referenceframe.Input) bool
	rng      *rand.Rand
	grid     *GridIndex
	stats    BuildStats
}

// run draws n configurations into the worker's private grid. Writes nowhere else, so
// workers never contend.
func (w *buildWorker) run(n int) {
	for i := 0; i < n; i++ {
		w.stats.Samples++
		inputs := referenceframe.RandomFrameInputs(w.frame, w.rng)
		pose, err := w.frame.Transform(inputs)
		if err != nil {
			// One bad sample never aborts the build.
			w.stats.KinematicFailures++
			continue
		}
		rc, err := Reduce(pose)
		if err != nil {
			w.stats.KinematicFailures++
			continue
		}
		reachable := true
		if w.feasible != nil {
			reachable = w.feasible(inputs)
		}
		if err := w.grid.record(rc, reachable); err != nil {
			w.stats.OutOfRange++
			continue
		}
		if reachable {
			w.stats.Reachable++
		}
	}
}

// reset clears the partial grid and stats after a merge.
func (w *buildWorker) reset() {
	for i := range w.grid.cells {
		w.grid.cells[i] = Cell{}
	}
	w.stats = BuildStats{}
}
