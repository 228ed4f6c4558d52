package reachmap

import (
	"context"
	"iter"
	"math"
	"runtime"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/reachmap/spatialmath"
)

// ReachabilityStatus is the verdict of a forward query.
type ReachabilityStatus int

const (
	// StatusUnknown means the map holds no evidence for the pose's cell.
	StatusUnknown ReachabilityStatus = iota
	// StatusReachable means at least one feasible sampled configuration reached the cell.
	StatusReachable
	// StatusUnreachable means the cell was sampled but never feasibly reached, or the pose
	// lies outside the map bounds entirely.
	StatusUnreachable
)

func (s ReachabilityStatus) String() string {
	switch s {
	case StatusReachable:
		return "reachable"
	case StatusUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Reachability is a forward-query verdict with a confidence derived from the cell's
// sample statistics.
type Reachability struct {
	Status     ReachabilityStatus
	Confidence float64
}

// QueryOptions configures a query engine.
type QueryOptions struct {
	// SmoothingRadius, if positive, pools each lookup over the cells within this Chebyshev
	// bin-distance, which stabilizes sparse regions of the map.
	SmoothingRadius int
}

// QueryEngine answers forward and inverse reachability queries over a frozen grid. It holds
// no state of its own beyond configuration, so a single engine serves unbounded concurrent
// callers.
type QueryEngine struct {
	grid *GridIndex
	opts QueryOptions
}

// NewQueryEngine wraps a frozen grid. The grid must not be mutated afterwards.
func NewQueryEngine(grid *GridIndex, opts QueryOptions) (*QueryEngine, error) {
	if grid == nil {
		return nil, errors.New("grid cannot be nil")
	}
	return &QueryEngine{grid: grid, opts: opts}, nil
}

// QueryForward reports whether an end-effector pose, expressed in the robot's base frame,
// is reachable. Poses outside the map bounds are unreachable by construction. Cells with
// no samples report StatusUnknown, never StatusUnreachable.
func (e *QueryEngine) QueryForward(pose spatialmath.Pose) (Reachability, error) {
	rc, err := Reduce(pose)
	if err != nil {
		return Reachability{}, err
	}
	idx, err := e.grid.Index(rc)
	if err != nil {
		if errors.Is(err, ErrOutOfRange) {
			// Beyond the configured extents, trivially outside the arm's reach.
			return Reachability{Status: StatusUnreachable, Confidence: 1}, nil
		}
		return Reachability{}, err
	}
	samples, reachable := e.pooledCounts(idx)
	return verdict(samples, reachable), nil
}

// pooledCounts sums cell counters over the smoothing neighborhood of idx.
func (e *QueryEngine) pooledCounts(idx [4]int) (samples, reachable uint64) {
	if e.opts.SmoothingRadius <= 0 {
		c := e.grid.At(idx)
		return uint64(c.Samples), uint64(c.Reachable)
	}
	for n := range e.grid.Neighbors(idx, e.opts.SmoothingRadius) {
		c := e.grid.At(n)
		samples += uint64(c.Samples)
		reachable += uint64(c.Reachable)
	}
	return samples, reachable
}

func verdict(samples, reachable uint64) Reachability {
	if samples == 0 {
		return Reachability{Status: StatusUnknown, Confidence: 0}
	}
	if reachable > 0 {
		return Reachability{
			Status:     StatusReachable,
			Confidence: float64(reachable) / float64(samples),
		}
	}
	// Sampled and never reached; confidence grows with the amount of evidence.
	return Reachability{
		Status:     StatusUnreachable,
		Confidence: float64(samples) / float64(samples+1),
	}
}

// Candidate is one base placement produced by an inverse query. Placement is the pose of
// the robot base in the world frame; reachability is invariant to base yaw, so the yaw
// reported simply faces the target.
type Candidate struct {
	Placement   spatialmath.Pose
	Probability float64
}

// InverseOptions configures an inverse query sweep.
type InverseOptions struct {
	// Threshold is the minimum cell reachability probability for a placement to be
	// emitted. A threshold above 1 yields an empty sequence.
	Threshold float64

	// Preferred breaks ties between candidates of equal probability: closer placements
	// order first.
	Preferred r3.Vector

	// AzimuthSteps is the resolution of the sweep over the discarded base-azimuth
	// symmetry parameter. Defaults to 72 (5 degree steps).
	AzimuthSteps int

	// RadialSteps is the resolution of the sweep over base-to-target horizontal
	// distance. Defaults to the grid's r-axis bin count.
	RadialSteps int

	// BaseHeight is the height of the base plane in the world frame. Candidate
	// placements are generated on this plane.
	BaseHeight float64

	// Workers bounds the parallelism of the sweep. Defaults to runtime.NumCPU().
	Workers int
}

func (o *InverseOptions) fillDefaults(grid *GridIndex) {
	if o.AzimuthSteps <= 0 {
		o.AzimuthSteps = 72
	}
	if o.RadialSteps <= 0 {
		o.RadialSteps = grid.Axes()[0].Bins
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
}

// QueryInverse enumerates base placements from which the given world-frame end-effector
// pose is reachable. It sweeps the base-azimuth symmetry parameter discarded by Reduce,
// holding the target fixed, and keeps placements whose cell probability clears the
// threshold.
//
// The returned sequence is finite, restartable and ordered: descending probability, then
// ascending distance to the preferred placement, then sweep order. An empty sequence is
// not an error.
func (e *QueryEngine) QueryInverse(
	ctx context.Context,
	target spatialmath.Pose,
	opts InverseOptions,
) (iter.Seq[Candidate], error) {
	if target == nil {
		return nil, errors.New("target cannot be nil")
	}
	// Validate the target before sweeping; a malformed pose is the caller's error.
	if _, err := Reduce(target); err != nil {
		return nil, err
	}
	return e.sweep(ctx, target, func(rel spatialmath.Pose) (float64, bool) {
		rc, err := Reduce(rel)
		if err != nil {
			return 0, false
		}
		idx, err := e.grid.Index(rc)
		if err != nil {
			// Out of bounds: excluded from candidates, never clamped.
			return 0, false
		}
		samples, reachable := e.pooledCounts(idx)
		if samples == 0 {
			return 0, false
		}
		return float64(reachable) / float64(samples), true
	}, opts)
}

// QueryInversePosition is QueryInverse for a bare target position: the approach-direction
// and roll symmetry parameters are swept as well, by aggregating the best probability over
// the orientation bins of the positional cell.
func (e *QueryEngine) QueryInversePosition(
	ctx context.Context,
	target r3.Vector,
	opts InverseOptions,
) (iter.Seq[Candidate], error) {
	for _, v := range []float64{target.X, target.Y, target.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, newInvalidPoseError("position is not finite")
		}
	}
	return e.sweep(ctx, spatialmath.NewPoseFromPoint(target), func(rel spatialmath.Pose) (float64, bool) {
		rc, err := Reduce(rel)
		if err != nil {
			return 0, false
		}
		return e.bestOrientationProbability(rc)
	}, opts)
}

// bestOrientationProbability scans the (phi, psi) orientation bins at rc's positional
// cell and returns the highest observed probability.
func (e *QueryEngine) bestOrientationProbability(rc ReducedCoord) (float64, bool) {
	axes := e.grid.Axes()
	rBin, ok := axes[0].bin(rc.R)
	if !ok {
		return 0, false
	}
	tBin, ok := axes[1].bin(rc.Theta)
	if !ok {
		return 0, false
	}
	best := 0.0
	found := false
	for p := 0; p < axes[2].Bins; p++ {
		for s := 0; s < axes[3].Bins; s++ {
			samples, reachable := e.pooledCounts([4]int{rBin, tBin, p, s})
			if samples == 0 {
				continue
			}
			found = true
			if prob := float64(reachable) / float64(samples); prob > best {
				best = prob
			}
		}
	}
	return best, found
}

// sweep enumerates base placements on the base plane around the target position and scores
// each via probe, which receives the target pose relative to the candidate base. The sweep
// is parallelized across azimuth slices and merged into one deterministic ordering.
func (e *QueryEngine) sweep(
	ctx context.Context,
	target spatialmath.Pose,
	probe func(rel spatialmath.Pose) (float64, bool),
	opts InverseOptions,
) (iter.Seq[Candidate], error) {
	opts.fillDefaults(e.grid)

	targetPoint := target.Point()
	zRel := targetPoint.Z - opts.BaseHeight
	rMax := e.grid.Axes()[0].Max
	dMaxSq := rMax*rMax - zRel*zRel
	if opts.Threshold > 1 || dMaxSq <= 0 {
		// Nothing can clear the threshold, or the target plane is entirely out of reach.
		return emptyCandidates(), nil
	}
	dMax := math.Sqrt(dMaxSq)

	results := make([][]Candidate, opts.AzimuthSteps)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Workers)
	for j := 0; j < opts.AzimuthSteps; j++ {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			gamma := 2 * math.Pi * float64(j) / float64(opts.AzimuthSteps)
			var slice []Candidate
			for i := 0; i < opts.RadialSteps; i++ {
				d := dMax * (float64(i) + 0.5) / float64(opts.RadialSteps)
				basePoint := r3.Vector{
					X: targetPoint.X - d*math.Cos(gamma),
					Y: targetPoint.Y - d*math.Sin(gamma),
					Z: opts.BaseHeight,
				}
				// Yaw faces the target; reachability is invariant to it.
				base := spatialmath.NewPose(basePoint, spatialmath.NewRotationAboutZ(gamma))
				prob, ok := probe(spatialmath.PoseBetween(base, target))
				if !ok || prob < opts.Threshold {
					continue
				}
				slice = append(slice, Candidate{Placement: base, Probability: prob})
			}
			results[j] = slice
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	merged := make([]Candidate, 0)
	for _, slice := range results {
		merged = append(merged, slice...)
	}
	sortCandidates(merged, opts.Preferred)
	return candidateSeq(merged), nil
}

func emptyCandidates() iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {}
}

func candidateSeq(candidates []Candidate) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for _, c := range candidates {
			if !yield(c) {
				return
			}
		}
	}
}

// sortCandidates orders candidates by descending probability, breaking ties by proximity
// to the preferred placement. The sort is stable, so full ties keep sweep order.
func sortCandidates(candidates []Candidate, preferred r3.Vector) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Probability != candidates[j].Probability {
			return candidates[i].Probability > candidates[j].Probability
		}
		di := candidates[i].Placement.Point().Sub(preferred).Norm2()
		dj := candidates[j].Placement.Point().Sub(preferred).Norm2()
		return di < dj
	})
}
