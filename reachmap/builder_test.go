package reachmap

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/reachmap/referenceframe"
	"go.viam.com/reachmap/spatialmath"
)

// testArm returns a two-joint arm with reach 2: a shoulder about Z and an elbow about Y.
func testArm(t *testing.T) referenceframe.Frame {
	t.Helper()
	m, err := referenceframe.NewSimpleModel("testArm", []referenceframe.Link{
		{Axis: r3.Vector{Z: 1}, Limit: referenceframe.Limit{Min: -math.Pi, Max: math.Pi}, Offset: r3.Vector{X: 1}},
		{Axis: r3.Vector{Y: 1}, Limit: referenceframe.Limit{Min: -math.Pi / 2, Max: math.Pi / 2}, Offset: r3.Vector{X: 1}},
	})
	test.That(t, err, test.ShouldBeNil)
	return m
}

func testBuildOptions() BuildOptions {
	return BuildOptions{
		Samples:   20000,
		Workers:   2,
		Seed:      27,
		BatchSize: 512,
		MaxReach:  2,
		Bins:      [4]int{8, 4, 4, 8},
	}
}

func cellCounts(g *GridIndex) map[[4]int]Cell {
	counts := map[[4]int]Cell{}
	axes := g.Axes()
	for a := 0; a < axes[0].Bins; a++ {
		for b := 0; b < axes[1].Bins; b++ {
			for c := 0; c < axes[2].Bins; c++ {
				for d := 0; d < axes[3].Bins; d++ {
					idx := [4]int{a, b, c, d}
					if cell := g.At(idx); cell.Samples > 0 {
						counts[idx] = *cell
					}
				}
			}
		}
	}
	return counts
}

func gridTotals(g *GridIndex) (samples, reachable uint64) {
	for _, cell := range cellCounts(g) {
		samples += uint64(cell.Samples)
		reachable += uint64(cell.Reachable)
	}
	return samples, reachable
}

func TestBuildAccounting(t *testing.T) {
	logger := golog.NewTestLogger(t)
	arm := testArm(t)
	opts := testBuildOptions()

	grid, stats, err := Build(context.Background(), arm, opts, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stats.Samples, test.ShouldEqual, uint64(opts.Samples))
	test.That(t, stats.KinematicFailures, test.ShouldEqual, 0)

	// Every draw is accounted for: in a cell, out of range, or failed.
	inGrid, reachable := gridTotals(grid)
	test.That(t, inGrid+stats.OutOfRange+stats.KinematicFailures, test.ShouldEqual, stats.Samples)
	test.That(t, reachable, test.ShouldEqual, stats.Reachable)

	// With no feasibility predicate every binned sample is reachable evidence.
	test.That(t, stats.Reachable, test.ShouldEqual, inGrid)

	sampled, _ := grid.Coverage()
	test.That(t, sampled, test.ShouldBeGreaterThan, 0)
}

func TestBuildDeterminism(t *testing.T) {
	logger := golog.NewTestLogger(t)
	arm := testArm(t)
	opts := testBuildOptions()
	opts.Samples = 5000

	g1, s1, err := Build(context.Background(), arm, opts, logger)
	test.That(t, err, test.ShouldBeNil)
	g2, s2, err := Build(context.Background(), arm, opts, logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, g1.Equal(g2), test.ShouldBeTrue)
	test.That(t, s2, test.ShouldResemble, s1)

	// A different seed produces a different sample set.
	opts.Seed = 28
	g3, _, err := Build(context.Background(), arm, opts, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, g1.Equal(g3), test.ShouldBeFalse)
}

func TestBuildMonotonicity(t *testing.T) {
	logger := golog.NewTestLogger(t)
	arm := testArm(t)

	small := testBuildOptions()
	small.Samples = 2000
	large := testBuildOptions()
	large.Samples = 6000

	g1, _, err := Build(context.Background(), arm, small, logger)
	test.That(t, err, test.ShouldBeNil)
	g2, _, err := Build(context.Background(), arm, large, logger)
	test.That(t, err, test.ShouldBeNil)

	// The larger budget draws a superset of the smaller one's samples, so no cell loses counts.
	for idx, cell := range cellCounts(g1) {
		test.That(t, g2.At(idx).Samples, test.ShouldBeGreaterThanOrEqualTo, cell.Samples)
	}
}

func TestBuildZeroSamples(t *testing.T) {
	logger := golog.NewTestLogger(t)
	arm := testArm(t)
	opts := testBuildOptions()
	opts.Samples = 0

	grid, stats, err := Build(context.Background(), arm, opts, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stats.Samples, test.ShouldEqual, 0)

	engine, err := NewQueryEngine(grid, QueryOptions{})
	test.That(t, err, test.ShouldBeNil)
	rng := rand.New(rand.NewSource(9))
	for _, pose := range SampleEvaluationPoses(rng, 1.5, 1.0, 50) {
		res, err := engine.QueryForward(pose)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Status, test.ShouldEqual, StatusUnknown)
	}
}

func TestBuildOutOfRangeAccounting(t *testing.T) {
	logger := golog.NewTestLogger(t)
	arm := testArm(t)
	opts := testBuildOptions()
	opts.Samples = 2000
	// Grid much smaller than the arm's reach: most samples land outside.
	opts.MaxReach = 0.5

	grid, stats, err := Build(context.Background(), arm, opts, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stats.Samples, test.ShouldEqual, 2000)
	test.That(t, stats.OutOfRange, test.ShouldBeGreaterThan, 0)
	inGrid, _ := gridTotals(grid)
	test.That(t, inGrid+stats.OutOfRange, test.ShouldEqual, stats.Samples)
}

// flakyFrame fails kinematics for half its input space.
type flakyFrame struct {
	referenceframe.Frame
}

func (f *flakyFrame) Transform(inputs []referenceframe.Input) (spatialmath.Pose, error) {
	if inputs[0].Value < 0 {
		return nil, referenceframe.NewKinematicError("simulated solver failure")
	}
	return f.Frame.Transform(inputs)
}

func TestBuildKinematicFailures(t *testing.T) {
	logger := golog.NewTestLogger(t)
	arm := &flakyFrame{testArm(t)}
	opts := testBuildOptions()
	opts.Samples = 2000

	grid, stats, err := Build(context.Background(), arm, opts, logger)
	test.That(t, err, test.ShouldBeNil)
	// One bad sample never aborts the build; failures are counted.
	test.That(t, stats.KinematicFailures, test.ShouldBeGreaterThan, 0)
	test.That(t, stats.Samples, test.ShouldEqual, 2000)
	inGrid, _ := gridTotals(grid)
	test.That(t, inGrid+stats.OutOfRange+stats.KinematicFailures, test.ShouldEqual, stats.Samples)
}

func TestBuildCancellation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	arm := testArm(t)
	opts := testBuildOptions()
	opts.Samples = 1 << 30
	opts.BatchSize = 256

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	grid, stats, err := Build(ctx, arm, opts, logger)
	test.That(t, err, test.ShouldBeError, context.Canceled)

	// The partial grid is internally consistent: counts so far are valid, no torn cells.
	test.That(t, grid, test.ShouldNotBeNil)
	inGrid, _ := gridTotals(grid)
	test.That(t, inGrid+stats.OutOfRange+stats.KinematicFailures, test.ShouldEqual, stats.Samples)
}

func TestBuildMinSamplesPerCell(t *testing.T) {
	logger := golog.NewTestLogger(t)
	arm := testArm(t)
	opts := BuildOptions{
		Samples:           1 << 20,
		Workers:           2,
		Seed:              3,
		BatchSize:         64,
		MinSamplesPerCell: 10,
		// One cell over everything, so the threshold is met in the first round.
		Axes: [4]Axis{
			{Min: 0, Max: 3, Bins: 1},
			{Min: -math.Pi / 2, Max: math.Pi / 2, Bins: 1},
			{Min: 0, Max: math.Pi, Bins: 1},
			{Min: -math.Pi, Max: math.Pi, Bins: 1},
		},
	}

	grid, stats, err := Build(context.Background(), arm, opts, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stats.Samples, test.ShouldEqual, 128) // one round of two workers
	test.That(t, grid.At([4]int{0, 0, 0, 0}).Samples, test.ShouldBeGreaterThanOrEqualTo, 10)
}

func TestWorkerSeedDerivation(t *testing.T) {
	// Worker zero keeps the caller's seed; the stride gives every other worker its own.
	test.That(t, workerSeed(27, 0), test.ShouldEqual, int64(27))

	seen := map[int64]bool{}
	for i := 0; i < 16; i++ {
		seen[workerSeed(27, i)] = true
	}
	test.That(t, len(seen), test.ShouldEqual, 16)

	// The mix wraps rather than overflowing, so extreme seeds are fine too.
	seen = map[int64]bool{}
	for _, seed := range []int64{math.MinInt64, -1, 0, math.MaxInt64} {
		seen[workerSeed(seed, 3)] = true
	}
	test.That(t, len(seen), test.ShouldEqual, 4)
}

func TestBuildArgumentErrors(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, _, err := Build(context.Background(), nil, testBuildOptions(), logger)
	test.That(t, err, test.ShouldNotBeNil)

	opts := testBuildOptions()
	opts.Samples = -1
	_, _, err = Build(context.Background(), testArm(t), opts, logger)
	test.That(t, err, test.ShouldNotBeNil)

	opts = testBuildOptions()
	opts.MaxReach = 0
	opts.Axes = [4]Axis{}
	_, _, err = Build(context.Background(), testArm(t), opts, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
