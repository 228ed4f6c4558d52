package reachmap

import (
	"iter"
	"math"

	"github.com/pkg/errors"
)

// Axis names, in row-major storage order.
var axisNames = [4]string{"r", "theta", "phi", "psi"}

// Axis describes the extent and resolution of one dimension of the grid. Bounds and bin
// count are fixed at construction and never change.
type Axis struct {
	Min  float64
	Max  float64
	Bins int
}

// Validate checks that the axis is usable.
func (a Axis) Validate() error {
	if a.Bins <= 0 {
		return errors.Errorf("axis must have at least one bin, got %d", a.Bins)
	}
	if !(a.Min < a.Max) {
		return errors.Errorf("axis min %f must be less than max %f", a.Min, a.Max)
	}
	return nil
}

func (a Axis) width() float64 {
	return (a.Max - a.Min) / float64(a.Bins)
}

// bin returns the bin index for a value, or false if the value is out of range. A value
// exactly on the max bound belongs to the last bin, so the bound is covered with no gap
// and no double count.
func (a Axis) bin(v float64) (int, bool) {
	if math.IsNaN(v) || v < a.Min || v > a.Max {
		return 0, false
	}
	idx := int((v - a.Min) / a.width())
	if idx >= a.Bins {
		idx = a.Bins - 1
	}
	return idx, true
}

// Cell holds the reachability evidence accumulated for one bin of the reduced coordinate
// space. A cell with zero samples is unknown, which is distinct from sampled and never
// reachable.
type Cell struct {
	Samples   uint32
	Reachable uint32
}

// Probability returns the observed reachability probability of the cell. The second return
// is false when the cell has no samples.
func (c Cell) Probability() (float64, bool) {
	if c.Samples == 0 {
		return 0, false
	}
	return float64(c.Reachable) / float64(c.Samples), true
}

// GridIndex is a dense 4D grid of Cells over the reduced coordinate space, in row-major
// (r, theta, phi, psi) order. Its shape is fixed at construction. It is written to only
// during a build; once frozen it is safe for unbounded concurrent readers.
type GridIndex struct {
	axes  [4]Axis
	cells []Cell
}

// NewGridIndex allocates a grid with the given axes. All cells start unknown.
func NewGridIndex(axes [4]Axis) (*GridIndex, error) {
	n := 1
	for i, a := range axes {
		if err := a.Validate(); err != nil {
			return nil, errors.Wrapf(err, "axis %s", axisNames[i])
		}
		n *= a.Bins
	}
	return &GridIndex{axes: axes, cells: make([]Cell, n)}, nil
}

// NewGridIndexForReach derives axis extents from a robot's physical reach and allocates
// a grid. The angular axes span their full natural ranges.
func NewGridIndexForReach(maxReach float64, bins [4]int) (*GridIndex, error) {
	if maxReach <= 0 {
		return nil, errors.Errorf("max reach must be positive, got %f", maxReach)
	}
	return NewGridIndex([4]Axis{
		{Min: 0, Max: maxReach, Bins: bins[0]},
		{Min: -math.Pi / 2, Max: math.Pi / 2, Bins: bins[1]},
		{Min: 0, Max: math.Pi, Bins: bins[2]},
		{Min: -math.Pi, Max: math.Pi, Bins: bins[3]},
	})
}

// Axes returns the grid's axis configuration.
func (g *GridIndex) Axes() [4]Axis {
	return g.axes
}

// NumCells returns the total number of cells in the grid.
func (g *GridIndex) NumCells() int {
	return len(g.cells)
}

// Index bins a reduced coordinate into per-axis indices. Each axis is binned
// independently. A coordinate outside the configured bounds returns an error wrapping
// ErrOutOfRange; it is never clamped.
func (g *GridIndex) Index(rc ReducedCoord) ([4]int, error) {
	values := [4]float64{rc.R, rc.Theta, rc.Phi, rc.Psi}
	var idx [4]int
	for i, v := range values {
		b, ok := g.axes[i].bin(v)
		if !ok {
			return [4]int{}, newOutOfRangeError(axisNames[i], v, g.axes[i].Min, g.axes[i].Max)
		}
		idx[i] = b
	}
	return idx, nil
}

// At returns the cell at the given per-axis indices. Indices must be in bounds.
func (g *GridIndex) At(idx [4]int) *Cell {
	return &g.cells[g.flatten(idx)]
}

// CellFor looks up the cell holding the given reduced coordinate.
func (g *GridIndex) CellFor(rc ReducedCoord) (*Cell, error) {
	idx, err := g.Index(rc)
	if err != nil {
		return nil, err
	}
	return g.At(idx), nil
}

func (g *GridIndex) flatten(idx [4]int) int {
	flat := 0
	for i := range idx {
		flat = flat*g.axes[i].Bins + idx[i]
	}
	return flat
}

// Neighbors returns a lazy, restartable sequence of the in-bounds cell indices within the
// given Chebyshev bin-distance of idx, including idx itself. Used for smoothing sparse
// regions during queries.
func (g *GridIndex) Neighbors(idx [4]int, radius int) iter.Seq[[4]int] {
	return func(yield func([4]int) bool) {
		var lo, hi [4]int
		for i := range idx {
			lo[i] = max(0, idx[i]-radius)
			hi[i] = min(g.axes[i].Bins-1, idx[i]+radius)
		}
		for a := lo[0]; a <= hi[0]; a++ {
			for b := lo[1]; b <= hi[1]; b++ {
				for c := lo[2]; c <= hi[2]; c++ {
					for d := lo[3]; d <= hi[3]; d++ {
						if !yield([4]int{a, b, c, d}) {
							return
						}
					}
				}
			}
		}
	}
}

// MergeFrom adds the counters of another grid of identical shape into this one. Partial
// per-worker grids are merged this way at the end of a build.
func (g *GridIndex) MergeFrom(other *GridIndex) error {
	if other.axes != g.axes {
		return errors.New("cannot merge grids with different axes")
	}
	for i := range g.cells {
		g.cells[i].Samples += other.cells[i].Samples
		g.cells[i].Reachable += other.cells[i].Reachable
	}
	return nil
}

// record accumulates one sample into the cell owning rc. Build-phase only.
func (g *GridIndex) record(rc ReducedCoord, reachable bool) error {
	cell, err := g.CellFor(rc)
	if err != nil {
		return err
	}
	cell.Samples++
	if reachable {
		cell.Reachable++
	}
	return nil
}

// minSamples returns the smallest per-cell sample count in the grid.
func (g *GridIndex) minSamples() uint32 {
	m := uint32(math.MaxUint32)
	for i := range g.cells {
		if g.cells[i].Samples < m {
			m = g.cells[i].Samples
		}
	}
	return m
}

// Coverage reports the fraction of cells with at least one sample and the mean reachability
// probability among sampled cells.
func (g *GridIndex) Coverage() (sampled, meanReachability float64) {
	var nSampled int
	var sum float64
	for i := range g.cells {
		if p, ok := g.cells[i].Probability(); ok {
			nSampled++
			sum += p
		}
	}
	if nSampled == 0 {
		return 0, 0
	}
	return float64(nSampled) / float64(len(g.cells)), sum / float64(nSampled)
}

// Equal reports whether two grids have identical axes and identical per-cell counts.
func (g *GridIndex) Equal(other *GridIndex) bool {
	if other == nil || g.axes != other.axes {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}
