package reachmap

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
)

// FormatVersion is the map file format version written by Save and required by Load.
const FormatVersion uint32 = 1

// The file layout is fixed and byte-exact, big endian throughout:
//
//	magic "RM4D"
//	version   uint32
//	4 axis records: min float64, max float64, bins uint32
//	cells, row-major (r, theta, phi, psi): samples uint32, reachable uint32
var fileMagic = [4]byte{'R', 'M', '4', 'D'}

// Guard against absurd headers in corrupt files before allocating.
const maxLoadCells = 1 << 30

// Save writes the grid to w in the versioned binary layout. Load(Save(g)) reproduces g
// exactly, including per-cell counts and axis bounds.
func Save(grid *GridIndex, w io.Writer) error {
	if grid == nil {
		return errors.New("grid cannot be nil")
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(fileMagic[:]); err != nil {
		return errors.Wrap(err, "writing magic")
	}
	if err := binary.Write(bw, binary.BigEndian, FormatVersion); err != nil {
		return errors.Wrap(err, "writing version")
	}
	for i, a := range grid.axes {
		if err := writeAxis(bw, a); err != nil {
			return errors.Wrapf(err, "writing axis %s", axisNames[i])
		}
	}
	if err := binary.Write(bw, binary.BigEndian, grid.cells); err != nil {
		return errors.Wrap(err, "writing cells")
	}
	return bw.Flush()
}

// Load reads a grid previously written by Save. A version mismatch returns an error
// wrapping ErrIncompatibleFormat; a truncated or inconsistent file returns an error
// wrapping ErrCorruptData. There is no partial-load fallback.
func Load(r io.Reader) (*GridIndex, error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, newCorruptDataError("file too short for magic")
	}
	if magic != fileMagic {
		return nil, newCorruptDataError("bad magic")
	}

	var version uint32
	if err := binary.Read(br, binary.BigEndian, &version); err != nil {
		return nil, newCorruptDataError("file too short for version")
	}
	if version != FormatVersion {
		return nil, newIncompatibleFormatError(version, FormatVersion)
	}

	var axes [4]Axis
	n := 1
	for i := range axes {
		a, err := readAxis(br)
		if err != nil {
			return nil, errors.Wrapf(err, "axis %s", axisNames[i])
		}
		if err := a.Validate(); err != nil {
			return nil, newCorruptDataError(err.Error())
		}
		// Cap the running product before multiplying so a hostile header cannot
		// overflow it past the guard.
		if a.Bins > maxLoadCells || n > maxLoadCells/a.Bins {
			return nil, newCorruptDataError("cell count in header is implausibly large")
		}
		axes[i] = a
		n *= a.Bins
	}

	grid := &GridIndex{axes: axes, cells: make([]Cell, n)}
	if err := binary.Read(br, binary.BigEndian, grid.cells); err != nil {
		return nil, newCorruptDataError("file truncated in cell data")
	}
	return grid, nil
}

// SaveFile writes the grid to a file at path.
func SaveFile(grid *GridIndex, path string) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return Save(grid, f)
}

// LoadFile reads a grid from a file at path.
func LoadFile(path string) (*GridIndex, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	return Load(f)
}

func writeAxis(w io.Writer, a Axis) error {
	if err := binary.Write(w, binary.BigEndian, a.Min); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, a.Max); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, uint32(a.Bins))
}

func readAxis(r io.Reader) (Axis, error) {
	var a Axis
	if err := binary.Read(r, binary.BigEndian, &a.Min); err != nil {
		return a, newCorruptDataError("file too short for axis bounds")
	}
	if err := binary.Read(r, binary.BigEndian, &a.Max); err != nil {
		return a, newCorruptDataError("file too short for axis bounds")
	}
	var bins uint32
	if err := binary.Read(r, binary.BigEndian, &bins); err != nil {
		return a, newCorruptDataError("file too short for axis bins")
	}
	a.Bins = int(bins)
	return a, nil
}
