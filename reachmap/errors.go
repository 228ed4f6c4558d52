package reachmap

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidPose is returned when a pose given to Reduce or a query is malformed,
	// e.g. NaN coordinates or a non-unit rotation. Not recoverable by this package.
	ErrInvalidPose = errors.New("invalid pose")

	// ErrOutOfRange is returned when a reduced coordinate falls outside the grid bounds.
	// Forward queries treat it as unreachable; inverse sweeps exclude the candidate.
	ErrOutOfRange = errors.New("reduced coordinate out of range")

	// ErrIncompatibleFormat is returned when loading a map file with an unsupported
	// format version. Fatal to the load.
	ErrIncompatibleFormat = errors.New("incompatible map file format")

	// ErrCorruptData is returned when a map file is truncated or fails header validation.
	// Fatal to the load, no partial results.
	ErrCorruptData = errors.New("corrupt map file")
)

func newInvalidPoseError(reason string) error {
	return errors.Wrap(ErrInvalidPose, reason)
}

func newOutOfRangeError(axis string, value float64, min, max float64) error {
	return errors.Wrapf(ErrOutOfRange, "%s=%f outside [%f, %f]", axis, value, min, max)
}

func newIncompatibleFormatError(got, want uint32) error {
	return errors.Wrapf(ErrIncompatibleFormat, "file version %d, supported version %d", got, want)
}

func newCorruptDataError(reason string) error {
	return errors.Wrap(ErrCorruptData, reason)
}
