package referenceframe

import (
	"github.com/pkg/errors"
)

// ErrKinematics is the base error for failures inside a kinematics provider. Sampling loops treat
// any error wrapping it as non-fatal: the sample is discarded and counted.
var ErrKinematics = errors.New("kinematics provider failure")

// NewIncorrectInputLengthError returns an error describing a mismatch between the number of
// inputs given and the frame's degrees of freedom.
func NewIncorrectInputLengthError(actual, expected int) error {
	return errors.Errorf("number of inputs does not match frame DoF, expected %d but got %d", expected, actual)
}

// NewJointOutOfRangeError returns an error describing an input outside a joint's limits.
// The message contains OOBErrString so the error class can be detected.
func NewJointOutOfRangeError(joint int, value float64, limit Limit) error {
	return errors.Wrapf(ErrKinematics, "%s: joint %d at %.4f, limits [%.4f, %.4f]", OOBErrString, joint, value, limit.Min, limit.Max)
}

// NewKinematicError wraps a provider-specific failure so callers can detect it with errors.Is.
func NewKinematicError(reason string) error {
	return errors.Wrap(ErrKinematics, reason)
}
