package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

const defaultDistanceEpsilon = 1e-8

// Pose represents a 6dof pose, position and orientation, with respect to the origin.
// The Point() method returns the position in (x, y, z) mm coordinates,
// and the Orientation() method returns an Orientation object, which has methods to parametrize
// the rotation in multiple different representations.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

// NewZeroPose returns a pose at (0, 0, 0) with the same orientation as whatever frame it is placed in.
func NewZeroPose() Pose {
	return newDualQuaternion()
}

// NewPose takes in a position and orientation and returns a Pose.
func NewPose(p r3.Vector, o Orientation) Pose {
	if o == nil {
		return NewPoseFromPoint(p)
	}
	q := newDualQuaternionFromRotation(o)
	q.SetTranslation(p.X, p.Y, p.Z)
	return q
}

// NewPoseFromPoint takes in a cartesian (x, y, z) and stores it as a vector.
// It will have the same orientation as the frame it is in reference to.
func NewPoseFromPoint(point r3.Vector) Pose {
	q := newDualQuaternion()
	q.SetTranslation(point.X, point.Y, point.Z)
	return q
}

// NewPoseFromOrientation takes in an orientation and returns a Pose with that orientation and
// no translation.
func NewPoseFromOrientation(o Orientation) Pose {
	if o == nil {
		return NewZeroPose()
	}
	return newDualQuaternionFromRotation(o)
}

// Compose treats Poses as functions A(x) and B(x), and produces a new function C(x) = A(B(x)).
// It converts the poses to dual quaternions and multiplies them together, normalizes the transform
// and returns a new Pose.
func Compose(a, b Pose) Pose {
	result := &dualQuaternion{newDualQuaternionFromPose(a).Transformation(newDualQuaternionFromPose(b).Number)}

	// Normalization required, thanks floating point math.
	if vecLen := Norm(result.Real); vecLen != 1 {
		result.Real = quat.Scale(1/vecLen, result.Real)
	}
	return result
}

// PoseInverse returns the pose representing the inverse transformation of the given pose.
// For a unit dual quaternion the inverse is the quaternion conjugate of both parts; note
// this is not dualquat.Conj, which also negates the dual part.
func PoseInverse(p Pose) Pose {
	q := newDualQuaternionFromPose(p)
	return &dualQuaternion{dualquat.Number{
		Real: quat.Conj(q.Real),
		Dual: quat.Conj(q.Dual),
	}}
}

// PoseBetween returns the difference between two poses, that is, the pose that when composed
// onto a brings you to b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// PoseAlmostCoincident checks if two poses are approximately the same in position only.
func PoseAlmostCoincident(a, b Pose) bool {
	return R3VectorAlmostEqual(a.Point(), b.Point(), defaultDistanceEpsilon)
}

// PoseAlmostEqual checks if two poses are approximately the same, in both position and orientation.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostCoincident(a, b) && OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

// R3VectorAlmostEqual compares two r3.Vector objects and returns whether the all elements of
// vector a are within epsilon of the corresponding elements of vector b.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return a.Sub(b).Norm() < epsilon
}
