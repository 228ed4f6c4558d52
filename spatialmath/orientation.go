// Package spatialmath defines spatial mathematical operations.
package spatialmath

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// If two unit quaternions differ by less than this amount we consider them equal.
const defaultAngleEpsilon = 1e-5

// Orientation is an interface used to express the different parameterizations of the orientation
// of a rigid object or a frame of reference in 3D Euclidean space.
type Orientation interface {
	Quaternion() quat.Number
	AxisAngles() *R4AA
}

// NewZeroOrientation returns an orientation which signifies no rotation.
func NewZeroOrientation() Orientation {
	return &quaternion{1, 0, 0, 0}
}

// NewOrientationFromQuaternion creates an Orientation from a quaternion. The quaternion is
// normalized before being stored; a zero quaternion becomes the identity.
func NewOrientationFromQuaternion(q quat.Number) Orientation {
	n := Norm(q)
	if n == 0 {
		return NewZeroOrientation()
	}
	q = quat.Scale(1/n, q)
	o := quaternion(q)
	return &o
}

// NewRotationAboutZ returns the orientation representing a rotation of theta radians about the Z axis.
func NewRotationAboutZ(theta float64) Orientation {
	return &R4AA{Theta: theta, RZ: 1}
}

// OrientationAlmostEqual will return a bool describing whether two orientations are approximately the same.
func OrientationAlmostEqual(o1, o2 Orientation) bool {
	return QuaternionAlmostEqual(o1.Quaternion(), o2.Quaternion(), defaultAngleEpsilon)
}

// OrientationBetween returns the orientation representing the difference between the two given Orientations.
func OrientationBetween(o1, o2 Orientation) Orientation {
	q := quaternion(quat.Mul(o2.Quaternion(), quat.Conj(o1.Quaternion())))
	return &q
}

// RandomOrientation samples a uniformly random orientation using the given source of randomness.
func RandomOrientation(rng *rand.Rand) Orientation {
	// Shoemake's subgroup algorithm for uniform unit quaternions.
	u1 := rng.Float64()
	u2 := rng.Float64() * 2 * math.Pi
	u3 := rng.Float64() * 2 * math.Pi
	s1 := math.Sqrt(1 - u1)
	s2 := math.Sqrt(u1)
	o := quaternion{
		Real: s1 * math.Sin(u2),
		Imag: s1 * math.Cos(u2),
		Jmag: s2 * math.Sin(u3),
		Kmag: s2 * math.Cos(u3),
	}
	return &o
}

// quaternion is an orientation in quaternion representation.
type quaternion quat.Number

// Quaternion returns orientation in quaternion representation.
func (q *quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

// AxisAngles returns the orientation in axis angle representation.
func (q *quaternion) AxisAngles() *R4AA {
	return QuatToR4AA(q.Quaternion())
}

// R4AA represents an R4 axis angle: a rotation of Theta radians about the unit axis (RX, RY, RZ).
type R4AA struct {
	Theta float64
	RX    float64
	RY    float64
	RZ    float64
}

// Quaternion returns orientation in quaternion representation.
func (r4 *R4AA) Quaternion() quat.Number {
	sinA := math.Sin(r4.Theta / 2)
	return quat.Number{
		Real: math.Cos(r4.Theta / 2),
		Imag: sinA * r4.RX,
		Jmag: sinA * r4.RY,
		Kmag: sinA * r4.RZ,
	}
}

// AxisAngles returns the orientation in axis angle representation.
func (r4 *R4AA) AxisAngles() *R4AA {
	return r4
}

// Normalize scales the axis of the R4AA to unit length.
func (r4 *R4AA) Normalize() {
	norm := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if norm == 0 {
		// no rotation axis, keep the convention of rotating about Z
		r4.RZ = 1
		return
	}
	r4.RX /= norm
	r4.RY /= norm
	r4.RZ /= norm
}

// QuatToR4AA converts a quaternion to an R4 axis angle.
func QuatToR4AA(q quat.Number) *R4AA {
	denom := Norm(q)
	angle := 2 * math.Atan2(math.Sqrt(q.Imag*q.Imag+q.Jmag*q.Jmag+q.Kmag*q.Kmag), q.Real)
	if math.Abs(angle) < defaultAngleEpsilon {
		return &R4AA{Theta: 0, RZ: 1}
	}
	sinHalf := math.Sin(angle / 2)
	return &R4AA{
		Theta: angle,
		RX:    q.Imag / (denom * sinHalf),
		RY:    q.Jmag / (denom * sinHalf),
		RZ:    q.Kmag / (denom * sinHalf),
	}
}

// Norm returns the norm of the quaternion.
func Norm(q quat.Number) float64 {
	return math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

// QuaternionAlmostEqual checks whether two quaternions represent the same rotation to within
// the given tolerance. A quaternion and its negation represent the same rotation.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	diff := quat.Mul(a, quat.Conj(b))
	return math.Abs(diff.Real) > 1-tol
}

// QuatRotateVector rotates the vector v by the unit quaternion q.
func QuatRotateVector(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rotated := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}
