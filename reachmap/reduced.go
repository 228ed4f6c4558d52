package reachmap

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/reachmap/spatialmath"
)

// Tolerance on |q|-1 before a rotation is considered malformed.
const unitQuatTolerance = 1e-4

// Positions closer than this to the base origin or vertical axis have no defined
// azimuth; the reduction pins it to zero there.
const axisEpsilon = 1e-9

// ReducedCoord is the 4D reduction of a 6dof end-effector pose expressed in the robot's
// base frame. The mapping is many-to-one: it collapses rotation of the whole pose about
// the base Z axis and tool roll about the approach axis.
type ReducedCoord struct {
	// R is the distance from the base origin to the end-effector position, in the units
	// of the pose (mm for frames built on spatialmath).
	R float64
	// Theta is the elevation of the position above the base XY plane, in [-pi/2, pi/2].
	Theta float64
	// Phi is the tilt of the tool approach axis (tool +Z) away from base vertical, in [0, pi].
	Phi float64
	// Psi is the azimuth of the approach axis relative to the radial direction, in [-pi, pi].
	Psi float64
}

// Reduce maps a pose in the base frame to its reduced 4D coordinate. It is deterministic
// and closed-form. A malformed pose (NaN coordinates, non-unit rotation) returns an error
// wrapping ErrInvalidPose.
func Reduce(pose spatialmath.Pose) (ReducedCoord, error) {
	pt := pose.Point()
	q := pose.Orientation().Quaternion()
	if err := validatePose(pt, q); err != nil {
		return ReducedCoord{}, err
	}

	r := pt.Norm()
	var theta float64
	if r > axisEpsilon {
		theta = math.Asin(clamp(pt.Z/r, -1, 1))
	}

	// Base azimuth of the position; undefined on the vertical axis, pinned to 0 there.
	var alpha float64
	if math.Hypot(pt.X, pt.Y) > axisEpsilon {
		alpha = math.Atan2(pt.Y, pt.X)
	}

	// Rotate the orientation into the canonical half-plane, removing the base azimuth.
	canonical := quat.Mul(zRotation(-alpha), q)
	approach := spatialmath.QuatRotateVector(canonical, r3.Vector{Z: 1})

	phi := math.Acos(clamp(approach.Z, -1, 1))
	var psi float64
	if math.Hypot(approach.X, approach.Y) > axisEpsilon {
		psi = math.Atan2(approach.Y, approach.X)
	}

	return ReducedCoord{R: r, Theta: theta, Phi: phi, Psi: psi}, nil
}

// Expand is the right inverse of Reduce. It rebuilds a full pose from a reduced coordinate
// and the two symmetry parameters the reduction discarded: the base azimuth of the position
// and the tool roll about the approach axis. For any in-range rc,
// Reduce(Expand(rc, a, g)) == rc up to floating point, for all a and g.
func Expand(rc ReducedCoord, baseAzimuth, toolRoll float64) spatialmath.Pose {
	rho := rc.R * math.Cos(rc.Theta)
	pt := r3.Vector{
		X: rho * math.Cos(baseAzimuth),
		Y: rho * math.Sin(baseAzimuth),
		Z: rc.R * math.Sin(rc.Theta),
	}

	// Canonical orientation: point the tool +Z along the approach direction given by
	// (phi, psi), then roll about it.
	canonical := quat.Mul(quat.Mul(zRotation(rc.Psi), yRotation(rc.Phi)), zRotation(toolRoll))
	q := quat.Mul(zRotation(baseAzimuth), canonical)
	return spatialmath.NewPose(pt, spatialmath.NewOrientationFromQuaternion(q))
}

func validatePose(pt r3.Vector, q quat.Number) error {
	if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsNaN(pt.Z) {
		return newInvalidPoseError("position contains NaN")
	}
	if math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) || math.IsInf(pt.Z, 0) {
		return newInvalidPoseError("position contains Inf")
	}
	n := spatialmath.Norm(q)
	if math.IsNaN(n) {
		return newInvalidPoseError("orientation contains NaN")
	}
	if math.Abs(n-1) > unitQuatTolerance {
		return newInvalidPoseError("orientation is not a unit rotation")
	}
	return nil
}

func zRotation(theta float64) quat.Number {
	return quat.Number{Real: math.Cos(theta / 2), Kmag: math.Sin(theta / 2)}
}

func yRotation(theta float64) quat.Number {
	return quat.Number{Real: math.Cos(theta / 2), Jmag: math.Sin(theta / 2)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
