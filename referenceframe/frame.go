// Package referenceframe defines the frame of reference of a robot and the inputs that move it.
// It supplies the kinematics-provider interface consumed by the reachability map builder: anything
// that can turn a set of joint inputs into an end-effector pose.
package referenceframe

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"go.viam.com/reachmap/spatialmath"
)

// OOBErrString is a string that all out-of-bounds input errors contain, so that they can be
// checked for distinct from other Transform errors.
const OOBErrString = "input out of bounds"

// Limit represents the limits of motion for a degree of freedom of a referenceframe.
type Limit struct {
	Min float64
	Max float64
}

// Input wraps the input to a mutable frame, e.g. a joint angle or a gantry position.
//   - revolute inputs should be in radians.
//   - prismatic inputs should be in mm.
type Input struct {
	Value float64
}

// FloatsToInputs wraps a slice of floats in Inputs.
func FloatsToInputs(floats []float64) []Input {
	inputs := make([]Input, len(floats))
	for i, f := range floats {
		inputs[i] = Input{f}
	}
	return inputs
}

// InputsToFloats unwraps Inputs to raw floats.
func InputsToFloats(inputs []Input) []float64 {
	floats := make([]float64, len(inputs))
	for i, input := range inputs {
		floats[i] = input.Value
	}
	return floats
}

// InputsAlmostEqual returns whether two sets of inputs are element-wise within the given tolerance.
func InputsAlmostEqual(a, b []Input, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	return floats.EqualApprox(InputsToFloats(a), InputsToFloats(b), tol)
}

// Frame represents a kinematic chain or a piece of one, e.g. an arm or a joint. It is the
// kinematics provider of the reachability map: given joint inputs it produces the pose of its
// end relative to its base frame.
type Frame interface {
	// Name returns the name of the referenceframe.
	Name() string

	// Transform is the pose (rotation and translation) of the end of the frame relative to its
	// base, at the given inputs. Inputs outside the frame's limits return an error containing
	// OOBErrString.
	Transform([]Input) (spatialmath.Pose, error)

	// DoF will return a slice with length equal to the number of joints/degrees of freedom.
	// Each element describes the min and max movement limit of that joint/degree of freedom.
	DoF() []Limit
}

// RandomFrameInputs will produce a list of valid, in-bounds inputs for the referenceframe.
func RandomFrameInputs(m Frame, rSeed *rand.Rand) []Input {
	if rSeed == nil {
		//nolint:gosec
		rSeed = rand.New(rand.NewSource(1))
	}
	dof := m.DoF()
	pos := make([]Input, 0, len(dof))
	for _, limit := range dof {
		l, u := limit.Min, limit.Max

		// Default to [-999,999] as range if limits are infinite
		if l == math.Inf(-1) {
			l = -999
		}
		if u == math.Inf(1) {
			u = 999
		}
		pos = append(pos, Input{rSeed.Float64()*(u-l) + l})
	}
	return pos
}
