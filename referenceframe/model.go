package referenceframe

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/reachmap/spatialmath"
)

// Link describes one revolute joint of a serial chain and the fixed link that follows it.
// The joint rotates about Axis (in the frame reached so far), then the chain translates by
// Offset in the rotated frame.
type Link struct {
	Axis   r3.Vector
	Limit  Limit
	Offset r3.Vector
}

// simpleModel is a serial chain of revolute joints. It is a minimal reference kinematics
// provider; real robots bring their own Frame implementation.
type simpleModel struct {
	name  string
	links []Link
}

// NewSimpleModel constructs a serial-chain Frame from an ordered list of links.
func NewSimpleModel(name string, links []Link) (Frame, error) {
	if len(links) == 0 {
		return nil, errors.New("simple model must have at least one link")
	}
	normalized := make([]Link, len(links))
	for i, l := range links {
		if l.Axis.Norm() == 0 {
			return nil, errors.Errorf("link %d has a zero rotation axis", i)
		}
		if l.Limit.Min > l.Limit.Max {
			return nil, errors.Errorf("link %d has inverted limits [%f, %f]", i, l.Limit.Min, l.Limit.Max)
		}
		l.Axis = l.Axis.Normalize()
		normalized[i] = l
	}
	return &simpleModel{name: name, links: normalized}, nil
}

// Name returns the name of the model.
func (m *simpleModel) Name() string {
	return m.name
}

// DoF returns the joint limits of the chain, one per link.
func (m *simpleModel) DoF() []Limit {
	limits := make([]Limit, 0, len(m.links))
	for _, l := range m.links {
		limits = append(limits, l.Limit)
	}
	return limits
}

// Transform returns the pose of the end of the chain relative to its base for the given
// joint inputs.
func (m *simpleModel) Transform(inputs []Input) (spatialmath.Pose, error) {
	if len(inputs) != len(m.links) {
		return nil, NewIncorrectInputLengthError(len(inputs), len(m.links))
	}
	pose := spatialmath.NewZeroPose()
	for i, l := range m.links {
		angle := inputs[i].Value
		if angle < l.Limit.Min || angle > l.Limit.Max {
			return nil, NewJointOutOfRangeError(i, angle, l.Limit)
		}
		rot := &spatialmath.R4AA{Theta: angle, RX: l.Axis.X, RY: l.Axis.Y, RZ: l.Axis.Z}
		step := spatialmath.Compose(spatialmath.NewPoseFromOrientation(rot), spatialmath.NewPoseFromPoint(l.Offset))
		pose = spatialmath.Compose(pose, step)
	}
	return pose, nil
}

// MaxReach returns the length of the chain when fully extended, the sum of the link offsets.
// Map axis extents are commonly derived from this.
func MaxReach(f Frame) float64 {
	if m, ok := f.(*simpleModel); ok {
		var reach float64
		for _, l := range m.links {
			reach += l.Offset.Norm()
		}
		return reach
	}
	return 0
}
