package spatialmath

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestBasicPoseConstruction(t *testing.T) {
	p := NewZeroPose()
	// Should return an identity dual quat.
	test.That(t, PoseAlmostEqual(p, NewPoseFromPoint(r3.Vector{})), test.ShouldBeTrue)

	p = NewPoseFromPoint(r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, p.Point().X, test.ShouldAlmostEqual, 1)
	test.That(t, p.Point().Y, test.ShouldAlmostEqual, 2)
	test.That(t, p.Point().Z, test.ShouldAlmostEqual, 3)
	test.That(t, OrientationAlmostEqual(p.Orientation(), NewZeroOrientation()), test.ShouldBeTrue)

	o := &R4AA{Theta: math.Pi / 2, RZ: 1}
	p = NewPose(r3.Vector{X: 1, Y: 0, Z: 0}, o)
	test.That(t, p.Point().X, test.ShouldAlmostEqual, 1)
	test.That(t, OrientationAlmostEqual(p.Orientation(), o), test.ShouldBeTrue)
}

func TestPoseComposition(t *testing.T) {
	// Rotating (1,0,0) by 90 degrees about Z should land on (0,1,0).
	rot := NewPoseFromOrientation(&R4AA{Theta: math.Pi / 2, RZ: 1})
	pt := NewPoseFromPoint(r3.Vector{X: 1, Y: 0, Z: 0})
	moved := Compose(rot, pt)
	test.That(t, moved.Point().X, test.ShouldAlmostEqual, 0)
	test.That(t, moved.Point().Y, test.ShouldAlmostEqual, 1)
	test.That(t, moved.Point().Z, test.ShouldAlmostEqual, 0)

	// Composing a pose with its inverse should be the identity.
	p := NewPose(r3.Vector{X: 3, Y: -2, Z: 7}, &R4AA{Theta: 1.2, RX: 0.5, RY: 0.5, RZ: math.Sqrt(0.5)})
	ident := Compose(p, PoseInverse(p))
	test.That(t, PoseAlmostEqual(ident, NewZeroPose()), test.ShouldBeTrue)

	// PoseBetween(a, b) composed onto a should give b.
	a := NewPose(r3.Vector{X: 1, Y: 2, Z: 3}, &R4AA{Theta: 0.5, RY: 1})
	b := NewPose(r3.Vector{X: -5, Y: 0, Z: 1}, &R4AA{Theta: 2.1, RX: 1})
	between := PoseBetween(a, b)
	test.That(t, PoseAlmostEqual(Compose(a, between), b), test.ShouldBeTrue)
}

func TestPoseInverse(t *testing.T) {
	// Inverting a rotated translation carries the translation through the inverse
	// rotation: for Rz(90) with t=(1,0,0), the inverse translation is (0,1,0).
	p := NewPose(r3.Vector{X: 1}, &R4AA{Theta: math.Pi / 2, RZ: 1})
	inv := PoseInverse(p)
	test.That(t, R3VectorAlmostEqual(inv.Point(), r3.Vector{Y: 1}, 1e-8), test.ShouldBeTrue)

	// Inverse composes to the identity from both sides.
	test.That(t, PoseAlmostEqual(Compose(p, inv), NewZeroPose()), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(Compose(inv, p), NewZeroPose()), test.ShouldBeTrue)

	// And PoseBetween built on it recovers relative poses with rotation involved.
	a := NewPose(r3.Vector{X: 2, Y: -1, Z: 3}, &R4AA{Theta: 1.1, RX: 1})
	b := NewPose(r3.Vector{X: 0.5, Y: 4, Z: -2}, &R4AA{Theta: 2.4, RZ: 1})
	test.That(t, PoseAlmostEqual(Compose(a, PoseBetween(a, b)), b), test.ShouldBeTrue)
}

func TestQuatConversions(t *testing.T) {
	for _, aa := range []*R4AA{
		{Theta: math.Pi / 4, RZ: 1},
		{Theta: math.Pi / 2, RX: 1},
		{Theta: 2.5, RY: 1},
	} {
		back := QuatToR4AA(aa.Quaternion())
		test.That(t, back.Theta, test.ShouldAlmostEqual, aa.Theta, 1e-6)
		test.That(t, back.RX, test.ShouldAlmostEqual, aa.RX, 1e-6)
		test.That(t, back.RY, test.ShouldAlmostEqual, aa.RY, 1e-6)
		test.That(t, back.RZ, test.ShouldAlmostEqual, aa.RZ, 1e-6)
	}
}

func TestQuatRotateVector(t *testing.T) {
	q := (&R4AA{Theta: math.Pi / 2, RZ: 1}).Quaternion()
	v := QuatRotateVector(q, r3.Vector{X: 1, Y: 0, Z: 0})
	test.That(t, R3VectorAlmostEqual(v, r3.Vector{X: 0, Y: 1, Z: 0}, 1e-8), test.ShouldBeTrue)

	// Rotation about Z leaves Z alone.
	v = QuatRotateVector(q, r3.Vector{X: 0, Y: 0, Z: 1})
	test.That(t, R3VectorAlmostEqual(v, r3.Vector{X: 0, Y: 0, Z: 1}, 1e-8), test.ShouldBeTrue)
}

func TestRandomOrientation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		o := RandomOrientation(rng)
		test.That(t, Norm(o.Quaternion()), test.ShouldAlmostEqual, 1, 1e-9)
	}

	// Same seed gives the same stream.
	r1 := rand.New(rand.NewSource(42))
	r2 := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		o1 := RandomOrientation(r1)
		o2 := RandomOrientation(r2)
		test.That(t, OrientationAlmostEqual(o1, o2), test.ShouldBeTrue)
	}
}
