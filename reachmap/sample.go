package reachmap

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"

	"go.viam.com/reachmap/spatialmath"
)

// SampleEvaluationPoses draws n poses whose positions are uniform within a cylinder of the
// given radius and height centered on the base's vertical axis, with uniformly random
// orientations. The cylinder is the natural evaluation volume for a map: it fits inside
// the map extents, and what it excludes is trivially out of reach anyway.
func SampleEvaluationPoses(rng *rand.Rand, maxRadius, maxZ float64, n int) []spatialmath.Pose {
	poses := make([]spatialmath.Pose, 0, n)
	for i := 0; i < n; i++ {
		// sqrt on the radius makes the disk sampling uniform by area.
		radius := maxRadius * math.Sqrt(rng.Float64())
		angle := 2 * math.Pi * rng.Float64()
		pt := r3.Vector{
			X: radius * math.Cos(angle),
			Y: radius * math.Sin(angle),
			Z: maxZ * rng.Float64(),
		}
		poses = append(poses, spatialmath.NewPose(pt, spatialmath.RandomOrientation(rng)))
	}
	return poses
}
