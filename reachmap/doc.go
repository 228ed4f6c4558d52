// Package reachmap builds and queries 4D reachability maps for robot manipulators.
//
// A 6dof end-effector pose relative to the robot base is reduced to a 4D coordinate by
// collapsing two kinematic symmetries of typical 6- and 7-axis arms: rotation of the whole
// pose about the base's vertical axis, and tool roll about the approach axis. Reachability
// evidence from sampled joint configurations is accumulated in a dense 4D grid over the
// reduced coordinates. Because the reduction is shared, one grid answers both directions:
//
//   - forward: is this end-effector pose reachable from the current base placement?
//   - inverse: which base placements make this end-effector pose reachable?
//
// Inverse queries re-introduce the collapsed symmetry parameters by sweeping them, so no
// second data structure is required.
//
// The map lifecycle is allocate, populate (Build), freeze, then persist (Save/Load) and
// query. A frozen grid is safe for unbounded concurrent readers.
package reachmap
