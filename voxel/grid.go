// Package voxel provides a voxel grid over 3D point clouds with per-leaf
// representative points and normals, plus an XY projection used for
// occlusion reasoning. It is the spatial index consumed by the recognition
// pipeline.
package voxel

import (
	"math"

	"github.com/golang/geo/r3"
)

// Leaf is an occupied voxel. Point and Normal are the averages of all input
// points (and their normals) that fell into the voxel; Normal is re-normalized
// after averaging.
type Leaf struct {
	// ID is a dense index over the occupied leaves, assigned in the order
	// the leaves were first hit during the build.
	ID     int
	Point  r3.Vector
	Normal r3.Vector
	Coord  [3]int

	pointSum  r3.Vector
	normalSum r3.Vector
	count     int
}

// Grid voxelizes a point cloud at a fixed voxel size. Leaves are retrievable
// in deterministic (insertion) order and by O(1) point lookup.
type Grid struct {
	voxelSize float64
	min       r3.Vector
	max       r3.Vector
	leaves    []*Leaf
	index     map[[3]int]*Leaf
}

// NewGrid builds a grid over the given points at the given voxel size.
// The bounding box is enlarged on each side by enlargement/2 times its
// extent before voxelization, so that points transformed slightly outside
// the original bounds still map to valid voxel coordinates.
// normals may be nil; otherwise it must be parallel to points.
func NewGrid(points, normals []r3.Vector, voxelSize, enlargement float64) *Grid {
	g := &Grid{
		voxelSize: voxelSize,
		index:     make(map[[3]int]*Leaf),
	}
	if len(points) == 0 {
		return g
	}

	minB := points[0]
	maxB := points[0]
	for _, p := range points[1:] {
		minB.X = math.Min(minB.X, p.X)
		minB.Y = math.Min(minB.Y, p.Y)
		minB.Z = math.Min(minB.Z, p.Z)
		maxB.X = math.Max(maxB.X, p.X)
		maxB.Y = math.Max(maxB.Y, p.Y)
		maxB.Z = math.Max(maxB.Z, p.Z)
	}
	extent := maxB.Sub(minB)
	pad := extent.Mul(enlargement * 0.5)
	// A degenerate extent (planar or single-point input) still needs a
	// non-zero pad so boundary points land strictly inside the grid.
	minPad := voxelSize
	pad.X = math.Max(pad.X, minPad)
	pad.Y = math.Max(pad.Y, minPad)
	pad.Z = math.Max(pad.Z, minPad)
	g.min = minB.Sub(pad)
	g.max = maxB.Add(pad)

	for i, p := range points {
		c := g.coord(p)
		leaf, ok := g.index[c]
		if !ok {
			leaf = &Leaf{ID: len(g.leaves), Coord: c}
			g.index[c] = leaf
			g.leaves = append(g.leaves, leaf)
		}
		leaf.pointSum = leaf.pointSum.Add(p)
		if normals != nil {
			leaf.normalSum = leaf.normalSum.Add(normals[i])
		}
		leaf.count++
	}

	for _, leaf := range g.leaves {
		inv := 1.0 / float64(leaf.count)
		leaf.Point = leaf.pointSum.Mul(inv)
		n := leaf.normalSum
		if norm := n.Norm(); norm > 1e-9 {
			leaf.Normal = n.Mul(1.0 / norm)
		}
	}
	return g
}

func (g *Grid) coord(p r3.Vector) [3]int {
	return [3]int{
		int(math.Floor((p.X - g.min.X) / g.voxelSize)),
		int(math.Floor((p.Y - g.min.Y) / g.voxelSize)),
		int(math.Floor((p.Z - g.min.Z) / g.voxelSize)),
	}
}

// Leaves returns all occupied leaves in insertion order.
func (g *Grid) Leaves() []*Leaf { return g.leaves }

// LeafAt returns the occupied leaf containing p, or nil if the voxel at p is
// empty or p lies outside the grid bounds.
func (g *Grid) LeafAt(p r3.Vector) *Leaf {
	if g.voxelSize <= 0 || len(g.leaves) == 0 {
		return nil
	}
	if p.X < g.min.X || p.Y < g.min.Y || p.Z < g.min.Z ||
		p.X > g.max.X || p.Y > g.max.Y || p.Z > g.max.Z {
		return nil
	}
	return g.index[g.coord(p)]
}

// LeavesNear returns the leaves whose representative point lies within
// [radius-tol, radius+tol] of center, in insertion order.
func (g *Grid) LeavesNear(center r3.Vector, radius, tol float64) []*Leaf {
	var out []*Leaf
	for _, leaf := range g.leaves {
		d := leaf.Point.Sub(center).Norm()
		if d >= radius-tol && d <= radius+tol {
			out = append(out, leaf)
		}
	}
	return out
}

// VoxelSize returns the edge length of a voxel.
func (g *Grid) VoxelSize() float64 { return g.voxelSize }

// Bounds returns the enlarged lower and upper grid bounds.
func (g *Grid) Bounds() (r3.Vector, r3.Vector) { return g.min, g.max }

// VoxelBounds returns the axis-aligned bounds of the voxel with the given
// coordinate.
func (g *Grid) VoxelBounds(c [3]int) (r3.Vector, r3.Vector) {
	lo := r3.Vector{
		X: g.min.X + float64(c[0])*g.voxelSize,
		Y: g.min.Y + float64(c[1])*g.voxelSize,
		Z: g.min.Z + float64(c[2])*g.voxelSize,
	}
	hi := lo.Add(r3.Vector{X: g.voxelSize, Y: g.voxelSize, Z: g.voxelSize})
	return lo, hi
}
