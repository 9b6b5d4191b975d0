package voxel

import (
	"math"

	"github.com/golang/geo/r3"
)

// pixel records the z-extent of the scene surface observed at one XY cell.
type pixel struct {
	zMin float64
	zMax float64
}

// ZProjection is a 2D grid over the XY footprint of an occupied voxel grid.
// Each pixel stores the z-range spanned by the occupied voxels projecting
// onto it. A candidate 3D point can then be classified against the observed
// surface: in front of the pixel's z-range means the point sits in space the
// sensor saw through, i.e. the point should not exist there.
type ZProjection struct {
	pixelSize float64
	minX      float64
	minY      float64
	pixels    map[[2]int]*pixel
}

// NewZProjection projects every occupied leaf of g onto the XY plane.
// Pixels share the grid's voxel size and alignment, so each leaf covers
// exactly one pixel.
func NewZProjection(g *Grid) *ZProjection {
	minB, _ := g.Bounds()
	zp := &ZProjection{
		pixelSize: g.VoxelSize(),
		minX:      minB.X,
		minY:      minB.Y,
		pixels:    make(map[[2]int]*pixel),
	}
	for _, leaf := range g.Leaves() {
		lo, hi := g.VoxelBounds(leaf.Coord)
		key := [2]int{leaf.Coord[0], leaf.Coord[1]}
		px, ok := zp.pixels[key]
		if !ok {
			px = &pixel{zMin: lo.Z, zMax: hi.Z}
			zp.pixels[key] = px
		} else {
			px.zMin = math.Min(px.zMin, lo.Z)
			px.zMax = math.Max(px.zMax, hi.Z)
		}
	}
	return zp
}

// At returns the observed z-range at the pixel containing p, and whether any
// scene surface projects onto that pixel at all.
func (zp *ZProjection) At(p r3.Vector) (zMin, zMax float64, ok bool) {
	if zp.pixelSize <= 0 || len(zp.pixels) == 0 {
		return 0, 0, false
	}
	key := [2]int{
		int(math.Floor((p.X - zp.minX) / zp.pixelSize)),
		int(math.Floor((p.Y - zp.minY) / zp.pixelSize)),
	}
	px, found := zp.pixels[key]
	if !found {
		return 0, 0, false
	}
	return px.zMin, px.zMax, true
}

// Size returns the number of occupied pixels.
func (zp *ZProjection) Size() int { return len(zp.pixels) }
