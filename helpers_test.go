package objrec

import (
	"math"

	"github.com/golang/geo/r3"
)

// boxSurface samples all six faces of an axis-aligned box with outward
// normals. center is the box center, dims the full edge lengths, step the
// sampling spacing.
func boxSurface(center, dims r3.Vector, step float64) ([]r3.Vector, []r3.Vector) {
	var points, normals []r3.Vector
	hx, hy, hz := dims.X/2, dims.Y/2, dims.Z/2

	addFace := func(normal r3.Vector, u, v r3.Vector, uMax, vMax float64) {
		offset := r3.Vector{X: normal.X * hx, Y: normal.Y * hy, Z: normal.Z * hz}
		for a := -uMax; a <= uMax; a += step {
			for b := -vMax; b <= vMax; b += step {
				p := center.Add(offset).Add(u.Mul(a)).Add(v.Mul(b))
				points = append(points, p)
				normals = append(normals, normal)
			}
		}
	}

	xAxis := r3.Vector{X: 1}
	yAxis := r3.Vector{Y: 1}
	zAxis := r3.Vector{Z: 1}
	addFace(zAxis, xAxis, yAxis, hx, hy)
	addFace(zAxis.Mul(-1), xAxis, yAxis, hx, hy)
	addFace(xAxis, yAxis, zAxis, hy, hz)
	addFace(xAxis.Mul(-1), yAxis, zAxis, hy, hz)
	addFace(yAxis, xAxis, zAxis, hx, hz)
	addFace(yAxis.Mul(-1), xAxis, zAxis, hx, hz)
	return points, normals
}

// lShape builds an asymmetric rigid body from two adjacent boxes of
// different sizes, so its pose is unambiguous (no self-symmetry).
func lShape(step float64) ([]r3.Vector, []r3.Vector) {
	p1, n1 := boxSurface(r3.Vector{}, r3.Vector{X: 40, Y: 20, Z: 10}, step)
	p2, n2 := boxSurface(r3.Vector{X: -15, Z: 15}, r3.Vector{X: 10, Y: 20, Z: 30}, step)
	return append(p1, p2...), append(n1, n2...)
}

// makeTransform builds a rigid transform from a rotation axis (unit), an
// angle in radians, and a translation.
func makeTransform(axis r3.Vector, angle float64, translation r3.Vector) [12]float64 {
	var t [12]float64
	axisAngleToRotation(axis.Mul(angle), &t)
	t[9] = translation.X
	t[10] = translation.Y
	t[11] = translation.Z
	return t
}

// applyRigid transforms points by the full rigid transform and normals by
// its rotational part.
func applyRigid(points, normals []r3.Vector, t [12]float64) ([]r3.Vector, []r3.Vector) {
	outP := make([]r3.Vector, len(points))
	outN := make([]r3.Vector, len(normals))
	for i := range points {
		outP[i] = transformPoint(t, points[i])
		outN[i] = rotatePoint(t, normals[i])
	}
	return outP, outN
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
