package objrec

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/rdk/spatialmath"
)

// projectOnPlane returns v minus its component along the unit vector axis.
func projectOnPlane(v, axis r3.Vector) r3.Vector {
	return v.Sub(axis.Mul(v.Dot(axis)))
}

// normalized returns v scaled to unit length, or v unchanged if it is too
// short to normalize safely.
func normalized(v r3.Vector) r3.Vector {
	n := v.Norm()
	if n < 1e-12 {
		return v
	}
	return v.Mul(1.0 / n)
}

// pairFrame builds the orthonormal frame of an oriented point pair: the
// x-axis is the normalized line a->b, the y-axis is the normalized sum of
// both endpoint normals projected onto the plane orthogonal to x (averaging
// the in-plane normal components tolerates noise and non-planarity), and the
// z-axis is x cross y. Returns the frame axes and the pair origin, which is
// the midpoint of a and b.
func pairFrame(a, na, b, nb r3.Vector) (x, y, z, origin r3.Vector) {
	origin = a.Add(b).Mul(0.5)
	x = normalized(b.Sub(a))
	y = normalized(normalized(projectOnPlane(na, x)).Add(normalized(projectOnPlane(nb, x))))
	z = x.Cross(y)
	return x, y, z, origin
}

// rigidFromPairCorrespondence computes the rigid transform mapping the
// oriented pair (a1,na1,b1,nb1) onto the corresponding pair (a2,na2,b2,nb2).
// The rotation is [x2|y2|z2] * [x1|y1|z1]^T (the inverse of an orthonormal
// frame is its transpose); the translation takes the rotated frame-1 origin
// to the frame-2 origin. The first 9 entries of the result are the rotation
// in row-major order, the last 3 the translation.
func rigidFromPairCorrespondence(a1, na1, b1, nb1, a2, na2, b2, nb2 r3.Vector) [12]float64 {
	x1, y1, z1, o1 := pairFrame(a1, na1, b1, nb1)
	x2, y2, z2, o2 := pairFrame(a2, na2, b2, nb2)

	// Frames with the axes as columns.
	f1 := mat.NewDense(3, 3, []float64{
		x1.X, y1.X, z1.X,
		x1.Y, y1.Y, z1.Y,
		x1.Z, y1.Z, z1.Z,
	})
	f2 := mat.NewDense(3, 3, []float64{
		x2.X, y2.X, z2.X,
		x2.Y, y2.Y, z2.Y,
		x2.Z, y2.Z, z2.Z,
	})

	var rot mat.Dense
	rot.Mul(f2, f1.T())

	var t [12]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[3*i+j] = rot.At(i, j)
		}
	}

	ro1 := rotatePoint(t, o1)
	t[9] = o2.X - ro1.X
	t[10] = o2.Y - ro1.Y
	t[11] = o2.Z - ro1.Z
	return t
}

// rotatePoint applies only the rotational part of a rigid transform.
func rotatePoint(t [12]float64, p r3.Vector) r3.Vector {
	return r3.Vector{
		X: t[0]*p.X + t[1]*p.Y + t[2]*p.Z,
		Y: t[3]*p.X + t[4]*p.Y + t[5]*p.Z,
		Z: t[6]*p.X + t[7]*p.Y + t[8]*p.Z,
	}
}

// transformPoint applies a full rigid transform.
func transformPoint(t [12]float64, p r3.Vector) r3.Vector {
	q := rotatePoint(t, p)
	return q.Add(r3.Vector{X: t[9], Y: t[10], Z: t[11]})
}

// rotationToAxisAngle converts the rotational part of a rigid transform to
// the canonical axis-angle vector whose magnitude is the rotation angle in
// [0, pi]. Angles above pi are folded onto the antipodal axis so every valid
// rotation stays inside the rotation-space bounds.
func rotationToAxisAngle(t [12]float64) (r3.Vector, error) {
	rm, err := spatialmath.NewRotationMatrix(t[:9])
	if err != nil {
		return r3.Vector{}, err
	}
	aa := rm.AxisAngles()
	aa.Normalize()
	theta := aa.Theta
	axis := r3.Vector{X: aa.RX, Y: aa.RY, Z: aa.RZ}
	if theta > math.Pi {
		theta = 2*math.Pi - theta
		axis = axis.Mul(-1)
	}
	return axis.Mul(theta), nil
}

// axisAngleToRotation writes the rotation matrix of the given axis-angle
// vector into the first 9 slots of t. A near-zero vector produces the
// identity.
func axisAngleToRotation(v r3.Vector, t *[12]float64) {
	theta := v.Norm()
	if theta < 1e-12 {
		for i := 0; i < 9; i++ {
			t[i] = 0
		}
		t[0], t[4], t[8] = 1, 1, 1
		return
	}
	axis := v.Mul(1.0 / theta)
	aa := &spatialmath.R4AA{Theta: theta, RX: axis.X, RY: axis.Y, RZ: axis.Z}
	rm := aa.RotationMatrix()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[3*i+j] = rm.At(i, j)
		}
	}
}
