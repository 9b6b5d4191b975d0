package objrec

import (
	"math"

	"github.com/golang/geo/r3"
)

// PairSignature is the rigid-invariant descriptor of an oriented point pair:
// the angle between n1 and the line p1->p2, the angle between n2 and the
// line p2->p1, and the angle between the two normals. It is the key used to
// match scene pairs against registered model pairs.
func PairSignature(p1, n1, p2, n2 r3.Vector) [3]float64 {
	line := p2.Sub(p1)
	if norm := line.Norm(); norm > 1e-12 {
		line = line.Mul(1.0 / norm)
	}
	return [3]float64{
		angleBetween(n1, line),
		angleBetween(n2, line.Mul(-1)),
		angleBetween(n1, n2),
	}
}

// angleBetween returns acos of the clamped dot product. The clamp guards
// against floating round-off pushing the argument outside [-1, 1].
func angleBetween(a, b r3.Vector) float64 {
	d := a.Dot(b)
	if d > 1 {
		d = 1
	} else if d < -1 {
		d = -1
	}
	return math.Acos(d)
}

// pointsAreCoplanar reports whether the oriented pair lies on a (nearly)
// common plane: the two normals are parallel within maxAngle and the
// connecting line is perpendicular to them within maxAngle. Such pairs carry
// no orientation information along the line and are skipped when coplanar
// filtering is enabled.
func pointsAreCoplanar(p1, n1, p2, n2 r3.Vector, maxAngle float64) bool {
	if angleBetween(n1, n2) > maxAngle {
		return false
	}
	line := p2.Sub(p1)
	norm := line.Norm()
	if norm < 1e-12 {
		return true
	}
	line = line.Mul(1.0 / norm)
	// The line lies in the common plane when it is orthogonal to the normal.
	return math.Abs(line.Dot(n1)) <= math.Sin(maxAngle)
}
