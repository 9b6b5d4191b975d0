// Package normals estimates per-point surface normals for a point cloud via
// local PCA. It is host-side glue for feeding raw captures into the
// recognition core, which itself expects normals to be supplied.
package normals

import (
	"errors"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/rdk/pointcloud"
)

// ErrTooFewPoints is returned when the cloud has fewer points than needed
// for a PCA neighborhood.
var ErrTooFewPoints = errors.New("too few points for normal estimation")

// Estimate computes a normal for every point of the cloud from the k nearest
// neighbors: the normal is the eigenvector of the smallest eigenvalue of the
// neighborhood covariance, oriented to face the viewpoint. Returns the
// points and their normals as parallel slices in a stable order.
func Estimate(cloud pointcloud.PointCloud, k int, viewpoint r3.Vector) ([]r3.Vector, []r3.Vector, error) {
	if cloud == nil || cloud.Size() < 3 {
		return nil, nil, ErrTooFewPoints
	}
	if k < 3 {
		k = 3
	}

	var points []r3.Vector
	cloud.Iterate(0, 0, func(p r3.Vector, _ pointcloud.Data) bool {
		points = append(points, p)
		return true
	})

	kd := pointcloud.ToKDTree(cloud)
	normals := make([]r3.Vector, len(points))
	for i, p := range points {
		n := neighborhoodNormal(kd, p, k)
		// Orient toward the viewpoint so both sides of a surface get
		// consistent normals from a single capture position.
		if n.Dot(viewpoint.Sub(p)) < 0 {
			n = n.Mul(-1)
		}
		normals[i] = n
	}
	return points, normals, nil
}

// neighborhoodNormal computes the PCA normal of the k nearest neighbors of
// point.
func neighborhoodNormal(kd *pointcloud.KDTree, point r3.Vector, k int) r3.Vector {
	neighbors := kd.KNearestNeighbors(point, k, true)
	if len(neighbors) < 3 {
		return r3.Vector{Z: 1}
	}

	var cx, cy, cz float64
	for _, nb := range neighbors {
		cx += nb.P.X
		cy += nb.P.Y
		cz += nb.P.Z
	}
	n := float64(len(neighbors))
	cx /= n
	cy /= n
	cz /= n

	var cov [9]float64 // 3x3 row-major
	for _, nb := range neighbors {
		dx := nb.P.X - cx
		dy := nb.P.Y - cy
		dz := nb.P.Z - cz
		cov[0] += dx * dx
		cov[1] += dx * dy
		cov[2] += dx * dz
		cov[3] += dy * dx
		cov[4] += dy * dy
		cov[5] += dy * dz
		cov[6] += dz * dx
		cov[7] += dz * dy
		cov[8] += dz * dz
	}
	for i := range cov {
		cov[i] /= n
	}

	covMat := mat.NewSymDense(3, cov[:])
	var eigen mat.EigenSym
	if ok := eigen.Factorize(covMat, true); !ok {
		return r3.Vector{Z: 1}
	}
	var vecs mat.Dense
	eigen.VectorsTo(&vecs)

	// Eigenvalues are ascending; the smallest one's eigenvector is the
	// surface normal direction.
	normal := r3.Vector{
		X: vecs.At(0, 0),
		Y: vecs.At(1, 0),
		Z: vecs.At(2, 0),
	}
	if norm := normal.Norm(); norm > 1e-9 {
		normal = normal.Mul(1.0 / norm)
	} else {
		normal = r3.Vector{Z: 1}
	}
	return normal
}
