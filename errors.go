package objrec

import "errors"

var (
	// ErrMismatchedNormals is returned when the points and normals slices
	// passed to Recognize differ in length.
	ErrMismatchedNormals = errors.New("points and normals differ in length")

	// ErrInvalidPairWidth is returned when a Recognizer is constructed with a
	// non-positive pair width.
	ErrInvalidPairWidth = errors.New("pair width must be positive")

	// ErrInvalidVoxelSize is returned when a Recognizer is constructed with a
	// non-positive voxel size.
	ErrInvalidVoxelSize = errors.New("voxel size must be positive")
)
