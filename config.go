package objrec

import "math"

// Config holds all tunable parameters of the recognition pipeline.
// PairWidth and VoxelSize are fixed once a Recognizer is constructed; the
// remaining fields may be adjusted between Recognize calls but never during
// one.
type Config struct {
	// PairWidth is the expected distance between the two points of a sampled
	// pair. It should be roughly half the extent of the visible object part:
	// smaller values tolerate more occlusion but align less precisely.
	PairWidth float64
	// VoxelSize is the discretization size for both the scene and the
	// registered models. Larger voxels are faster but blur object detail.
	VoxelSize float64

	// RelativeObjectSize is the estimated fraction of scene points belonging
	// to a single object instance. It drives the RANSAC iteration bound.
	RelativeObjectSize float64
	// VisibilityThreshold is the minimum fraction of a model's surface that
	// must be explained by the scene for a hypothesis to be accepted.
	VisibilityThreshold float64
	// MaxIllegalFraction is the maximum tolerated fraction of transformed
	// model points lying in space the sensor observed as free.
	MaxIllegalFraction float64
	// IntersectionFraction is the explained-support overlap beyond which two
	// hypotheses are considered competing explanations of the same evidence.
	IntersectionFraction float64
	// MaxCoplanarityAngle (radians) controls the coplanar-pair filter: pairs
	// whose normals and connecting line are flatter than this are skipped.
	MaxCoplanarityAngle float64
	// IgnoreCoplanarPairs enables the coplanar-pair filter for both model
	// registration and scene sampling.
	IgnoreCoplanarPairs bool
	// SceneBoundsEnlargement is the fractional enlargement of the scene
	// bounding box before voxelization.
	SceneBoundsEnlargement float64
	// RotationLeafSize (radians) is the angular edge length of a
	// rotation-space cell. Votes closer than this along every axis merge.
	RotationLeafSize float64
	// SignatureBins is the number of hash bins per signature angle over
	// [0, pi].
	SignatureBins int
	// RecordDiagnostics enables recording of rotation-cell coordinates on
	// generated hypotheses.
	RecordDiagnostics bool
}

// DefaultConfig returns a Config with the standard recognition parameters.
// PairWidth and VoxelSize are scene-scale dependent and have no defaults.
func DefaultConfig() Config {
	return Config{
		RelativeObjectSize:     0.05,
		VisibilityThreshold:    0.06,
		MaxIllegalFraction:     0.02,
		IntersectionFraction:   0.03,
		MaxCoplanarityAngle:    3.0 * math.Pi / 180.0,
		IgnoreCoplanarPairs:    true,
		SceneBoundsEnlargement: 0.25,
		RotationLeafSize:       6.0 * math.Pi / 180.0,
		SignatureBins:          60,
	}
}

// absZDistThresh is the depth tolerance used when classifying transformed
// model points against the scene projection.
func (c Config) absZDistThresh() float64 {
	return 1.5 * c.VoxelSize
}
