package objrec

import (
	"github.com/golang/geo/r3"

	"go.viam.com/rdk/spatialmath"
)

// Mode selects how far the recognition pipeline runs. It must be set before
// a Recognize call and is never changed during one.
type Mode int

const (
	// ModeFullRecognition runs the complete pipeline and produces Outputs.
	ModeFullRecognition Mode = iota
	// ModeSampleOPP stops after sampling; the sampled oriented point pairs
	// are retrievable through SampledPairs. Diagnostic only.
	ModeSampleOPP
	// ModeTestHypotheses stops after verification; the accepted hypotheses
	// are retrievable through AcceptedHypotheses. Diagnostic only.
	ModeTestHypotheses
)

func (m Mode) String() string {
	switch m {
	case ModeFullRecognition:
		return "full_recognition"
	case ModeSampleOPP:
		return "sample_opp"
	case ModeTestHypotheses:
		return "test_hypotheses"
	default:
		return "unknown"
	}
}

// OrientedPointPair is a pair of scene points with their surface normals,
// produced by the sampling stage.
type OrientedPointPair struct {
	P1, N1 r3.Vector
	P2, N2 r3.Vector
}

// Hypothesis is a candidate (model, pose) pair. Transform holds the 3x3
// rotation in row-major order followed by the translation. MatchConfidence
// is -1 until verification populates it with the fraction of the model's
// surface explained by the scene. Explained records the scene leaf IDs the
// transformed model accounts for.
type Hypothesis struct {
	Transform       [12]float64
	MatchConfidence float64
	Model           *Model
	Explained       map[int]struct{}

	// RotationCell is the rotation-space cell this hypothesis was averaged
	// from. Populated only when Config.RecordDiagnostics is set.
	RotationCell [3]int
}

// Pose returns the hypothesis transform as a spatialmath pose, or a
// translation-only pose if the rotational part is not a valid rotation
// matrix.
func (h *Hypothesis) Pose() spatialmath.Pose {
	return poseFromTransform(h.Transform)
}

// Output is one recognized object instance.
type Output struct {
	// Name is the identifier the model was registered under.
	Name string
	// Transform aligns the model with the scene: 9 rotation entries in
	// row-major order followed by the translation.
	Transform [12]float64
	// Pose is the same transform in spatialmath form.
	Pose spatialmath.Pose
	// MatchConfidence is the fraction of the model surface matched to the
	// scene, in (0, 1]. A single range image of an object can explain at
	// most about half its surface, so confidences near 0.5 are strong there.
	MatchConfidence float64
	// UserData is the opaque value supplied at model registration, passed
	// through unmodified.
	UserData any
}

func poseFromTransform(t [12]float64) spatialmath.Pose {
	pt := r3.Vector{X: t[9], Y: t[10], Z: t[11]}
	rm, err := spatialmath.NewRotationMatrix(t[:9])
	if err != nil {
		return spatialmath.NewPoseFromPoint(pt)
	}
	return spatialmath.NewPose(pt, rm)
}
