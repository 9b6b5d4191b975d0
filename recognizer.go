// Package objrec implements RANSAC-based 3D object recognition: given a
// library of registered object surface models (point clouds with per-point
// normals) and a scene point cloud with normals, it determines which models
// are present and estimates, for each instance, the rigid transform aligning
// the model to the scene together with a match confidence.
//
// Register models with AddModel, then call Recognize with the scene. Normals
// are assumed to be unit length; non-unit normals degrade precision but are
// not rejected.
package objrec

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"

	"github.com/biotinker/objrec/voxel"
	"go.viam.com/rdk/logging"
)

// Recognizer orchestrates the recognition pipeline: scene voxelization,
// oriented-point-pair sampling, hash-driven hypothesis generation,
// rotation-space clustering, verification, and conflict resolution.
//
// A Recognizer is not safe for concurrent use. AddModel and configuration
// setters must not be called while a Recognize call is in flight.
type Recognizer struct {
	cfg     Config
	logger  logging.Logger
	library *ModelLibrary
	mode    Mode
	rng     *rand.Rand

	// Per-call state, rebuilt by each Recognize invocation.
	sceneGrid    *voxel.Grid
	sceneProj    *voxel.ZProjection
	rotSpace     *RotationSpace
	sampledPairs []OrientedPointPair
	accepted     []*Hypothesis
}

// New creates a Recognizer with default parameters. pairWidth should be
// roughly half the extent of the visible object part; voxelSize is the
// discretization size for both scene and models. Neither can change
// afterward. Non-positive parameters are a programmer error and panic;
// use NewWithConfig to handle invalid configuration as an error.
func New(pairWidth, voxelSize float64, logger logging.Logger) *Recognizer {
	cfg := DefaultConfig()
	cfg.PairWidth = pairWidth
	cfg.VoxelSize = voxelSize
	r, err := NewWithConfig(cfg, logger)
	if err != nil {
		panic(err)
	}
	return r
}

// NewWithConfig creates a Recognizer with explicit configuration.
func NewWithConfig(cfg Config, logger logging.Logger) (*Recognizer, error) {
	if cfg.PairWidth <= 0 {
		return nil, ErrInvalidPairWidth
	}
	if cfg.VoxelSize <= 0 {
		return nil, ErrInvalidVoxelSize
	}
	//nolint:gosec
	rng := rand.New(rand.NewSource(42))
	return &Recognizer{
		cfg:     cfg,
		logger:  logger,
		library: newModelLibrary(cfg, logger),
		rng:     rng,
	}, nil
}

// AddModel registers an object to be recognized. It reports false if name is
// already in use. userData is kept opaque and returned unmodified on any
// Output recognizing this model.
func (r *Recognizer) AddModel(points, normals []r3.Vector, name string, userData any) bool {
	return r.library.AddModel(points, normals, name, userData)
}

// SetMaxCoplanarityAngleDegrees configures the coplanar-pair filter. Larger
// values discard more pairs as coplanar. Call before AddModel for the value
// to take effect on those models; scene sampling uses the current value.
func (r *Recognizer) SetMaxCoplanarityAngleDegrees(deg float64) {
	r.cfg.MaxCoplanarityAngle = deg * math.Pi / 180.0
	r.library.SetMaxCoplanarityAngle(r.cfg.MaxCoplanarityAngle)
}

// IgnoreCoplanarPairs toggles coplanar-pair filtering (default on).
func (r *Recognizer) IgnoreCoplanarPairs(on bool) {
	r.cfg.IgnoreCoplanarPairs = on
	r.library.IgnoreCoplanarPairs(on)
}

// SetSceneBoundsEnlargementFactor sets the fractional enlargement of the
// scene bounding box before voxelization.
func (r *Recognizer) SetSceneBoundsEnlargementFactor(f float64) {
	r.cfg.SceneBoundsEnlargement = f
}

// SetMode selects how far the next Recognize call runs. The mode is read
// once at the start of a call and never changes during one.
func (r *Recognizer) SetMode(m Mode) { r.mode = m }

// Clear removes all registered models and drops the state of the previous
// Recognize call.
func (r *Recognizer) Clear() {
	r.library.RemoveAllModels()
	r.resetCallState()
}

func (r *Recognizer) resetCallState() {
	r.sceneGrid = nil
	r.sceneProj = nil
	r.rotSpace = nil
	r.sampledPairs = nil
	r.accepted = nil
}

// Recognize runs the recognition pipeline on the given scene and returns one
// Output per recognized object instance. successProbability is the desired
// probability of detecting all present objects; it drives the number of
// sampled point pairs. An empty scene or an empty model library yields an
// empty result, not an error. In a diagnostic mode the pipeline stops early
// and returns an empty result; inspect the diagnostic accessors instead.
func (r *Recognizer) Recognize(points, normals []r3.Vector, successProbability float64) ([]Output, error) {
	if len(points) != len(normals) {
		return nil, ErrMismatchedNormals
	}
	r.resetCallState()
	if len(points) == 0 {
		return nil, nil
	}

	r.sceneGrid = voxel.NewGrid(points, normals, r.cfg.VoxelSize, r.cfg.SceneBoundsEnlargement)
	r.sceneProj = voxel.NewZProjection(r.sceneGrid)

	numIterations := r.computeNumberOfIterations(successProbability)
	r.sampledPairs = r.sampleOrientedPointPairs(numIterations)
	if r.logger != nil {
		r.logger.Debugf("sampled %d oriented point pairs (%d iterations, %d scene leaves)",
			len(r.sampledPairs), numIterations, len(r.sceneGrid.Leaves()))
	}
	if r.mode == ModeSampleOPP {
		return nil, nil
	}

	numVotes := r.generateHypotheses(r.sampledPairs)
	hypotheses := r.rotSpace.Hypotheses(r.cfg.RecordDiagnostics)
	if r.logger != nil {
		r.logger.Debugf("%d votes over %d rotation cells produced %d hypotheses",
			numVotes, r.rotSpace.Size(), len(hypotheses))
	}

	r.accepted = r.testHypotheses(hypotheses)
	if r.logger != nil {
		r.logger.Debugf("%d hypotheses accepted after verification", len(r.accepted))
	}
	if r.mode == ModeTestHypotheses {
		return nil, nil
	}

	graph := buildConflictGraph(r.accepted, r.cfg.IntersectionFraction)
	winners := graph.resolve()

	outputs := make([]Output, 0, len(winners))
	for _, h := range winners {
		outputs = append(outputs, Output{
			Name:            h.Model.Name(),
			Transform:       h.Transform,
			Pose:            h.Pose(),
			MatchConfidence: h.MatchConfidence,
			UserData:        h.Model.UserData(),
		})
	}
	return outputs, nil
}

// computeNumberOfIterations returns the minimum number of sampled pairs
// guaranteeing, with the given probability, that at least one pair lies
// entirely on a present object. 0.25 is the heuristic probability that,
// given the first sampled point belongs to an object, the paired point
// belongs to the same object.
func (r *Recognizer) computeNumberOfIterations(successProbability float64) int {
	p := 0.25 * r.cfg.RelativeObjectSize
	if 1.0-p <= 0.0 {
		return 1
	}
	return int(math.Log(1.0-successProbability)/math.Log(1.0-p) + 1.0)
}

// sampleOrientedPointPairs draws up to n pairs of occupied scene leaves
// whose representative points are a pair width apart, within a voxel of
// tolerance. Iterations that find no partner leaf, or only a coplanar pair
// when filtering is on, are skipped, so the result may be shorter than n.
func (r *Recognizer) sampleOrientedPointPairs(n int) []OrientedPointPair {
	leaves := r.sceneGrid.Leaves()
	if len(leaves) < 2 {
		return nil
	}
	pairs := make([]OrientedPointPair, 0, n)
	for iter := 0; iter < n; iter++ {
		l1 := leaves[r.rng.Intn(len(leaves))]
		candidates := r.sceneGrid.LeavesNear(l1.Point, r.cfg.PairWidth, r.cfg.VoxelSize)
		if len(candidates) == 0 {
			continue
		}
		l2 := candidates[r.rng.Intn(len(candidates))]
		if r.cfg.IgnoreCoplanarPairs &&
			pointsAreCoplanar(l1.Point, l1.Normal, l2.Point, l2.Normal, r.cfg.MaxCoplanarityAngle) {
			continue
		}
		pairs = append(pairs, OrientedPointPair{
			P1: l1.Point, N1: l1.Normal,
			P2: l2.Point, N2: l2.Normal,
		})
	}
	return pairs
}

// generateHypotheses looks each sampled pair up in the model library and
// votes the aligning rigid transform of every match into the rotation space.
// Returns the number of votes cast.
func (r *Recognizer) generateHypotheses(pairs []OrientedPointPair) int {
	r.rotSpace = newRotationSpace(r.cfg.RotationLeafSize)
	votes := 0
	for _, pair := range pairs {
		sig := PairSignature(pair.P1, pair.N1, pair.P2, pair.N2)
		for _, ref := range r.library.Lookup(sig) {
			m := ref.Model
			t := rigidFromPairCorrespondence(
				m.points[ref.I], m.normals[ref.I], m.points[ref.J], m.normals[ref.J],
				pair.P1, pair.N1, pair.P2, pair.N2,
			)
			axisAngle, err := rotationToAxisAngle(t)
			if err != nil {
				if r.logger != nil {
					r.logger.Debugf("skipping degenerate rotation for model %q: %v", m.Name(), err)
				}
				continue
			}
			translation := r3.Vector{X: t[9], Y: t[10], Z: t[11]}
			if !r.rotSpace.AddRigidTransform(m, axisAngle, translation) {
				if r.logger != nil {
					r.logger.Warnf("axis-angle vote (%f, %f, %f) outside rotation space bounds; dropped",
						axisAngle.X, axisAngle.Y, axisAngle.Z)
				}
				continue
			}
			votes++
		}
	}
	return votes
}

// testHypotheses verifies each hypothesis against the scene: the model's
// leaf points are transformed by the candidate pose and classified as
// explained (an occupied scene voxel at that position), illegal (in front of
// the surface the sensor observed at that pixel), or neutral (outside the
// scene footprint). A hypothesis is accepted when the explained fraction
// meets the visibility threshold and the illegal fraction stays under its
// maximum; its confidence is the explained fraction.
func (r *Recognizer) testHypotheses(hypotheses []*Hypothesis) []*Hypothesis {
	zThresh := r.cfg.absZDistThresh()
	var accepted []*Hypothesis
	for _, h := range hypotheses {
		modelPoints := h.Model.LeafPoints()
		if len(modelPoints) == 0 {
			continue
		}
		explained := make(map[int]struct{})
		matched := 0
		illegal := 0
		for _, mp := range modelPoints {
			p := transformPoint(h.Transform, mp)
			zMin, _, ok := r.sceneProj.At(p)
			if !ok {
				continue
			}
			if leaf := r.sceneGrid.LeafAt(p); leaf != nil {
				matched++
				explained[leaf.ID] = struct{}{}
				continue
			}
			if p.Z < zMin-zThresh {
				illegal++
			}
		}
		total := float64(len(modelPoints))
		confidence := float64(matched) / total
		if confidence < r.cfg.VisibilityThreshold {
			continue
		}
		if float64(illegal)/total > r.cfg.MaxIllegalFraction {
			continue
		}
		h.MatchConfidence = confidence
		h.Explained = explained
		accepted = append(accepted, h)
	}
	return accepted
}

// SampledPairs returns the oriented point pairs sampled during the last
// Recognize call. Meaningful for diagnostics, primarily in ModeSampleOPP.
func (r *Recognizer) SampledPairs() []OrientedPointPair { return r.sampledPairs }

// AcceptedHypotheses returns the hypotheses that survived verification in
// the last Recognize call. Meaningful primarily in ModeTestHypotheses.
func (r *Recognizer) AcceptedHypotheses() []*Hypothesis { return r.accepted }

// ModelLibrary exposes the model library for inspection.
func (r *Recognizer) ModelLibrary() *ModelLibrary { return r.library }

// GetModel returns the registered model with the given name, or nil.
func (r *Recognizer) GetModel(name string) *Model { return r.library.GetModel(name) }

// SceneGrid returns the scene voxel grid built by the last Recognize call.
func (r *Recognizer) SceneGrid() *voxel.Grid { return r.sceneGrid }

// SceneProjection returns the scene XY projection built by the last
// Recognize call.
func (r *Recognizer) SceneProjection() *voxel.ZProjection { return r.sceneProj }

// RotationSpace returns the rotation-space voting structure of the last
// Recognize call.
func (r *Recognizer) RotationSpace() *RotationSpace { return r.rotSpace }

// PairWidth returns the pair width fixed at construction.
func (r *Recognizer) PairWidth() float64 { return r.cfg.PairWidth }

// VoxelSize returns the voxel size fixed at construction.
func (r *Recognizer) VoxelSize() float64 { return r.cfg.VoxelSize }
