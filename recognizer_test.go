package objrec

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/biotinker/objrec/voxel"
)

func recognizerForTest(t *testing.T, visibility float64) *Recognizer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PairWidth = 25
	cfg.VoxelSize = 3
	if visibility > 0 {
		cfg.VisibilityThreshold = visibility
	}
	rec, err := NewWithConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	return rec
}

func TestComputeNumberOfIterations(t *testing.T) {
	rec := recognizerForTest(t, 0)

	prev := 0
	for _, prob := range []float64{0.5, 0.9, 0.99, 0.999} {
		n := rec.computeNumberOfIterations(prob)
		if n < 1 {
			t.Errorf("prob %.3f: got %d iterations, want >= 1", prob, n)
		}
		if n < prev {
			t.Errorf("iterations decreased from %d to %d as probability rose to %.3f", prev, n, prob)
		}
		prev = n
	}

	// When p >= 1 a single sample is guaranteed to succeed.
	cfg := DefaultConfig()
	cfg.PairWidth = 25
	cfg.VoxelSize = 3
	cfg.RelativeObjectSize = 4.0
	certain, err := NewWithConfig(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n := certain.computeNumberOfIterations(0.99); n != 1 {
		t.Errorf("p >= 1: got %d iterations, want 1", n)
	}
}

func TestNewWithConfig_InvalidParameters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VoxelSize = 3
	if _, err := NewWithConfig(cfg, nil); err != ErrInvalidPairWidth {
		t.Errorf("zero pair width: got %v, want ErrInvalidPairWidth", err)
	}
	cfg.PairWidth = 25
	cfg.VoxelSize = 0
	if _, err := NewWithConfig(cfg, nil); err != ErrInvalidVoxelSize {
		t.Errorf("zero voxel size: got %v, want ErrInvalidVoxelSize", err)
	}
}

func TestRecognize_EmptyInputs(t *testing.T) {
	rec := recognizerForTest(t, 0)

	out, err := rec.Recognize(nil, nil, 0.99)
	if err != nil || len(out) != 0 {
		t.Errorf("empty scene: got %d outputs, err %v", len(out), err)
	}

	// A scene with no registered models is a normal no-detection outcome.
	pts, nrm := boxSurface(r3.Vector{}, r3.Vector{X: 40, Y: 20, Z: 10}, 1.5)
	out, err = rec.Recognize(pts, nrm, 0.99)
	if err != nil || len(out) != 0 {
		t.Errorf("no models: got %d outputs, err %v", len(out), err)
	}
}

func TestRecognize_MismatchedNormals(t *testing.T) {
	rec := recognizerForTest(t, 0)
	pts, nrm := boxSurface(r3.Vector{}, r3.Vector{X: 40, Y: 20, Z: 10}, 1.5)
	if _, err := rec.Recognize(pts, nrm[:len(nrm)-1], 0.99); err != ErrMismatchedNormals {
		t.Errorf("got %v, want ErrMismatchedNormals", err)
	}
}

func TestAddModel_DuplicateName(t *testing.T) {
	rec := recognizerForTest(t, 0)
	pts, nrm := boxSurface(r3.Vector{}, r3.Vector{X: 40, Y: 20, Z: 10}, 1.5)
	if !rec.AddModel(pts, nrm, "box", nil) {
		t.Fatal("first AddModel returned false")
	}
	if rec.AddModel(pts, nrm, "box", nil) {
		t.Error("second AddModel with the same name returned true")
	}
}

func TestRecognize_ModeSampleOPP(t *testing.T) {
	rec := recognizerForTest(t, 0)
	pts, nrm := lShape(1.5)
	rec.AddModel(pts, nrm, "bracket", nil)

	rec.SetMode(ModeSampleOPP)
	out, err := rec.Recognize(pts, nrm, 0.99)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("diagnostic mode produced %d outputs", len(out))
	}

	pairs := rec.SampledPairs()
	if len(pairs) == 0 {
		t.Fatal("no pairs sampled")
	}
	for _, p := range pairs {
		d := p.P2.Sub(p.P1).Norm()
		if d < rec.PairWidth()-rec.VoxelSize() || d > rec.PairWidth()+rec.VoxelSize() {
			t.Fatalf("sampled pair distance %.2f outside pair-width band", d)
		}
	}
	t.Logf("sampled %d pairs", len(pairs))
}

func TestRecognize_ModeTestHypotheses(t *testing.T) {
	rec := recognizerForTest(t, 0.25)
	pts, nrm := lShape(1.5)
	rec.AddModel(pts, nrm, "bracket", nil)

	rec.SetMode(ModeTestHypotheses)
	out, err := rec.Recognize(pts, nrm, 0.99)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("diagnostic mode produced %d outputs", len(out))
	}

	accepted := rec.AcceptedHypotheses()
	if len(accepted) == 0 {
		t.Fatal("no hypotheses accepted for an untransformed copy of the model")
	}
	for _, h := range accepted {
		if h.MatchConfidence <= 0 || h.MatchConfidence > 1 {
			t.Errorf("accepted hypothesis with confidence %f", h.MatchConfidence)
		}
		if len(h.Explained) == 0 {
			t.Error("accepted hypothesis with empty support")
		}
	}
	t.Logf("%d hypotheses accepted", len(accepted))
}

// TestRecognize_EndToEnd registers an asymmetric model and recognizes it in
// a scene containing the same surface under a known rigid transform.
func TestRecognize_EndToEnd(t *testing.T) {
	rec := recognizerForTest(t, 0.25)
	pts, nrm := lShape(1.5)
	if !rec.AddModel(pts, nrm, "bracket", "payload") {
		t.Fatal("AddModel failed")
	}

	want := makeTransform(r3.Vector{Z: 1}, 30*math.Pi/180, r3.Vector{X: 40, Y: -25, Z: 60})
	scenePts, sceneNrm := applyRigid(pts, nrm, want)

	outputs, err := rec.Recognize(scenePts, sceneNrm, 0.99)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("got %d outputs, want exactly 1", len(outputs))
	}

	out := outputs[0]
	if out.Name != "bracket" {
		t.Errorf("object name: got %q", out.Name)
	}
	if out.UserData != "payload" {
		t.Errorf("user data: got %v", out.UserData)
	}
	if out.MatchConfidence <= 0.3 {
		t.Errorf("match confidence %.3f, want > 0.3 for a fully visible object", out.MatchConfidence)
	}

	for i := 0; i < 9; i++ {
		if math.Abs(out.Transform[i]-want[i]) > 0.15 {
			t.Errorf("rotation entry %d: got %.3f, want %.3f", i, out.Transform[i], want[i])
		}
	}
	for i := 9; i < 12; i++ {
		if math.Abs(out.Transform[i]-want[i]) > 3*rec.VoxelSize() {
			t.Errorf("translation entry %d: got %.2f, want %.2f", i-9, out.Transform[i], want[i])
		}
	}
	t.Logf("confidence %.3f, translation (%.1f, %.1f, %.1f)",
		out.MatchConfidence, out.Transform[9], out.Transform[10], out.Transform[11])
}

// TestRecognize_TwoInstancesSameOrientation documents the translation
// averaging limitation: two instances of one model with identical
// orientation but distant positions vote into the same rotation cell, so
// their translations are averaged into a pose matching neither instance.
// The pipeline therefore cannot report both instances; typically the merged
// hypothesis fails verification and neither is reported. This pins the
// current behavior rather than asserting it is desirable.
func TestRecognize_TwoInstancesSameOrientation(t *testing.T) {
	rec := recognizerForTest(t, 0.25)
	pts, nrm := lShape(1.5)
	rec.AddModel(pts, nrm, "bracket", nil)

	shift := makeTransform(r3.Vector{Z: 1}, 0, r3.Vector{X: 200})
	secondPts, secondNrm := applyRigid(pts, nrm, shift)
	scenePts := append(append([]r3.Vector{}, pts...), secondPts...)
	sceneNrm := append(append([]r3.Vector{}, nrm...), secondNrm...)

	outputs, err := rec.Recognize(scenePts, sceneNrm, 0.99)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	t.Logf("%d output(s) for two same-orientation instances", len(outputs))
	for _, out := range outputs {
		tr := r3.Vector{X: out.Transform[9], Y: out.Transform[10], Z: out.Transform[11]}
		t.Logf("confidence %.3f, translation (%.1f, %.1f, %.1f); distance to instance "+
			"poses: %.1f / %.1f, to their midpoint: %.1f",
			out.MatchConfidence, tr.X, tr.Y, tr.Z,
			tr.Norm(), tr.Sub(r3.Vector{X: 200}).Norm(), tr.Sub(r3.Vector{X: 100}).Norm())
	}
	// The dominant rotation cell necessarily mixes votes from both
	// instances, so a clean two-instance result is unreachable; anything
	// from zero to two partially supported detections is the preserved
	// behavior.
	if len(outputs) > 2 {
		t.Errorf("got %d outputs for two instances", len(outputs))
	}
}

// horizontalPlate samples an axis-aligned square plate at the given height
// with upward normals.
func horizontalPlate(z, extent, step float64) ([]r3.Vector, []r3.Vector) {
	var points, normals []r3.Vector
	for x := 0.0; x <= extent; x += step {
		for y := 0.0; y <= extent; y += step {
			points = append(points, r3.Vector{X: x, Y: y, Z: z})
			normals = append(normals, r3.Vector{Z: 1})
		}
	}
	return points, normals
}

// TestTestHypotheses_RejectsProtrudingModel drives the illegal-fraction
// acceptance bound: a pose that places part of the model well in front of
// the observed surface must be rejected even when the rest of the model is
// fully explained by the scene.
func TestTestHypotheses_RejectsProtrudingModel(t *testing.T) {
	rec := recognizerForTest(t, 0)

	platePts, plateNrm := horizontalPlate(0, 60, 1.5)
	if !rec.AddModel(platePts, plateNrm, "flush", nil) {
		t.Fatal("AddModel flush failed")
	}

	// Same plate plus a slab floating 30 below it: at the identity pose the
	// slab sits in space the sensor saw through, so those points are illegal.
	slabPts, slabNrm := horizontalPlate(-30, 30, 1.5)
	protrudingPts := append(append([]r3.Vector{}, platePts...), slabPts...)
	protrudingNrm := append(append([]r3.Vector{}, plateNrm...), slabNrm...)
	if !rec.AddModel(protrudingPts, protrudingNrm, "protruding", nil) {
		t.Fatal("AddModel protruding failed")
	}

	rec.sceneGrid = voxel.NewGrid(platePts, plateNrm, rec.cfg.VoxelSize, rec.cfg.SceneBoundsEnlargement)
	rec.sceneProj = voxel.NewZProjection(rec.sceneGrid)

	identity := makeTransform(r3.Vector{X: 1}, 0, r3.Vector{})
	flush := &Hypothesis{Transform: identity, MatchConfidence: -1, Model: rec.GetModel("flush")}
	protruding := &Hypothesis{Transform: identity, MatchConfidence: -1, Model: rec.GetModel("protruding")}

	accepted := rec.testHypotheses([]*Hypothesis{flush, protruding})
	if len(accepted) != 1 {
		t.Fatalf("got %d accepted hypotheses, want only the flush one", len(accepted))
	}
	if accepted[0].Model != flush.Model {
		t.Errorf("accepted model %q, want %q", accepted[0].Model.Name(), "flush")
	}
	// The slab is a minority of the protruding model's points, so its
	// explained fraction alone clears the visibility threshold; only the
	// illegal fraction can have rejected it.
	matched := len(rec.GetModel("flush").LeafPoints())
	total := len(rec.GetModel("protruding").LeafPoints())
	if frac := float64(matched) / float64(total); frac < rec.cfg.VisibilityThreshold {
		t.Fatalf("matched fraction %.3f below visibility threshold; scenario is degenerate", frac)
	}
	if protruding.MatchConfidence != -1 {
		t.Errorf("rejected hypothesis had confidence assigned: %f", protruding.MatchConfidence)
	}
}

func TestNew_PanicsOnInvalidParameters(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for a non-positive pair width")
		}
	}()
	New(0, 3, nil)
}

func TestRecognizer_Clear(t *testing.T) {
	rec := recognizerForTest(t, 0)
	pts, nrm := boxSurface(r3.Vector{}, r3.Vector{X: 40, Y: 20, Z: 10}, 1.5)
	rec.AddModel(pts, nrm, "box", nil)
	if _, err := rec.Recognize(pts, nrm, 0.9); err != nil {
		t.Fatal(err)
	}

	rec.Clear()
	if !rec.ModelLibrary().Empty() {
		t.Error("models survived Clear")
	}
	if rec.SceneGrid() != nil || rec.SceneProjection() != nil || rec.RotationSpace() != nil {
		t.Error("per-call state survived Clear")
	}
	if rec.SampledPairs() != nil || rec.AcceptedHypotheses() != nil {
		t.Error("diagnostics survived Clear")
	}
}
