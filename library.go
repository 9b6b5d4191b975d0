package objrec

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/biotinker/objrec/voxel"
	"go.viam.com/rdk/logging"
)

// Model is a registered object. The library is its sole owner; every other
// component holds a plain reference valid for the recognition call's
// duration. Points and normals are the representatives of the model's own
// voxelization at the recognizer's voxel size, so model and scene are
// discretized at the same granularity.
type Model struct {
	name     string
	userData any
	points   []r3.Vector
	normals  []r3.Vector
}

// Name returns the identifier the model was registered under.
func (m *Model) Name() string { return m.name }

// UserData returns the opaque value supplied at registration.
func (m *Model) UserData() any { return m.userData }

// LeafPoints returns the model's voxel-leaf representative points.
func (m *Model) LeafPoints() []r3.Vector { return m.points }

// LeafNormals returns the normals paired with LeafPoints.
func (m *Model) LeafNormals() []r3.Vector { return m.normals }

// PairRef identifies one ordered oriented point pair of a registered model.
type PairRef struct {
	Model *Model
	I, J  int
}

// ModelLibrary owns the registered models and the geometric hash table that
// maps pair signatures to the model pairs sharing that signature bucket.
type ModelLibrary struct {
	pairWidth           float64
	voxelSize           float64
	maxCoplanarityAngle float64
	ignoreCoplanar      bool
	binSize             float64
	models              map[string]*Model
	names               []string
	table               map[[3]int][]PairRef
	logger              logging.Logger
}

func newModelLibrary(cfg Config, logger logging.Logger) *ModelLibrary {
	return &ModelLibrary{
		pairWidth:           cfg.PairWidth,
		voxelSize:           cfg.VoxelSize,
		maxCoplanarityAngle: cfg.MaxCoplanarityAngle,
		ignoreCoplanar:      cfg.IgnoreCoplanarPairs,
		binSize:             math.Pi / float64(cfg.SignatureBins),
		models:              make(map[string]*Model),
		table:               make(map[[3]int][]PairRef),
		logger:              logger,
	}
}

// SetMaxCoplanarityAngle sets the coplanarity threshold in radians. Only
// models added afterward are filtered with the new value.
func (l *ModelLibrary) SetMaxCoplanarityAngle(rad float64) {
	l.maxCoplanarityAngle = rad
}

// IgnoreCoplanarPairs toggles coplanar-pair filtering for subsequently added
// models.
func (l *ModelLibrary) IgnoreCoplanarPairs(on bool) {
	l.ignoreCoplanar = on
}

// AddModel voxelizes the model, indexes every ordered leaf pair whose
// inter-point distance is within a voxel of the pair width, and stores the
// model under the given name. It reports false, without registering
// anything, if the name is already in use.
func (l *ModelLibrary) AddModel(points, normals []r3.Vector, name string, userData any) bool {
	if _, exists := l.models[name]; exists {
		return false
	}

	grid := voxel.NewGrid(points, normals, l.voxelSize, 0)
	leaves := grid.Leaves()
	m := &Model{
		name:     name,
		userData: userData,
		points:   make([]r3.Vector, len(leaves)),
		normals:  make([]r3.Vector, len(leaves)),
	}
	for i, leaf := range leaves {
		m.points[i] = leaf.Point
		m.normals[i] = leaf.Normal
	}

	numPairs := 0
	for i := 0; i < len(m.points); i++ {
		for j := i + 1; j < len(m.points); j++ {
			d := m.points[j].Sub(m.points[i]).Norm()
			if math.Abs(d-l.pairWidth) > l.voxelSize {
				continue
			}
			if l.ignoreCoplanar &&
				pointsAreCoplanar(m.points[i], m.normals[i], m.points[j], m.normals[j], l.maxCoplanarityAngle) {
				continue
			}
			// Both orderings are indexed so a scene pair matches no matter
			// which of its two points was sampled first.
			l.insert(PairRef{Model: m, I: i, J: j})
			l.insert(PairRef{Model: m, I: j, J: i})
			numPairs++
		}
	}

	l.models[name] = m
	l.names = append(l.names, name)
	if l.logger != nil {
		l.logger.Debugf("registered model %q: %d leaves, %d pairs at width %.3f",
			name, len(m.points), numPairs, l.pairWidth)
	}
	return true
}

func (l *ModelLibrary) insert(ref PairRef) {
	m := ref.Model
	sig := PairSignature(m.points[ref.I], m.normals[ref.I], m.points[ref.J], m.normals[ref.J])
	bin := l.signatureBin(sig)
	l.table[bin] = append(l.table[bin], ref)
}

func (l *ModelLibrary) signatureBin(sig [3]float64) [3]int {
	var bin [3]int
	for k, a := range sig {
		bin[k] = int(math.Floor(a / l.binSize))
	}
	return bin
}

// Lookup returns the model pairs whose signature falls into the same bucket
// as the given signature.
func (l *ModelLibrary) Lookup(sig [3]float64) []PairRef {
	return l.table[l.signatureBin(sig)]
}

// GetModel returns the model registered under name, or nil.
func (l *ModelLibrary) GetModel(name string) *Model {
	return l.models[name]
}

// ModelNames returns the registered names in registration order.
func (l *ModelLibrary) ModelNames() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Empty reports whether no models are registered.
func (l *ModelLibrary) Empty() bool { return len(l.models) == 0 }

// TableSize returns the number of occupied hash buckets.
func (l *ModelLibrary) TableSize() int { return len(l.table) }

// RemoveAllModels drops every registered model and clears the hash table.
func (l *ModelLibrary) RemoveAllModels() {
	l.models = make(map[string]*Model)
	l.names = nil
	l.table = make(map[[3]int][]PairRef)
}
