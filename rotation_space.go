package objrec

import (
	"math"

	"github.com/golang/geo/r3"
)

// rotationEntry accumulates pose votes for one model inside one rotation
// cell: running sums of the axis-angle and translation vectors plus the vote
// count. Votes for the same object instance share a near-identical rotation,
// so averaging them yields a more precise pose than any single vote.
type rotationEntry struct {
	axisAngleSum   r3.Vector
	translationSum r3.Vector
	count          int
}

func (e *rotationEntry) add(axisAngle, translation r3.Vector) {
	e.axisAngleSum = e.axisAngleSum.Add(axisAngle)
	e.translationSum = e.translationSum.Add(translation)
	e.count++
}

// average replaces the running sums with their arithmetic mean and resets
// the count to 1. Once the count has been reduced to 1 the operation is a
// no-op, so calling it twice is safe. Votes must not be added afterward
// without re-establishing a valid accumulation state.
func (e *rotationEntry) average() {
	if e.count < 2 {
		return
	}
	inv := 1.0 / float64(e.count)
	e.axisAngleSum = e.axisAngleSum.Mul(inv)
	e.translationSum = e.translationSum.Mul(inv)
	e.count = 1
}

// rotationCell holds one entry per model that voted into the cell. Models
// are kept in first-vote order so draining is deterministic.
type rotationCell struct {
	coord   [3]int
	entries map[*Model]*rotationEntry
	order   []*Model
}

func (c *rotationCell) add(model *Model, axisAngle, translation r3.Vector) {
	e, ok := c.entries[model]
	if !ok {
		e = &rotationEntry{}
		c.entries[model] = e
		c.order = append(c.order, model)
	}
	e.add(axisAngle, translation)
}

// RotationSpace clusters near-duplicate pose votes without pairwise
// comparison. Rotations are quantized into cells of fixed angular size over
// the axis-angle domain [-pi-eps, pi+eps]^3; translations are averaged only
// within a rotation cell, per model. It lives for a single Recognize call.
type RotationSpace struct {
	leafSize float64
	min, max float64
	cells    map[[3]int]*rotationCell
	order    []*rotationCell
}

const rotationBoundsEps = 1e-9

func newRotationSpace(leafSize float64) *RotationSpace {
	return &RotationSpace{
		leafSize: leafSize,
		min:      -(math.Pi + rotationBoundsEps),
		max:      math.Pi + rotationBoundsEps,
		cells:    make(map[[3]int]*rotationCell),
	}
}

// AddRigidTransform votes one pose for the given model. It reports false,
// without adding the vote, when the axis-angle vector falls outside the
// rotation-space bounds.
func (rs *RotationSpace) AddRigidTransform(model *Model, axisAngle, translation r3.Vector) bool {
	for _, v := range []float64{axisAngle.X, axisAngle.Y, axisAngle.Z} {
		if v < rs.min || v > rs.max {
			return false
		}
	}
	coord := [3]int{
		int(math.Floor((axisAngle.X - rs.min) / rs.leafSize)),
		int(math.Floor((axisAngle.Y - rs.min) / rs.leafSize)),
		int(math.Floor((axisAngle.Z - rs.min) / rs.leafSize)),
	}
	cell, ok := rs.cells[coord]
	if !ok {
		cell = &rotationCell{coord: coord, entries: make(map[*Model]*rotationEntry)}
		rs.cells[coord] = cell
		rs.order = append(rs.order, cell)
	}
	cell.add(model, axisAngle, translation)
	return true
}

// Hypotheses drains every occupied cell: for each model present in a cell
// the accumulated votes are averaged and emitted as one unverified
// hypothesis. Cells are visited in first-vote order.
func (rs *RotationSpace) Hypotheses(recordCells bool) []*Hypothesis {
	var out []*Hypothesis
	for _, cell := range rs.order {
		for _, model := range cell.order {
			e := cell.entries[model]
			e.average()
			h := &Hypothesis{
				MatchConfidence: -1,
				Model:           model,
			}
			axisAngleToRotation(e.axisAngleSum, &h.Transform)
			h.Transform[9] = e.translationSum.X
			h.Transform[10] = e.translationSum.Y
			h.Transform[11] = e.translationSum.Z
			if recordCells {
				h.RotationCell = cell.coord
			}
			out = append(out, h)
		}
	}
	return out
}

// Size returns the number of occupied cells.
func (rs *RotationSpace) Size() int { return len(rs.cells) }
