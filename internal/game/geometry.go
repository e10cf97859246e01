package game

import "math"

// Point is a position in world units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the Euclidean distance between p and q.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Sub returns p minus q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// IsFinite reports whether both coordinates are real numbers.
func (p Point) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// AABB is an axis-aligned bounding box anchored at its top-left corner.
type AABB struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BoxAround returns the box of the given size centred on p.
// Entities are anchored at their centre, so every bounds query goes through here.
func BoxAround(p Point, width, height float64) AABB {
	return AABB{
		X:      p.X - width/2,
		Y:      p.Y - height/2,
		Width:  width,
		Height: height,
	}
}

// Intersects reports whether a and b overlap with positive area.
// Boxes that only share an edge do not intersect.
func Intersects(a, b AABB) bool {
	return a.X+a.Width > b.X &&
		a.X < b.X+b.Width &&
		a.Y+a.Height > b.Y &&
		a.Y < b.Y+b.Height
}

// StepToward moves origin toward target by step and returns the new point
// together with the distance measured before the move.
//
// The move is a linear interpolation by step/D, so a step larger than the
// remaining distance overshoots the target. When origin equals target the
// point is returned unchanged with distance 0.
func StepToward(origin, target Point, step float64) (Point, float64) {
	dx := target.X - origin.X
	dy := target.Y - origin.Y
	d := math.Sqrt(dx*dx + dy*dy)
	if d == 0 {
		return origin, 0
	}

	f := step / d
	return Point{X: origin.X + f*dx, Y: origin.Y + f*dy}, d
}

// StepFraction is the interpolation factor StepToward applies for a step over
// distance d. A value >= 1 means the step reaches or passes the target; a zero
// distance counts as already arrived.
func StepFraction(step, d float64) float64 {
	if d == 0 {
		return math.Inf(1)
	}
	return step / d
}
