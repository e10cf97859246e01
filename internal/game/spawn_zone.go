package game

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var (
	// ErrInvalidViewport is returned for non-positive viewport sizes or grid steps.
	ErrInvalidViewport = errors.New("invalid viewport")
	// ErrEmptySpawnZone is returned when the keep-out square covers every grid point.
	ErrEmptySpawnZone = errors.New("no admissible spawn points")
)

// MaxSpawnGridPoints bounds the grid a single zone may enumerate.
const MaxSpawnGridPoints = 1 << 22

// SpawnZone is the precomputed, immutable set of grid points where monsters may appear.
type SpawnZone struct {
	width, height float64
	safe          AABB
	points        []Point
}

// NewSpawnZone enumerates the grid over [0,width) x [0,height) at the given step,
// leaving out the square of half-width spawnRange centred on center.
//
// Columns clear of the square contribute every row. Columns crossing it
// contribute the rows above the square and the rows from its lower edge down.
func NewSpawnZone(width, height float64, center Point, spawnRange, step float64) (*SpawnZone, error) {
	if !(width > 0 && height > 0 && step > 0) || !isFinite(width) || !isFinite(height) {
		return nil, fmt.Errorf("%w: %gx%g step %g", ErrInvalidViewport, width, height, step)
	}
	if math.Ceil(width/step)*math.Ceil(height/step) > MaxSpawnGridPoints {
		return nil, fmt.Errorf("%w: %gx%g at step %g exceeds %d grid points",
			ErrInvalidViewport, width, height, step, MaxSpawnGridPoints)
	}

	left, right := center.X-spawnRange, center.X+spawnRange
	top, bottom := center.Y-spawnRange, center.Y+spawnRange

	z := &SpawnZone{
		width:  width,
		height: height,
		safe:   AABB{X: left, Y: top, Width: 2 * spawnRange, Height: 2 * spawnRange},
	}

	for x := 0.0; x < width; x += step {
		if left <= x && x < right {
			for y := 0.0; y < top && y < height; y += step {
				z.points = append(z.points, Point{X: x, Y: y})
			}
			for y := bottom; y < height; y += step {
				z.points = append(z.points, Point{X: x, Y: y})
			}
			continue
		}
		for y := 0.0; y < height; y += step {
			z.points = append(z.points, Point{X: x, Y: y})
		}
	}

	if len(z.points) == 0 {
		return nil, fmt.Errorf("%w: %gx%g with spawn range %g", ErrEmptySpawnZone, width, height, spawnRange)
	}
	return z, nil
}

// Points returns the admissible points in enumeration order.
// The slice is shared; callers must not modify it.
func (z *SpawnZone) Points() []Point {
	return z.points
}

// Len returns the number of admissible points.
func (z *SpawnZone) Len() int {
	return len(z.points)
}

// SafeArea returns the keep-out square.
func (z *SpawnZone) SafeArea() AABB {
	return z.safe
}

// Viewport returns the dimensions the zone was computed for.
func (z *SpawnZone) Viewport() (width, height float64) {
	return z.width, z.height
}

// Pick returns a uniformly random admissible point.
func (z *SpawnZone) Pick(rng *rand.Rand) Point {
	return z.points[rng.Intn(len(z.points))]
}
