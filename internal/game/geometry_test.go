package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntersects(t *testing.T) {
	tests := []struct {
		name string
		a, b AABB
		want bool
	}{
		{"overlapping", AABB{0, 0, 10, 10}, AABB{5, 5, 10, 10}, true},
		{"shared vertical edge", AABB{0, 0, 10, 10}, AABB{10, 0, 10, 10}, false},
		{"shared horizontal edge", AABB{0, 0, 10, 10}, AABB{0, 10, 10, 10}, false},
		{"shared corner", AABB{0, 0, 10, 10}, AABB{10, 10, 10, 10}, false},
		{"contained", AABB{0, 0, 100, 100}, AABB{40, 40, 5, 5}, true},
		{"disjoint", AABB{0, 0, 10, 10}, AABB{50, 50, 10, 10}, false},
		{"zero size inside", AABB{0, 0, 10, 10}, AABB{5, 5, 0, 0}, false},
		{"barely overlapping", AABB{0, 0, 10, 10}, AABB{9.999, 0, 10, 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Intersects(tt.a, tt.b))
			assert.Equal(t, tt.want, Intersects(tt.b, tt.a), "intersection must be symmetric")
		})
	}
}

func TestBoxAroundIsCentred(t *testing.T) {
	box := BoxAround(Point{X: 100, Y: 50}, 32, 16)
	assert.Equal(t, AABB{X: 84, Y: 42, Width: 32, Height: 16}, box)
}

func TestStepTowardZeroDistance(t *testing.T) {
	p := Point{X: 3, Y: 4}
	next, d := StepToward(p, p, 5)
	assert.Equal(t, p, next)
	assert.Zero(t, d)
	assert.True(t, StepFraction(5, d) >= 1, "zero distance counts as arrived")
}

func TestStepTowardMovesByStep(t *testing.T) {
	next, d := StepToward(Point{X: 0, Y: 0}, Point{X: 30, Y: 40}, 5)
	assert.InDelta(t, 50, d, 1e-9)
	assert.InDelta(t, 3, next.X, 1e-9)
	assert.InDelta(t, 4, next.Y, 1e-9)
}

func TestStepTowardConvergesThenOvershoots(t *testing.T) {
	const step = 3.0
	target := Point{X: 100, Y: 37}

	starts := []Point{{0, 0}, {250, -80}, {100, 36}, {-13.5, 400}}
	for _, start := range starts {
		pos := start
		prev := math.Inf(1)
		for i := 0; ; i++ {
			require.Less(t, i, 1000, "did not converge from %v", start)

			next, d := StepToward(pos, target, step)
			require.Less(t, d, prev, "distance must shrink monotonically")
			prev = d

			if d < step {
				assert.GreaterOrEqual(t, StepFraction(step, d), 1.0)
				break
			}
			assert.Less(t, StepFraction(step, d), 1.0+1e-12)
			pos = next
		}
	}
}
