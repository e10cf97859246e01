package game

// Bullet is a projectile fired from the mage at a captured target point.
// Bullets never re-track a moving monster.
type Bullet struct {
	ID     uint64  `json:"id"`
	Pos    Point   `json:"pos"`
	Target Point   `json:"target"`
	Range  float64 `json:"range"` // Remaining travel budget, never increases
	Speed  float64 `json:"speed"` // Max displacement per tick
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ExpireReason says why a bullet left play.
type ExpireReason string

const (
	ExpireHit       ExpireReason = "hit"       // Struck at least one monster
	ExpireArrived   ExpireReason = "arrived"   // Reached its captured target
	ExpireExhausted ExpireReason = "exhausted" // Ran out of range
)

// Bounds returns the bullet's current bounding box.
func (b *Bullet) Bounds() AABB {
	return BoxAround(b.Pos, b.Width, b.Height)
}

// Advance moves the bullet one tick toward its target.
// A step that reaches or passes the target leaves the bullet on the target
// with zero range; otherwise the range shrinks by Speed.
// Returns true if the bullet arrived this tick.
func (b *Bullet) Advance() bool {
	next, d := StepToward(b.Pos, b.Target, b.Speed)
	if StepFraction(b.Speed, d) >= 1 {
		b.Pos = b.Target
		b.Range = 0
		return true
	}

	b.Pos = next
	b.Range -= b.Speed
	return false
}

// Alive reports whether the bullet still has travel budget.
func (b *Bullet) Alive() bool {
	return b.Range > 0
}
