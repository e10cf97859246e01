package game

import "time"

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Tick boundary with RNG seed
	EventTypeMonsterSpawned
	EventTypeMonsterKilled
	EventTypeBulletFired
	EventTypeBulletExpired
	EventTypeGameOver
	EventTypeReset
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is what the simulation tells its collaborators: which entities appeared,
// which were destroyed, and when the round ended.
// Timestamp and Sequence are stamped by the engine when the event is published.
type Event struct {
	Version   uint8     `json:"version"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence"`
	TickNum   uint64    `json:"tickNum"`
	Payload   any       `json:"payload"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeMonsterSpawned:
		return "monster_spawned"
	case EventTypeMonsterKilled:
		return "monster_killed"
	case EventTypeBulletFired:
		return "bullet_fired"
	case EventTypeBulletExpired:
		return "bullet_expired"
	case EventTypeGameOver:
		return "game_over"
	case EventTypeReset:
		return "reset"
	default:
		return "unknown"
	}
}

// MarshalText encodes the type by name so logs and websocket frames stay readable.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Typed payloads for different event types

// TickPayload contains tick boundary information for replay
type TickPayload struct {
	RNGSeed  int64 `json:"rngSeed"`
	Monsters int   `json:"monsters"`
	Bullets  int   `json:"bullets"`
}

// MonsterSpawnedPayload asks the collaborator to create a monster visual.
type MonsterSpawnedPayload struct {
	Monster   Handle `json:"monster"`
	Archetype string `json:"archetype"`
	Position  Point  `json:"position"`
}

// MonsterKilledPayload asks the collaborator to destroy a monster visual.
type MonsterKilledPayload struct {
	Monster  Handle `json:"monster"`
	Bullet   uint64 `json:"bullet"`
	Position Point  `json:"position"`
}

// BulletFiredPayload asks the collaborator to create a bullet visual.
type BulletFiredPayload struct {
	Bullet  uint64 `json:"bullet"`
	Monster Handle `json:"monster"`
	Origin  Point  `json:"origin"`
	Target  Point  `json:"target"`
}

// BulletExpiredPayload asks the collaborator to destroy a bullet visual.
type BulletExpiredPayload struct {
	Bullet   uint64       `json:"bullet"`
	Position Point        `json:"position"`
	Reason   ExpireReason `json:"reason"`
}

// GameOverPayload is the loss signal.
type GameOverPayload struct {
	Monster  Handle `json:"monster"`
	Position Point  `json:"position"`
	Round    int    `json:"round"`
	Kills    int    `json:"kills"`
	Ticks    uint64 `json:"ticks"` // Ticks survived this round
}

// ResetPayload announces a fresh round.
type ResetPayload struct {
	Round int   `json:"round"`
	Mage  Point `json:"mage"`
}

// NewEvent creates a new event for the given tick
func NewEvent(eventType EventType, tickNum uint64, payload any) Event {
	return Event{
		Version: EventVersion,
		Type:    eventType,
		TickNum: tickNum,
		Payload: payload,
	}
}

// Stamp sets the wall-clock time and sequence number at publish time.
func (e *Event) Stamp(seq uint64) {
	e.Sequence = seq
	e.Timestamp = time.Now().UnixNano()
}
