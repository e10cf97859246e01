package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"mage-defense/internal/game"
)

var (
	// ErrUnknownCommand is returned for a command word with no mapping.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMalformedCommand is returned for a known command with bad arguments.
	ErrMalformedCommand = errors.New("malformed command")
)

// Kind for routing
type Kind int

const (
	KindUnknown Kind = iota
	KindNudge        // One directional step
	KindMove         // Arbitrary displacement
	KindReset        // Start a new round
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNudge:
		return "nudge"
	case KindMove:
		return "move"
	case KindReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Displaces reports whether the command only shifts monsters, which lets
// consecutive ones be merged.
func (k Kind) Displaces() bool {
	return k == KindNudge || k == KindMove
}

// Command is a parsed player command.
type Command struct {
	Kind       Kind
	Direction  game.Direction // KindNudge only
	DX, DY     float64        // KindMove only
	ClientID   string         // Rate limiting key, usually the remote address
	ReceivedAt time.Time
}

// SupportedCommands maps command words to kinds
var SupportedCommands = map[string]Kind{
	// Directions
	"up": KindNudge, "w": KindNudge, "arrowup": KindNudge,
	"down": KindNudge, "s": KindNudge, "arrowdown": KindNudge,
	"left": KindNudge, "a": KindNudge, "arrowleft": KindNudge,
	"right": KindNudge, "d": KindNudge, "arrowright": KindNudge,

	// Free displacement
	"move": KindMove,

	// Reset variants
	"reset":   KindReset,
	"restart": KindReset,
}

// DirectionAliases maps direction words to directions
var DirectionAliases = map[string]game.Direction{
	"up": game.DirUp, "w": game.DirUp, "arrowup": game.DirUp,
	"down": game.DirDown, "s": game.DirDown, "arrowdown": game.DirDown,
	"left": game.DirLeft, "a": game.DirLeft, "arrowleft": game.DirLeft,
	"right": game.DirRight, "d": game.DirRight, "arrowright": game.DirRight,
}

// GetKind returns the command kind for a word (case-insensitive)
func GetKind(word string) Kind {
	if k, ok := SupportedCommands[strings.ToLower(word)]; ok {
		return k
	}
	return KindUnknown
}

// ParseDirection normalizes a direction word.
func ParseDirection(word string) (game.Direction, bool) {
	d, ok := DirectionAliases[strings.ToLower(word)]
	return d, ok
}

// jsonCommand is the object form accepted over the websocket:
// {"command":"up"}, {"command":"move","dx":3,"dy":-2} or {"dx":3,"dy":-2}.
type jsonCommand struct {
	Command   string   `json:"command"`
	Direction string   `json:"direction"`
	DX        *float64 `json:"dx"`
	DY        *float64 `json:"dy"`
}

// Parse turns a line of client input into a Command.
// Plain text ("up", "!left", "move 3 -2", "reset") and JSON objects are accepted.
func Parse(text string) (Command, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") {
		return parseJSON(text)
	}

	parts := strings.Fields(strings.TrimPrefix(text, "!"))
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("%w: empty input", ErrUnknownCommand)
	}

	word := strings.ToLower(parts[0])
	args := parts[1:]

	switch GetKind(word) {
	case KindNudge:
		d, _ := ParseDirection(word)
		return Command{Kind: KindNudge, Direction: d}, nil

	case KindMove:
		if len(args) != 2 {
			return Command{}, fmt.Errorf("%w: move takes dx and dy", ErrMalformedCommand)
		}
		dx, err := parseOffset("dx", args[0])
		if err != nil {
			return Command{}, err
		}
		dy, err := parseOffset("dy", args[1])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: KindMove, DX: dx, DY: dy}, nil

	case KindReset:
		return Command{Kind: KindReset}, nil
	}

	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, word)
}

// parseOffset reads one displacement component. NaN and infinities are
// refused: a single one would poison every monster position.
func parseOffset(name, arg string) (float64, error) {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMalformedCommand, name, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s must be finite", ErrMalformedCommand, name)
	}
	return v, nil
}

func parseJSON(text string) (Command, error) {
	var jc jsonCommand
	if err := json.Unmarshal([]byte(text), &jc); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	switch {
	case jc.Direction != "":
		d, ok := ParseDirection(jc.Direction)
		if !ok {
			return Command{}, fmt.Errorf("%w: direction %q", ErrMalformedCommand, jc.Direction)
		}
		return Command{Kind: KindNudge, Direction: d}, nil

	case jc.DX != nil || jc.DY != nil:
		var cmd Command
		cmd.Kind = KindMove
		if jc.DX != nil {
			cmd.DX = *jc.DX
		}
		if jc.DY != nil {
			cmd.DY = *jc.DY
		}
		return cmd, nil

	case jc.Command != "":
		return Parse(jc.Command)
	}

	return Command{}, fmt.Errorf("%w: empty object", ErrMalformedCommand)
}
