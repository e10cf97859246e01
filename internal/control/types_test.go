package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mage-defense/internal/game"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Command
	}{
		{"up", "up", Command{Kind: KindNudge, Direction: game.DirUp}},
		{"wasd down", "s", Command{Kind: KindNudge, Direction: game.DirDown}},
		{"arrow key", "ArrowLeft", Command{Kind: KindNudge, Direction: game.DirLeft}},
		{"bang prefix", "!right", Command{Kind: KindNudge, Direction: game.DirRight}},
		{"padded", "  UP \n", Command{Kind: KindNudge, Direction: game.DirUp}},
		{"move", "move 3 -2.5", Command{Kind: KindMove, DX: 3, DY: -2.5}},
		{"reset", "reset", Command{Kind: KindReset}},
		{"restart alias", "!restart", Command{Kind: KindReset}},
		{"json direction", `{"direction":"left"}`, Command{Kind: KindNudge, Direction: game.DirLeft}},
		{"json displacement", `{"dx":4,"dy":-1}`, Command{Kind: KindMove, DX: 4, DY: -1}},
		{"json only dy", `{"dy":7}`, Command{Kind: KindMove, DY: 7}},
		{"json command", `{"command":"move 1 2"}`, Command{Kind: KindMove, DX: 1, DY: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "   ", ErrUnknownCommand},
		{"bare bang", "!", ErrUnknownCommand},
		{"unknown word", "jump", ErrUnknownCommand},
		{"move missing args", "move 3", ErrMalformedCommand},
		{"move bad dx", "move x 3", ErrMalformedCommand},
		{"move bad dy", "move 3 y", ErrMalformedCommand},
		{"move NaN", "move NaN 0", ErrMalformedCommand},
		{"move infinite dy", "move 0 Inf", ErrMalformedCommand},
		{"move negative infinity", "move -inf 1", ErrMalformedCommand},
		{"move overflow", "move 1e999 0", ErrMalformedCommand},
		{"json nested NaN", `{"command":"move nan nan"}`, ErrMalformedCommand},
		{"bad json", `{"dx":`, ErrMalformedCommand},
		{"bad json direction", `{"direction":"sideways"}`, ErrMalformedCommand},
		{"empty json", `{}`, ErrMalformedCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetKindIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, KindReset, GetKind("RESET"))
	assert.Equal(t, KindNudge, GetKind("Up"))
	assert.Equal(t, KindUnknown, GetKind("fly"))
}
