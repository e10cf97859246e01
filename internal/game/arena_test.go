package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonsterArenaInsertGet(t *testing.T) {
	a := NewMonsterArena(4)

	h := a.Insert(Monster{Archetype: "ghost", Pos: Point{X: 1, Y: 2}})
	assert.Equal(t, uint32(1), h.Gen)
	assert.Equal(t, 1, a.Len())

	m, ok := a.Get(h)
	require.True(t, ok)
	assert.Equal(t, "ghost", m.Archetype)
	assert.Equal(t, h, m.Handle)

	_, ok = a.Get(Handle{})
	assert.False(t, ok, "the zero handle never resolves")
}

func TestMonsterArenaStaleHandle(t *testing.T) {
	a := NewMonsterArena(2)

	old := a.Insert(Monster{Archetype: "ghost"})
	require.True(t, a.Remove(old))
	assert.False(t, a.Remove(old), "double remove is ignored")

	reused := a.Insert(Monster{Archetype: "umaro"})
	assert.Equal(t, old.Index, reused.Index, "slot is reused")
	assert.NotEqual(t, old.Gen, reused.Gen)

	_, ok := a.Get(old)
	assert.False(t, ok, "stale handle must not resolve to the new occupant")

	m, ok := a.Get(reused)
	require.True(t, ok)
	assert.Equal(t, "umaro", m.Archetype)
}

func TestMonsterArenaHandlesInSlotOrder(t *testing.T) {
	a := NewMonsterArena(4)
	h0 := a.Insert(Monster{})
	h1 := a.Insert(Monster{})
	h2 := a.Insert(Monster{})

	a.Remove(h1)
	assert.Equal(t, []Handle{h0, h2}, a.Handles(nil))

	h3 := a.Insert(Monster{})
	assert.Equal(t, []Handle{h0, h3, h2}, a.Handles(nil))
}

func TestMonsterArenaClearKeepsGenerations(t *testing.T) {
	a := NewMonsterArena(2)
	h := a.Insert(Monster{})
	a.Insert(Monster{})

	a.Clear()
	assert.Equal(t, 0, a.Len())
	assert.Empty(t, a.Handles(nil))

	_, ok := a.Get(h)
	assert.False(t, ok)

	next := a.Insert(Monster{})
	assert.Equal(t, uint32(0), next.Index, "lowest slot is reused first after Clear")
	assert.Equal(t, uint32(2), next.Gen)
}
