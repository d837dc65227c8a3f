package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSession(handle, tamerID int64, name string) *Session {
	return New(handle, tamerID, tamerID, name, nil, zap.NewNop())
}

func TestManager_RegisterAndLookup(t *testing.T) {
	m := NewSessionManager(zap.NewNop())
	s := newSession(100, 1, "Taichi")

	require.Nil(t, m.Register(s))
	assert.Equal(t, 1, m.Count())

	got, ok := m.ByHandle(100)
	require.True(t, ok)
	assert.Same(t, s, got)

	got, ok = m.ByTamerID(1)
	require.True(t, ok)
	assert.Same(t, s, got)

	got, ok = m.ByName("Taichi")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = m.ByHandle(999)
	assert.False(t, ok)
}

func TestManager_DuplicateLoginDisplacesOldSession(t *testing.T) {
	m := NewSessionManager(zap.NewNop())
	old := newSession(100, 1, "Taichi")
	require.Nil(t, m.Register(old))

	replacement := newSession(101, 1, "Taichi")
	displaced := m.Register(replacement)

	require.Same(t, old, displaced)
	assert.True(t, old.IsClosed(), "displaced session gets closed")
	assert.Equal(t, 1, m.Count())

	got, ok := m.ByTamerID(1)
	require.True(t, ok)
	assert.Same(t, replacement, got)

	_, ok = m.ByHandle(100)
	assert.False(t, ok, "old handle index cleared")
}

func TestManager_UnregisterLeavesReplacementAlone(t *testing.T) {
	m := NewSessionManager(zap.NewNop())
	old := newSession(100, 1, "Taichi")
	m.Register(old)
	replacement := newSession(101, 1, "Taichi")
	m.Register(replacement)

	// Old session's disconnect cleanup races the replacement's register.
	// It must not knock the replacement out of the indexes.
	m.Unregister(old)

	got, ok := m.ByTamerID(1)
	require.True(t, ok)
	assert.Same(t, replacement, got)
	assert.Equal(t, 1, m.Count())

	m.Unregister(replacement)
	assert.Zero(t, m.Count())
	_, ok = m.ByName("Taichi")
	assert.False(t, ok)
}

func TestManager_Range(t *testing.T) {
	m := NewSessionManager(zap.NewNop())
	m.Register(newSession(1, 1, "A"))
	m.Register(newSession(2, 2, "B"))
	m.Register(newSession(3, 3, "C"))

	var visited int
	m.Range(func(s *Session) bool {
		visited++
		return true
	})
	assert.Equal(t, 3, visited)

	visited = 0
	m.Range(func(s *Session) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}
