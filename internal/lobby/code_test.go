package lobby

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodeShapeAndUniqueness(t *testing.T) {
	reg := NewRegistry()
	store := newFakeStore()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := NewCode(context.Background(), DefaultCodeLength, reg, store)
		require.NoError(t, err)
		assert.Len(t, code, DefaultCodeLength)
		for _, r := range code {
			assert.Contains(t, codeAlphabet, string(r))
		}
		seen[code] = true
	}
	// collisions at this sample size would mean a broken generator
	assert.Greater(t, len(seen), 45)
}

func TestNewCodeSkipsLiveLobbies(t *testing.T) {
	reg := NewRegistry()
	store := newFakeStore()

	// occupy a large slice of a tiny code space so retries must happen
	l, _, _ := newTestLobby(ModeNormal)
	l.Code = "AA"
	require.NoError(t, reg.Add(l))

	for i := 0; i < 20; i++ {
		code, err := NewCode(context.Background(), 2, reg, store)
		require.NoError(t, err)
		assert.NotEqual(t, "AA", code)
	}
}

func TestNewCodeChecksStore(t *testing.T) {
	reg := NewRegistry()
	store := newFakeStore()
	store.codeErr = errors.New("store down")

	_, err := NewCode(context.Background(), DefaultCodeLength, reg, store)
	require.Error(t, err)
	assert.ErrorContains(t, err, "code uniqueness check")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	l, _, _ := newTestLobby(ModeNormal)

	require.NoError(t, reg.Add(l))
	assert.Equal(t, 1, reg.Len())
	assert.True(t, reg.HasCode("ABC123"))
	found, ok := reg.Find("ABC123")
	assert.True(t, ok)
	assert.Same(t, l, found)

	dup, _, _ := newTestLobby(ModeNormal)
	assert.Error(t, reg.Add(dup))

	reg.Delete("ABC123")
	_, ok = reg.Find("ABC123")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}
