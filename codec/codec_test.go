package codec

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampLevelZeroUsesDefault(t *testing.T) {
	assert.Equal(t, DefaultLevel, ClampLevel(0))
}

func TestClampLevelBelowMin(t *testing.T) {
	assert.Equal(t, MinLevel, ClampLevel(-5))
}

func TestClampLevelAboveMax(t *testing.T) {
	assert.Equal(t, MaxLevel, ClampLevel(100))
}

func TestClampLevelWithinRangeUnchanged(t *testing.T) {
	assert.Equal(t, 12, ClampLevel(12))
}

func TestRoundTripEveryLevel(t *testing.T) {
	data := make([]byte, 256*1024)
	_, err := rand.Read(data)
	require.NoError(t, err)

	for level := MinLevel; level <= MaxLevel; level++ {
		out, err := RoundTrip(data, level)
		require.NoErrorf(t, err, "level %d", level)
		assert.Equalf(t, data, out, "level %d", level)
	}
}

func TestRoundTripEmptyInput(t *testing.T) {
	out, err := RoundTrip(nil, DefaultLevel)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRoundTripHighlyCompressibleInput(t *testing.T) {
	data := make([]byte, 1<<20)
	out, err := RoundTrip(data, DefaultLevel)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}
