//go:build windows
// +build windows

package vhd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeForSourceExactMultiple(t *testing.T) {
	assert.Equal(t, uint64(4096), SizeForSource(4096, 512))
}

func TestSizeForSourceRoundsUp(t *testing.T) {
	assert.Equal(t, uint64(4096), SizeForSource(4000, 512))
}

func TestSizeForSourceZeroSectorSize(t *testing.T) {
	assert.Equal(t, uint64(123), SizeForSource(123, 0))
}
