//go:build windows
// +build windows

package allocrange

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chronos-imaging/chronos/model"
	"github.com/chronos-imaging/chronos/windows/ioctl"
)

func TestAppendClusterRunsSingleRun(t *testing.T) {
	chunk := &ioctl.VOLUME_BITMAP_BUFFER{
		StartingLcn: 0,
		Bitmap:      []byte{0b00001110},
	}
	ranges := appendClusterRuns(nil, chunk, 4096)
	if assert.Len(t, ranges, 1) {
		assert.Equal(t, uint64(1*4096), ranges[0].OffsetBytes)
		assert.Equal(t, uint64(3*4096), ranges[0].LengthBytes)
	}
}

func TestAppendClusterRunsMultipleRuns(t *testing.T) {
	chunk := &ioctl.VOLUME_BITMAP_BUFFER{
		StartingLcn: 10,
		Bitmap:      []byte{0b00000101},
	}
	ranges := appendClusterRuns(nil, chunk, 4096)
	if assert.Len(t, ranges, 2) {
		assert.Equal(t, uint64(10*4096), ranges[0].OffsetBytes)
		assert.Equal(t, uint64(4096), ranges[0].LengthBytes)
		assert.Equal(t, uint64(12*4096), ranges[1].OffsetBytes)
		assert.Equal(t, uint64(4096), ranges[1].LengthBytes)
	}
}

func TestCoalesceMergesAdjacent(t *testing.T) {
	ranges := []model.AllocatedRange{
		{OffsetBytes: 0, LengthBytes: 4096},
		{OffsetBytes: 4096, LengthBytes: 4096},
		{OffsetBytes: 12288, LengthBytes: 4096},
	}
	merged := coalesce(ranges)
	if assert.Len(t, merged, 2) {
		assert.Equal(t, uint64(0), merged[0].OffsetBytes)
		assert.Equal(t, uint64(8192), merged[0].LengthBytes)
		assert.Equal(t, uint64(12288), merged[1].OffsetBytes)
	}
}

func TestCoalesceEmpty(t *testing.T) {
	assert.Nil(t, coalesce(nil))
}
