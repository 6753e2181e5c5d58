//go:build windows
// +build windows

package backupengine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chronos-imaging/chronos/model"
)

func TestPadToSector(t *testing.T) {
	assert.Equal(t, 512, len(padToSector(make([]byte, 1), 512)))
	assert.Equal(t, 512, len(padToSector(make([]byte, 512), 512)))
	assert.Equal(t, 1024, len(padToSector(make([]byte, 513), 512)))

	data := make([]byte, 10)
	assert.Equal(t, data, padToSector(data, 0))
}

func TestSidecarPartitions(t *testing.T) {
	used := uint64(1 << 20)
	partitions := []model.Partition{
		{PartitionNumber: 1, SizeBytes: 100 << 20, OffsetBytes: 1 << 20, DriveLetter: "C:", UsedBytes: &used},
	}
	out := sidecarPartitions(partitions)
	assert.Len(t, out, 1)
	assert.Equal(t, uint32(1), out[0].PartitionNumber)
	assert.Equal(t, "C:", out[0].DriveLetter)
	assert.Same(t, &used, out[0].UsedSpace)
}

func TestPartitionRangesWithoutVolume(t *testing.T) {
	p := model.Partition{PartitionNumber: 2, SizeBytes: 4096}
	ranges := partitionRanges(p, 0, nil)
	assert.Len(t, ranges, 1)
	assert.Equal(t, uint64(0), ranges[0].sourceOffset)
	assert.Equal(t, uint64(4096), ranges[0].length)
	assert.Equal(t, `\\.\Harddisk0Partition2`, ranges[0].sourcePath)
}

func TestReportOrNoopHandlesNil(t *testing.T) {
	fn := reportOrNoop(nil)
	assert.NotPanics(t, func() { fn(model.OperationProgress{}) })
}
