//go:build windows
// +build windows

package diskenum

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chronos-imaging/chronos/model"
)

func TestComputeUnallocatedNoPartitions(t *testing.T) {
	const diskSize = 1 << 30 // 1 GiB
	gaps := computeUnallocated(diskSize, nil)

	if assert.Len(t, gaps, 1) {
		assert.Equal(t, uint64(frontReserve), gaps[0].OffsetBytes)
		assert.Equal(t, uint64(diskSize-backReserve-frontReserve), gaps[0].SizeBytes)
		assert.True(t, gaps[0].IsUnallocated)
		assert.Equal(t, uint32(model.UnallocatedPartitionNumberBase), gaps[0].PartitionNumber)
	}
}

func TestComputeUnallocatedIgnoresSmallGaps(t *testing.T) {
	const diskSize = 1 << 30
	partitions := []model.Partition{
		{OffsetBytes: frontReserve, SizeBytes: diskSize - frontReserve - backReserve - (5 << 20)},
	}
	gaps := computeUnallocated(diskSize, partitions)
	assert.Empty(t, gaps)
}

func TestComputeUnallocatedBetweenTwoPartitions(t *testing.T) {
	const diskSize = 1 << 30
	partitions := []model.Partition{
		{OffsetBytes: 1 << 20, SizeBytes: 100 << 20},
		{OffsetBytes: 105906176, SizeBytes: 900 << 20},
	}
	gaps := computeUnallocated(diskSize, partitions)

	expectedStart := uint64(105906176) + uint64(900<<20)
	expectedEnd := uint64(diskSize - backReserve)
	if expectedEnd-expectedStart >= minGapForUnallocated {
		if assert.Len(t, gaps, 1) {
			assert.Equal(t, expectedStart, gaps[0].OffsetBytes)
		}
	} else {
		assert.Empty(t, gaps)
	}
}

func TestComputeUnallocatedAssignsIncreasingPartitionNumbers(t *testing.T) {
	const diskSize = 10 << 30
	partitions := []model.Partition{
		{OffsetBytes: 2 << 30, SizeBytes: 1 << 20},
		{OffsetBytes: 6 << 30, SizeBytes: 1 << 20},
	}
	gaps := computeUnallocated(diskSize, partitions)
	if assert.Len(t, gaps, 3) {
		assert.Equal(t, uint32(model.UnallocatedPartitionNumberBase), gaps[0].PartitionNumber)
		assert.Equal(t, uint32(model.UnallocatedPartitionNumberBase+1), gaps[1].PartitionNumber)
		assert.Equal(t, uint32(model.UnallocatedPartitionNumberBase+2), gaps[2].PartitionNumber)
	}
}
