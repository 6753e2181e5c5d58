//go:build windows
// +build windows

package wmi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterPartitionsByDisk(t *testing.T) {
	partitions := []*MSFT_Partition{
		{DiskNumber: 0, PartitionNumber: 1},
		{DiskNumber: 1, PartitionNumber: 1},
		{DiskNumber: 0, PartitionNumber: 2},
	}

	filtered := filterPartitionsByDisk(partitions, 0)
	assert.Len(t, filtered, 2)
	assert.Equal(t, uint32(1), filtered[0].PartitionNumber)
	assert.Equal(t, uint32(2), filtered[1].PartitionNumber)

	assert.Empty(t, filterPartitionsByDisk(partitions, 9))
}
