//go:build windows
// +build windows

package restoreengine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chronos-imaging/chronos/model"
)

func TestDiskIndexFromPhysicalPath(t *testing.T) {
	n, err := diskIndexFromPhysicalPath(`\\.\PhysicalDrive3`)
	assert.NoError(t, err)
	assert.Equal(t, uint32(3), n)

	_, err = diskIndexFromPhysicalPath(`\\.\Harddisk0Partition1`)
	assert.Error(t, err)
}

func TestDiskAndPartitionFromPath(t *testing.T) {
	disk, partition, ok := diskAndPartitionFromPath(`\\.\Harddisk1Partition2`)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), disk)
	assert.Equal(t, uint32(2), partition)

	_, _, ok = diskAndPartitionFromPath(`\\.\PhysicalDrive0`)
	assert.False(t, ok)
}

func TestPadLength(t *testing.T) {
	assert.Equal(t, uint64(512), padLength(1, 512))
	assert.Equal(t, uint64(512), padLength(512, 512))
	assert.Equal(t, uint64(1024), padLength(513, 512))
	assert.Equal(t, uint64(100), padLength(100, 0))
}

func TestPartitionSizeFromSidecar(t *testing.T) {
	sc := model.ImageSidecar{
		Partitions: []model.SidecarPartition{
			{PartitionNumber: 1, Size: 100 << 20},
			{PartitionNumber: 2, Size: 200 << 20},
		},
	}
	assert.Equal(t, uint64(200<<20), partitionSizeFromSidecar(sc, 2))
	assert.Equal(t, uint64(0), partitionSizeFromSidecar(sc, 99))
}

func TestImageHasher(t *testing.T) {
	h := newImageHasher()
	h.Write([]byte("hello"))
	h.Write([]byte(" world"))
	assert.Len(t, h.Sum(), 64) // hex-encoded sha256 digest
}
