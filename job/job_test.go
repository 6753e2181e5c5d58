package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFullDiskSetsKindAndVariant(t *testing.T) {
	j := NewFullDisk(FullDisk{DiskIndex: 1, CompressionLevel: 5}, "nightly backup")
	assert.Equal(t, KindFullDisk, j.Kind)
	assert.NotNil(t, j.FullDisk)
	assert.Nil(t, j.Partition)
	assert.Equal(t, uint32(1), j.SourceDiskIndex())
	assert.Equal(t, 5, j.CompressionLevel())
}

func TestNewPartitionCloneHasNoCompressionLevel(t *testing.T) {
	offset := uint64(1 << 30)
	size := uint64(20 << 30)
	j := NewPartitionClone(PartitionClone{
		SourceDiskIndex:         0,
		SourcePartitionNumber:   2,
		TargetDiskIndex:         1,
		TargetUnallocatedOffset: &offset,
		TargetUnallocatedSize:   &size,
	}, "")
	assert.Equal(t, KindPartitionClone, j.Kind)
	assert.Equal(t, 0, j.CompressionLevel())
	assert.Equal(t, uint32(0), j.SourceDiskIndex())
}

func TestUseSnapshotPerVariant(t *testing.T) {
	assert.True(t, NewFullDisk(FullDisk{UseSnapshot: true}, "").UseSnapshot())
	assert.False(t, NewDiskClone(DiskClone{}, "").UseSnapshot())
}

func TestToModelKind(t *testing.T) {
	j := NewFullDisk(FullDisk{}, "")
	assert.Equal(t, "FullDisk", string(j.ToModelKind()))
}
