package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPartitionEndAndHasVolume(t *testing.T) {
	p := Partition{OffsetBytes: 1048576, SizeBytes: 104857600}
	assert.Equal(t, uint64(1048576+104857600), p.End())
	assert.False(t, p.HasVolume())

	p.VolumePath = `\\.\Harddisk0Partition1`
	assert.True(t, p.HasVolume())
}

func TestAllocatedRangeAdjacency(t *testing.T) {
	r := AllocatedRange{OffsetBytes: 0, LengthBytes: 4096}
	assert.True(t, r.AdjacentOrOverlapping(AllocatedRange{OffsetBytes: 4096, LengthBytes: 4096}))
	assert.True(t, r.AdjacentOrOverlapping(AllocatedRange{OffsetBytes: 2048, LengthBytes: 4096}))
	assert.False(t, r.AdjacentOrOverlapping(AllocatedRange{OffsetBytes: 8192, LengthBytes: 4096}))
}

func TestSnapshotSetCanonicalForms(t *testing.T) {
	set := NewSnapshotSet("set-1")
	set.Register([]string{`C:\`, `C:`, `\\.\C:`}, `\\.\GLOBALROOT\Device\HarddiskVolumeShadowCopy1`)

	for _, key := range []string{`C:\`, `C:`, `\\.\C:`} {
		path, ok := set.GetSnapshotPath(key)
		assert.True(t, ok)
		assert.Equal(t, `\\.\GLOBALROOT\Device\HarddiskVolumeShadowCopy1`, path)
	}

	_, ok := set.GetSnapshotPath(`D:\`)
	assert.False(t, ok)
}

func TestAttachedContainerDetachIsIdempotent(t *testing.T) {
	calls := 0
	a := NewAttachedContainer(VirtualDiskContainer{Path: "x.vhdx"}, `\\.\PhysicalDrive5`, func() error {
		calls++
		return nil
	})
	assert.NoError(t, a.Detach())
	assert.NoError(t, a.Detach())
	assert.Equal(t, 1, calls)
}

func TestImageSidecarJSONRoundTrip(t *testing.T) {
	used := uint64(1024)
	sidecar := ImageSidecar{
		ChronosVersion:    "1.0.0",
		CreatedAtUTC:      time.Now().UTC().Truncate(time.Second),
		PartitionStyle:    PartitionStyleGPT,
		DiskSizeBytes:     1 << 30,
		SourceDiskNumber:  0,
		LogicalSectorSize: 512,
		Partitions: []SidecarPartition{
			{PartitionNumber: 1, Size: 104857600, Offset: 1048576, UsedSpace: &used},
		},
		Ranges: []SidecarRange{
			{Offset: 0, UncompressedLength: 4096, CompressedLength: 512},
			{Offset: 4096, UncompressedLength: 4096, CompressedLength: 1024},
		},
	}

	data, err := json.Marshal(sidecar)
	assert.NoError(t, err)
	assert.NotContains(t, string(data), `"diskModel"`)
	assert.NotContains(t, string(data), `"imageHash"`)

	var decoded ImageSidecar
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sidecar.ChronosVersion, decoded.ChronosVersion)
	assert.Equal(t, sidecar.Partitions, decoded.Partitions)
	assert.Equal(t, sidecar.Ranges, decoded.Ranges)
	assert.Equal(t, sidecar.LogicalSectorSize, decoded.LogicalSectorSize)
}

func TestSidecarRangeIsIndependentlyAddressed(t *testing.T) {
	ranges := []SidecarRange{
		{Offset: 0, UncompressedLength: 4096, CompressedLength: 200},
		{Offset: 512, UncompressedLength: 4096, CompressedLength: 300},
	}
	// Each range carries its own container offset, so two ranges can sit on
	// sector boundaries closer together than their uncompressed length
	// without overlapping on disk.
	assert.NotEqual(t, ranges[0].Offset, ranges[1].Offset)
	assert.Equal(t, uint64(200), ranges[0].CompressedLength)
}

func TestUnallocatedPartitionNumberBase(t *testing.T) {
	p := Partition{PartitionNumber: UnallocatedPartitionNumberBase, IsUnallocated: true}
	assert.True(t, p.PartitionNumber >= UnallocatedPartitionNumberBase)
	assert.True(t, p.IsUnallocated)
}
