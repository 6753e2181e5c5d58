//go:build windows
// +build windows

package ioctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestControlCodesAreDistinct(t *testing.T) {
	codes := map[uint32]string{
		IOCTL_DISK_GET_DRIVE_GEOMETRY_EX:    "IOCTL_DISK_GET_DRIVE_GEOMETRY_EX",
		IOCTL_SCSI_GET_ADDRESS:              "IOCTL_SCSI_GET_ADDRESS",
		IOCTL_VOLUME_GET_VOLUME_DISK_EXTENTS: "IOCTL_VOLUME_GET_VOLUME_DISK_EXTENTS",
		IOCTL_DISK_GET_DRIVE_LAYOUT_EX:       "IOCTL_DISK_GET_DRIVE_LAYOUT_EX",
		IOCTL_DISK_GET_LENGTH_INFO:           "IOCTL_DISK_GET_LENGTH_INFO",
		IOCTL_DISK_SET_DISK_ATTRIBUTES:       "IOCTL_DISK_SET_DISK_ATTRIBUTES",
		IOCTL_DISK_UPDATE_PROPERTIES:         "IOCTL_DISK_UPDATE_PROPERTIES",
		FSCTL_LOCK_VOLUME:                    "FSCTL_LOCK_VOLUME",
		FSCTL_UNLOCK_VOLUME:                  "FSCTL_UNLOCK_VOLUME",
		FSCTL_DISMOUNT_VOLUME:                "FSCTL_DISMOUNT_VOLUME",
		FSCTL_GET_NTFS_VOLUME_DATA:           "FSCTL_GET_NTFS_VOLUME_DATA",
		FSCTL_GET_VOLUME_BITMAP:              "FSCTL_GET_VOLUME_BITMAP",
	}

	seen := make(map[uint32]string)
	for code, name := range codes {
		if other, ok := seen[code]; ok {
			t.Fatalf("control code collision: %v and %v both resolve to %#x", name, other, code)
		}
		seen[code] = name
	}
	assert.Len(t, seen, len(codes))
}

func TestDiskPathFromNumber(t *testing.T) {
	assert.Equal(t, `\\.\PhysicalDrive0`, diskPathFromNumber(0))
	assert.Equal(t, `\\.\PhysicalDrive7`, diskPathFromNumber(7))
}

func TestPartitionPathFromNumber(t *testing.T) {
	assert.Equal(t, `\\.\Harddisk0Partition1`, partitionPathFromNumber(0, 1))
}

func TestClusterAllocated(t *testing.T) {
	chunk := &VOLUME_BITMAP_BUFFER{
		StartingLcn:  0,
		BitmapLength: 16,
		Bitmap:       []byte{0b00000101, 0b00000000},
	}
	assert.True(t, ClusterAllocated(chunk, 0))
	assert.False(t, ClusterAllocated(chunk, 1))
	assert.True(t, ClusterAllocated(chunk, 2))
	assert.False(t, ClusterAllocated(chunk, 8))
	assert.False(t, ClusterAllocated(chunk, 100))
}
