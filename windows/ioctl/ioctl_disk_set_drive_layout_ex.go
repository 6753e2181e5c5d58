//go:build windows
// +build windows

package ioctl

import (
	"syscall"
	"unsafe"

	log "github.com/chronos-imaging/chronos/logger"
	uuid "github.com/satori/go.uuid"
)

const (
	IOCTL_DISK_SET_DRIVE_LAYOUT_EX = (IOCTL_DISK_BASE << 16) | ((FILE_READ_ACCESS | FILE_WRITE_ACCESS) << 14) | (0x0015 << 2) | METHOD_BUFFERED
)

// SetDriveLayoutEx writes layout back to diskNumber's partition table and
// forces the kernel to re-enumerate it, used by partition-level restore to
// add a new partition entry over unallocated space (§4.J).
func SetDriveLayoutEx(diskNumber uint32, layout *DRIVE_LAYOUT_INFORMATION_EX) error {
	log.Tracef(">>>>> SetDriveLayoutEx, diskNumber=%v, partitionCount=%v", diskNumber, len(layout.Partitions))
	defer log.Trace("<<<<< SetDriveLayoutEx")

	handle, err := OpenDeviceForReadWrite(diskPathFromNumber(diskNumber))
	if err != nil {
		log.Errorf("Error=%v", err)
		return err
	}
	defer CloseHandle(handle)

	dataBuffer := make([]uint8, 8+len(layout.Partitions)*partitionInfoExSize)
	*(*PARTITION_STYLE)(unsafe.Pointer(&dataBuffer[0])) = layout.PartitionStyle
	*(*uint32)(unsafe.Pointer(&dataBuffer[4])) = uint32(len(layout.Partitions))
	for i, entry := range layout.Partitions {
		offset := 8 + i*partitionInfoExSize
		*(*PARTITION_INFORMATION_EX)(unsafe.Pointer(&dataBuffer[offset])) = entry
	}

	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, IOCTL_DISK_SET_DRIVE_LAYOUT_EX, &dataBuffer[0], uint32(len(dataBuffer)), nil, 0, &bytesReturned, nil)
	if err != nil {
		log.Errorf("Error=%v", err)
		return err
	}
	return nil
}

// NewPartitionEntry builds a PARTITION_INFORMATION_EX for a new MBR/GPT
// partition of size sizeBytes at offsetBytes, ready to be appended to a
// DRIVE_LAYOUT_INFORMATION_EX and written back with SetDriveLayoutEx.
func NewPartitionEntry(style PARTITION_STYLE, partitionNumber uint32, offsetBytes, sizeBytes uint64) PARTITION_INFORMATION_EX {
	entry := PARTITION_INFORMATION_EX{
		PartitionStyle:     style,
		StartingOffset:     offsetBytes,
		PartitionLength:    sizeBytes,
		PartitionNumber:    partitionNumber,
		RewritePartition:   1,
		IsServicePartition: 0,
	}
	if style == PARTITION_STYLE_GPT {
		entry.Gpt.PartitionType = basicDataGUID
	}
	return entry
}

var basicDataGUID = uuid.FromStringOrNil("ebd0a0a2-b9e5-4433-87c0-68b6b72699c7")
