//go:build windows
// +build windows

package ioctl

import (
	"syscall"
	"unsafe"

	log "github.com/chronos-imaging/chronos/logger"
	uuid "github.com/satori/go.uuid"
)

// PARTITION_INFORMATION_MBR is the MBR-specific portion of a drive-layout entry.
type PARTITION_INFORMATION_MBR struct {
	PartitionType     uint8
	BootIndicator     uint8
	RecognizedPartition uint8
	_                 uint8
	HiddenSectors     uint32
	PartitionId       uuid.UUID
}

// PARTITION_INFORMATION_GPT is the GPT-specific portion of a drive-layout entry.
type PARTITION_INFORMATION_GPT struct {
	PartitionType uuid.UUID
	PartitionId   uuid.UUID
	Attributes    uint64
	Name          [36]uint16
}

// PARTITION_INFORMATION_EX is one entry of a DRIVE_LAYOUT_INFORMATION_EX.
type PARTITION_INFORMATION_EX struct {
	PartitionStyle      PARTITION_STYLE
	StartingOffset      uint64
	PartitionLength     uint64
	PartitionNumber     uint32
	RewritePartition    uint8
	IsServicePartition  uint8
	_                   uint16
	Mbr                 PARTITION_INFORMATION_MBR
	Gpt                 PARTITION_INFORMATION_GPT
}

// DRIVE_LAYOUT_INFORMATION_EX is the decoded IOCTL_DISK_GET_DRIVE_LAYOUT_EX
// result: the disk's partition style plus its partition table entries.
type DRIVE_LAYOUT_INFORMATION_EX struct {
	PartitionStyle PARTITION_STYLE
	PartitionCount uint32
	Partitions     []PARTITION_INFORMATION_EX
}

// partitionInfoExSize is the fixed size of one PARTITION_INFORMATION_EX
// entry as laid out by the Windows kernel (144 bytes: style(4) + pad(4) +
// offset(8) + length(8) + number(4) + rewrite(1) + service(1) + pad(2) +
// 112-byte union of MBR/GPT-specific fields).
const partitionInfoExSize = 144

// GetDriveLayoutEx issues an IOCTL_DISK_GET_DRIVE_LAYOUT_EX against the
// given disk number and returns its partition table, independent of any
// higher-level management view (§4.C "control-code fallback").
func GetDriveLayoutEx(diskNumber uint32) (*DRIVE_LAYOUT_INFORMATION_EX, error) {
	log.Tracef(">>>>> GetDriveLayoutEx, diskNumber=%v", diskNumber)
	defer log.Trace("<<<<< GetDriveLayoutEx")

	handle, err := OpenDeviceForRead(diskPathFromNumber(diskNumber))
	if err != nil {
		log.Errorf("Error=%v", err)
		return nil, err
	}
	defer CloseHandle(handle)

	// Header (style + count + max-integrity-bytes pad) is 8 bytes; support
	// up to 128 partition entries, which comfortably covers GPT's 128-entry
	// default table.
	const maxPartitions = 128
	dataBuffer := make([]uint8, 8+maxPartitions*partitionInfoExSize)

	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, IOCTL_DISK_GET_DRIVE_LAYOUT_EX, nil, 0, &dataBuffer[0], uint32(len(dataBuffer)), &bytesReturned, nil)
	if err != nil {
		log.Errorf("Error=%v", err)
		return nil, err
	}

	style := *(*PARTITION_STYLE)(unsafe.Pointer(&dataBuffer[0]))
	count := *(*uint32)(unsafe.Pointer(&dataBuffer[4]))

	layout := &DRIVE_LAYOUT_INFORMATION_EX{PartitionStyle: style, PartitionCount: count}
	for i := uint32(0); i < count; i++ {
		offset := 8 + i*partitionInfoExSize
		entry := (*PARTITION_INFORMATION_EX)(unsafe.Pointer(&dataBuffer[offset]))
		layout.Partitions = append(layout.Partitions, *entry)
	}

	log.Tracef("DriveLayoutEx: style=%v, partitionCount=%v", style, count)
	return layout, nil
}
