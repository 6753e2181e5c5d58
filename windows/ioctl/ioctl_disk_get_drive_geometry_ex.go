//go:build windows
// +build windows

package ioctl

import (
	"fmt"
	"syscall"
	"unsafe"

	log "github.com/chronos-imaging/chronos/logger"
	uuid "github.com/satori/go.uuid"
)

// PARTITION_STYLE enumeration
type PARTITION_STYLE uint32

const (
	PARTITION_STYLE_MBR PARTITION_STYLE = iota
	PARTITION_STYLE_GPT
	PARTITION_STYLE_RAW
)

// MEDIA_TYPE enumeration (subset used by the engine)
type MEDIA_TYPE uint32

const (
	MediaUnknown MEDIA_TYPE = iota
	_
	_
	_
	_
	_
	_
	_
	_
	_
	_
	RemovableMedia
	FixedMedia
)

type DISK_PARTITION_INFO_MBR struct {
	SizeOfPartitionInfo uint32
	PartitionStyle      PARTITION_STYLE
	Signature           uint32
	CheckSum            uint32
}

type DISK_PARTITION_INFO_GPT struct {
	SizeOfPartitionInfo uint32
	PartitionStyle      PARTITION_STYLE
	DiskId              uuid.UUID
}

type DISK_GEOMETRY struct {
	Cylinders         uint64
	MediaType         MEDIA_TYPE
	TracksPerCylinder uint32
	SectorsPerTrack   uint32
	BytesPerSector    uint32
}

type DISK_GEOMETRY_EX_RAW struct {
	Geometry DISK_GEOMETRY
	DiskSize uint64
}

type DISK_GEOMETRY_EX struct {
	Geometry         DISK_GEOMETRY
	DiskSize         uint64
	DiskPartitionMBR *DISK_PARTITION_INFO_MBR
	DiskPartitionGPT *DISK_PARTITION_INFO_GPT
}

// GetDiskGeometry issues an IOCTL_DISK_GET_DRIVE_GEOMETRY_EX against the
// given disk number and returns its geometry, size, and partition-style
// identification block.
func GetDiskGeometry(diskNumber uint32) (diskGeometry *DISK_GEOMETRY_EX, err error) {
	log.Tracef(">>>>> GetDiskGeometry, diskNumber=%v", diskNumber)
	defer log.Trace("<<<<< GetDiskGeometry")

	handle, err := OpenDeviceForRead(diskPathFromNumber(diskNumber))
	if err != nil {
		log.Errorf("Error=%v", err)
		return nil, err
	}
	defer CloseHandle(handle)

	// DISK_GEOMETRY_EX + DISK_PARTITION_INFO + DISK_DETECTION_INFO totals
	// 112 bytes; 128 bytes leaves headroom.
	dataBuffer := make([]uint8, 0x80)

	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, IOCTL_DISK_GET_DRIVE_GEOMETRY_EX, nil, 0, &dataBuffer[0], uint32(len(dataBuffer)), &bytesReturned, nil)
	if err != nil {
		log.Errorf("Error=%v", err)
		return nil, err
	}

	diskGeometryBase := (*DISK_GEOMETRY_EX_RAW)(unsafe.Pointer(&dataBuffer[0x00]))
	diskPartitionMBR := (*DISK_PARTITION_INFO_MBR)(unsafe.Pointer(&dataBuffer[0x20]))
	diskPartitionGPT := (*DISK_PARTITION_INFO_GPT)(unsafe.Pointer(&dataBuffer[0x20]))

	diskGeometry = new(DISK_GEOMETRY_EX)
	diskGeometry.Geometry = diskGeometryBase.Geometry
	diskGeometry.DiskSize = diskGeometryBase.DiskSize
	switch diskPartitionMBR.PartitionStyle {
	case PARTITION_STYLE_MBR:
		diskGeometry.DiskPartitionMBR = diskPartitionMBR
	case PARTITION_STYLE_GPT:
		diskGeometry.DiskPartitionGPT = diskPartitionGPT
	}

	var partitionDetails string
	if diskGeometry.DiskPartitionMBR != nil {
		partitionDetails = fmt.Sprintf("MBR, CheckSum=%v, Signature=%v", diskGeometry.DiskPartitionMBR.CheckSum, diskGeometry.DiskPartitionMBR.Signature)
	} else if diskGeometry.DiskPartitionGPT != nil {
		partitionDetails = fmt.Sprintf("GPT, DiskId=%v", diskGeometry.DiskPartitionGPT.DiskId.String())
	}
	log.Tracef("DiskSize=%v, Partition={%v}", diskGeometry.DiskSize, partitionDetails)

	return diskGeometry, nil
}

// GetDiskCapacity returns the given disk's capacity in bytes.
func GetDiskCapacity(diskNumber uint32) (diskCapacity uint64, err error) {
	log.Tracef(">>>>> GetDiskCapacity, diskNumber=%v", diskNumber)
	defer log.Trace("<<<<< GetDiskCapacity")

	diskGeometry, err := GetDiskGeometry(diskNumber)
	if err == nil && diskGeometry != nil {
		diskCapacity = diskGeometry.DiskSize
	}
	return diskCapacity, err
}
