//go:build windows
// +build windows

package ioctl

import (
	"syscall"
	"unsafe"

	log "github.com/chronos-imaging/chronos/logger"
)

const (
	// DISK_ATTRIBUTE_OFFLINE marks a disk offline to the volume manager.
	DISK_ATTRIBUTE_OFFLINE uint64 = 0x0000000000000001
	// DISK_ATTRIBUTE_READ_ONLY marks a disk read-only at the disk level.
	DISK_ATTRIBUTE_READ_ONLY uint64 = 0x0000000000000002
)

// SET_DISK_ATTRIBUTES is the IOCTL_DISK_SET_DISK_ATTRIBUTES input buffer.
type SET_DISK_ATTRIBUTES struct {
	Version       uint32
	Persist       uint8
	_             [3]uint8
	Attributes    uint64
	AttributesMask uint64
	_             [4]uint32
}

// SetDiskAttributes sets or clears the offline/read-only attribute bits on
// the given disk, used by disk preparation to take the target offline
// before writing its partition table (§4.G).
func SetDiskAttributes(diskNumber uint32, attributes, mask uint64, persist bool) error {
	log.Tracef(">>>>> SetDiskAttributes, diskNumber=%v, attributes=%#x, mask=%#x, persist=%v", diskNumber, attributes, mask, persist)
	defer log.Trace("<<<<< SetDiskAttributes")

	handle, err := OpenDeviceForReadWrite(diskPathFromNumber(diskNumber))
	if err != nil {
		log.Errorf("Error=%v", err)
		return err
	}
	defer CloseHandle(handle)

	input := SET_DISK_ATTRIBUTES{
		Version:        uint32(unsafe.Sizeof(SET_DISK_ATTRIBUTES{})),
		Attributes:     attributes,
		AttributesMask: mask,
	}
	if persist {
		input.Persist = 1
	}

	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, IOCTL_DISK_SET_DISK_ATTRIBUTES,
		(*byte)(unsafe.Pointer(&input)), uint32(unsafe.Sizeof(input)), nil, 0, &bytesReturned, nil)
	if err != nil {
		log.Errorf("Error=%v", err)
		return err
	}
	return nil
}

// UpdateDiskProperties issues IOCTL_DISK_UPDATE_PROPERTIES, forcing the
// kernel to re-read the given disk's partition table after it has been
// rewritten out from under the volume manager (§4.G).
func UpdateDiskProperties(diskNumber uint32) error {
	log.Tracef(">>>>> UpdateDiskProperties, diskNumber=%v", diskNumber)
	defer log.Trace("<<<<< UpdateDiskProperties")

	handle, err := OpenDeviceForReadWrite(diskPathFromNumber(diskNumber))
	if err != nil {
		log.Errorf("Error=%v", err)
		return err
	}
	defer CloseHandle(handle)

	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, IOCTL_DISK_UPDATE_PROPERTIES, nil, 0, nil, 0, &bytesReturned, nil)
	if err != nil {
		log.Errorf("Error=%v", err)
		return err
	}
	return nil
}
