//go:build windows
// +build windows

// Package ioctl is the platform I/O primitives façade: raw device
// open/read/write, control-code dispatch with typed buffers, geometry and
// layout queries, and device-index enumeration by trial-open. All read and
// write operations must be sector-aligned in offset and length; failures
// surface the raw platform error code for higher layers to translate.
package ioctl

import (
	"fmt"
	"syscall"

	log "github.com/chronos-imaging/chronos/logger"
)

const (
	INVALID_HANDLE_VALUE = ^uintptr(0)
)

const (
	METHOD_NEITHER      = 3
	METHOD_BUFFERED     = 0
	FILE_ANY_ACCESS     = 0
	FILE_SPECIAL_ACCESS = 0
	FILE_READ_ACCESS    = 1
	FILE_WRITE_ACCESS   = 2
)

const (
	IOCTL_SCSI_BASE       = 0x00000004
	IOCTL_DISK_BASE       = 0x00000007
	IOCTL_VOLUME_BASE     = 0x00000056
	FILE_DEVICE_FILE_SYS  = 0x00000009
)

const (
	IOCTL_DISK_GET_DRIVE_GEOMETRY_EX     = (IOCTL_DISK_BASE << 16) | (FILE_ANY_ACCESS << 14) | (0x0028 << 2) | METHOD_BUFFERED
	IOCTL_SCSI_GET_ADDRESS                = (IOCTL_SCSI_BASE << 16) | (FILE_ANY_ACCESS << 14) | (0x0406 << 2) | METHOD_BUFFERED
	IOCTL_VOLUME_GET_VOLUME_DISK_EXTENTS  = (IOCTL_VOLUME_BASE << 16) | (FILE_ANY_ACCESS << 14) | (0x0000 << 2) | METHOD_BUFFERED
	IOCTL_DISK_GET_DRIVE_LAYOUT_EX        = (IOCTL_DISK_BASE << 16) | (FILE_ANY_ACCESS << 14) | (0x0014 << 2) | METHOD_BUFFERED
	IOCTL_DISK_GET_LENGTH_INFO            = (IOCTL_DISK_BASE << 16) | (FILE_READ_ACCESS << 14) | (0x0017 << 2) | METHOD_BUFFERED
	IOCTL_DISK_SET_DISK_ATTRIBUTES        = (IOCTL_DISK_BASE << 16) | ((FILE_READ_ACCESS | FILE_WRITE_ACCESS) << 14) | (0x003e << 2) | METHOD_BUFFERED
	IOCTL_DISK_UPDATE_PROPERTIES          = (IOCTL_DISK_BASE << 16) | (FILE_ANY_ACCESS << 14) | (0x0050 << 2) | METHOD_BUFFERED
	FSCTL_LOCK_VOLUME                     = (FILE_DEVICE_FILE_SYS << 16) | (FILE_ANY_ACCESS << 14) | (6 << 2) | METHOD_BUFFERED
	FSCTL_UNLOCK_VOLUME                   = (FILE_DEVICE_FILE_SYS << 16) | (FILE_ANY_ACCESS << 14) | (7 << 2) | METHOD_BUFFERED
	FSCTL_DISMOUNT_VOLUME                 = (FILE_DEVICE_FILE_SYS << 16) | (FILE_ANY_ACCESS << 14) | (8 << 2) | METHOD_BUFFERED
	FSCTL_GET_NTFS_VOLUME_DATA            = (FILE_DEVICE_FILE_SYS << 16) | (FILE_ANY_ACCESS << 14) | (25 << 2) | METHOD_BUFFERED
	FSCTL_GET_VOLUME_BITMAP               = (FILE_DEVICE_FILE_SYS << 16) | (FILE_ANY_ACCESS << 14) | (27 << 2) | METHOD_NEITHER
)

// MaxPhysicalDriveIndex bounds the trial-open enumeration range (§4.A: "in
// [0..N]"); 31 comfortably covers every host this engine targets.
const MaxPhysicalDriveIndex = 31

// diskPathFromNumber converts a disk number to its raw device path.
func diskPathFromNumber(diskNumber uint32) string {
	return fmt.Sprintf(`\\.\PhysicalDrive%d`, diskNumber)
}

// partitionPathFromNumber converts a disk/partition number pair to its raw
// device path.
func partitionPathFromNumber(diskNumber, partitionNumber uint32) string {
	return fmt.Sprintf(`\\.\Harddisk%dPartition%d`, diskNumber, partitionNumber)
}

// openDevice opens devicePath with the given desired access, sharing the
// device for read/write/delete with any other handle (matching the
// teacher's IOCTL helpers, which never take exclusive device access just to
// issue a control code).
func openDevice(devicePath string, access uint32) (syscall.Handle, error) {
	pathUTF16, err := syscall.UTF16PtrFromString(devicePath)
	if err != nil {
		return syscall.InvalidHandle, err
	}

	handle, err := syscall.CreateFile(pathUTF16, access,
		syscall.FILE_SHARE_READ|syscall.FILE_SHARE_WRITE|syscall.FILE_SHARE_DELETE,
		nil, syscall.OPEN_EXISTING, syscall.FILE_ATTRIBUTE_NORMAL, 0)

	if handle == syscall.Handle(INVALID_HANDLE_VALUE) {
		if err == nil {
			err = syscall.ERROR_FILE_NOT_FOUND
		}
		return syscall.InvalidHandle, err
	}
	return handle, nil
}

// OpenDeviceForRead opens devicePath (a physical drive, partition, or
// volume path) for shared read access.
func OpenDeviceForRead(devicePath string) (syscall.Handle, error) {
	log.Tracef(">>>>> OpenDeviceForRead, devicePath=%v", devicePath)
	defer log.Trace("<<<<< OpenDeviceForRead")
	return openDevice(devicePath, syscall.GENERIC_READ)
}

// OpenDeviceForReadWrite opens devicePath for shared read/write access.
func OpenDeviceForReadWrite(devicePath string) (syscall.Handle, error) {
	log.Tracef(">>>>> OpenDeviceForReadWrite, devicePath=%v", devicePath)
	defer log.Trace("<<<<< OpenDeviceForReadWrite")
	return openDevice(devicePath, syscall.GENERIC_READ|syscall.GENERIC_WRITE)
}

// CloseHandle closes a handle returned by one of the Open* functions.
func CloseHandle(handle syscall.Handle) error {
	return syscall.CloseHandle(handle)
}

// ReadAt issues a positioned read of len(buf) bytes starting at offset.
// Both offset and len(buf) must be multiples of the device's logical
// sector size.
func ReadAt(handle syscall.Handle, buf []byte, offset int64) (int, error) {
	if _, err := syscall.Seek(handle, offset, 0); err != nil {
		return 0, err
	}
	var n uint32
	if err := syscall.ReadFile(handle, buf, &n, nil); err != nil {
		return int(n), err
	}
	return int(n), nil
}

// WriteAt issues a positioned write of buf starting at offset. Both offset
// and len(buf) must be multiples of the device's logical sector size.
func WriteAt(handle syscall.Handle, buf []byte, offset int64) (int, error) {
	if _, err := syscall.Seek(handle, offset, 0); err != nil {
		return 0, err
	}
	var n uint32
	if err := syscall.WriteFile(handle, buf, &n, nil); err != nil {
		return int(n), err
	}
	return int(n), nil
}

// EnumerateDeviceIndices trial-opens \\.\PhysicalDrive0 through
// \\.\PhysicalDriveN and returns the indices that exist.
func EnumerateDeviceIndices() []uint32 {
	log.Trace(">>>>> EnumerateDeviceIndices")
	defer log.Trace("<<<<< EnumerateDeviceIndices")

	var indices []uint32
	for i := uint32(0); i <= MaxPhysicalDriveIndex; i++ {
		handle, err := OpenDeviceForRead(diskPathFromNumber(i))
		if err != nil {
			continue
		}
		CloseHandle(handle)
		indices = append(indices, i)
	}
	return indices
}
