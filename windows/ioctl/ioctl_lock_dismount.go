//go:build windows
// +build windows

package ioctl

import (
	"strings"
	"syscall"

	log "github.com/chronos-imaging/chronos/logger"
)

// LockVolume issues FSCTL_LOCK_VOLUME on an already-open volume handle,
// denying new opens until UnlockVolume or the handle is closed. Disk
// preparation reaches it through LockAndDismountVolume to hold an
// exclusively locked volume before it dismounts it (§4.G).
func LockVolume(handle syscall.Handle) error {
	log.Trace(">>>>> LockVolume")
	defer log.Trace("<<<<< LockVolume")

	var bytesReturned uint32
	if err := syscall.DeviceIoControl(handle, FSCTL_LOCK_VOLUME, nil, 0, nil, 0, &bytesReturned, nil); err != nil {
		log.Errorf("Error=%v", err)
		return err
	}
	return nil
}

// UnlockVolume releases a lock taken by LockVolume.
func UnlockVolume(handle syscall.Handle) error {
	log.Trace(">>>>> UnlockVolume")
	defer log.Trace("<<<<< UnlockVolume")

	var bytesReturned uint32
	if err := syscall.DeviceIoControl(handle, FSCTL_UNLOCK_VOLUME, nil, 0, nil, 0, &bytesReturned, nil); err != nil {
		log.Errorf("Error=%v", err)
		return err
	}
	return nil
}

// DismountVolume issues FSCTL_DISMOUNT_VOLUME, forcing the filesystem to
// let go of the volume so a subsequent raw-device open sees a consistent
// image (§4.E).
func DismountVolume(handle syscall.Handle) error {
	log.Trace(">>>>> DismountVolume")
	defer log.Trace("<<<<< DismountVolume")

	var bytesReturned uint32
	if err := syscall.DeviceIoControl(handle, FSCTL_DISMOUNT_VOLUME, nil, 0, nil, 0, &bytesReturned, nil); err != nil {
		log.Errorf("Error=%v", err)
		return err
	}
	return nil
}

// LockAndDismountVolume opens volumePathID for read/write, locks it, and
// dismounts it, returning the open handle for the caller to hold for the
// duration of the exclusive operation and close when done (which also
// releases the lock).
func LockAndDismountVolume(volumePathID string) (syscall.Handle, error) {
	log.Tracef(">>>>> LockAndDismountVolume, volumePathID=%v", volumePathID)
	defer log.Trace("<<<<< LockAndDismountVolume")

	volumePathID = strings.TrimRight(volumePathID, `\`)
	handle, err := OpenDeviceForReadWrite(volumePathID)
	if err != nil {
		log.Errorf("Error=%v", err)
		return syscall.InvalidHandle, err
	}

	if err := LockVolume(handle); err != nil {
		CloseHandle(handle)
		return syscall.InvalidHandle, err
	}
	if err := DismountVolume(handle); err != nil {
		UnlockVolume(handle)
		CloseHandle(handle)
		return syscall.InvalidHandle, err
	}
	return handle, nil
}
