//go:build windows
// +build windows

// Package diskprep prepares a disk or a single partition for exclusive
// write access ahead of a restore: locking and dismounting volumes, and
// optionally taking the whole disk offline, all under the process-wide
// disk-preparation registry so at most one caller holds a given disk at a
// time.
package diskprep

import (
	"fmt"
	"syscall"
	"time"

	log "github.com/chronos-imaging/chronos/logger"
	"github.com/chronos-imaging/chronos/model"
	"github.com/chronos-imaging/chronos/registry"
	"github.com/chronos-imaging/chronos/windows/ioctl"
)

const (
	lockAttempts = 5
	lockBackoff  = 500 * time.Millisecond
)

// Prepared is the scoped resource returned by Prepare*; releasing it
// (calling Release) restores the disk to normal access in the documented
// order: bring the disk online (clear offline/read-only, then re-read the
// partition table), then unlock each volume, in reverse acquisition order.
type Prepared struct {
	diskIndex  uint32
	tookOnline bool

	volumeHandles []syscall.Handle
	diskHandle    syscall.Handle
	hasDiskHandle bool

	released bool
}

// Release restores normal access to everything this Prepared holds. Safe
// to call more than once; only the first call has effect.
func (p *Prepared) Release() error {
	if p == nil || p.released {
		return nil
	}
	p.released = true
	defer registry.DefaultDiskPrepRegistry().Release(p.diskIndex)

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if p.tookOnline {
		record(ioctl.SetDiskAttributes(p.diskIndex, 0, ioctl.DISK_ATTRIBUTE_OFFLINE|ioctl.DISK_ATTRIBUTE_READ_ONLY, false))
		record(ioctl.UpdateDiskProperties(p.diskIndex))
	}
	if p.hasDiskHandle {
		record(ioctl.CloseHandle(p.diskHandle))
	}

	for i := len(p.volumeHandles) - 1; i >= 0; i-- {
		h := p.volumeHandles[i]
		record(ioctl.UnlockVolume(h))
		record(ioctl.CloseHandle(h))
	}

	return firstErr
}

// PrepareDisk locks and dismounts every volume on diskIndex that has a
// resolved volume path, then (if takeOffline) opens the physical device
// and marks it offline without persisting the attribute. The returned
// Prepared must be released when the restore completes or is aborted.
func PrepareDisk(diskIndex uint32, partitions []model.Partition, takeOffline bool) (*Prepared, error) {
	log.Tracef(">>>>> PrepareDisk, diskIndex=%v, takeOffline=%v", diskIndex, takeOffline)
	defer log.Trace("<<<<< PrepareDisk")

	registry.DefaultDiskPrepRegistry().Acquire(diskIndex)

	prepared := &Prepared{diskIndex: diskIndex}
	for _, part := range partitions {
		if !part.HasVolume() {
			continue
		}
		handle, err := lockWithRetry(part.VolumePath)
		if err != nil {
			prepared.Release()
			return nil, err
		}
		prepared.volumeHandles = append(prepared.volumeHandles, handle)
	}

	if takeOffline {
		handle, err := ioctl.OpenDeviceForReadWrite(diskPathFromIndex(diskIndex))
		if err != nil {
			prepared.Release()
			return nil, err
		}
		if err := ioctl.SetDiskAttributes(diskIndex, ioctl.DISK_ATTRIBUTE_OFFLINE, ioctl.DISK_ATTRIBUTE_OFFLINE, false); err != nil {
			ioctl.CloseHandle(handle)
			prepared.Release()
			return nil, err
		}
		prepared.diskHandle = handle
		prepared.hasDiskHandle = true
		prepared.tookOnline = true
	}

	return prepared, nil
}

// PreparePartition is the narrower variant for partition-level restores:
// it dismounts only the one target volume and never takes the disk
// offline, since offlining would remove the partition device path the
// restore needs to write through.
func PreparePartition(diskIndex, partitionNumber uint32, volumePath string) (*Prepared, error) {
	log.Tracef(">>>>> PreparePartition, diskIndex=%v, partitionNumber=%v, volumePath=%v", diskIndex, partitionNumber, volumePath)
	defer log.Trace("<<<<< PreparePartition")

	registry.DefaultDiskPrepRegistry().Acquire(diskIndex)

	prepared := &Prepared{diskIndex: diskIndex}
	if volumePath != "" {
		handle, err := lockWithRetry(volumePath)
		if err != nil {
			prepared.Release()
			return nil, err
		}
		prepared.volumeHandles = append(prepared.volumeHandles, handle)
	}
	return prepared, nil
}

// lockWithRetry attempts to lock and dismount volumePath, retrying on any
// failure up to lockAttempts times with a fixed backoff between attempts.
func lockWithRetry(volumePath string) (syscall.Handle, error) {
	var lastErr error
	for attempt := 0; attempt < lockAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(lockBackoff)
		}
		handle, err := ioctl.LockAndDismountVolume(volumePath)
		if err == nil {
			return handle, nil
		}
		lastErr = err
		log.Warnf("lock attempt %v/%v for %v failed: %v", attempt+1, lockAttempts, volumePath, err)
	}
	return syscall.InvalidHandle, lastErr
}

func diskPathFromIndex(diskIndex uint32) string {
	return fmt.Sprintf(`\\.\PhysicalDrive%d`, diskIndex)
}
