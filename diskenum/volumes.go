//go:build windows
// +build windows

package diskenum

import (
	"strings"

	log "github.com/chronos-imaging/chronos/logger"
	"github.com/chronos-imaging/chronos/model"
	"github.com/chronos-imaging/chronos/probe"
	"github.com/chronos-imaging/chronos/windows/ioctl"
	"github.com/chronos-imaging/chronos/windows/wmi"
	"golang.org/x/sys/windows"
)

// queryFreeSpace reads used/free bytes and filesystem name for a
// drive-letter root path such as `C:\`.
func queryFreeSpace(rootPath string) (usedBytes, freeBytes *uint64, fileSystem string, ok bool) {
	rootPathPtr, err := windows.UTF16PtrFromString(rootPath)
	if err != nil {
		return nil, nil, "", false
	}

	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(rootPathPtr, &freeBytesAvailable, &totalBytes, &totalFreeBytes); err != nil {
		log.Warnf("GetDiskFreeSpaceEx(%v) failed: %v", rootPath, err)
		return nil, nil, "", false
	}

	volumeNameBuf := make([]uint16, windows.MAX_PATH)
	fsNameBuf := make([]uint16, windows.MAX_PATH)
	var serial, maxComponentLen, flags uint32
	if err := windows.GetVolumeInformation(rootPathPtr, &volumeNameBuf[0], uint32(len(volumeNameBuf)), &serial, &maxComponentLen, &flags, &fsNameBuf[0], uint32(len(fsNameBuf))); err != nil {
		log.Warnf("GetVolumeInformation(%v) failed: %v", rootPath, err)
	} else {
		fileSystem = windows.UTF16ToString(fsNameBuf)
	}

	used := totalBytes - totalFreeBytes
	return &used, &totalFreeBytes, fileSystem, true
}

// findVolumeForExtent walks every volume GUID path on the system and
// returns the one whose backing disk extent matches (diskIndex, offset).
func findVolumeForExtent(diskIndex uint32, offset uint64) (string, bool) {
	var nameBuf [windows.MAX_PATH]uint16
	handle, err := windows.FindFirstVolume(&nameBuf[0], uint32(len(nameBuf)))
	if err != nil {
		log.Warnf("FindFirstVolume failed: %v", err)
		return "", false
	}
	defer windows.FindVolumeClose(handle)

	for {
		volumeGUIDPath := windows.UTF16ToString(nameBuf[:])
		if guid, ok := matchExtent(volumeGUIDPath, diskIndex, offset); ok {
			return guid, true
		}

		if err := windows.FindNextVolume(handle, &nameBuf[0], uint32(len(nameBuf))); err != nil {
			break
		}
	}
	return "", false
}

func matchExtent(volumeGUIDPath string, diskIndex uint32, offset uint64) (string, bool) {
	trimmed := strings.TrimRight(volumeGUIDPath, `\`)
	extents, err := ioctl.GetVolumeDiskExtents(trimmed)
	if err != nil {
		return "", false
	}
	for _, extent := range extents {
		if extent.DiskNumber == diskIndex && extent.StartingOffset == offset {
			return volumeGUIDPath, true
		}
	}
	return "", false
}

// enrichFromWin32Volume fills in filesystem, label, and used/free space for
// a GUID-only volume (one with no drive letter, so queryFreeSpace has no
// root path to call) from the storage-management Win32_Volume view, keyed
// on DeviceID since that is the only identifier a GUID path and a
// Win32_Volume row share.
func enrichFromWin32Volume(p *model.Partition, volumeGUIDPath string) {
	if !probe.Detect().HasManagementQuery {
		return
	}

	volumes, err := wmi.GetWin32Volume()
	if err != nil {
		log.Warnf("Win32_Volume query failed, volumeGUIDPath=%v, err=%v", volumeGUIDPath, err)
		return
	}

	for _, v := range volumes {
		if v.DeviceID != volumeGUIDPath {
			continue
		}
		p.Filesystem = v.FileSystem
		p.VolumeLabel = v.Label
		if v.Capacity >= v.FreeSpace {
			used := v.Capacity - v.FreeSpace
			p.UsedBytes = &used
		}
		freeSpace := v.FreeSpace
		p.FreeBytes = &freeSpace
		return
	}
	log.Tracef("no Win32_Volume row matched volumeGUIDPath=%v", volumeGUIDPath)
}
