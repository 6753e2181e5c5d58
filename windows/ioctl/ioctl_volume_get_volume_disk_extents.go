//go:build windows
// +build windows

package ioctl

import (
	"encoding/binary"
	"strings"
	"syscall"
	"unsafe"

	log "github.com/chronos-imaging/chronos/logger"
)

type DISK_EXTENT struct {
	DiskNumber     uint32
	StartingOffset uint64
	ExtentLength   uint64
}

// GetVolumeDiskExtents issues an IOCTL_VOLUME_GET_VOLUME_DISK_EXTENTS to the
// given volume and returns its DISK_EXTENT array.
func GetVolumeDiskExtents(volumePathID string) (diskExtents []DISK_EXTENT, err error) {
	log.Tracef(">>>>> GetVolumeDiskExtents, volumePathID=%v", volumePathID)
	defer log.Trace("<<<<< GetVolumeDiskExtents")

	volumePathID = strings.TrimRight(volumePathID, `\`)
	handle, err := OpenDeviceForRead(volumePathID)
	if err != nil {
		log.Errorf("Error=%v", err)
		return nil, err
	}
	defer CloseHandle(handle)

	// Start with a small buffer and grow it if the IOCTL indicates more
	// space is needed; a volume almost never spans more than one extent.
	dataBuffer := make([]uint8, 256)

	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, IOCTL_VOLUME_GET_VOLUME_DISK_EXTENTS, nil, 0, &dataBuffer[0], uint32(len(dataBuffer)), &bytesReturned, nil)

	if (err == syscall.ERROR_INSUFFICIENT_BUFFER) || (err == syscall.ERROR_MORE_DATA) {
		if bytesReturned >= 4 {
			numberOfDiskExtents := binary.LittleEndian.Uint32(dataBuffer[0:4])
			dataBufferLen := 8 + (numberOfDiskExtents * uint32(unsafe.Sizeof(DISK_EXTENT{})))

			const maxBufferLen = uint32(4096)
			if dataBufferLen > maxBufferLen {
				log.Errorf("Buffer limits exceeded, numberOfDiskExtents=%v, dataBufferLen=%v, maxBufferLen=%v", numberOfDiskExtents, dataBufferLen, maxBufferLen)
				dataBufferLen = maxBufferLen
			}

			dataBuffer = make([]uint8, dataBufferLen)
			err = syscall.DeviceIoControl(handle, IOCTL_VOLUME_GET_VOLUME_DISK_EXTENTS, nil, 0, &dataBuffer[0], uint32(len(dataBuffer)), &bytesReturned, nil)
		}
	}

	if err != nil {
		log.Errorf("Error=%v", err)
		return nil, err
	}

	if bytesReturned >= 4 {
		numberOfDiskExtents := binary.LittleEndian.Uint32(dataBuffer[0:4])
		diskExtents = (*[1024]DISK_EXTENT)(unsafe.Pointer(&dataBuffer[8]))[:numberOfDiskExtents]
	}

	for _, extent := range diskExtents {
		log.Tracef("DiskNumber=%v, StartingOffset=%v, ExtentLength=%v", extent.DiskNumber, extent.StartingOffset, extent.ExtentLength)
	}

	return diskExtents, nil
}
