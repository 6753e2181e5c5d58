//go:build windows
// +build windows

package ioctl

import (
	"strings"
	"syscall"
	"unsafe"

	log "github.com/chronos-imaging/chronos/logger"
)

// NTFS_VOLUME_DATA_BUFFER is the decoded FSCTL_GET_NTFS_VOLUME_DATA result;
// only the fields the allocated-range provider needs are surfaced.
type NTFS_VOLUME_DATA_BUFFER struct {
	VolumeSerialNumber   uint64
	NumberSectors        uint64
	TotalClusters        uint64
	FreeClusters         uint64
	TotalReserved        uint64
	BytesPerSector       uint32
	BytesPerCluster      uint32
	BytesPerFileRecordSegment uint32
	ClustersPerFileRecordSegment uint32
	MftValidDataLength   uint64
	MftStartLcn          uint64
	Mft2StartLcn         uint64
	MftZoneStart         uint64
	MftZoneEnd           uint64
}

// GetNtfsVolumeData issues an FSCTL_GET_NTFS_VOLUME_DATA against the given
// volume and returns its cluster geometry and MFT placement, used by the
// allocated-range provider to interpret bitmap offsets (§4.D).
func GetNtfsVolumeData(volumePathID string) (*NTFS_VOLUME_DATA_BUFFER, error) {
	log.Tracef(">>>>> GetNtfsVolumeData, volumePathID=%v", volumePathID)
	defer log.Trace("<<<<< GetNtfsVolumeData")

	volumePathID = strings.TrimRight(volumePathID, `\`)
	handle, err := OpenDeviceForRead(volumePathID)
	if err != nil {
		log.Errorf("Error=%v", err)
		return nil, err
	}
	defer CloseHandle(handle)

	dataBuffer := make([]uint8, unsafe.Sizeof(NTFS_VOLUME_DATA_BUFFER{}))

	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, FSCTL_GET_NTFS_VOLUME_DATA, nil, 0, &dataBuffer[0], uint32(len(dataBuffer)), &bytesReturned, nil)
	if err != nil {
		log.Errorf("Error=%v", err)
		return nil, err
	}

	volumeData := (*NTFS_VOLUME_DATA_BUFFER)(unsafe.Pointer(&dataBuffer[0]))
	log.Tracef("BytesPerCluster=%v, TotalClusters=%v, FreeClusters=%v", volumeData.BytesPerCluster, volumeData.TotalClusters, volumeData.FreeClusters)

	return volumeData, nil
}
