//go:build windows
// +build windows

package ioctl

import (
	"strings"
	"syscall"
	"unsafe"

	log "github.com/chronos-imaging/chronos/logger"
)

type SCSI_ADDRESS struct {
	Length     uint32
	PortNumber uint8
	PathId     uint8
	TargetId   uint8
	Lun        uint8
}

// GetScsiAddress issues an IOCTL_SCSI_GET_ADDRESS to the given device and
// returns its SCSI_ADDRESS struct.
func GetScsiAddress(devicePathID string) (scsiAddress *SCSI_ADDRESS, err error) {
	log.Tracef(">>>>> GetScsiAddress, devicePathID=%v", devicePathID)
	defer log.Trace("<<<<< GetScsiAddress")

	devicePathID = strings.TrimRight(devicePathID, `\`)
	handle, err := OpenDeviceForRead(devicePathID)
	if err != nil {
		log.Errorf("Error=%v", err)
		return nil, err
	}
	defer CloseHandle(handle)

	dataBuffer := make([]uint8, 8)

	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, IOCTL_SCSI_GET_ADDRESS, nil, 0, &dataBuffer[0], uint32(len(dataBuffer)), &bytesReturned, nil)
	if err != nil {
		log.Errorf("Error=%v", err)
		return nil, err
	}

	scsiAddress = (*SCSI_ADDRESS)(unsafe.Pointer(&dataBuffer[0]))
	log.Tracef("SCSI_ADDRESS Length=%v, ID=%02X:%02X:%02X:%02X", scsiAddress.Length, scsiAddress.PortNumber, scsiAddress.PathId, scsiAddress.TargetId, scsiAddress.Lun)

	return scsiAddress, nil
}
