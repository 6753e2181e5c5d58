//go:build windows
// +build windows

package wmi

import (
	log "github.com/chronos-imaging/chronos/logger"
)

// MSFT_Disk mirrors the ROOT\Microsoft\Windows\Storage MSFT_Disk class, the
// storage-management view of a physical disk used as the enumerator's
// primary source before falling back to raw control codes (§4.C).
type MSFT_Disk struct {
	Number             uint32
	Path               string
	Location           string
	FriendlyName       string
	SerialNumber       string
	Size               uint64
	AllocatedSize      uint64
	LogicalSectorSize  uint32
	PhysicalSectorSize uint32
	PartitionStyle     uint32
	IsBoot             bool
	IsSystem           bool
	IsReadOnly         bool
	IsOffline          bool
	OperationalStatus  uint16
	UniqueId           string
}

// MSFT_Partition mirrors the ROOT\Microsoft\Windows\Storage MSFT_Partition
// class, one row per partition on a disk enumerated via MSFT_Disk.
type MSFT_Partition struct {
	DiskNumber      uint32
	PartitionNumber uint32
	DriveLetter     uint16
	Offset          uint64
	Size            uint64
	Type            string
	GptType         string
	Guid            string
	IsBoot          bool
	IsActive        bool
	IsSystem        bool
	IsHidden        bool
	IsOffline       bool
	IsReadOnly      bool
	TransitionState uint32
}

// GetMSFTDisks enumerates this host's MSFT_Disk objects via the storage
// management namespace.
func GetMSFTDisks() (disks []*MSFT_Disk, err error) {
	log.Tracef(">>>>> GetMSFTDisks")
	defer log.Trace("<<<<< GetMSFTDisks")

	err = ExecQuery("SELECT * FROM MSFT_Disk", rootMicrosoftWindowsStorage, &disks)
	return disks, err
}

// GetMSFTPartitions enumerates the MSFT_Partition objects belonging to the
// given disk number.
func GetMSFTPartitions(diskNumber uint32) (partitions []*MSFT_Partition, err error) {
	log.Tracef(">>>>> GetMSFTPartitions, diskNumber=%v", diskNumber)
	defer log.Trace("<<<<< GetMSFTPartitions")

	query := "SELECT * FROM MSFT_Partition"
	err = ExecQuery(query, rootMicrosoftWindowsStorage, &partitions)
	if err != nil {
		return nil, err
	}
	return filterPartitionsByDisk(partitions, diskNumber), nil
}

// filterPartitionsByDisk returns the subset of partitions whose DiskNumber
// matches diskNumber, isolated from ExecQuery for unit testing.
func filterPartitionsByDisk(partitions []*MSFT_Partition, diskNumber uint32) []*MSFT_Partition {
	var filtered []*MSFT_Partition
	for _, partition := range partitions {
		if partition.DiskNumber == diskNumber {
			filtered = append(filtered, partition)
		}
	}
	return filtered
}
