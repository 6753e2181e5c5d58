//go:build windows
// +build windows

// Package diskenum produces the disk, partition, and unallocated-space view
// of the host, reconciling the storage-management query with the raw
// partition table so hidden partitions (EFI system, MSR) are never missed.
package diskenum

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/chronos-imaging/chronos/cerrors"
	log "github.com/chronos-imaging/chronos/logger"
	"github.com/chronos-imaging/chronos/model"
	"github.com/chronos-imaging/chronos/probe"
	"github.com/chronos-imaging/chronos/windows/ioctl"
	"github.com/chronos-imaging/chronos/windows/wmi"
)

const (
	gptESP       = "c12a7328-f81f-11d2-ba4b-00a0c93ec93b"
	gptMSR       = "e3c9e316-0b5c-4db8-817d-f92df00215ae"
	gptBasicData = "ebd0a0a2-b9e5-4433-87c0-68b6b72699c7"
	gptRecovery  = "de94bba4-06d1-4d40-a16a-bfd50179d6ac"
)

type snapshot struct {
	disks            []model.PhysicalDisk
	partitionsByDisk map[uint32][]model.Partition
}

// Enumerator produces the cached disk/partition view. Zero value is ready
// to use; the cache fills lazily on first access and is only otherwise
// replaced by an explicit Refresh.
type Enumerator struct {
	cache atomic.Value // *snapshot
}

// New returns a ready Enumerator.
func New() *Enumerator {
	return &Enumerator{}
}

func (e *Enumerator) current() (*snapshot, error) {
	if v := e.cache.Load(); v != nil {
		return v.(*snapshot), nil
	}
	if err := e.Refresh(); err != nil {
		return nil, err
	}
	return e.cache.Load().(*snapshot), nil
}

// Refresh recomputes the cached disk/partition view from scratch. Readers
// observe either the old snapshot or the new one atomically, never a
// partially updated view.
func (e *Enumerator) Refresh() error {
	log.Trace(">>>>> Refresh")
	defer log.Trace("<<<<< Refresh")

	caps := probe.Detect()

	var managementDisks []*wmi.MSFT_Disk
	if caps.HasManagementQuery {
		md, err := wmi.GetMSFTDisks()
		if err != nil {
			log.Warnf("management-query disk enumeration failed, falling back to control codes: %v", err)
		} else {
			managementDisks = md
		}
	}

	indices := ioctl.EnumerateDeviceIndices()

	next := &snapshot{partitionsByDisk: make(map[uint32][]model.Partition)}
	for _, index := range indices {
		disk, partitions, err := e.buildDisk(index, managementDisks)
		if err != nil {
			log.Warnf("skipping disk %v: %v", index, err)
			continue
		}
		next.disks = append(next.disks, disk)
		next.partitionsByDisk[index] = partitions
	}

	e.cache.Store(next)
	return nil
}

// ListDisks returns every enumerated disk, from the cache (refreshing it on
// first use).
func (e *Enumerator) ListDisks() ([]model.PhysicalDisk, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	return s.disks, nil
}

// GetDisk returns the single disk matching diskIndex.
func (e *Enumerator) GetDisk(diskIndex uint32) (model.PhysicalDisk, error) {
	s, err := e.current()
	if err != nil {
		return model.PhysicalDisk{}, err
	}
	for _, d := range s.disks {
		if d.Index == diskIndex {
			return d, nil
		}
	}
	return model.PhysicalDisk{}, cerrors.NewChronosErrorf(cerrors.NotFound, "disk %v not found", diskIndex)
}

// ListPartitions returns every real partition on diskIndex, sorted by
// offset. It does not include synthetic unallocated-space entries; use
// ListUnallocated for those.
func (e *Enumerator) ListPartitions(diskIndex uint32) ([]model.Partition, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	return s.partitionsByDisk[diskIndex], nil
}

func (e *Enumerator) buildDisk(index uint32, managementDisks []*wmi.MSFT_Disk) (model.PhysicalDisk, []model.Partition, error) {
	geometry, err := ioctl.GetDiskGeometry(index)
	if err != nil {
		return model.PhysicalDisk{}, nil, cerrors.Wrap(cerrors.IoFailed, err)
	}

	disk := model.PhysicalDisk{
		Index:     index,
		Kind:      model.PhysicalDiskKindNormal,
		SizeBytes: geometry.DiskSize,
	}
	switch {
	case geometry.DiskPartitionGPT != nil:
		disk.PartitionStyle = model.PartitionStyleGPT
	case geometry.DiskPartitionMBR != nil:
		disk.PartitionStyle = model.PartitionStyleMBR
	default:
		disk.PartitionStyle = model.PartitionStyleUnknown
	}

	var managed *wmi.MSFT_Disk
	for _, md := range managementDisks {
		if md.Number == index {
			managed = md
			break
		}
	}
	if managed != nil {
		disk.Model = managed.FriendlyName
		disk.Serial = managed.SerialNumber
		disk.IsSystem = managed.IsSystem
		disk.IsBoot = managed.IsBoot
	} else if addr, err := ioctl.GetScsiAddress(fmt.Sprintf(`\\.\PhysicalDrive%d`, index)); err == nil {
		// No management view of this disk (restricted environment, or the
		// disk is absent from MSFT_Disk for some other reason): fall back to
		// the SCSI bus address as the closest identity the control-code path
		// can offer.
		disk.Model = fmt.Sprintf("SCSI Port%d Bus%d Target%d LUN%d", addr.PortNumber, addr.PathId, addr.TargetId, addr.Lun)
	} else {
		log.Tracef("GetScsiAddress unavailable for disk %v: %v", index, err)
	}

	partitions, err := e.reconcilePartitions(index, managed)
	if err != nil {
		return model.PhysicalDisk{}, nil, err
	}
	return disk, partitions, nil
}

// reconcilePartitions merges the management-query partition list with the
// drive-layout partition table by starting offset: the layout's partition
// number wins because the management index is unreliable about hidden
// partitions, but its offsets are deterministic. Layout entries with no
// matching management offset are appended as control-code-only entries.
func (e *Enumerator) reconcilePartitions(diskIndex uint32, managed *wmi.MSFT_Disk) ([]model.Partition, error) {
	layout, err := ioctl.GetDriveLayoutEx(diskIndex)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.IoFailed, err)
	}

	var managementPartitions []*wmi.MSFT_Partition
	if managed != nil {
		if mp, err := wmi.GetMSFTPartitions(diskIndex); err == nil {
			managementPartitions = mp
		}
	}

	byOffset := make(map[uint64]*wmi.MSFT_Partition, len(managementPartitions))
	for _, mp := range managementPartitions {
		byOffset[mp.Offset] = mp
	}

	var result []model.Partition
	for _, entry := range layout.Partitions {
		if entry.PartitionLength == 0 {
			continue
		}
		p := model.Partition{
			DiskIndex:       diskIndex,
			PartitionNumber: entry.PartitionNumber,
			OffsetBytes:     entry.StartingOffset,
			SizeBytes:       entry.PartitionLength,
		}

		if entry.PartitionStyle == ioctl.PARTITION_STYLE_GPT {
			p.GPTTypeGUID = entry.Gpt.PartitionType.String()
			p.PartitionTypeLabel = gptTypeLabel(p.GPTTypeGUID)
		}

		if mp, ok := byOffset[entry.StartingOffset]; ok {
			if mp.DriveLetter != 0 {
				p.DriveLetter = string(rune(mp.DriveLetter)) + ":"
			}
			if p.PartitionTypeLabel == "" {
				p.PartitionTypeLabel = mp.Type
			}
			delete(byOffset, entry.StartingOffset)
		}

		if p.PartitionTypeLabel == "" {
			p.PartitionTypeLabel = heuristicTypeLabel(p)
		}

		e.resolveVolume(&p)
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].OffsetBytes < result[j].OffsetBytes })
	return result, nil
}

func gptTypeLabel(guid string) string {
	switch guid {
	case gptESP:
		return "EFI (ESP)"
	case gptMSR:
		return "MSR"
	case gptRecovery:
		return "Recovery"
	case gptBasicData:
		return "Primary"
	default:
		return ""
	}
}

// heuristicTypeLabel applies the fallback rule for partitions whose type
// could not be determined from a GPT GUID or a management-reported string:
// partitions smaller than 1 GiB are labelled Recovery, everything else
// Primary. Whether the partition is bootable is not checked.
func heuristicTypeLabel(p model.Partition) string {
	const smallRecoveryCeiling = 1 << 30 // 1 GiB
	if p.SizeBytes > 0 && p.SizeBytes < smallRecoveryCeiling {
		return "Recovery"
	}
	return "Primary"
}

// resolveVolume fills in the volume path and, where possible, free/used
// space and filesystem for a partition.
func (e *Enumerator) resolveVolume(p *model.Partition) {
	if p.DriveLetter != "" {
		root := p.DriveLetter + `\`
		if usedBytes, freeBytes, fileSystem, ok := queryFreeSpace(root); ok {
			p.UsedBytes, p.FreeBytes, p.Filesystem = usedBytes, freeBytes, fileSystem
		}
		p.VolumePath = root
		return
	}

	if guid, ok := findVolumeForExtent(p.DiskIndex, p.OffsetBytes); ok {
		p.VolumePath = guid
		enrichFromWin32Volume(p, guid)
	}
}
