//go:build windows
// +build windows

package diskenum

import (
	"sort"

	"github.com/chronos-imaging/chronos/model"
)

const (
	frontReserve         = 1 << 20  // 1 MiB, reserved for MBR/GPT headers
	backReserve          = 1 << 20  // 1 MiB, reserved for the GPT backup table
	minGapForUnallocated = 10 << 20 // 10 MiB; smaller gaps are not worth surfacing
)

// ListUnallocated computes synthetic Partition entries for the gaps between
// real partitions on diskIndex, scanning the cursor over
// [1 MiB, disk_size - 1 MiB].
func (e *Enumerator) ListUnallocated(diskIndex uint32) ([]model.Partition, error) {
	disk, err := e.GetDisk(diskIndex)
	if err != nil {
		return nil, err
	}
	partitions, err := e.ListPartitions(diskIndex)
	if err != nil {
		return nil, err
	}
	return computeUnallocated(disk.SizeBytes, partitions), nil
}

// computeUnallocated is the pure gap-scan: it has no device dependency so
// it can be exercised directly without a live disk.
func computeUnallocated(diskSizeBytes uint64, partitions []model.Partition) []model.Partition {
	sorted := make([]model.Partition, len(partitions))
	copy(sorted, partitions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OffsetBytes < sorted[j].OffsetBytes })

	scanEnd := diskSizeBytes - backReserve
	if diskSizeBytes < backReserve {
		scanEnd = 0
	}

	var gaps []model.Partition
	nextNumber := uint32(model.UnallocatedPartitionNumberBase)
	cursor := uint64(frontReserve)

	emit := func(start, end uint64) {
		if end <= start || end-start < minGapForUnallocated {
			return
		}
		gaps = append(gaps, model.Partition{
			PartitionNumber: nextNumber,
			OffsetBytes:     start,
			SizeBytes:       end - start,
			IsUnallocated:   true,
		})
		nextNumber++
	}

	for _, p := range sorted {
		if p.OffsetBytes > cursor {
			emit(cursor, p.OffsetBytes)
		}
		if p.End() > cursor {
			cursor = p.End()
		}
	}
	if cursor < scanEnd {
		emit(cursor, scanEnd)
	}

	return gaps
}
