//go:build windows
// +build windows

// Package allocrange computes the sorted, coalesced set of occupied byte
// ranges within an NTFS volume by paging through its cluster bitmap.
package allocrange

import (
	log "github.com/chronos-imaging/chronos/logger"
	"github.com/chronos-imaging/chronos/model"
	"github.com/chronos-imaging/chronos/windows/ioctl"
)

// DefaultClusterSize is used when the volume's cluster size cannot be
// determined from either a free-space query or NTFS volume data.
const DefaultClusterSize = 4096

// List returns the allocated ranges of volumePath, or ok=false when the
// volume is not NTFS or the bitmap query otherwise fails (the caller then
// falls back to treating the whole source as one range).
func List(volumePath string, volumeSizeBytes uint64) (ranges []model.AllocatedRange, ok bool) {
	log.Tracef(">>>>> List, volumePath=%v, volumeSizeBytes=%v", volumePath, volumeSizeBytes)
	defer log.Trace("<<<<< List")

	clusterSize := clusterSizeFor(volumePath)

	var startingLcn uint64
	for {
		chunk, err := ioctl.GetVolumeBitmapChunk(volumePath, startingLcn)
		if err != nil {
			log.Warnf("GetVolumeBitmapChunk(%v, %v) failed: %v", volumePath, startingLcn, err)
			return nil, false
		}

		bitsReceived := uint64(len(chunk.Bitmap)) * 8
		ranges = appendClusterRuns(ranges, chunk, clusterSize)

		if !chunk.HasMore || bitsReceived == 0 {
			break
		}
		startingLcn = chunk.StartingLcn + bitsReceived
	}

	return coalesce(ranges), true
}

// appendClusterRuns scans chunk's packed bitmap and appends one
// AllocatedRange per contiguous run of allocated clusters.
func appendClusterRuns(ranges []model.AllocatedRange, chunk *ioctl.VOLUME_BITMAP_BUFFER, clusterSize uint64) []model.AllocatedRange {
	bitCount := uint64(len(chunk.Bitmap)) * 8
	var runStart uint64
	inRun := false

	flush := func(endIndex uint64) {
		if !inRun {
			return
		}
		offset := (chunk.StartingLcn + runStart) * clusterSize
		length := (endIndex - runStart) * clusterSize
		ranges = append(ranges, model.AllocatedRange{OffsetBytes: offset, LengthBytes: length})
		inRun = false
	}

	for i := uint64(0); i < bitCount; i++ {
		allocated := ioctl.ClusterAllocated(chunk, i)
		if allocated && !inRun {
			runStart = i
			inRun = true
		} else if !allocated && inRun {
			flush(i)
		}
	}
	flush(bitCount)

	return ranges
}

// coalesce merges adjacent or overlapping ranges assuming the input is
// already ordered by offset (true here because the bitmap is scanned
// front-to-back).
func coalesce(ranges []model.AllocatedRange) []model.AllocatedRange {
	if len(ranges) == 0 {
		return nil
	}
	merged := []model.AllocatedRange{ranges[0]}
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if last.AdjacentOrOverlapping(r) {
			if r.End() > last.End() {
				last.LengthBytes = r.End() - last.OffsetBytes
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// clusterSizeFor determines the cluster size to scale bitmap bit indices
// by: from NTFS volume data for device paths (including shadow-copy
// devices), falling back to the documented default.
func clusterSizeFor(volumePath string) uint64 {
	if data, err := ioctl.GetNtfsVolumeData(volumePath); err == nil && data.BytesPerCluster > 0 {
		return uint64(data.BytesPerCluster)
	}
	return DefaultClusterSize
}
