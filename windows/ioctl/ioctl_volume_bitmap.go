//go:build windows
// +build windows

package ioctl

import (
	"strings"
	"syscall"
	"unsafe"

	log "github.com/chronos-imaging/chronos/logger"
)

// STARTING_LCN_INPUT_BUFFER is the FSCTL_GET_VOLUME_BITMAP input: the
// logical cluster number to resume scanning from.
type STARTING_LCN_INPUT_BUFFER struct {
	StartingLcn uint64
}

// VOLUME_BITMAP_BUFFER is one decoded chunk of a FSCTL_GET_VOLUME_BITMAP
// response: the starting LCN of this chunk, the total cluster count it
// covers, and the packed per-cluster allocation bits.
type VOLUME_BITMAP_BUFFER struct {
	StartingLcn  uint64
	BitmapLength uint64
	Bitmap       []byte

	// HasMore is true when the kernel truncated this chunk (ERROR_MORE_DATA);
	// the caller should issue another call starting past this chunk's
	// returned bits.
	HasMore bool
}

// bitmapChunkBytes bounds a single FSCTL_GET_VOLUME_BITMAP call's output
// buffer; the kernel truncates to what fits and the caller resumes from
// the last fully-returned cluster, so this is a throughput knob rather
// than a functional limit.
const bitmapChunkBytes = 256 * 1024

// GetVolumeBitmapChunk issues one FSCTL_GET_VOLUME_BITMAP call starting at
// startingLcn and returns the decoded chunk. The allocated-range provider
// drives repeated calls, each resuming where the last one's coverage ended,
// until the returned chunk's coverage reaches the volume's cluster count
// (§4.D: "paginated bitmap scan").
func GetVolumeBitmapChunk(volumePathID string, startingLcn uint64) (*VOLUME_BITMAP_BUFFER, error) {
	log.Tracef(">>>>> GetVolumeBitmapChunk, volumePathID=%v, startingLcn=%v", volumePathID, startingLcn)
	defer log.Trace("<<<<< GetVolumeBitmapChunk")

	volumePathID = strings.TrimRight(volumePathID, `\`)
	handle, err := OpenDeviceForRead(volumePathID)
	if err != nil {
		log.Errorf("Error=%v", err)
		return nil, err
	}
	defer CloseHandle(handle)

	input := STARTING_LCN_INPUT_BUFFER{StartingLcn: startingLcn}
	dataBuffer := make([]uint8, bitmapChunkBytes)

	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, FSCTL_GET_VOLUME_BITMAP,
		(*byte)(unsafe.Pointer(&input)), uint32(unsafe.Sizeof(input)),
		&dataBuffer[0], uint32(len(dataBuffer)), &bytesReturned, nil)

	// FSCTL_GET_VOLUME_BITMAP legitimately returns ERROR_MORE_DATA when the
	// volume has more clusters than fit in one chunk; the partial buffer is
	// still valid and the caller resumes from its coverage.
	hasMore := err == syscall.ERROR_MORE_DATA
	if err != nil && !hasMore {
		log.Errorf("Error=%v", err)
		return nil, err
	}

	startLcn := *(*uint64)(unsafe.Pointer(&dataBuffer[0]))
	bitmapLength := *(*uint64)(unsafe.Pointer(&dataBuffer[8]))

	packedBytesAvailable := int64(bytesReturned) - 16
	if packedBytesAvailable < 0 {
		packedBytesAvailable = 0
	}
	packed := make([]byte, packedBytesAvailable)
	copy(packed, dataBuffer[16:16+packedBytesAvailable])

	log.Tracef("StartingLcn=%v, BitmapLength=%v, packedBytes=%v, hasMore=%v", startLcn, bitmapLength, len(packed), hasMore)
	return &VOLUME_BITMAP_BUFFER{StartingLcn: startLcn, BitmapLength: bitmapLength, Bitmap: packed, HasMore: hasMore}, nil
}

// ClusterAllocated reports whether the cluster at the given zero-based
// index within a chunk's coverage is marked allocated.
func ClusterAllocated(chunk *VOLUME_BITMAP_BUFFER, clusterIndex uint64) bool {
	byteIndex := clusterIndex / 8
	if byteIndex >= uint64(len(chunk.Bitmap)) {
		return false
	}
	bitIndex := clusterIndex % 8
	return chunk.Bitmap[byteIndex]&(1<<bitIndex) != 0
}
