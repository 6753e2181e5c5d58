//go:build windows
// +build windows

// Package restoreengine implements the restore pipeline (§4.J): attach the
// source image read-only, prepare the target through package diskprep,
// decompress each recorded range back onto the target device, and
// optionally verify each write as it lands.
package restoreengine

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"
	"syscall"

	"github.com/chronos-imaging/chronos/cerrors"
	"github.com/chronos-imaging/chronos/codec"
	"github.com/chronos-imaging/chronos/diskenum"
	"github.com/chronos-imaging/chronos/diskprep"
	log "github.com/chronos-imaging/chronos/logger"
	"github.com/chronos-imaging/chronos/model"
	"github.com/chronos-imaging/chronos/progress"
	"github.com/chronos-imaging/chronos/sidecar"
	"github.com/chronos-imaging/chronos/vhd"
	"github.com/chronos-imaging/chronos/windows/ioctl"
)

const transferBufferBytes = 1 << 20

// Engine runs restore jobs. The zero value is not ready to use; construct
// with New.
type Engine struct {
	enum *diskenum.Enumerator
}

// New returns an Engine that resolves the target disk/partition through enum.
func New(enum *diskenum.Enumerator) *Engine {
	return &Engine{enum: enum}
}

func isCancelled(cancel <-chan struct{}) bool {
	if cancel == nil {
		return false
	}
	select {
	case <-cancel:
		return true
	default:
		return false
	}
}

func reportOrNoop(report func(model.OperationProgress)) func(model.OperationProgress) {
	if report != nil {
		return report
	}
	return func(model.OperationProgress) {}
}

// Run executes j to completion, reporting progress through report (may be
// nil) and honoring cancel at every phase boundary and transfer iteration.
func (e *Engine) Run(j model.RestoreJob, report func(model.OperationProgress), cancel <-chan struct{}) error {
	log.Tracef(">>>>> Run, sourceImage=%v, targetPath=%v", j.SourceImage, j.TargetPath)
	defer log.Trace("<<<<< Run")

	report = reportOrNoop(report)
	report(model.OperationProgress{Phase: model.PhasePlanning, StatusMessage: "reading sidecar"})

	sc, err := sidecar.Read(j.SourceImage)
	if err != nil {
		return err
	}

	attached, err := vhd.AttachReadOnly(j.SourceImage)
	if err != nil {
		return cerrors.Wrap(cerrors.AttachFailed, err)
	}
	defer attached.Detach()

	if isCancelled(cancel) {
		return cerrors.NewChronosError(cerrors.Cancelled)
	}

	if j.SourcePartitionNumber == nil {
		return e.restoreFullDisk(j, sc, attached, report, cancel)
	}
	return e.restorePartition(j, sc, attached, report, cancel)
}

// restoreFullDisk writes every recorded range, addressed disk-absolute,
// straight onto the target physical disk, then forces the kernel to
// re-read the partition table the header range just wrote.
func (e *Engine) restoreFullDisk(j model.RestoreJob, sc model.ImageSidecar, attached *model.AttachedContainer, report func(model.OperationProgress), cancel <-chan struct{}) error {
	targetDiskIndex, err := diskIndexFromPhysicalPath(j.TargetPath)
	if err != nil {
		return err
	}

	targetPartitions, err := e.enum.ListPartitions(targetDiskIndex)
	if err != nil {
		return err
	}
	if len(targetPartitions) > 0 && !j.ForceOverwrite {
		return cerrors.NewChronosErrorf(cerrors.PreconditionFailed, "target disk %v already has partitions; set force_overwrite to proceed", targetDiskIndex)
	}

	prepared, err := diskprep.PrepareDisk(targetDiskIndex, targetPartitions, true)
	if err != nil {
		return err
	}
	defer prepared.Release()

	targetPath := fmt.Sprintf(`\\.\PhysicalDrive%d`, targetDiskIndex)
	if err := e.transferRanges(sc, attached.DevicePath, targetPath, j.VerifyDuring, report, cancel); err != nil {
		return err
	}

	report(model.OperationProgress{Phase: model.PhaseFinalizing, StatusMessage: "refreshing partition table"})
	if err := ioctl.UpdateDiskProperties(targetDiskIndex); err != nil {
		return cerrors.Wrap(cerrors.IoFailed, err)
	}

	report(model.OperationProgress{Phase: model.PhaseDone, Percent: 100, StatusMessage: "done"})
	return nil
}

// restorePartition writes the image's single partition onto either an
// existing target partition device or a freshly created partition entry
// over unallocated space, per WriteUnallocatedPartitionEntry.
func (e *Engine) restorePartition(j model.RestoreJob, sc model.ImageSidecar, attached *model.AttachedContainer, report func(model.OperationProgress), cancel <-chan struct{}) error {
	var targetDevicePath string
	var prepared *diskprep.Prepared

	if j.TargetUnallocatedOffset != nil && j.TargetUnallocatedSize != nil {
		targetDiskIndex, err := diskIndexFromPhysicalPath(j.TargetPath)
		if err != nil {
			return err
		}
		size := partitionSizeFromSidecar(sc, *j.SourcePartitionNumber)
		if *j.TargetUnallocatedSize < size {
			size = *j.TargetUnallocatedSize
		}

		report(model.OperationProgress{Phase: model.PhasePlanning, StatusMessage: "writing partition entry"})
		newNumber, err := WriteUnallocatedPartitionEntry(targetDiskIndex, sc.PartitionStyle, *j.TargetUnallocatedOffset, size)
		if err != nil {
			return err
		}

		prepared, err = diskprep.PreparePartition(targetDiskIndex, newNumber, "")
		if err != nil {
			return err
		}
		targetDevicePath = fmt.Sprintf(`\\.\Harddisk%dPartition%d`, targetDiskIndex, newNumber)
	} else {
		targetDiskIndex, partitionNumber, ok := diskAndPartitionFromPath(j.TargetPath)
		if !ok {
			return cerrors.NewChronosErrorf(cerrors.InvalidJob, "target path %v is not a recognized partition device", j.TargetPath)
		}
		targetPartitions, err := e.enum.ListPartitions(targetDiskIndex)
		if err != nil {
			return err
		}
		var volumePath string
		for _, p := range targetPartitions {
			if p.PartitionNumber == partitionNumber {
				volumePath = p.VolumePath
				break
			}
		}
		prepared, err = diskprep.PreparePartition(targetDiskIndex, partitionNumber, volumePath)
		if err != nil {
			return err
		}
		targetDevicePath = j.TargetPath
	}
	defer prepared.Release()

	if err := e.transferRanges(sc, attached.DevicePath, targetDevicePath, j.VerifyDuring, report, cancel); err != nil {
		return err
	}

	report(model.OperationProgress{Phase: model.PhaseDone, Percent: 100, StatusMessage: "done"})
	return nil
}

// transferRanges decompresses each of sc.Ranges from containerDevicePath
// and writes the result at the same offset on targetDevicePath.
func (e *Engine) transferRanges(sc model.ImageSidecar, containerDevicePath, targetDevicePath string, verifyDuring bool, report func(model.OperationProgress), cancel <-chan struct{}) error {
	report(model.OperationProgress{Phase: model.PhaseTransferring, StatusMessage: "restoring"})

	containerHandle, err := ioctl.OpenDeviceForRead(containerDevicePath)
	if err != nil {
		return cerrors.Wrap(cerrors.IoFailed, err)
	}
	defer ioctl.CloseHandle(containerHandle)

	targetHandle, err := ioctl.OpenDeviceForReadWrite(targetDevicePath)
	if err != nil {
		return cerrors.Wrap(cerrors.IoFailed, err)
	}
	defer ioctl.CloseHandle(targetHandle)

	var totalBytes uint64
	for _, r := range sc.Ranges {
		totalBytes += r.UncompressedLength
	}
	emitter := progress.NewEmitter(totalBytes)

	var processed uint64
	for _, r := range sc.Ranges {
		if isCancelled(cancel) {
			return cerrors.NewChronosError(cerrors.Cancelled)
		}

		decompressed, err := readAndDecompress(containerHandle, r, sc.LogicalSectorSize)
		if err != nil {
			return err
		}

		if _, err := ioctl.WriteAt(targetHandle, decompressed, int64(r.Offset)); err != nil {
			return cerrors.Wrap(cerrors.IoFailed, err)
		}

		if verifyDuring {
			if err := verifyWrittenRange(targetHandle, r.Offset, decompressed); err != nil {
				return err
			}
		}

		processed += r.UncompressedLength
		if emitter.ShouldEmit(processed, false) {
			report(emitter.Emit(processed, model.PhaseTransferring, "restoring"))
		}
	}
	report(emitter.Emit(processed, model.PhaseTransferring, "restoring"))
	return nil
}

// readAndDecompress reads the padded compressed frame for r from handle and
// decompresses it back to its original UncompressedLength bytes. The zstd
// frame is self-terminating, so the trailing zero padding added at write
// time is simply ignored by the decoder.
func readAndDecompress(handle syscall.Handle, r model.SidecarRange, sectorSize uint32) ([]byte, error) {
	paddedLength := padLength(r.CompressedLength, sectorSize)
	raw := make([]byte, paddedLength)

	var done uint64
	for done < paddedLength {
		n, err := ioctl.ReadAt(handle, raw[done:], int64(r.Offset+done))
		if err != nil {
			return nil, cerrors.Wrap(cerrors.IoFailed, err)
		}
		if n == 0 {
			break
		}
		done += uint64(n)
	}

	reader, err := codec.NewReader(bytes.NewReader(raw[:r.CompressedLength]))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	out := make([]byte, r.UncompressedLength)
	var read uint64
	for read < r.UncompressedLength {
		n, err := reader.Read(out[read:])
		read += uint64(n)
		if err != nil {
			if read == r.UncompressedLength {
				break
			}
			return nil, cerrors.Wrap(cerrors.ImageCorrupt, err)
		}
	}
	return out, nil
}

// verifyWrittenRange re-reads the bytes just written to handle at offset and
// compares them against expected, surfacing a VerifyFailed error on mismatch.
func verifyWrittenRange(handle syscall.Handle, offset uint64, expected []byte) error {
	readBack := make([]byte, len(expected))
	var done int
	for done < len(readBack) {
		n, err := ioctl.ReadAt(handle, readBack[done:], int64(offset)+int64(done))
		if err != nil {
			return cerrors.Wrap(cerrors.IoFailed, err)
		}
		if n == 0 {
			break
		}
		done += n
	}
	if !bytes.Equal(readBack, expected) {
		return cerrors.NewChronosErrorf(cerrors.VerifyFailed, "read-back mismatch at offset %v", offset)
	}
	return nil
}

func padLength(length uint64, sectorSize uint32) uint64 {
	if sectorSize == 0 {
		return length
	}
	s := uint64(sectorSize)
	remainder := length % s
	if remainder == 0 {
		return length
	}
	return length + (s - remainder)
}

func partitionSizeFromSidecar(sc model.ImageSidecar, partitionNumber uint32) uint64 {
	for _, p := range sc.Partitions {
		if p.PartitionNumber == partitionNumber {
			return p.Size
		}
	}
	return 0
}

func diskIndexFromPhysicalPath(path string) (uint32, error) {
	const prefix = `\\.\PhysicalDrive`
	if !strings.HasPrefix(path, prefix) {
		return 0, cerrors.NewChronosErrorf(cerrors.InvalidJob, "target path %v is not a physical disk device", path)
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(path, prefix), 10, 32)
	if err != nil {
		return 0, cerrors.NewChronosErrorf(cerrors.InvalidJob, "target path %v is not a physical disk device", path)
	}
	return uint32(n), nil
}

func diskAndPartitionFromPath(path string) (diskIndex, partitionNumber uint32, ok bool) {
	const prefix = `\\.\Harddisk`
	if !strings.HasPrefix(path, prefix) {
		return 0, 0, false
	}
	rest := strings.TrimPrefix(path, prefix)
	mid := strings.Index(rest, "Partition")
	if mid < 0 {
		return 0, 0, false
	}
	d, err := strconv.ParseUint(rest[:mid], 10, 32)
	if err != nil {
		return 0, 0, false
	}
	p, err := strconv.ParseUint(rest[mid+len("Partition"):], 10, 32)
	if err != nil {
		return 0, 0, false
	}
	return uint32(d), uint32(p), true
}

// imageHasher wraps a sha256 hash with the hex-digest convention the
// backup engine uses when it stamps ImageHash into the sidecar.
type imageHasher struct {
	h hash.Hash
}

func newImageHasher() *imageHasher {
	return &imageHasher{h: sha256.New()}
}

func (ih *imageHasher) Write(p []byte) {
	ih.h.Write(p)
}

func (ih *imageHasher) Sum() string {
	return hex.EncodeToString(ih.h.Sum(nil))
}

// VerifyImage recomputes the hash over every recorded range of an image
// container and compares it against the sidecar's recorded ImageHash. It is
// a no-op returning nil when the sidecar was written without verification
// requested.
func VerifyImage(imagePath string) error {
	log.Tracef(">>>>> VerifyImage, imagePath=%v", imagePath)
	defer log.Trace("<<<<< VerifyImage")

	sc, err := sidecar.Read(imagePath)
	if err != nil {
		return err
	}
	if !sc.ImageHashVerify || sc.ImageHash == "" {
		return nil
	}

	attached, err := vhd.AttachReadOnly(imagePath)
	if err != nil {
		return cerrors.Wrap(cerrors.AttachFailed, err)
	}
	defer attached.Detach()

	handle, err := ioctl.OpenDeviceForRead(attached.DevicePath)
	if err != nil {
		return cerrors.Wrap(cerrors.IoFailed, err)
	}
	defer ioctl.CloseHandle(handle)

	hasher := newImageHasher()
	buf := make([]byte, transferBufferBytes)
	for _, r := range sc.Ranges {
		paddedLength := padLength(r.CompressedLength, sc.LogicalSectorSize)
		var done uint64
		for done < paddedLength {
			chunk := uint64(len(buf))
			if remaining := paddedLength - done; remaining < chunk {
				chunk = remaining
			}
			n, err := ioctl.ReadAt(handle, buf[:chunk], int64(r.Offset+done))
			if err != nil {
				return cerrors.Wrap(cerrors.IoFailed, err)
			}
			if n == 0 {
				break
			}
			hasher.Write(buf[:n])
			done += uint64(n)
		}
	}

	actual := hasher.Sum()
	if actual != sc.ImageHash {
		return cerrors.NewChronosErrorf(cerrors.VerifyFailed, "image hash mismatch: expected %v, got %v", sc.ImageHash, actual)
	}
	return nil
}

// WriteUnallocatedPartitionEntry appends a new partition entry spanning
// [offsetBytes, offsetBytes+sizeBytes) to diskIndex's partition table and
// forces the kernel to re-enumerate it, returning the assigned partition
// number.
func WriteUnallocatedPartitionEntry(diskIndex uint32, style model.PartitionStyle, offsetBytes, sizeBytes uint64) (uint32, error) {
	log.Tracef(">>>>> WriteUnallocatedPartitionEntry, diskIndex=%v, offsetBytes=%v, sizeBytes=%v", diskIndex, offsetBytes, sizeBytes)
	defer log.Trace("<<<<< WriteUnallocatedPartitionEntry")

	layout, err := ioctl.GetDriveLayoutEx(diskIndex)
	if err != nil {
		return 0, cerrors.Wrap(cerrors.IoFailed, err)
	}

	nextNumber := uint32(1)
	for _, p := range layout.Partitions {
		if p.PartitionNumber >= nextNumber {
			nextNumber = p.PartitionNumber + 1
		}
	}

	partitionStyle := ioctl.PARTITION_STYLE_MBR
	if style == model.PartitionStyleGPT {
		partitionStyle = ioctl.PARTITION_STYLE_GPT
	}

	entry := ioctl.NewPartitionEntry(partitionStyle, nextNumber, offsetBytes, sizeBytes)
	layout.Partitions = append(layout.Partitions, entry)
	layout.PartitionCount = uint32(len(layout.Partitions))

	if err := ioctl.SetDriveLayoutEx(diskIndex, layout); err != nil {
		return 0, err
	}
	if err := ioctl.UpdateDiskProperties(diskIndex); err != nil {
		return 0, err
	}
	return nextNumber, nil
}
