//go:build windows
// +build windows

// Package backupengine implements the snapshot -> read -> compress -> write
// pipeline (§4.I): for FullDisk and Partition jobs it streams sector ranges
// into a sparse virtual-disk container; for DiskClone and PartitionClone
// jobs it streams the same ranges directly onto a target disk with no
// container or compression in between.
package backupengine

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/chronos-imaging/chronos/allocrange"
	"github.com/chronos-imaging/chronos/cerrors"
	"github.com/chronos-imaging/chronos/codec"
	"github.com/chronos-imaging/chronos/diskenum"
	"github.com/chronos-imaging/chronos/diskprep"
	"github.com/chronos-imaging/chronos/job"
	log "github.com/chronos-imaging/chronos/logger"
	"github.com/chronos-imaging/chronos/model"
	"github.com/chronos-imaging/chronos/progress"
	"github.com/chronos-imaging/chronos/restoreengine"
	"github.com/chronos-imaging/chronos/sidecar"
	"github.com/chronos-imaging/chronos/snapshot"
	"github.com/chronos-imaging/chronos/vhd"
	"github.com/chronos-imaging/chronos/windows/ioctl"
)

// ChronosVersion is stamped into every sidecar this engine writes.
const ChronosVersion = "1.0"

const transferBufferBytes = 1 << 20 // 1 MiB, per spec §4.I step 5

// Engine runs backup jobs. The zero value is not ready to use; construct
// with New.
type Engine struct {
	enum *diskenum.Enumerator
}

// New returns an Engine that resolves disks/partitions through enum.
func New(enum *diskenum.Enumerator) *Engine {
	return &Engine{enum: enum}
}

// transferRange is one contiguous region to move, addressed relative to the
// start of its own device (a physical-partition device, a snapshot device,
// or the physical disk for FullDisk's header region).
type transferRange struct {
	sourcePath   string
	sourceOffset uint64
	destOffset   uint64
	length       uint64
}

// Run executes j to completion, reporting progress through report (may be
// nil) and honoring cancel at every phase boundary and transfer iteration.
func (e *Engine) Run(j job.Job, report func(model.OperationProgress), cancel <-chan struct{}) error {
	log.Tracef(">>>>> Run, kind=%v", j.Kind)
	defer log.Trace("<<<<< Run")

	switch j.Kind {
	case job.KindFullDisk, job.KindPartition:
		return e.runToContainer(j, report, cancel)
	case job.KindDiskClone, job.KindPartitionClone:
		return e.runClone(j, report, cancel)
	default:
		return cerrors.NewChronosErrorf(cerrors.InvalidJob, "unknown job kind %v", j.Kind)
	}
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

// runToContainer implements the FullDisk/Partition pipeline of §4.I: plan,
// snapshot, allocation map, prepare destination, transfer, finalize.
func (e *Engine) runToContainer(j job.Job, report func(model.OperationProgress), cancel <-chan struct{}) error {
	diskIndex := j.SourceDiskIndex()
	disk, err := e.enum.GetDisk(diskIndex)
	if err != nil {
		return err
	}

	var destinationPath string
	var compressionLevel int
	var useSnapshot, verifyAfter bool
	var partitionNumber uint32
	isPartitionJob := j.Kind == job.KindPartition
	if isPartitionJob {
		destinationPath = j.Partition.DestinationPath
		compressionLevel = j.Partition.CompressionLevel
		useSnapshot = j.Partition.UseSnapshot
		verifyAfter = j.Partition.VerifyAfter
		partitionNumber = j.Partition.PartitionNumber
	} else {
		destinationPath = j.FullDisk.DestinationPath
		compressionLevel = j.FullDisk.CompressionLevel
		useSnapshot = j.FullDisk.UseSnapshot
		verifyAfter = j.FullDisk.VerifyAfter
	}
	compressionLevel = codec.ClampLevel(compressionLevel)

	report = reportOrNoop(report)
	report(model.OperationProgress{Phase: model.PhasePlanning, StatusMessage: "enumerating source"})

	allPartitions, err := e.enum.ListPartitions(diskIndex)
	if err != nil {
		return err
	}

	var involved []model.Partition
	if isPartitionJob {
		found := false
		for _, p := range allPartitions {
			if p.PartitionNumber == partitionNumber {
				involved = append(involved, p)
				found = true
				break
			}
		}
		if !found {
			return cerrors.NewChronosErrorf(cerrors.NotFound, "partition %v not found on disk %v", partitionNumber, diskIndex)
		}
	} else {
		involved = allPartitions
	}

	logicalSectorSize, err := diskSectorSize(diskIndex)
	if err != nil {
		return err
	}

	var sourceSizeBytes uint64
	if isPartitionJob {
		sourceSizeBytes = involved[0].SizeBytes
	} else {
		sourceSizeBytes = disk.SizeBytes
	}

	if isCancelled(cancel) {
		return cerrors.NewChronosError(cerrors.Cancelled)
	}

	// Snapshot.
	var volumePaths []string
	for _, p := range involved {
		if p.HasVolume() {
			volumePaths = append(volumePaths, p.VolumePath)
		}
	}

	var snapSet *snapshot.Set
	usedSnapshot := false
	if useSnapshot && len(volumePaths) > 0 {
		if available, reason := snapshot.IsAvailable(); available {
			report(model.OperationProgress{Phase: model.PhaseSnapshotting, StatusMessage: "creating shadow copy"})
			set, err := snapshot.CreateSnapshotSet(volumePaths, cancel)
			if err != nil {
				log.Warnf("snapshot set unavailable, falling back to live read: %v", err)
			} else {
				snapSet = set
				usedSnapshot = true
			}
		} else {
			log.Warnf("shadow copy unavailable (%v), falling back to live read", reason)
		}
	}
	if snapSet != nil {
		defer snapSet.Release()
	}

	if isCancelled(cancel) {
		return cerrors.NewChronosError(cerrors.Cancelled)
	}

	// Allocation map / range plan.
	var ranges []transferRange
	if isPartitionJob {
		ranges = partitionRanges(involved[0], diskIndex, snapSet)
	} else {
		const headerBytes = 1 << 20
		physicalDiskPath := fmt.Sprintf(`\\.\PhysicalDrive%d`, diskIndex)
		ranges = append(ranges, transferRange{sourcePath: physicalDiskPath, sourceOffset: 0, destOffset: 0, length: headerBytes})
		for _, p := range involved {
			for _, r := range partitionRanges(p, diskIndex, snapSet) {
				r.destOffset += p.OffsetBytes
				ranges = append(ranges, r)
			}
		}
	}
	sort.Slice(ranges, func(i, k int) bool { return ranges[i].destOffset < ranges[k].destOffset })

	// Prepare destination.
	report(model.OperationProgress{Phase: model.PhasePlanning, StatusMessage: "creating container"})
	containerSize := vhd.SizeForSource(sourceSizeBytes, logicalSectorSize)
	attached, err := vhd.CreateAndAttachReadWrite(destinationPath, containerSize, logicalSectorSize)
	if err != nil {
		return cerrors.Wrap(cerrors.ContainerCreateFailed, err)
	}

	rollback := func() {
		attached.Detach()
		os.Remove(destinationPath)
		sidecar.Remove(destinationPath)
	}

	totalBytes := uint64(0)
	for _, r := range ranges {
		totalBytes += r.length
	}

	emitter := progress.NewEmitter(totalBytes)
	hasher := sha256.New()
	var sidecarRanges []model.SidecarRange

	var processed uint64
	for _, r := range ranges {
		if isCancelled(cancel) {
			rollback()
			return cerrors.NewChronosError(cerrors.Cancelled)
		}

		compressed, err := compressRange(r.sourcePath, r.sourceOffset, r.length, compressionLevel)
		if err != nil {
			rollback()
			return err
		}

		padded := padToSector(compressed, logicalSectorSize)
		if err := writeDevice(attached.DevicePath, padded, int64(r.destOffset)); err != nil {
			rollback()
			return cerrors.Wrap(cerrors.IoFailed, err)
		}

		hasher.Write(padded)
		sidecarRanges = append(sidecarRanges, model.SidecarRange{
			Offset:             r.destOffset,
			UncompressedLength: r.length,
			CompressedLength:   uint64(len(compressed)),
		})

		processed += r.length
		if emitter.ShouldEmit(processed, false) {
			report(emitter.Emit(processed, model.PhaseTransferring, "writing"))
		}
	}
	report(emitter.Emit(processed, model.PhaseTransferring, "writing"))

	report(model.OperationProgress{Phase: model.PhaseFinalizing, StatusMessage: "detaching container"})
	if err := attached.Detach(); err != nil {
		return cerrors.Wrap(cerrors.IoFailed, err)
	}

	sc := model.ImageSidecar{
		ChronosVersion:    ChronosVersion,
		CreatedAtUTC:      time.Now().UTC(),
		PartitionStyle:    disk.PartitionStyle,
		DiskModel:         disk.Model,
		DiskSerial:        disk.Serial,
		DiskSizeBytes:     sourceSizeBytes,
		SourceDiskNumber:  diskIndex,
		LogicalSectorSize: logicalSectorSize,
		Partitions:        sidecarPartitions(involved),
		UsedSnapshot:      usedSnapshot,
		Ranges:            sidecarRanges,
	}
	if verifyAfter {
		sc.ImageHash = hex.EncodeToString(hasher.Sum(nil))
		sc.ImageHashVerify = true
	}
	if err := sidecar.Write(destinationPath, sc); err != nil {
		return err
	}

	if verifyAfter {
		report(model.OperationProgress{Phase: model.PhaseVerifying, StatusMessage: "verifying image"})
		if err := restoreengine.VerifyImage(destinationPath); err != nil {
			return err
		}
	}

	report(model.OperationProgress{Phase: model.PhaseDone, Percent: 100, BytesProcessed: totalBytes, TotalBytes: totalBytes, StatusMessage: "done"})
	return nil
}

// runClone streams the same source ranges directly onto a target disk with
// no container or compression stage in between, for DiskClone/PartitionClone
// jobs (§3 BackupJob job_kind; these skip the virtual-disk container
// entirely).
func (e *Engine) runClone(j job.Job, report func(model.OperationProgress), cancel <-chan struct{}) error {
	report = reportOrNoop(report)

	switch j.Kind {
	case job.KindDiskClone:
		return e.cloneDisk(*j.DiskClone, report, cancel)
	case job.KindPartitionClone:
		return e.clonePartition(*j.PartitionClone, report, cancel)
	default:
		return cerrors.NewChronosErrorf(cerrors.InvalidJob, "unsupported clone kind %v", j.Kind)
	}
}

func (e *Engine) cloneDisk(c job.DiskClone, report func(model.OperationProgress), cancel <-chan struct{}) error {
	sourceDisk, err := e.enum.GetDisk(c.SourceDiskIndex)
	if err != nil {
		return err
	}
	partitions, err := e.enum.ListPartitions(c.SourceDiskIndex)
	if err != nil {
		return err
	}

	prepared, err := diskprep.PrepareDisk(c.TargetDiskIndex, partitions, true)
	if err != nil {
		return err
	}
	defer prepared.Release()

	var volumePaths []string
	for _, p := range partitions {
		if p.HasVolume() {
			volumePaths = append(volumePaths, p.VolumePath)
		}
	}
	var snapSet *snapshot.Set
	if c.UseSnapshot && len(volumePaths) > 0 {
		if available, _ := snapshot.IsAvailable(); available {
			if set, err := snapshot.CreateSnapshotSet(volumePaths, cancel); err == nil {
				snapSet = set
			}
		}
	}
	if snapSet != nil {
		defer snapSet.Release()
	}

	const headerBytes = 1 << 20
	sourcePhysicalPath := fmt.Sprintf(`\\.\PhysicalDrive%d`, c.SourceDiskIndex)
	targetPhysicalPath := fmt.Sprintf(`\\.\PhysicalDrive%d`, c.TargetDiskIndex)

	ranges := []transferRange{{sourcePath: sourcePhysicalPath, sourceOffset: 0, destOffset: 0, length: headerBytes}}
	for _, p := range partitions {
		for _, r := range partitionRanges(p, c.SourceDiskIndex, snapSet) {
			r.destOffset += p.OffsetBytes
			ranges = append(ranges, r)
		}
	}
	sort.Slice(ranges, func(i, k int) bool { return ranges[i].destOffset < ranges[k].destOffset })

	return transferRaw(ranges, targetPhysicalPath, sourceDisk.SizeBytes, report, cancel)
}

func (e *Engine) clonePartition(c job.PartitionClone, report func(model.OperationProgress), cancel <-chan struct{}) error {
	sourcePartitions, err := e.enum.ListPartitions(c.SourceDiskIndex)
	if err != nil {
		return err
	}
	var source model.Partition
	found := false
	for _, p := range sourcePartitions {
		if p.PartitionNumber == c.SourcePartitionNumber {
			source = p
			found = true
			break
		}
	}
	if !found {
		return cerrors.NewChronosErrorf(cerrors.NotFound, "partition %v not found on disk %v", c.SourcePartitionNumber, c.SourceDiskIndex)
	}

	var targetDevicePath string
	var prepared *diskprep.Prepared
	if c.TargetPartitionNumber != nil {
		targetPartitions, err := e.enum.ListPartitions(c.TargetDiskIndex)
		if err != nil {
			return err
		}
		var target model.Partition
		ok := false
		for _, p := range targetPartitions {
			if p.PartitionNumber == *c.TargetPartitionNumber {
				target = p
				ok = true
				break
			}
		}
		if !ok {
			return cerrors.NewChronosErrorf(cerrors.NotFound, "target partition %v not found", *c.TargetPartitionNumber)
		}
		prepared, err = diskprep.PreparePartition(c.TargetDiskIndex, target.PartitionNumber, target.VolumePath)
		if err != nil {
			return err
		}
		targetDevicePath = fmt.Sprintf(`\\.\Harddisk%dPartition%d`, c.TargetDiskIndex, target.PartitionNumber)
	} else if c.TargetUnallocatedOffset != nil && c.TargetUnallocatedSize != nil {
		size := source.SizeBytes
		if *c.TargetUnallocatedSize < size {
			size = *c.TargetUnallocatedSize
		}
		targetDisk, err := e.enum.GetDisk(c.TargetDiskIndex)
		if err != nil {
			return err
		}
		newNumber, err := restoreengine.WriteUnallocatedPartitionEntry(c.TargetDiskIndex, targetDisk.PartitionStyle, *c.TargetUnallocatedOffset, size)
		if err != nil {
			return err
		}
		prepared, err = diskprep.PreparePartition(c.TargetDiskIndex, newNumber, "")
		if err != nil {
			return err
		}
		targetDevicePath = fmt.Sprintf(`\\.\Harddisk%dPartition%d`, c.TargetDiskIndex, newNumber)
	} else {
		return cerrors.NewChronosErrorf(cerrors.InvalidJob, "PartitionClone needs either a target partition or an unallocated region")
	}
	defer prepared.Release()

	var snapSet *snapshot.Set
	if c.UseSnapshot && source.HasVolume() {
		if available, _ := snapshot.IsAvailable(); available {
			if set, err := snapshot.CreateSnapshotSet([]string{source.VolumePath}, cancel); err == nil {
				snapSet = set
			}
		}
	}
	if snapSet != nil {
		defer snapSet.Release()
	}

	ranges := partitionRanges(source, c.SourceDiskIndex, snapSet)
	return transferRaw(ranges, targetDevicePath, source.SizeBytes, report, cancel)
}

// transferRaw copies ranges sector-for-sector from their own source devices
// directly onto targetDevicePath, with no compression or container.
func transferRaw(ranges []transferRange, targetDevicePath string, totalBytes uint64, report func(model.OperationProgress), cancel <-chan struct{}) error {
	emitter := progress.NewEmitter(totalBytes)
	var processed uint64
	for _, r := range ranges {
		if isCancelled(cancel) {
			return cerrors.NewChronosError(cerrors.Cancelled)
		}
		if err := copyRange(r, targetDevicePath); err != nil {
			return cerrors.Wrap(cerrors.IoFailed, err)
		}
		processed += r.length
		if emitter.ShouldEmit(processed, false) {
			report(emitter.Emit(processed, model.PhaseTransferring, "cloning"))
		}
	}
	report(emitter.Emit(processed, model.PhaseTransferring, "cloning"))
	report(model.OperationProgress{Phase: model.PhaseDone, Percent: 100, BytesProcessed: totalBytes, TotalBytes: totalBytes, StatusMessage: "done"})
	return nil
}

func copyRange(r transferRange, targetDevicePath string) error {
	srcHandle, err := ioctl.OpenDeviceForRead(r.sourcePath)
	if err != nil {
		return err
	}
	defer ioctl.CloseHandle(srcHandle)

	dstHandle, err := ioctl.OpenDeviceForReadWrite(targetDevicePath)
	if err != nil {
		return err
	}
	defer ioctl.CloseHandle(dstHandle)

	buf := make([]byte, transferBufferBytes)
	var done uint64
	for done < r.length {
		chunk := uint64(len(buf))
		if remaining := r.length - done; remaining < chunk {
			chunk = remaining
		}
		n, err := ioctl.ReadAt(srcHandle, buf[:chunk], int64(r.sourceOffset+done))
		if err != nil {
			return err
		}
		if _, err := ioctl.WriteAt(dstHandle, buf[:n], int64(r.destOffset+done)); err != nil {
			return err
		}
		done += uint64(n)
	}
	return nil
}

// partitionRanges builds the range list for one partition, addressed
// relative to the partition's own source device: the snapshot device when
// snapSet resolved its volume, otherwise the physical partition device.
func partitionRanges(p model.Partition, diskIndex uint32, snapSet *snapshot.Set) []transferRange {
	sourcePath := fmt.Sprintf(`\\.\Harddisk%dPartition%d`, diskIndex, p.PartitionNumber)
	if snapSet != nil && p.HasVolume() {
		if snapPath, ok := snapSet.GetSnapshotPath(p.VolumePath); ok {
			sourcePath = snapPath
		}
	}

	if p.HasVolume() {
		if allocated, ok := allocrange.List(sourcePath, p.SizeBytes); ok {
			ranges := make([]transferRange, 0, len(allocated))
			for _, ar := range allocated {
				ranges = append(ranges, transferRange{sourcePath: sourcePath, sourceOffset: ar.OffsetBytes, destOffset: ar.OffsetBytes, length: ar.LengthBytes})
			}
			return ranges
		}
	}
	return []transferRange{{sourcePath: sourcePath, sourceOffset: 0, destOffset: 0, length: p.SizeBytes}}
}

func sidecarPartitions(partitions []model.Partition) []model.SidecarPartition {
	out := make([]model.SidecarPartition, 0, len(partitions))
	for _, p := range partitions {
		out = append(out, model.SidecarPartition{
			PartitionNumber: p.PartitionNumber,
			Size:            p.SizeBytes,
			Offset:          p.OffsetBytes,
			DriveLetter:     p.DriveLetter,
			VolumeLabel:     p.VolumeLabel,
			FileSystem:      p.Filesystem,
			PartitionType:   p.PartitionTypeLabel,
			UsedSpace:       p.UsedBytes,
			FreeSpace:       p.FreeBytes,
		})
	}
	return out
}

func diskSectorSize(diskIndex uint32) (uint32, error) {
	geometry, err := ioctl.GetDiskGeometry(diskIndex)
	if err != nil {
		return 0, cerrors.Wrap(cerrors.IoFailed, err)
	}
	if geometry.Geometry.BytesPerSector == 0 {
		return 512, nil
	}
	return geometry.Geometry.BytesPerSector, nil
}

func padToSector(data []byte, sectorSize uint32) []byte {
	if sectorSize == 0 {
		return data
	}
	remainder := len(data) % int(sectorSize)
	if remainder == 0 {
		return data
	}
	return append(data, make([]byte, int(sectorSize)-remainder)...)
}

// compressRange reads length bytes of sourcePath starting at sourceOffset,
// buffered at transferBufferBytes, and returns the zstd-compressed result.
func compressRange(sourcePath string, sourceOffset, length uint64, level int) ([]byte, error) {
	handle, err := ioctl.OpenDeviceForRead(sourcePath)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.IoFailed, err)
	}
	defer ioctl.CloseHandle(handle)

	var out bytes.Buffer
	w, err := codec.NewWriter(&out, level)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, transferBufferBytes)
	var done uint64
	for done < length {
		chunk := uint64(len(buf))
		if remaining := length - done; remaining < chunk {
			chunk = remaining
		}
		n, err := ioctl.ReadAt(handle, buf[:chunk], int64(sourceOffset+done))
		if err != nil {
			return nil, cerrors.Wrap(cerrors.IoFailed, err)
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return nil, cerrors.Wrap(cerrors.IoFailed, err)
		}
		done += uint64(n)
	}
	if err := w.Close(); err != nil {
		return nil, cerrors.Wrap(cerrors.IoFailed, err)
	}
	return out.Bytes(), nil
}

func writeDevice(devicePath string, data []byte, offset int64) error {
	handle, err := ioctl.OpenDeviceForReadWrite(devicePath)
	if err != nil {
		return err
	}
	defer ioctl.CloseHandle(handle)
	_, err = ioctl.WriteAt(handle, data, offset)
	return err
}

func reportOrNoop(report func(model.OperationProgress)) func(model.OperationProgress) {
	if report != nil {
		return report
	}
	return func(model.OperationProgress) {}
}
