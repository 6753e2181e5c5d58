//go:build windows
// +build windows

// Package snapshot coordinates the host's shadow-copy facility (VSS) to
// produce a consistent point-in-time view of one or more volumes for the
// backup engine to read from.
package snapshot

import (
	"strings"
	"sync"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"github.com/google/uuid"

	"github.com/chronos-imaging/chronos/cerrors"
	log "github.com/chronos-imaging/chronos/logger"
	"github.com/chronos-imaging/chronos/model"
)

// Set wraps a model.SnapshotSet with the scoped release behavior: dropping
// it requests deletion of the entire shadow-copy set exactly once,
// including on error paths.
type Set struct {
	*model.SnapshotSet

	backup   *ole.IUnknown
	setID    [16]byte
	released bool
	mu       sync.Mutex
}

// Release deletes the shadow-copy set and releases the COM components
// object. Safe to call more than once; only the first call has effect.
func (s *Set) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true

	var err error
	if s.backup != nil {
		err = deleteSnapshotSet(s.backup, s.setID)
		s.backup.Release()
	}
	ole.CoUninitialize()
	return err
}

var (
	availabilityOnce sync.Once
	available        bool
	lastFailure      string
)

// IsAvailable reports whether the shadow-copy library is present on disk
// and a live test instantiation succeeds. The result is cached for the
// process lifetime; the last failure reason is retained for diagnostics.
func IsAvailable() (bool, string) {
	availabilityOnce.Do(func() {
		if err := vssapiDLL.Load(); err != nil {
			available = false
			lastFailure = err.Error()
			return
		}

		comErr := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED)
		if comErr != nil && !isBenignComInit(comErr) {
			available = false
			lastFailure = comErr.Error()
			return
		}
		defer ole.CoUninitialize()

		backup, err := createVssBackupComponents()
		if err != nil {
			available = false
			lastFailure = err.Error()
			return
		}
		backup.Release()
		available = true
	})
	return available, lastFailure
}

func isBenignComInit(err error) bool {
	oleErr, ok := err.(*ole.OleError)
	if !ok {
		return false
	}
	const sOK, sFalse = 0, 1
	return oleErr.Code() == sOK || oleErr.Code() == sFalse
}

// CreateSnapshotSet drives the shadow-copy facility through the documented
// sequence: initialize-for-backup, set-context, gather-writer-metadata,
// start-set, add each volume, set-backup-state, prepare-for-backup,
// execute-snapshot. cancel is checked between steps; a close before
// completion aborts the sequence and tears down whatever was started.
func CreateSnapshotSet(volumePaths []string, cancel <-chan struct{}) (*Set, error) {
	log.Tracef(">>>>> CreateSnapshotSet, volumePaths=%v", volumePaths)
	defer log.Trace("<<<<< CreateSnapshotSet")

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil && !isBenignComInit(err) {
		return nil, cerrors.Wrap(cerrors.SnapshotFailed, err)
	}

	backup, err := createVssBackupComponents()
	if err != nil {
		ole.CoUninitialize()
		return nil, cerrors.NewChronosErrorf(cerrors.SnapshotUnavailable, "create VSS backup components: %v", err)
	}

	teardown := func(stepErr error) (*Set, error) {
		backup.Release()
		ole.CoUninitialize()
		return nil, cerrors.Wrap(cerrors.SnapshotFailed, stepErr)
	}

	vt := vtbl(backup)

	if hr, _, _ := syscall.Syscall(vt.InitializeForBackup, 2, uintptr(unsafe.Pointer(backup)), 0, 0); FAILED(hr) {
		return teardown(ole.NewError(hr))
	}

	if hr, _, _ := syscall.Syscall(vt.SetContext, 2, uintptr(unsafe.Pointer(backup)), uintptr(vssCtxBackup), 0); FAILED(hr) {
		return teardown(ole.NewError(hr))
	}

	if cancelled(cancel) {
		return teardown(cerrors.NewChronosError(cerrors.Cancelled))
	}

	var gatherAsync uintptr
	if hr, _, _ := syscall.Syscall(vt.GatherWriterMetadata, 2, uintptr(unsafe.Pointer(backup)), uintptr(unsafe.Pointer(&gatherAsync)), 0); FAILED(hr) {
		return teardown(ole.NewError(hr))
	}
	if err := waitAsync(gatherAsync); err != nil {
		return teardown(err)
	}

	if cancelled(cancel) {
		return teardown(cerrors.NewChronosError(cerrors.Cancelled))
	}

	var setID [16]byte
	if hr, _, _ := syscall.Syscall(vt.StartSnapshotSet, 2, uintptr(unsafe.Pointer(backup)), uintptr(unsafe.Pointer(&setID)), 0); FAILED(hr) {
		return teardown(ole.NewError(hr))
	}

	snapshotIDs := make(map[string][16]byte, len(volumePaths))
	for _, volumePath := range volumePaths {
		normalized := normalizeVolumeKey(volumePath)
		pathPtr, err := syscall.UTF16PtrFromString(normalized)
		if err != nil {
			return teardown(err)
		}

		var providerID [16]byte
		var snapshotID [16]byte
		if hr, _, _ := syscall.Syscall6(vt.AddToSnapshotSet, 4,
			uintptr(unsafe.Pointer(backup)), uintptr(unsafe.Pointer(pathPtr)),
			uintptr(unsafe.Pointer(&providerID)), uintptr(unsafe.Pointer(&snapshotID)), 0, 0); FAILED(hr) {
			log.Warnf("volume %v could not be added to the snapshot set: %v", volumePath, ole.NewError(hr))
			continue
		}
		snapshotIDs[volumePath] = snapshotID
	}

	if len(snapshotIDs) == 0 {
		return teardown(cerrors.NewChronosError(cerrors.SnapshotUnavailable))
	}

	const bSelectComponents, bBackupBootableSystemState, bPartialFileSupport = 0, 0, 0
	if hr, _, _ := syscall.Syscall6(vt.SetBackupState, 5,
		uintptr(unsafe.Pointer(backup)), uintptr(bSelectComponents), uintptr(bBackupBootableSystemState),
		uintptr(vssBtFull), uintptr(bPartialFileSupport), 0); FAILED(hr) {
		return teardown(ole.NewError(hr))
	}

	if cancelled(cancel) {
		return teardown(cerrors.NewChronosError(cerrors.Cancelled))
	}

	var prepareAsync uintptr
	if hr, _, _ := syscall.Syscall(vt.PrepareForBackup, 2, uintptr(unsafe.Pointer(backup)), uintptr(unsafe.Pointer(&prepareAsync)), 0); FAILED(hr) {
		return teardown(ole.NewError(hr))
	}
	if err := waitAsync(prepareAsync); err != nil {
		return teardown(err)
	}

	if cancelled(cancel) {
		return teardown(cerrors.NewChronosError(cerrors.Cancelled))
	}

	var execAsync uintptr
	if hr, _, _ := syscall.Syscall(vt.DoSnapshotSet, 2, uintptr(unsafe.Pointer(backup)), uintptr(unsafe.Pointer(&execAsync)), 0); FAILED(hr) {
		return teardown(ole.NewError(hr))
	}
	if err := waitAsync(execAsync); err != nil {
		return teardown(err)
	}

	set := model.NewSnapshotSet(uuid.New().String())
	for volumePath, snapshotID := range snapshotIDs {
		devicePath, err := getSnapshotDevicePath(backup, snapshotID)
		if err != nil {
			log.Warnf("could not read snapshot device path for %v: %v", volumePath, err)
			continue
		}
		set.Register(canonicalForms(volumePath), devicePath)
	}

	return &Set{SnapshotSet: set, backup: backup, setID: setID}, nil
}

func cancelled(cancel <-chan struct{}) bool {
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

// normalizeVolumeKey converts a caller-supplied volume spelling to the form
// VSS accepts: a drive-letter root ("X:\") or a volume-GUID path with a
// trailing slash.
func normalizeVolumeKey(volumePath string) string {
	v := strings.TrimRight(volumePath, `\`)
	if len(v) == 2 && v[1] == ':' {
		return v + `\`
	}
	return v + `\`
}

// canonicalForms returns every spelling under which a caller might look up
// this volume later: the bare form without a trailing slash, the
// trailing-slash form, and, for drive letters and \\?\ volume GUID paths,
// the \\.\ device form.
func canonicalForms(volumePath string) []string {
	trimmed := strings.TrimRight(volumePath, `\`)
	forms := []string{trimmed, trimmed + `\`}
	if len(trimmed) == 2 && trimmed[1] == ':' {
		forms = append(forms, `\\.\`+trimmed)
	} else if strings.HasPrefix(trimmed, `\\?\`) {
		forms = append(forms, `\\.\`+strings.TrimPrefix(trimmed, `\\?\`))
	}
	return forms
}

// normalizeSnapshotPath rewrites the kernel-object-namespace prefix VSS
// sometimes reports into the Win32 device-path prefix the platform I/O
// façade expects.
func normalizeSnapshotPath(raw string) string {
	if strings.HasPrefix(raw, `\??\`) {
		return `\\.\` + strings.TrimPrefix(raw, `\??\`)
	}
	return raw
}

func getSnapshotDevicePath(backup *ole.IUnknown, snapshotID [16]byte) (string, error) {
	vt := vtbl(backup)

	var prop vssSnapshotProp
	if hr, _, _ := syscall.Syscall(vt.GetSnapshotProperties, 3,
		uintptr(unsafe.Pointer(backup)), uintptr(unsafe.Pointer(&snapshotID)), uintptr(unsafe.Pointer(&prop))); FAILED(hr) {
		return "", ole.NewError(hr)
	}
	if prop.SnapshotDeviceObject == 0 {
		return "", cerrors.NewChronosError(cerrors.PathQueryFailed)
	}
	raw := utf16PtrToString(prop.SnapshotDeviceObject)
	return normalizeSnapshotPath(raw), nil
}

func deleteSnapshotSet(backup *ole.IUnknown, setID [16]byte) error {
	vt := vtbl(backup)

	var deletedCount int32
	var nonDeletedID [16]byte
	const eSourceObjectTypeSnapshotSet = 2 // VSS_OBJECT_SNAPSHOT_SET
	const forceDelete = 1

	hr, _, _ := syscall.Syscall6(vt.DeleteSnapshots, 5,
		uintptr(unsafe.Pointer(backup)), uintptr(unsafe.Pointer(&setID)),
		uintptr(eSourceObjectTypeSnapshotSet), uintptr(forceDelete),
		uintptr(unsafe.Pointer(&deletedCount)), uintptr(unsafe.Pointer(&nonDeletedID)))
	if FAILED(hr) {
		return ole.NewError(hr)
	}
	return nil
}

func utf16PtrToString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	var chars []uint16
	for i := 0; ; i++ {
		c := *(*uint16)(unsafe.Pointer(ptr + uintptr(i)*2))
		if c == 0 {
			break
		}
		chars = append(chars, c)
	}
	return syscall.UTF16ToString(chars)
}

// vssSnapshotProp mirrors the relevant prefix of VSS_SNAPSHOT_PROP (the
// rest of the struct's fields are not needed here but are left out rather
// than guessed at, since this layout only needs to be read-compatible up
// to the field actually used).
type vssSnapshotProp struct {
	SnapshotID    [16]byte
	SnapshotSetID [16]byte

	SnapshotsCount       int32
	SnapshotDeviceObject uintptr
	OriginalVolumeName   uintptr
	OriginatingMachine   uintptr
	ServiceMachine       uintptr
	ExposedName          uintptr
	ExposedPath          uintptr

	ProviderID         [16]byte
	SnapshotAttributes int32
	CreationTimestamp  int64
	Status             int32
}
