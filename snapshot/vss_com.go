//go:build windows
// +build windows

package snapshot

import (
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

// IVssBackupComponents vtable slot order, per the published VSS API ABI
// (vsbackup.h): IUnknown's three slots followed by the interface's own
// methods in declaration order. Only the slots the coordinator calls are
// named; intervening methods are still counted so later offsets land
// correctly.
type ivssBackupComponentsVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr

	GetWriterComponentsCount uintptr
	GetWriterComponents      uintptr
	InitializeForBackup      uintptr
	SetBackupState           uintptr
	InitializeForRestore     uintptr
	SetRestoreState          uintptr
	GatherWriterMetadata     uintptr
	GetWriterMetadataCount   uintptr
	GetWriterMetadata        uintptr
	FreeWriterMetadata       uintptr
	AddComponent             uintptr
	PrepareForBackup         uintptr
	AbortBackup              uintptr
	GatherWriterStatus       uintptr
	GetWriterStatusCount     uintptr
	FreeWriterStatus         uintptr
	GetWriterStatus          uintptr
	SetBackupSucceeded       uintptr
	SetBackupOptions         uintptr
	SetSelectedForRestore    uintptr
	SetRestoreOptions        uintptr
	SetAdditionalRestores    uintptr
	SetPreviousBackupStamp   uintptr
	SaveAsXML                uintptr
	BackupComplete           uintptr
	AddAlternativeLocationMapping uintptr
	AddRestoreSubcomponent   uintptr
	SetFileRestoreStatus     uintptr
	AddNewTarget             uintptr
	AddDirectedTarget        uintptr
	SetRangesFilePath        uintptr
	PreRestore               uintptr
	PostRestore              uintptr
	SetContext               uintptr
	StartSnapshotSet         uintptr
	AddToSnapshotSet         uintptr
	DoSnapshotSet            uintptr
	DeleteSnapshots          uintptr
	ImportSnapshots          uintptr
	BreakSnapshotSet         uintptr
	GetSnapshotProperties    uintptr
}

// ivssAsyncVtbl is the IVssAsync interface used to await every asynchronous
// VSS step (GatherWriterMetadata, PrepareForBackup, DoSnapshotSet).
type ivssAsyncVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr

	Cancel      uintptr
	Wait        uintptr
	QueryStatus uintptr
}

const (
	vssCtxBackup = 0 // VSS_CTX_BACKUP

	vssBtFull = 1 // VSS_BT_FULL

	vssObjectSnapshot = 3 // VSS_OBJECT_SNAPSHOT; nothing in this package references it
)

var (
	vssapiDLL                   = windows.NewLazySystemDLL("vssapi.dll")
	procCreateVssBackupComponents = vssapiDLL.NewProc("CreateVssBackupComponents")
)

// createVssBackupComponents calls the exported CreateVssBackupComponents
// entry point, returning a raw IVssBackupComponents pointer wrapped as an
// ole.IUnknown so its lifetime follows go-ole's Release conventions.
func createVssBackupComponents() (*ole.IUnknown, error) {
	var raw *ole.IUnknown
	hr, _, _ := procCreateVssBackupComponents.Call(uintptr(unsafe.Pointer(&raw)))
	if FAILED(hr) {
		return nil, ole.NewError(hr)
	}
	return raw, nil
}

func vtbl(u *ole.IUnknown) *ivssBackupComponentsVtbl {
	return (*ivssBackupComponentsVtbl)(unsafe.Pointer(u.RawVTable))
}

// waitAsync awaits an IVssAsync pointer returned by an asynchronous VSS
// call, per the documented sequence: Wait() blocks until completion, then
// QueryStatus() reports the final HRESULT.
func waitAsync(asyncPtr uintptr) error {
	if asyncPtr == 0 {
		return nil
	}
	async := (*ole.IUnknown)(unsafe.Pointer(asyncPtr))
	defer async.Release()

	vt := (*ivssAsyncVtbl)(unsafe.Pointer(async.RawVTable))

	if hr, _, _ := syscall.Syscall(vt.Wait, 2, uintptr(unsafe.Pointer(async)), uintptr(0xFFFFFFFF), 0); FAILED(hr) {
		return ole.NewError(hr)
	}

	var status uintptr
	hr, _, _ := syscall.Syscall(vt.QueryStatus, 3, uintptr(unsafe.Pointer(async)), uintptr(unsafe.Pointer(&status)), 0)
	if FAILED(hr) {
		return ole.NewError(hr)
	}
	const vssSDone = 1 // VSS_S_ASYNC_FINISHED
	if status != vssSDone && FAILED(uintptr(status)) {
		return ole.NewError(uintptr(status))
	}
	return nil
}

// FAILED mirrors the HRESULT sign-bit test used throughout the COM-facing
// packages in this tree.
func FAILED(hresult uintptr) bool {
	return int32(hresult) < 0
}
