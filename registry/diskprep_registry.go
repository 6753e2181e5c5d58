package registry

import (
	"fmt"
	"sync"

	log "github.com/chronos-imaging/chronos/logger"
)

// DiskPrepRegistry is the process-wide registry of in-progress disk
// preparations (§4.G/§5): at most one caller may hold a prepared disk at a
// time, serialized by a single MapMutex keyed on disk index.
type DiskPrepRegistry struct {
	locks *MapMutex
	held  sync.Map // disk key -> struct{}
}

var (
	defaultDiskPrepRegistry     *DiskPrepRegistry
	defaultDiskPrepRegistryOnce sync.Once
)

// DefaultDiskPrepRegistry returns the lazily initialized process-wide disk
// preparation registry used by package diskprep.
func DefaultDiskPrepRegistry() *DiskPrepRegistry {
	defaultDiskPrepRegistryOnce.Do(func() {
		defaultDiskPrepRegistry = NewDiskPrepRegistry()
	})
	return defaultDiskPrepRegistry
}

// NewDiskPrepRegistry returns an empty DiskPrepRegistry, primarily for tests.
func NewDiskPrepRegistry() *DiskPrepRegistry {
	return &DiskPrepRegistry{locks: NewMapMutex()}
}

func diskKey(diskIndex uint32) string {
	return fmt.Sprintf("disk-%d", diskIndex)
}

// Acquire blocks until diskIndex is free, then marks it held. The caller
// must call Release exactly once, typically via defer.
func (r *DiskPrepRegistry) Acquire(diskIndex uint32) {
	key := diskKey(diskIndex)
	log.Tracef(">>>>> DiskPrepRegistry.Acquire, diskIndex=%v", diskIndex)
	r.locks.Lock(key)
	r.held.Store(key, struct{}{})
	log.Trace("<<<<< DiskPrepRegistry.Acquire")
}

// Release unlocks diskIndex, allowing another caller's Acquire to proceed.
func (r *DiskPrepRegistry) Release(diskIndex uint32) {
	key := diskKey(diskIndex)
	r.held.Delete(key)
	r.locks.Unlock(key)
	log.Tracef("DiskPrepRegistry.Release, diskIndex=%v", diskIndex)
}

// IsHeld reports whether diskIndex is currently prepared by some caller.
// Intended for diagnostics only; racy by construction against concurrent
// Acquire/Release.
func (r *DiskPrepRegistry) IsHeld(diskIndex uint32) bool {
	_, ok := r.held.Load(diskKey(diskIndex))
	return ok
}
