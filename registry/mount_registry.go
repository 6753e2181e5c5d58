package registry

import (
	"sync"

	log "github.com/chronos-imaging/chronos/logger"
)

// Mount is anything the mount registry can hold and later tear down: an
// attached virtual-disk container, a mounted drive letter, or similar.
type Mount interface {
	Close() error
}

// MountRegistry is the process-wide path -> handle registry for attached
// virtual-disk containers (§5). One writer at a time; DismountAll iterates a
// snapshot of keys and tolerates "already gone" entries as success so it may
// run concurrently with user-initiated dismounts.
type MountRegistry struct {
	mu      sync.Mutex
	mounts  map[string]Mount
}

var (
	defaultMountRegistry     *MountRegistry
	defaultMountRegistryOnce sync.Once
)

// DefaultMountRegistry returns the lazily initialized process-wide mount
// registry used by package vhd.
func DefaultMountRegistry() *MountRegistry {
	defaultMountRegistryOnce.Do(func() {
		defaultMountRegistry = NewMountRegistry()
	})
	return defaultMountRegistry
}

// NewMountRegistry returns an empty MountRegistry, primarily for tests.
func NewMountRegistry() *MountRegistry {
	return &MountRegistry{mounts: make(map[string]Mount)}
}

// Register records that path is backed by mount.
func (r *MountRegistry) Register(path string, mount Mount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mounts[path] = mount
}

// Unregister removes path from the registry without closing its mount; the
// caller is assumed to have already closed it (or be about to).
func (r *MountRegistry) Unregister(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.mounts, path)
}

// Get returns the mount registered for path, if any.
func (r *MountRegistry) Get(path string) (Mount, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mounts[path]
	return m, ok
}

// DismountAll closes every currently registered mount and empties the
// registry. Errors are logged, not returned, matching the shutdown-path
// best-effort contract in §5: every attachment must at least be attempted.
func (r *MountRegistry) DismountAll() {
	log.Trace(">>>>> DismountAll")
	defer log.Trace("<<<<< DismountAll")

	r.mu.Lock()
	paths := make([]string, 0, len(r.mounts))
	for path := range r.mounts {
		paths = append(paths, path)
	}
	r.mu.Unlock()

	for _, path := range paths {
		r.mu.Lock()
		mount, ok := r.mounts[path]
		delete(r.mounts, path)
		r.mu.Unlock()
		if !ok {
			// Already removed by a concurrent dismount; treat as success.
			continue
		}
		if err := mount.Close(); err != nil {
			log.Warnf("DismountAll: path=%v err=%v", path, err)
		}
	}
}

// Len reports the number of currently registered mounts.
func (r *MountRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mounts)
}
