//go:build windows
// +build windows

// Package probe detects which host capabilities are present and caches the
// result for the lifetime of the process. Nothing here is refreshed once
// computed: capability detection is deliberately process-wide and read-only
// after the first call, matching the engine's "no global mutable state
// beyond explicit registries and caches" contract.
package probe

import (
	"os"
	"sync"

	"github.com/chronos-imaging/chronos/config"
	log "github.com/chronos-imaging/chronos/logger"
	"golang.org/x/sys/windows/registry"
)

// Capabilities is the detected capability record. It never changes after
// construction; a new process picks up any change in host configuration.
type Capabilities struct {
	HasManagementQuery      bool
	HasShadowCopy           bool
	HasCompositor           bool
	HasVirtualDiskAPI       bool
	HasNetwork              bool
	HasPersistentUserStorage bool
	HasFileDialogs          bool
	IsRestrictedEnvironment bool
}

const restrictedEnvironmentKey = `SYSTEM\CurrentControlSet\Control\MiniNT`

var (
	once     sync.Once
	detected Capabilities
)

// Detect returns the process-wide capability record, computing it on first
// call and returning the cached value on every subsequent call.
func Detect() Capabilities {
	once.Do(func() {
		log.Trace(">>>>> Detect")
		defer log.Trace("<<<<< Detect")
		detected = detect()
	})
	return detected
}

func detect() Capabilities {
	restricted := isRestrictedEnvironment()

	caps := Capabilities{
		IsRestrictedEnvironment: restricted,
		HasManagementQuery:      libraryPresent(`System32\wbem\wmiutils.dll`) && !restricted,
		HasShadowCopy:           libraryPresent(`System32\vssapi.dll`),
		HasCompositor:           libraryPresent(`System32\dwmapi.dll`) && !restricted,
		HasVirtualDiskAPI:       libraryPresent(`System32\virtdisk.dll`),
		HasNetwork:              serviceExists(`Tcpip`),
		HasPersistentUserStorage: !restricted,
		HasFileDialogs:          libraryPresent(`System32\comdlg32.dll`) && !restricted,
	}

	log.Debugf("capabilities: %+v", caps)
	return caps
}

// isRestrictedEnvironment reports whether the host is a minimal OS variant
// (WinPE/"MiniNT"), detected by a well-known registry marker.
func isRestrictedEnvironment() bool {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, restrictedEnvironmentKey, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	defer k.Close()
	return true
}

// libraryPresent reports whether a named system library exists under
// SystemRoot.
func libraryPresent(relativePath string) bool {
	_, err := os.Stat(config.SystemRoot() + `\` + relativePath)
	return err == nil
}

// serviceExists reports whether a named service has a registry entry under
// the current control set's Services key.
func serviceExists(serviceName string) bool {
	key := `SYSTEM\CurrentControlSet\Services\` + serviceName
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, key, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	defer k.Close()
	return true
}

// AppDataDirectory resolves a writable location for Chronos's own state
// (logs, temp sidecars), trying candidates in priority order and returning
// the first that supports directory creation.
func AppDataDirectory() (string, error) {
	return config.AppDataDirectory()
}
